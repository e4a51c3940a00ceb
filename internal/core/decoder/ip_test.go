package decoder

import (
	"encoding/binary"
	"net/netip"
	"testing"

	"github.com/packetscope/packetscope/internal/core"
)

// makeIPv4Header builds a 20-byte IPv4 header with a valid checksum.
func makeIPv4Header(src, dst [4]byte, proto byte, totalLen uint16) []byte {
	hdr := make([]byte, 20)
	hdr[0] = 0x45 // Version 4, IHL 5
	binary.BigEndian.PutUint16(hdr[2:4], totalLen)
	binary.BigEndian.PutUint16(hdr[4:6], 0x1234) // Identification
	hdr[8] = 64 // TTL
	hdr[9] = proto
	copy(hdr[12:16], src[:])
	copy(hdr[16:20], dst[:])
	binary.BigEndian.PutUint16(hdr[10:12], headerChecksum(hdr))
	return hdr
}

func TestDecodeIPv4(t *testing.T) {
	data := makeIPv4Header([4]byte{192, 168, 1, 1}, [4]byte{10, 0, 0, 5}, protocolUDP, 28)
	data = append(data, make([]byte, 8)...) // UDP header bytes

	ip, payload, warns, err := decodeIPv4(data)
	if err != nil {
		t.Fatalf("decodeIPv4 failed: %v", err)
	}
	if len(warns) != 0 {
		t.Errorf("Expected no warnings, got %v", warns)
	}
	if ip.SrcIP != netip.MustParseAddr("192.168.1.1") {
		t.Errorf("Expected SrcIP 192.168.1.1, got %v", ip.SrcIP)
	}
	if ip.DstIP != netip.MustParseAddr("10.0.0.5") {
		t.Errorf("Expected DstIP 10.0.0.5, got %v", ip.DstIP)
	}
	if ip.TTL != 64 {
		t.Errorf("Expected TTL 64, got %d", ip.TTL)
	}
	if ip.Protocol != protocolUDP {
		t.Errorf("Expected protocol %d, got %d", protocolUDP, ip.Protocol)
	}
	if ip.TotalLen != 28 {
		t.Errorf("Expected TotalLen 28, got %d", ip.TotalLen)
	}
	if !ip.ChecksumOK {
		t.Error("Expected valid checksum")
	}
	if len(payload) != 8 {
		t.Errorf("Expected payload length 8, got %d", len(payload))
	}
}

func TestDecodeIPv4PaddingStripped(t *testing.T) {
	// 28 declared bytes captured inside a 46-byte Ethernet payload: the
	// trailing 18 bytes are padding and must not leak into the payload.
	data := makeIPv4Header([4]byte{192, 168, 1, 1}, [4]byte{10, 0, 0, 5}, protocolUDP, 28)
	data = append(data, make([]byte, 26)...)

	_, payload, warns, err := decodeIPv4(data)
	if err != nil {
		t.Fatalf("decodeIPv4 failed: %v", err)
	}
	if len(warns) != 0 {
		t.Errorf("Expected no warnings, got %v", warns)
	}
	if len(payload) != 8 {
		t.Errorf("Expected padding stripped down to 8 payload bytes, got %d", len(payload))
	}
}

func TestDecodeIPv4ChecksumMismatch(t *testing.T) {
	data := makeIPv4Header([4]byte{192, 168, 1, 1}, [4]byte{10, 0, 0, 5}, protocolTCP, 40)
	data[10], data[11] = 0xDE, 0xAD
	data = append(data, make([]byte, 20)...)

	ip, _, _, err := decodeIPv4(data)
	if err != nil {
		t.Fatalf("decodeIPv4 failed: %v", err)
	}
	if ip.ChecksumOK {
		t.Error("Expected checksum mismatch to be detected")
	}
}

func TestDecodeIPv4DeclaredHeaderBeyondBuffer(t *testing.T) {
	// IHL says 60 bytes of header but only 26 bytes exist.
	data := makeIPv4Header([4]byte{192, 168, 1, 1}, [4]byte{10, 0, 0, 5}, protocolTCP, 60)
	data[0] = 0x4F // IHL 15 → 60-byte header
	data = append(data, make([]byte, 6)...)

	_, _, _, err := decodeIPv4(data)
	if err != core.ErrPacketTooShort {
		t.Errorf("Expected ErrPacketTooShort, got %v", err)
	}
}

func TestDecodeIPv4TotalLengthExceedsCapture(t *testing.T) {
	data := makeIPv4Header([4]byte{192, 168, 1, 1}, [4]byte{10, 0, 0, 5}, protocolUDP, 1500)
	data = append(data, make([]byte, 8)...)

	_, payload, warns, err := decodeIPv4(data)
	if err != nil {
		t.Fatalf("decodeIPv4 failed: %v", err)
	}
	if len(warns) != 1 || warns[0] != "ipv4 total length exceeds captured bytes" {
		t.Errorf("Expected truncation warning, got %v", warns)
	}
	if len(payload) != 8 {
		t.Errorf("Expected payload clamped to captured 8 bytes, got %d", len(payload))
	}
}

func TestDecodeIPv6(t *testing.T) {
	data := make([]byte, 48)
	data[0] = 0x60 // Version 6
	binary.BigEndian.PutUint16(data[4:6], 8)
	data[6] = protocolUDP // Next Header
	data[7] = 64          // Hop Limit
	src := netip.MustParseAddr("2001:db8::1").As16()
	dst := netip.MustParseAddr("2001:db8::2").As16()
	copy(data[8:24], src[:])
	copy(data[24:40], dst[:])

	ip, payload, err := decodeIPv6(data)
	if err != nil {
		t.Fatalf("decodeIPv6 failed: %v", err)
	}
	if ip.SrcIP != netip.MustParseAddr("2001:db8::1") {
		t.Errorf("Expected SrcIP 2001:db8::1, got %v", ip.SrcIP)
	}
	if ip.DstIP != netip.MustParseAddr("2001:db8::2") {
		t.Errorf("Expected DstIP 2001:db8::2, got %v", ip.DstIP)
	}
	if ip.NextHeader != protocolUDP {
		t.Errorf("Expected NextHeader %d, got %d", protocolUDP, ip.NextHeader)
	}
	if ip.HopLimit != 64 {
		t.Errorf("Expected HopLimit 64, got %d", ip.HopLimit)
	}
	if len(payload) != 8 {
		t.Errorf("Expected payload length 8, got %d", len(payload))
	}
}

func TestDecodeIPv6TooShort(t *testing.T) {
	_, _, err := decodeIPv6(make([]byte, 39))
	if err != core.ErrPacketTooShort {
		t.Errorf("Expected ErrPacketTooShort, got %v", err)
	}
}

func TestDecodeARP(t *testing.T) {
	data := make([]byte, 28)
	binary.BigEndian.PutUint16(data[0:2], 1)      // Ethernet
	binary.BigEndian.PutUint16(data[2:4], 0x0800) // IPv4
	data[4], data[5] = 6, 4
	binary.BigEndian.PutUint16(data[6:8], 1) // request
	copy(data[8:14], []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF})
	copy(data[14:18], []byte{192, 168, 1, 1})
	copy(data[24:28], []byte{192, 168, 1, 2})

	arp, _, err := decodeARP(data)
	if err != nil {
		t.Fatalf("decodeARP failed: %v", err)
	}
	if arp.Op != 1 {
		t.Errorf("Expected op 1, got %d", arp.Op)
	}
	if arp.SenderIP != netip.MustParseAddr("192.168.1.1") {
		t.Errorf("Expected sender 192.168.1.1, got %v", arp.SenderIP)
	}
	if arp.TargetIP != netip.MustParseAddr("192.168.1.2") {
		t.Errorf("Expected target 192.168.1.2, got %v", arp.TargetIP)
	}
}

func TestDecodeARPUnsupportedFormat(t *testing.T) {
	data := make([]byte, 28)
	binary.BigEndian.PutUint16(data[0:2], 6) // IEEE 802 hardware type
	binary.BigEndian.PutUint16(data[2:4], 0x0800)
	data[4], data[5] = 6, 4

	_, _, err := decodeARP(data)
	if err != core.ErrUnsupportedProto {
		t.Errorf("Expected ErrUnsupportedProto, got %v", err)
	}
}

func TestHeaderChecksumRoundTrip(t *testing.T) {
	hdr := makeIPv4Header([4]byte{172, 16, 0, 10}, [4]byte{8, 8, 8, 8}, protocolICMPv4, 84)
	if got := headerChecksum(hdr); got != binary.BigEndian.Uint16(hdr[10:12]) {
		t.Errorf("Checksum not stable: computed 0x%04x, stored 0x%04x",
			got, binary.BigEndian.Uint16(hdr[10:12]))
	}
}
