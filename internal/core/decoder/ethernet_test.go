package decoder

import (
	"testing"

	"github.com/packetscope/packetscope/internal/core"
)

func TestDecodeEthernetBasic(t *testing.T) {
	data := []byte{
		0x00, 0x11, 0x22, 0x33, 0x44, 0x55, // Dst MAC
		0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, // Src MAC
		0x08, 0x00, // EtherType: IPv4
		0x45, 0x00, // Payload (start of IP header)
	}

	eth, payload, warns, err := decodeEthernet(data)
	if err != nil {
		t.Fatalf("decodeEthernet failed: %v", err)
	}
	if len(warns) != 0 {
		t.Errorf("Expected no warnings, got %v", warns)
	}

	expectedDstMAC := [6]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	if eth.DstMAC != expectedDstMAC {
		t.Errorf("Expected DstMAC %v, got %v", expectedDstMAC, eth.DstMAC)
	}
	expectedSrcMAC := [6]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	if eth.SrcMAC != expectedSrcMAC {
		t.Errorf("Expected SrcMAC %v, got %v", expectedSrcMAC, eth.SrcMAC)
	}
	if eth.EtherType != 0x0800 {
		t.Errorf("Expected EtherType 0x0800, got 0x%04x", eth.EtherType)
	}
	if len(payload) != 2 {
		t.Errorf("Expected payload length 2, got %d", len(payload))
	}
}

func TestDecodeEthernetWithVLAN(t *testing.T) {
	data := []byte{
		0x00, 0x11, 0x22, 0x33, 0x44, 0x55,
		0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF,
		0x81, 0x00, // EtherType: VLAN (0x8100)
		0x00, 0x0A, // VLAN TCI: VLAN ID 10
		0x08, 0x00, // Inner EtherType: IPv4
		0x45, 0x00,
	}

	eth, payload, _, err := decodeEthernet(data)
	if err != nil {
		t.Fatalf("decodeEthernet failed: %v", err)
	}

	if eth.EtherType != 0x0800 {
		t.Errorf("Expected inner EtherType 0x0800, got 0x%04x", eth.EtherType)
	}
	if len(eth.VLANs) != 1 || eth.VLANs[0] != 10 {
		t.Errorf("Expected VLANs [10], got %v", eth.VLANs)
	}
	if len(payload) != 2 {
		t.Errorf("Expected payload length 2, got %d", len(payload))
	}
}

func TestDecodeEthernetWithQinQ(t *testing.T) {
	data := []byte{
		0x00, 0x11, 0x22, 0x33, 0x44, 0x55,
		0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF,
		0x88, 0xA8, // EtherType: QinQ (0x88A8)
		0x00, 0x14, // Outer VLAN: ID 20
		0x81, 0x00, // EtherType: VLAN (0x8100)
		0x00, 0x0A, // Inner VLAN: ID 10
		0x08, 0x00, // Inner EtherType: IPv4
		0x45, 0x00,
	}

	eth, _, _, err := decodeEthernet(data)
	if err != nil {
		t.Fatalf("decodeEthernet failed: %v", err)
	}

	if eth.EtherType != 0x0800 {
		t.Errorf("Expected inner EtherType 0x0800, got 0x%04x", eth.EtherType)
	}
	if len(eth.VLANs) != 2 || eth.VLANs[0] != 20 || eth.VLANs[1] != 10 {
		t.Errorf("Expected VLANs [20 10], got %v", eth.VLANs)
	}
}

func TestDecodeEthernetTruncatedVLANDegrades(t *testing.T) {
	// VLAN tpid present but the tag itself is cut off: the 14-byte floor
	// was read, so this must degrade, not fail.
	data := []byte{
		0x00, 0x11, 0x22, 0x33, 0x44, 0x55,
		0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF,
		0x81, 0x00,
		0x00, // half a TCI
	}

	eth, payload, warns, err := decodeEthernet(data)
	if err != nil {
		t.Fatalf("Expected degraded decode, got error: %v", err)
	}
	if len(warns) != 1 || warns[0] != "vlan tag truncated" {
		t.Errorf("Expected [vlan tag truncated], got %v", warns)
	}
	if eth.EtherType != etherTypeVLAN {
		t.Errorf("Expected EtherType to stay 0x8100, got 0x%04x", eth.EtherType)
	}
	if payload != nil {
		t.Errorf("Expected nil payload, got %v", payload)
	}
}

func TestDecodeEthernetTooShort(t *testing.T) {
	for _, n := range []int{0, 1, 6, 13} {
		_, _, _, err := decodeEthernet(make([]byte, n))
		if err != core.ErrTruncatedEthernet {
			t.Errorf("len=%d: expected ErrTruncatedEthernet, got %v", n, err)
		}
	}
}

func BenchmarkDecodeEthernet(b *testing.B) {
	data := []byte{
		0x00, 0x11, 0x22, 0x33, 0x44, 0x55,
		0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF,
		0x08, 0x00,
		0x45, 0x00,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _, err := decodeEthernet(data)
		if err != nil {
			b.Fatal(err)
		}
	}
}
