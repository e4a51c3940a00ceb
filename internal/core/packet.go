// Package core defines the data model shared by the decoder and the
// analysis engines, with zero external dependencies.
package core

import (
	"fmt"
	"net"
	"net/netip"
	"time"
)

// Frame is one captured unit of raw bytes plus its capture timestamp,
// prior to any decoding. Immutable once produced by a frame source.
type Frame struct {
	Data      []byte    // Raw frame bytes
	Timestamp time.Time // Capture timestamp
	Length    int       // Captured length; decoding never reads past it
}

// NewFrame wraps raw bytes and a capture timestamp into a Frame.
func NewFrame(data []byte, ts time.Time) Frame {
	return Frame{Data: data, Timestamp: ts, Length: len(data)}
}

// LayerKind tags the variant held by a NetworkLayer or TransportLayer.
type LayerKind uint8

const (
	LayerAbsent LayerKind = iota
	LayerIPv4
	LayerIPv6
	LayerARP
	LayerTCP
	LayerUDP
	LayerICMPv4
	LayerICMPv6
	LayerUnknown
)

// String returns the protocol tag used by filtering and statistics.
func (k LayerKind) String() string {
	switch k {
	case LayerIPv4:
		return "IPv4"
	case LayerIPv6:
		return "IPv6"
	case LayerARP:
		return "ARP"
	case LayerTCP:
		return "TCP"
	case LayerUDP:
		return "UDP"
	case LayerICMPv4:
		return "ICMP"
	case LayerICMPv6:
		return "ICMPv6"
	case LayerUnknown:
		return "Unknown"
	default:
		return "None"
	}
}

// EthernetHeader represents the L2 Ethernet frame header.
type EthernetHeader struct {
	DstMAC    [6]byte  `json:"dst_mac"`
	SrcMAC    [6]byte  `json:"src_mac"`
	EtherType uint16   `json:"ethertype"` // 0x0800=IPv4, 0x0806=ARP, 0x86DD=IPv6
	VLANs     []uint16 `json:"vlans,omitempty"`
}

// SrcString returns the source MAC in colon-hex notation.
func (h EthernetHeader) SrcString() string {
	return net.HardwareAddr(h.SrcMAC[:]).String()
}

// DstString returns the destination MAC in colon-hex notation.
func (h EthernetHeader) DstString() string {
	return net.HardwareAddr(h.DstMAC[:]).String()
}

// IsBroadcast reports whether the destination MAC is the broadcast address.
func (h EthernetHeader) IsBroadcast() bool {
	return h.DstMAC == [6]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
}

// IPv4Header represents a decoded IPv4 header.
type IPv4Header struct {
	SrcIP      netip.Addr `json:"src_ip"`
	DstIP      netip.Addr `json:"dst_ip"`
	TTL        uint8      `json:"ttl"`
	Protocol   uint8      `json:"protocol"` // TCP=6, UDP=17, ICMP=1
	TotalLen   uint16     `json:"total_len"`
	HeaderLen  int        `json:"header_len"`
	ChecksumOK bool       `json:"checksum_ok"`
}

// IPv6Header represents a decoded IPv6 fixed header.
type IPv6Header struct {
	SrcIP      netip.Addr `json:"src_ip"`
	DstIP      netip.Addr `json:"dst_ip"`
	HopLimit   uint8      `json:"hop_limit"`
	NextHeader uint8      `json:"next_header"`
	PayloadLen uint16     `json:"payload_len"`
}

// ARPHeader represents a decoded Ethernet/IPv4 ARP body.
type ARPHeader struct {
	Op        uint16     `json:"op"` // 1=request, 2=reply
	SenderMAC [6]byte    `json:"sender_mac"`
	SenderIP  netip.Addr `json:"sender_ip"`
	TargetMAC [6]byte    `json:"target_mac"`
	TargetIP  netip.Addr `json:"target_ip"`
}

// NetworkLayer is the tagged L3 variant of a PacketRecord. Exactly one of
// the pointer fields is set when Kind names its protocol; all are nil for
// LayerUnknown and LayerAbsent.
type NetworkLayer struct {
	Kind         LayerKind   `json:"kind"`
	IPv4         *IPv4Header `json:"ipv4,omitempty"`
	IPv6         *IPv6Header `json:"ipv6,omitempty"`
	ARP          *ARPHeader  `json:"arp,omitempty"`
	RawEtherType uint16      `json:"raw_ethertype,omitempty"` // set for LayerUnknown
}

// TCP flag bits (low six bits of byte 13 of the TCP header).
const (
	TCPFlagFIN = 0x01
	TCPFlagSYN = 0x02
	TCPFlagRST = 0x04
	TCPFlagPSH = 0x08
	TCPFlagACK = 0x10
	TCPFlagURG = 0x20
)

// TCPHeader represents a decoded TCP header.
type TCPHeader struct {
	SrcPort   uint16 `json:"src_port"`
	DstPort   uint16 `json:"dst_port"`
	Seq       uint32 `json:"seq"`
	Ack       uint32 `json:"ack"`
	Flags     uint8  `json:"flags"`
	Window    uint16 `json:"window"`
	HeaderLen int    `json:"header_len"`
}

// FlagNames expands the flag bits into their conventional names, in
// FIN..URG bit order.
func (h TCPHeader) FlagNames() []string {
	names := []struct {
		bit  uint8
		name string
	}{
		{TCPFlagFIN, "FIN"},
		{TCPFlagSYN, "SYN"},
		{TCPFlagRST, "RST"},
		{TCPFlagPSH, "PSH"},
		{TCPFlagACK, "ACK"},
		{TCPFlagURG, "URG"},
	}
	var out []string
	for _, n := range names {
		if h.Flags&n.bit != 0 {
			out = append(out, n.name)
		}
	}
	return out
}

// UDPHeader represents a decoded UDP header.
type UDPHeader struct {
	SrcPort uint16 `json:"src_port"`
	DstPort uint16 `json:"dst_port"`
	Length  uint16 `json:"length"` // header + data, as declared on the wire
}

// ICMPHeader represents a decoded ICMP (v4 or v6) header.
type ICMPHeader struct {
	Type uint8 `json:"type"`
	Code uint8 `json:"code"`
}

// TransportLayer is the tagged L4 variant of a PacketRecord. LayerAbsent
// means the network layer carried no transport payload to decode.
type TransportLayer struct {
	Kind LayerKind   `json:"kind"`
	TCP  *TCPHeader  `json:"tcp,omitempty"`
	UDP  *UDPHeader  `json:"udp,omitempty"`
	ICMP *ICMPHeader `json:"icmp,omitempty"` // shared by LayerICMPv4 and LayerICMPv6
}

// PacketRecord is the immutable, layered result of decoding one Frame.
// A record always carries a valid Ethernet header; deeper layers degrade
// to LayerUnknown/LayerAbsent instead of failing the whole parse.
type PacketRecord struct {
	Index     int       `json:"index"` // capture sequence number, assigned by the pipeline
	Timestamp time.Time `json:"timestamp"`
	Length    int       `json:"length"` // captured frame length in bytes

	Ethernet  EthernetHeader `json:"ethernet"`
	Network   NetworkLayer   `json:"network"`
	Transport TransportLayer `json:"transport"`

	Payload  []byte   `json:"payload,omitempty"`  // bytes after the deepest decoded layer
	Warnings []string `json:"warnings,omitempty"` // ordered non-fatal decode issues
}

// Protocol returns the record's protocol tag: the transport variant name,
// falling back to the network variant when no transport layer is present.
func (r PacketRecord) Protocol() string {
	if r.Transport.Kind != LayerAbsent {
		return r.Transport.Kind.String()
	}
	if r.Network.Kind != LayerAbsent {
		return r.Network.Kind.String()
	}
	return LayerUnknown.String()
}

// SrcIP returns the network-layer source address, if one was decoded.
func (r PacketRecord) SrcIP() (netip.Addr, bool) {
	switch r.Network.Kind {
	case LayerIPv4:
		return r.Network.IPv4.SrcIP, true
	case LayerIPv6:
		return r.Network.IPv6.SrcIP, true
	case LayerARP:
		return r.Network.ARP.SenderIP, true
	}
	return netip.Addr{}, false
}

// DstIP returns the network-layer destination address, if one was decoded.
func (r PacketRecord) DstIP() (netip.Addr, bool) {
	switch r.Network.Kind {
	case LayerIPv4:
		return r.Network.IPv4.DstIP, true
	case LayerIPv6:
		return r.Network.IPv6.DstIP, true
	case LayerARP:
		return r.Network.ARP.TargetIP, true
	}
	return netip.Addr{}, false
}

// SrcPort returns the transport-layer source port, if one was decoded.
func (r PacketRecord) SrcPort() (uint16, bool) {
	switch r.Transport.Kind {
	case LayerTCP:
		return r.Transport.TCP.SrcPort, true
	case LayerUDP:
		return r.Transport.UDP.SrcPort, true
	}
	return 0, false
}

// DstPort returns the transport-layer destination port, if one was decoded.
func (r PacketRecord) DstPort() (uint16, bool) {
	switch r.Transport.Kind {
	case LayerTCP:
		return r.Transport.TCP.DstPort, true
	case LayerUDP:
		return r.Transport.UDP.DstPort, true
	}
	return 0, false
}

// Conversation returns the "src -> dst" endpoint pair for the record,
// including ports when the transport layer carries them. ok is false when
// no network addresses were decoded.
func (r PacketRecord) Conversation() (string, bool) {
	src, okSrc := r.SrcIP()
	dst, okDst := r.DstIP()
	if !okSrc || !okDst {
		return "", false
	}
	s, d := src.String(), dst.String()
	if p, ok := r.SrcPort(); ok {
		s = fmt.Sprintf("%s:%d", src, p)
	}
	if p, ok := r.DstPort(); ok {
		d = fmt.Sprintf("%s:%d", dst, p)
	}
	return s + " -> " + d, true
}

// Summary renders a one-line human-readable description of the record.
func (r PacketRecord) Summary() string {
	if conv, ok := r.Conversation(); ok {
		return fmt.Sprintf("%s %s (%d bytes)", r.Protocol(), conv, r.Length)
	}
	return fmt.Sprintf("%s %s -> %s (%d bytes)",
		r.Protocol(), r.Ethernet.SrcString(), r.Ethernet.DstString(), r.Length)
}
