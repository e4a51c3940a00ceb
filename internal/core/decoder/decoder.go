// Package decoder implements L2-L4 protocol stack decoding.
package decoder

import (
	"github.com/packetscope/packetscope/internal/core"
)

// Config controls decode policy.
type Config struct {
	// StrictChecksums downgrades an IPv4 header with a bad checksum to
	// LayerUnknown instead of keeping the decoded header alongside a
	// warning. Default is the best-effort (warn) policy.
	StrictChecksums bool
}

// Decoder turns raw frames into layered packet records. Parse is a pure
// function of the frame bytes; identical input always yields an identical
// record.
type Decoder struct {
	cfg Config
}

// New returns a Decoder with the given policy.
func New(cfg Config) *Decoder {
	return &Decoder{cfg: cfg}
}

// Parse decodes one frame into a PacketRecord. The only fatal failure is a
// frame too short to carry an Ethernet header; every deeper shortfall
// degrades the affected layer to Unknown/Absent and records a warning.
func (d *Decoder) Parse(frame core.Frame) (core.PacketRecord, error) {
	data := frame.Data
	if frame.Length >= 0 && frame.Length < len(data) {
		data = data[:frame.Length]
	}

	eth, rest, warns, err := decodeEthernet(data)
	if err != nil {
		return core.PacketRecord{}, err
	}

	rec := core.PacketRecord{
		Timestamp: frame.Timestamp,
		Length:    len(data),
		Ethernet:  eth,
		Warnings:  warns,
		Payload:   rest,
	}
	d.decodeNetwork(&rec, rest)
	return rec, nil
}

// decodeNetwork dispatches on the ethertype and fills the network layer,
// continuing into the transport layer for IP packets.
func (d *Decoder) decodeNetwork(rec *core.PacketRecord, data []byte) {
	switch rec.Ethernet.EtherType {
	case etherTypeIPv4:
		hdr, rest, warns, err := decodeIPv4(data)
		if err != nil {
			d.downgradeNetwork(rec, "ipv4 header truncated")
			return
		}
		rec.Warnings = append(rec.Warnings, warns...)
		if !hdr.ChecksumOK {
			if d.cfg.StrictChecksums {
				d.downgradeNetwork(rec, "ipv4 header checksum mismatch")
				return
			}
			rec.Warnings = append(rec.Warnings, "ipv4 header checksum mismatch")
		}
		rec.Network = core.NetworkLayer{Kind: core.LayerIPv4, IPv4: &hdr}
		rec.Payload = rest
		d.decodeTransport(rec, rest, hdr.Protocol)

	case etherTypeIPv6:
		hdr, rest, err := decodeIPv6(data)
		if err != nil {
			d.downgradeNetwork(rec, "ipv6 header truncated")
			return
		}
		rec.Network = core.NetworkLayer{Kind: core.LayerIPv6, IPv6: &hdr}
		rec.Payload = rest
		d.decodeTransport(rec, rest, hdr.NextHeader)

	case etherTypeARP:
		hdr, rest, err := decodeARP(data)
		if err == core.ErrUnsupportedProto {
			d.downgradeNetwork(rec, "unsupported arp address format")
			return
		}
		if err != nil {
			d.downgradeNetwork(rec, "arp body truncated")
			return
		}
		rec.Network = core.NetworkLayer{Kind: core.LayerARP, ARP: &hdr}
		rec.Payload = rest

	default:
		// Non-IP, non-ARP ethertype (LLDP, MPLS, ...) is a valid value,
		// not a decode issue.
		rec.Network = core.NetworkLayer{
			Kind:         core.LayerUnknown,
			RawEtherType: rec.Ethernet.EtherType,
		}
	}
}

// downgradeNetwork marks the network layer Unknown and records why.
func (d *Decoder) downgradeNetwork(rec *core.PacketRecord, warning string) {
	rec.Network = core.NetworkLayer{
		Kind:         core.LayerUnknown,
		RawEtherType: rec.Ethernet.EtherType,
	}
	rec.Warnings = append(rec.Warnings, warning)
}

// decodeTransport dispatches on the network layer's declared protocol id.
// A missing or partial transport header degrades to Absent plus a warning;
// an unrecognized protocol id is tagged Unknown without a warning.
func (d *Decoder) decodeTransport(rec *core.PacketRecord, data []byte, protocol uint8) {
	switch protocol {
	case protocolTCP:
		hdr, rest, warns, err := decodeTCP(data)
		if err != nil {
			rec.Transport = core.TransportLayer{Kind: core.LayerAbsent}
			rec.Warnings = append(rec.Warnings, "tcp header truncated")
			return
		}
		rec.Warnings = append(rec.Warnings, warns...)
		rec.Transport = core.TransportLayer{Kind: core.LayerTCP, TCP: &hdr}
		rec.Payload = rest

	case protocolUDP:
		hdr, rest, err := decodeUDP(data)
		if err != nil {
			rec.Transport = core.TransportLayer{Kind: core.LayerAbsent}
			rec.Warnings = append(rec.Warnings, "udp header truncated")
			return
		}
		rec.Transport = core.TransportLayer{Kind: core.LayerUDP, UDP: &hdr}
		rec.Payload = rest

	case protocolICMPv4, protocolICMPv6:
		hdr, rest, err := decodeICMP(data)
		if err != nil {
			rec.Transport = core.TransportLayer{Kind: core.LayerAbsent}
			rec.Warnings = append(rec.Warnings, "icmp header truncated")
			return
		}
		kind := core.LayerICMPv4
		if protocol == protocolICMPv6 {
			kind = core.LayerICMPv6
		}
		rec.Transport = core.TransportLayer{Kind: kind, ICMP: &hdr}
		rec.Payload = rest

	default:
		// SCTP, GRE, OSPF, ...: report what was learned at L3.
		rec.Transport = core.TransportLayer{Kind: core.LayerUnknown}
	}
}
