// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"
	"net/netip"

	"github.com/packetscope/packetscope/internal/core"
)

const (
	ipv4HeaderMinLen = 20
	ipv6HeaderLen    = 40
)

// decodeIPv4 decodes an IPv4 header. The error return means the header
// could not be read at all (declared or minimum length exceeds the buffer);
// recoverable oddities come back as warnings instead.
func decodeIPv4(data []byte) (core.IPv4Header, []byte, []string, error) {
	if len(data) < ipv4HeaderMinLen {
		return core.IPv4Header{}, nil, nil, core.ErrPacketTooShort
	}

	// IHL is the lower 4 bits of the first byte, in 32-bit words.
	ihl := data[0] & 0x0F
	headerLen := int(ihl) * 4
	if headerLen < ipv4HeaderMinLen || len(data) < headerLen {
		return core.IPv4Header{}, nil, nil, core.ErrPacketTooShort
	}

	ip := core.IPv4Header{
		TotalLen:  binary.BigEndian.Uint16(data[2:4]),
		TTL:       data[8],
		Protocol:  data[9],
		HeaderLen: headerLen,
	}

	addr, ok := netip.AddrFromSlice(data[12:16])
	if !ok {
		return ip, nil, nil, core.ErrPacketTooShort
	}
	ip.SrcIP = addr
	addr, ok = netip.AddrFromSlice(data[16:20])
	if !ok {
		return ip, nil, nil, core.ErrPacketTooShort
	}
	ip.DstIP = addr

	ip.ChecksumOK = binary.BigEndian.Uint16(data[10:12]) == headerChecksum(data[:headerLen])

	var warns []string

	// Bound the packet by the declared total length. Captured bytes beyond
	// it are Ethernet padding; fewer captured bytes than declared means the
	// capture was cut short.
	total := int(ip.TotalLen)
	switch {
	case total < headerLen:
		warns = append(warns, "ipv4 total length smaller than header")
		total = headerLen
	case total > len(data):
		warns = append(warns, "ipv4 total length exceeds captured bytes")
		total = len(data)
	}

	return ip, data[headerLen:total], warns, nil
}

// decodeIPv6 decodes the fixed IPv6 header. Extension headers are not
// walked; the next-header value is reported as-is and an unhandled
// extension falls through to the Unknown transport tag.
func decodeIPv6(data []byte) (core.IPv6Header, []byte, error) {
	if len(data) < ipv6HeaderLen {
		return core.IPv6Header{}, nil, core.ErrPacketTooShort
	}

	ip := core.IPv6Header{
		PayloadLen: binary.BigEndian.Uint16(data[4:6]),
		NextHeader: data[6],
		HopLimit:   data[7],
	}

	addr, ok := netip.AddrFromSlice(data[8:24])
	if !ok {
		return ip, nil, core.ErrPacketTooShort
	}
	ip.SrcIP = addr
	addr, ok = netip.AddrFromSlice(data[24:40])
	if !ok {
		return ip, nil, core.ErrPacketTooShort
	}
	ip.DstIP = addr

	// Bound by the declared payload length to drop Ethernet padding.
	payload := data[ipv6HeaderLen:]
	if int(ip.PayloadLen) < len(payload) {
		payload = payload[:ip.PayloadLen]
	}
	return ip, payload, nil
}

// headerChecksum computes the RFC 1071 ones-complement checksum over an
// IPv4 header, treating the checksum field itself as zero.
func headerChecksum(hdr []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(hdr); i += 2 {
		if i == 10 {
			continue // the checksum field itself
		}
		sum += uint32(binary.BigEndian.Uint16(hdr[i : i+2]))
	}
	if len(hdr)%2 == 1 {
		sum += uint32(hdr[len(hdr)-1]) << 8
	}
	for sum > 0xFFFF {
		sum = (sum >> 16) + (sum & 0xFFFF)
	}
	return ^uint16(sum)
}
