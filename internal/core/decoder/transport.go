// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"

	"github.com/packetscope/packetscope/internal/core"
)

const (
	udpHeaderLen    = 8
	tcpHeaderMinLen = 20
	icmpHeaderLen   = 4 // type, code, checksum

	// IP protocol numbers
	protocolICMPv4 = 1
	protocolTCP    = 6
	protocolUDP    = 17
	protocolICMPv6 = 58
)

// decodeTCP decodes a TCP header. A buffer below the 20-byte minimum is an
// error; a data offset pointing past the buffer keeps the fixed header and
// reports the options as truncated.
func decodeTCP(data []byte) (core.TCPHeader, []byte, []string, error) {
	if len(data) < tcpHeaderMinLen {
		return core.TCPHeader{}, nil, nil, core.ErrPacketTooShort
	}

	tcp := core.TCPHeader{
		SrcPort: binary.BigEndian.Uint16(data[0:2]),
		DstPort: binary.BigEndian.Uint16(data[2:4]),
		Seq:     binary.BigEndian.Uint32(data[4:8]),
		Ack:     binary.BigEndian.Uint32(data[8:12]),
		// Byte 13: | reserved (2 bits) | flags (6 bits) |
		Flags:  data[13] & 0x3F,
		Window: binary.BigEndian.Uint16(data[14:16]),
	}

	// Data offset is the upper 4 bits of byte 12, in 32-bit words.
	headerLen := int(data[12]>>4) * 4
	tcp.HeaderLen = headerLen

	if headerLen < tcpHeaderMinLen {
		return tcp, nil, []string{"tcp data offset below minimum"}, nil
	}
	if headerLen > len(data) {
		return tcp, nil, []string{"tcp options truncated"}, nil
	}
	return tcp, data[headerLen:], nil, nil
}

// decodeUDP decodes a UDP header.
func decodeUDP(data []byte) (core.UDPHeader, []byte, error) {
	if len(data) < udpHeaderLen {
		return core.UDPHeader{}, nil, core.ErrPacketTooShort
	}

	udp := core.UDPHeader{
		SrcPort: binary.BigEndian.Uint16(data[0:2]),
		DstPort: binary.BigEndian.Uint16(data[2:4]),
		Length:  binary.BigEndian.Uint16(data[4:6]),
	}
	// Checksum (offset 6) is not needed for decoding.
	return udp, data[udpHeaderLen:], nil
}

// decodeICMP decodes the common ICMP header shared by v4 and v6.
func decodeICMP(data []byte) (core.ICMPHeader, []byte, error) {
	if len(data) < icmpHeaderLen {
		return core.ICMPHeader{}, nil, core.ErrPacketTooShort
	}
	icmp := core.ICMPHeader{
		Type: data[0],
		Code: data[1],
	}
	return icmp, data[icmpHeaderLen:], nil
}
