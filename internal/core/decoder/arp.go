// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"
	"net/netip"

	"github.com/packetscope/packetscope/internal/core"
)

const (
	arpBodyLen = 28 // Ethernet/IPv4 ARP: fixed 8-byte prefix + 2×(6+4) addresses

	arpHTypeEthernet = 1
)

// decodeARP decodes an Ethernet/IPv4 ARP body. Other hardware/protocol
// address combinations return core.ErrUnsupportedProto so the caller can
// degrade the network layer.
func decodeARP(data []byte) (core.ARPHeader, []byte, error) {
	if len(data) < arpBodyLen {
		return core.ARPHeader{}, nil, core.ErrPacketTooShort
	}

	htype := binary.BigEndian.Uint16(data[0:2])
	ptype := binary.BigEndian.Uint16(data[2:4])
	hlen, plen := data[4], data[5]
	if htype != arpHTypeEthernet || ptype != etherTypeIPv4 || hlen != 6 || plen != 4 {
		return core.ARPHeader{}, nil, core.ErrUnsupportedProto
	}

	arp := core.ARPHeader{
		Op: binary.BigEndian.Uint16(data[6:8]),
	}
	copy(arp.SenderMAC[:], data[8:14])
	addr, ok := netip.AddrFromSlice(data[14:18])
	if !ok {
		return arp, nil, core.ErrPacketTooShort
	}
	arp.SenderIP = addr
	copy(arp.TargetMAC[:], data[18:24])
	addr, ok = netip.AddrFromSlice(data[24:28])
	if !ok {
		return arp, nil, core.ErrPacketTooShort
	}
	arp.TargetIP = addr

	return arp, data[arpBodyLen:], nil
}
