// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"

	"github.com/packetscope/packetscope/internal/core"
)

const (
	// Ethernet constants
	ethernetHeaderLen = 14
	vlanHeaderLen     = 4

	// EtherType values
	etherTypeIPv4 = 0x0800
	etherTypeARP  = 0x0806
	etherTypeIPv6 = 0x86DD
	etherTypeVLAN = 0x8100
	etherTypeQinQ = 0x88A8
)

// decodeEthernet decodes the Ethernet frame header, including VLAN tags.
// Returns the header, the remaining payload, and any non-fatal warnings.
// The only error is core.ErrTruncatedEthernet for frames below 14 bytes,
// the one fatal condition in the whole decode chain.
func decodeEthernet(data []byte) (core.EthernetHeader, []byte, []string, error) {
	if len(data) < ethernetHeaderLen {
		return core.EthernetHeader{}, nil, nil, core.ErrTruncatedEthernet
	}

	eth := core.EthernetHeader{}

	// Destination MAC (6 bytes), then source MAC (6 bytes)
	copy(eth.DstMAC[:], data[0:6])
	copy(eth.SrcMAC[:], data[6:12])

	etherType := binary.BigEndian.Uint16(data[12:14])
	offset := ethernetHeaderLen

	// VLAN tags can be nested (QinQ). A tag chain cut off by the capture
	// is not fatal: the 14-byte minimum was read, so degrade instead.
	var vlans []uint16
	for etherType == etherTypeVLAN || etherType == etherTypeQinQ {
		if len(data) < offset+vlanHeaderLen {
			eth.EtherType = etherType
			eth.VLANs = vlans
			return eth, nil, []string{"vlan tag truncated"}, nil
		}

		// VLAN header: 2 bytes TCI + 2 bytes inner EtherType
		tci := binary.BigEndian.Uint16(data[offset : offset+2])
		vlans = append(vlans, tci&0x0FFF)

		etherType = binary.BigEndian.Uint16(data[offset+2 : offset+4])
		offset += vlanHeaderLen
	}

	eth.EtherType = etherType
	eth.VLANs = vlans
	return eth, data[offset:], nil, nil
}
