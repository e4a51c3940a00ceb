// Package filter implements criteria matching over decoded packet records.
package filter

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/packetscope/packetscope/internal/core"
)

// Criteria is one conjunction of match conditions. Zero-valued fields are
// wildcards; every populated field must match for the record to pass.
// A record whose relevant layer degraded to Unknown/Absent never matches a
// populated condition.
type Criteria struct {
	Protocol string       // protocol tag, case-insensitive ("TCP", "UDP", ...)
	SrcIP    netip.Prefix // single address = full-length prefix
	DstIP    netip.Prefix
	Port     uint16 // matches either source or destination port
	SrcPort  uint16
	DstPort  uint16
	MinSize  int // inclusive lower bound on captured frame length
	MaxSize  int // inclusive upper bound; 0 = unbounded

	// port2 holds a second either-side port produced by And; the record
	// must touch both ports.
	port2 uint16
	// none marks a merge of incompatible conditions. Such a criteria
	// matches no record.
	none bool
}

// And returns one criteria whose net effect equals applying c and then o.
// Conditions that cannot hold together yield a criteria matching nothing.
func (c Criteria) And(o Criteria) Criteria {
	out := c
	out.none = c.none || o.none

	switch {
	case o.Protocol == "":
	case out.Protocol == "":
		out.Protocol = o.Protocol
	case !strings.EqualFold(out.Protocol, o.Protocol):
		out.none = true
	}

	out.SrcIP = prefixAnd(out.SrcIP, o.SrcIP, &out.none)
	out.DstIP = prefixAnd(out.DstIP, o.DstIP, &out.none)

	addPort := func(p uint16) {
		switch {
		case p == 0 || p == out.Port || p == out.port2:
		case out.Port == 0:
			out.Port = p
		case out.port2 == 0:
			out.port2 = p
		default:
			out.none = true
		}
	}
	addPort(o.Port)
	addPort(o.port2)

	switch {
	case o.SrcPort == 0:
	case out.SrcPort == 0:
		out.SrcPort = o.SrcPort
	case out.SrcPort != o.SrcPort:
		out.none = true
	}
	switch {
	case o.DstPort == 0:
	case out.DstPort == 0:
		out.DstPort = o.DstPort
	case out.DstPort != o.DstPort:
		out.none = true
	}

	if o.MinSize > out.MinSize {
		out.MinSize = o.MinSize
	}
	if o.MaxSize != 0 && (out.MaxSize == 0 || o.MaxSize < out.MaxSize) {
		out.MaxSize = o.MaxSize
	}
	return out
}

// prefixAnd intersects two address conditions. Prefixes only overlap when
// one contains the other, so the intersection is the narrower prefix or
// nothing.
func prefixAnd(a, b netip.Prefix, none *bool) netip.Prefix {
	switch {
	case !b.IsValid():
		return a
	case !a.IsValid():
		return b
	}
	an, bn := unmapPrefix(a), unmapPrefix(b)
	switch {
	case an.Bits() <= bn.Bits() && an.Contains(bn.Addr()):
		return b
	case bn.Bits() < an.Bits() && bn.Contains(an.Addr()):
		return a
	default:
		*none = true
		return a
	}
}

// ParseIP parses an address or CIDR string into a prefix usable as a
// criteria field. A bare address becomes a full-length prefix.
func ParseIP(s string) (netip.Prefix, error) {
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("invalid CIDR %q: %w", s, err)
		}
		return p.Masked(), nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid IP %q: %w", s, err)
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// Protocol returns a protocol-only criteria.
func Protocol(name string) Criteria {
	return Criteria{Protocol: name}
}

// SrcIP returns a source-address criteria from an IP or CIDR string.
func SrcIP(s string) (Criteria, error) {
	p, err := ParseIP(s)
	if err != nil {
		return Criteria{}, err
	}
	return Criteria{SrcIP: p}, nil
}

// DstIP returns a destination-address criteria from an IP or CIDR string.
func DstIP(s string) (Criteria, error) {
	p, err := ParseIP(s)
	if err != nil {
		return Criteria{}, err
	}
	return Criteria{DstIP: p}, nil
}

// Port returns a criteria matching the port on either side.
func Port(port uint16) Criteria {
	return Criteria{Port: port}
}

// IsZero reports whether every field is a wildcard.
func (c Criteria) IsZero() bool {
	return c == Criteria{}
}

// Describe renders the populated conditions for display.
func (c Criteria) Describe() string {
	if c.none {
		return "none"
	}
	var parts []string
	if c.Protocol != "" {
		parts = append(parts, "protocol="+c.Protocol)
	}
	if c.SrcIP.IsValid() {
		parts = append(parts, "src="+c.SrcIP.String())
	}
	if c.DstIP.IsValid() {
		parts = append(parts, "dst="+c.DstIP.String())
	}
	if c.Port != 0 {
		parts = append(parts, fmt.Sprintf("port=%d", c.Port))
	}
	if c.port2 != 0 {
		parts = append(parts, fmt.Sprintf("port=%d", c.port2))
	}
	if c.SrcPort != 0 {
		parts = append(parts, fmt.Sprintf("sport=%d", c.SrcPort))
	}
	if c.DstPort != 0 {
		parts = append(parts, fmt.Sprintf("dport=%d", c.DstPort))
	}
	if c.MinSize != 0 {
		parts = append(parts, fmt.Sprintf("min=%d", c.MinSize))
	}
	if c.MaxSize != 0 {
		parts = append(parts, fmt.Sprintf("max=%d", c.MaxSize))
	}
	if len(parts) == 0 {
		return "any"
	}
	return strings.Join(parts, " ")
}

// Matches reports whether the record satisfies every populated condition.
func Matches(rec core.PacketRecord, c Criteria) bool {
	if c.none {
		return false
	}
	if c.Protocol != "" && !strings.EqualFold(rec.Protocol(), c.Protocol) {
		return false
	}
	if c.SrcIP.IsValid() {
		ip, ok := rec.SrcIP()
		if !ok || !containsAddr(c.SrcIP, ip) {
			return false
		}
	}
	if c.DstIP.IsValid() {
		ip, ok := rec.DstIP()
		if !ok || !containsAddr(c.DstIP, ip) {
			return false
		}
	}
	for _, want := range [2]uint16{c.Port, c.port2} {
		if want == 0 {
			continue
		}
		sp, okS := rec.SrcPort()
		dp, okD := rec.DstPort()
		if (!okS || sp != want) && (!okD || dp != want) {
			return false
		}
	}
	if c.SrcPort != 0 {
		p, ok := rec.SrcPort()
		if !ok || p != c.SrcPort {
			return false
		}
	}
	if c.DstPort != 0 {
		p, ok := rec.DstPort()
		if !ok || p != c.DstPort {
			return false
		}
	}
	if c.MinSize != 0 && rec.Length < c.MinSize {
		return false
	}
	if c.MaxSize != 0 && rec.Length > c.MaxSize {
		return false
	}
	return true
}

// containsAddr checks prefix containment across the v4/v6 split: a record
// may carry a 4-in-6 mapped address while the criteria names a plain v4
// prefix, or vice versa.
func containsAddr(p netip.Prefix, addr netip.Addr) bool {
	p = unmapPrefix(p)
	if p.Addr().Is4() && addr.Is4In6() {
		addr = addr.Unmap()
	}
	return p.Contains(addr)
}

// unmapPrefix rewrites a 4-in-6 mapped prefix as its plain v4 form.
func unmapPrefix(p netip.Prefix) netip.Prefix {
	if p.Addr().Is4In6() && p.Bits() >= 96 {
		return netip.PrefixFrom(p.Addr().Unmap(), p.Bits()-96)
	}
	return p
}

// Apply filters records against the criteria, preserving the original
// order and relative positions of the survivors.
func Apply(records []core.PacketRecord, c Criteria) []core.PacketRecord {
	out := make([]core.PacketRecord, 0, len(records))
	for _, rec := range records {
		if Matches(rec, c) {
			out = append(out, rec)
		}
	}
	return out
}
