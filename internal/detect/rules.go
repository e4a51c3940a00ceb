package detect

import (
	"fmt"
	"sort"

	"github.com/packetscope/packetscope/internal/core"
	"github.com/packetscope/packetscope/internal/stats"
)

// Ports that see routine scanning and brute-force activity.
var suspiciousPorts = map[uint16]string{
	23:   "Telnet",
	135:  "Windows RPC",
	139:  "NetBIOS",
	445:  "SMB",
	1433: "SQL Server",
	3389: "RDP",
}

// detectTopTalker flags a single source address responsible for more than
// the configured fraction of all traffic.
func detectTopTalker(records []core.PacketRecord, s *stats.Statistics, cfg Config) []Issue {
	counts := make(map[string][]int)
	for _, rec := range records {
		if src, ok := rec.SrcIP(); ok {
			counts[src.String()] = append(counts[src.String()], rec.Index)
		}
	}

	sources := make([]string, 0, len(counts))
	for src := range counts {
		sources = append(sources, src)
	}
	sort.Strings(sources)

	limit := cfg.threshold(RuleTopTalker)
	var issues []Issue
	for _, src := range sources {
		refs := counts[src]
		share := float64(len(refs)) / float64(len(records))
		if share > limit {
			issues = append(issues, Issue{
				Rule:     RuleTopTalker,
				Severity: SeverityWarning,
				Category: CategorySecurity,
				Description: fmt.Sprintf("source %s accounts for %.1f%% of all traffic (%d of %d packets)",
					src, share*100, len(refs), len(records)),
				RecordRefs: refs,
			})
		}
	}
	return issues
}

// detectICMPFlood flags ICMP traffic above the configured packet rate.
func detectICMPFlood(records []core.PacketRecord, s *stats.Statistics, cfg Config) []Issue {
	var refs []int
	for _, rec := range records {
		kind := rec.Transport.Kind
		if kind == core.LayerICMPv4 || kind == core.LayerICMPv6 {
			refs = append(refs, rec.Index)
		}
	}
	if len(refs) == 0 || s.Duration <= 0 {
		return nil
	}

	rate := float64(len(refs)) / s.Duration.Seconds()
	if rate <= cfg.threshold(RuleICMPFlood) {
		return nil
	}
	return []Issue{{
		Rule:     RuleICMPFlood,
		Severity: SeverityWarning,
		Category: CategoryPerformance,
		Description: fmt.Sprintf("ICMP flood: %d ICMP packets at %.1f packets/second",
			len(refs), rate),
		RecordRefs: refs,
	}}
}

// detectTCPFlags flags records whose flag combination is never produced by a
// conforming stack: null scans, SYN+FIN, and FIN without ACK.
func detectTCPFlags(records []core.PacketRecord, s *stats.Statistics, cfg Config) []Issue {
	combos := []struct {
		label string
		bad   func(flags uint8) bool
	}{
		{"null flags", func(f uint8) bool { return f == 0 }},
		{"SYN+FIN set together", func(f uint8) bool {
			return f&core.TCPFlagSYN != 0 && f&core.TCPFlagFIN != 0
		}},
		{"FIN without ACK", func(f uint8) bool {
			return f&core.TCPFlagFIN != 0 && f&core.TCPFlagACK == 0 && f&core.TCPFlagSYN == 0
		}},
	}

	var issues []Issue
	for _, combo := range combos {
		var refs []int
		for _, rec := range records {
			if rec.Transport.Kind == core.LayerTCP && combo.bad(rec.Transport.TCP.Flags) {
				refs = append(refs, rec.Index)
			}
		}
		if len(refs) > 0 {
			issues = append(issues, Issue{
				Rule:        RuleTCPFlags,
				Severity:    SeverityWarning,
				Category:    CategoryMalformed,
				Description: fmt.Sprintf("%d TCP packets with invalid flags (%s)", len(refs), combo.label),
				RecordRefs:  refs,
			})
		}
	}
	return issues
}

// detectTCPRetransmit flags conversations carrying unusually many TCP
// packets, a pattern that often means retransmissions from congestion or
// packet loss.
func detectTCPRetransmit(records []core.PacketRecord, s *stats.Statistics, cfg Config) []Issue {
	convs := make(map[string][]int)
	for _, rec := range records {
		if rec.Transport.Kind != core.LayerTCP {
			continue
		}
		if conv, ok := rec.Conversation(); ok {
			convs[conv] = append(convs[conv], rec.Index)
		}
	}

	keys := make([]string, 0, len(convs))
	for conv := range convs {
		keys = append(keys, conv)
	}
	sort.Strings(keys)

	limit := int(cfg.threshold(RuleTCPRetransmit))
	var issues []Issue
	for _, conv := range keys {
		refs := convs[conv]
		if len(refs) <= limit {
			continue
		}
		issues = append(issues, Issue{
			Rule:     RuleTCPRetransmit,
			Severity: SeverityWarning,
			Category: CategoryPerformance,
			Description: fmt.Sprintf("possible retransmissions: %d TCP packets in conversation %s",
				len(refs), conv),
			RecordRefs: refs,
		})
	}
	return issues
}

// detectSuspiciousPorts flags traffic touching ports commonly probed by
// attackers, one issue per port in ascending port order. A record between
// two suspicious ports counts under both.
func detectSuspiciousPorts(records []core.PacketRecord, s *stats.Statistics, cfg Config) []Issue {
	refs := make(map[uint16][]int)
	for _, rec := range records {
		sp, okSrc := rec.SrcPort()
		dp, okDst := rec.DstPort()
		if okSrc && suspiciousPorts[sp] != "" {
			refs[sp] = append(refs[sp], rec.Index)
		}
		if okDst && dp != sp && suspiciousPorts[dp] != "" {
			refs[dp] = append(refs[dp], rec.Index)
		}
	}

	ports := make([]int, 0, len(refs))
	for p := range refs {
		ports = append(ports, int(p))
	}
	sort.Ints(ports)

	var issues []Issue
	for _, p := range ports {
		port := uint16(p)
		issues = append(issues, Issue{
			Rule:     RuleSuspiciousPort,
			Severity: SeverityWarning,
			Category: CategorySecurity,
			Description: fmt.Sprintf("%d packets on port %d (%s)",
				len(refs[port]), port, suspiciousPorts[port]),
			RecordRefs: refs[port],
		})
	}
	return issues
}

// detectBroadcastStorm flags batches where broadcast frames exceed the
// configured fraction of the total.
func detectBroadcastStorm(records []core.PacketRecord, s *stats.Statistics, cfg Config) []Issue {
	var refs []int
	for _, rec := range records {
		if rec.Ethernet.IsBroadcast() {
			refs = append(refs, rec.Index)
		}
	}

	share := float64(len(refs)) / float64(len(records))
	if share <= cfg.threshold(RuleBroadcastStorm) {
		return nil
	}
	return []Issue{{
		Rule:     RuleBroadcastStorm,
		Severity: SeverityCritical,
		Category: CategoryPerformance,
		Description: fmt.Sprintf("broadcast storm: %d broadcast frames (%.1f%% of total)",
			len(refs), share*100),
		RecordRefs: refs,
	}}
}

// detectHighRate flags an overall packet rate above the configured
// packets/second threshold.
func detectHighRate(records []core.PacketRecord, s *stats.Statistics, cfg Config) []Issue {
	rate := s.PacketRate()
	if rate <= cfg.threshold(RuleHighRate) {
		return nil
	}
	return []Issue{{
		Rule:     RuleHighRate,
		Severity: SeverityInfo,
		Category: CategoryPerformance,
		Description: fmt.Sprintf("high traffic rate: %.1f packets/second over %s",
			rate, s.Duration),
	}}
}

// detectTinyTCP flags TCP frames shorter than the configured minimum.
// Keep-alives land here too, so the severity stays informational.
func detectTinyTCP(records []core.PacketRecord, s *stats.Statistics, cfg Config) []Issue {
	minLen := int(cfg.threshold(RuleTinyTCP))
	var refs []int
	for _, rec := range records {
		if rec.Transport.Kind == core.LayerTCP && rec.Length < minLen {
			refs = append(refs, rec.Index)
		}
	}
	if len(refs) == 0 {
		return nil
	}
	return []Issue{{
		Rule:     RuleTinyTCP,
		Severity: SeverityInfo,
		Category: CategoryMalformed,
		Description: fmt.Sprintf("%d TCP packets below %d bytes",
			len(refs), minLen),
		RecordRefs: refs,
	}}
}

// detectDecodeWarnings flags batches where too many records parsed with
// warnings, usually a sign of capture truncation or corrupted traffic.
func detectDecodeWarnings(records []core.PacketRecord, s *stats.Statistics, cfg Config) []Issue {
	var refs []int
	for _, rec := range records {
		if len(rec.Warnings) > 0 {
			refs = append(refs, rec.Index)
		}
	}
	if float64(len(refs)) <= cfg.threshold(RuleDecodeWarnings) {
		return nil
	}
	return []Issue{{
		Rule:     RuleDecodeWarnings,
		Severity: SeverityWarning,
		Category: CategoryMalformed,
		Description: fmt.Sprintf("%d of %d records parsed with decode warnings",
			len(refs), len(records)),
		RecordRefs: refs,
	}}
}
