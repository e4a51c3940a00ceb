package detect

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetscope/packetscope/internal/core"
)

func tcpRecord(index int, src, dst string, srcPort, dstPort uint16, flags uint8, length int, ts time.Time) core.PacketRecord {
	return core.PacketRecord{
		Index:     index,
		Timestamp: ts,
		Length:    length,
		Network: core.NetworkLayer{Kind: core.LayerIPv4, IPv4: &core.IPv4Header{
			SrcIP: netip.MustParseAddr(src),
			DstIP: netip.MustParseAddr(dst),
		}},
		Transport: core.TransportLayer{Kind: core.LayerTCP, TCP: &core.TCPHeader{
			SrcPort: srcPort,
			DstPort: dstPort,
			Flags:   flags,
		}},
	}
}

func icmpRecord(index int, src string, ts time.Time) core.PacketRecord {
	return core.PacketRecord{
		Index:     index,
		Timestamp: ts,
		Length:    98,
		Network: core.NetworkLayer{Kind: core.LayerIPv4, IPv4: &core.IPv4Header{
			SrcIP: netip.MustParseAddr(src),
			DstIP: netip.MustParseAddr("10.0.0.2"),
		}},
		Transport: core.TransportLayer{Kind: core.LayerICMPv4, ICMP: &core.ICMPHeader{Type: 8}},
	}
}

func benign(n int) []core.PacketRecord {
	base := time.Unix(1700000000, 0)
	records := make([]core.PacketRecord, 0, n)
	for i := 0; i < n; i++ {
		src := "192.168.1.10"
		if i%2 == 1 {
			src = "192.168.1.20"
		}
		records = append(records, tcpRecord(i, src, "93.184.216.34", 40000+uint16(i), 443,
			core.TCPFlagACK, 500, base.Add(time.Duration(i)*time.Second)))
	}
	return records
}

func TestDetectCleanTrafficRaisesNothing(t *testing.T) {
	issues := Detect(benign(10), nil, DefaultConfig())
	assert.Empty(t, issues)
}

func TestDetectTopTalker(t *testing.T) {
	base := time.Unix(1700000000, 0)
	var records []core.PacketRecord
	for i := 0; i < 8; i++ {
		records = append(records, tcpRecord(i, "10.0.0.99", "93.184.216.34", 40000+uint16(i), 443,
			core.TCPFlagACK, 500, base.Add(time.Duration(i)*time.Second)))
	}
	for i := 8; i < 10; i++ {
		records = append(records, tcpRecord(i, "10.0.0.1", "93.184.216.34", 40001, 443,
			core.TCPFlagACK, 500, base.Add(time.Duration(i)*time.Second)))
	}

	issues := Detect(records, nil, DefaultConfig())
	require.Len(t, issues, 1)
	assert.Equal(t, RuleTopTalker, issues[0].Rule)
	assert.Equal(t, CategorySecurity, issues[0].Category)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, issues[0].RecordRefs)
}

func TestDetectICMPFlood(t *testing.T) {
	base := time.Unix(1700000000, 0)
	var records []core.PacketRecord
	// 300 pings inside one second, well above the 100 pps default.
	for i := 0; i < 300; i++ {
		records = append(records, icmpRecord(i, "10.0.0.5", base.Add(time.Duration(i)*3*time.Millisecond)))
	}

	cfg := DefaultConfig()
	cfg.Categories = map[Category]bool{CategoryPerformance: true}
	issues := Detect(records, nil, cfg)

	var rules []string
	for _, is := range issues {
		rules = append(rules, is.Rule)
	}
	assert.Contains(t, rules, RuleICMPFlood)
}

func TestDetectInvalidTCPFlags(t *testing.T) {
	base := time.Unix(1700000000, 0)
	records := benign(6)
	records = append(records,
		tcpRecord(6, "10.0.0.3", "10.0.0.4", 1234, 80, 0, 60, base.Add(6*time.Second)),
		tcpRecord(7, "10.0.0.3", "10.0.0.4", 1234, 80,
			core.TCPFlagSYN|core.TCPFlagFIN, 60, base.Add(7*time.Second)),
	)

	issues := Detect(records, nil, DefaultConfig())

	byDesc := map[string][]int{}
	for _, is := range issues {
		if is.Rule == RuleTCPFlags {
			byDesc[is.Description] = is.RecordRefs
		}
	}
	require.Len(t, byDesc, 2)
	assert.Contains(t, byDesc, "1 TCP packets with invalid flags (null flags)")
	assert.Contains(t, byDesc, "1 TCP packets with invalid flags (SYN+FIN set together)")
}

func TestDetectSuspiciousPorts(t *testing.T) {
	base := time.Unix(1700000000, 0)
	records := benign(6)
	records = append(records,
		tcpRecord(6, "10.0.0.3", "10.0.0.4", 51000, 3389, core.TCPFlagSYN|core.TCPFlagACK, 60, base.Add(6*time.Second)),
		tcpRecord(7, "10.0.0.3", "10.0.0.4", 51001, 445, core.TCPFlagSYN|core.TCPFlagACK, 60, base.Add(7*time.Second)),
	)

	issues := Detect(records, nil, DefaultConfig())

	var sec []Issue
	for _, is := range issues {
		if is.Rule == RuleSuspiciousPort {
			sec = append(sec, is)
		}
	}
	require.Len(t, sec, 2)
	// Ascending port order regardless of capture order.
	assert.Contains(t, sec[0].Description, "port 445 (SMB)")
	assert.Contains(t, sec[1].Description, "port 3389 (RDP)")
	assert.Equal(t, []int{7}, sec[0].RecordRefs)
	assert.Equal(t, []int{6}, sec[1].RecordRefs)
}

func TestDetectTCPRetransmit(t *testing.T) {
	base := time.Unix(1700000000, 0)
	records := benign(4)
	// Six packets in one conversation, above the default limit of five.
	for i := 4; i < 10; i++ {
		records = append(records, tcpRecord(i, "10.0.0.7", "93.184.216.34", 50123, 443,
			core.TCPFlagACK, 500, base.Add(time.Duration(i)*time.Second)))
	}

	issues := Detect(records, nil, DefaultConfig())
	require.Len(t, issues, 1)
	assert.Equal(t, RuleTCPRetransmit, issues[0].Rule)
	assert.Equal(t, CategoryPerformance, issues[0].Category)
	assert.Contains(t, issues[0].Description, "6 TCP packets in conversation 10.0.0.7:50123 -> 93.184.216.34:443")
	assert.Equal(t, []int{4, 5, 6, 7, 8, 9}, issues[0].RecordRefs)
}

func TestDetectTCPRetransmitIgnoresSpreadTraffic(t *testing.T) {
	// benign uses a fresh source port per packet, so no conversation
	// accumulates enough packets to cross the limit.
	issues := Detect(benign(20), nil, DefaultConfig())
	assert.Empty(t, issues)
}

func TestDetectSuspiciousPortsCountsBothSides(t *testing.T) {
	base := time.Unix(1700000000, 0)
	records := benign(6)
	records = append(records,
		tcpRecord(6, "10.0.0.3", "10.0.0.4", 23, 445, core.TCPFlagSYN|core.TCPFlagACK, 60, base.Add(6*time.Second)),
	)

	issues := Detect(records, nil, DefaultConfig())

	var sec []Issue
	for _, is := range issues {
		if is.Rule == RuleSuspiciousPort {
			sec = append(sec, is)
		}
	}
	require.Len(t, sec, 2, "a record between two suspicious ports counts under both")
	assert.Contains(t, sec[0].Description, "port 23 (Telnet)")
	assert.Contains(t, sec[1].Description, "port 445 (SMB)")
	assert.Equal(t, []int{6}, sec[0].RecordRefs)
	assert.Equal(t, []int{6}, sec[1].RecordRefs)
}

func TestDetectBroadcastStorm(t *testing.T) {
	records := benign(10)
	for i := range records[:5] {
		records[i].Ethernet.DstMAC = [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	}

	issues := Detect(records, nil, DefaultConfig())
	require.Len(t, issues, 1)
	assert.Equal(t, RuleBroadcastStorm, issues[0].Rule)
	assert.Equal(t, SeverityCritical, issues[0].Severity)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, issues[0].RecordRefs)
}

func TestDetectThresholdOverride(t *testing.T) {
	records := benign(10) // steady 1 pps, below the stock 50 pps limit

	cfg := DefaultConfig()
	cfg.Thresholds[RuleHighRate] = 0.5
	issues := Detect(records, nil, cfg)

	require.Len(t, issues, 1)
	assert.Equal(t, RuleHighRate, issues[0].Rule)
}

func TestDetectDeterministic(t *testing.T) {
	base := time.Unix(1700000000, 0)
	records := benign(8)
	records = append(records,
		tcpRecord(8, "10.0.0.3", "10.0.0.4", 51000, 23, 0, 40, base.Add(8*time.Second)),
		icmpRecord(9, "10.0.0.5", base.Add(9*time.Second)),
	)

	first := Detect(records, nil, DefaultConfig())
	second := Detect(records, nil, DefaultConfig())
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}

func TestDetectCategoryDisableRemovesExactlyThoseIssues(t *testing.T) {
	base := time.Unix(1700000000, 0)
	records := benign(8)
	records = append(records,
		tcpRecord(8, "10.0.0.3", "10.0.0.4", 51000, 23, 0, 40, base.Add(8*time.Second)),
	)

	all := Detect(records, nil, DefaultConfig())

	cfg := DefaultConfig()
	cfg.Categories = map[Category]bool{
		CategorySecurity:    true,
		CategoryPerformance: true,
		CategoryMalformed:   false,
	}
	pruned := Detect(records, nil, cfg)

	var kept []Issue
	for _, is := range all {
		if is.Category != CategoryMalformed {
			kept = append(kept, is)
		}
	}
	assert.Equal(t, kept, pruned)
	assert.Less(t, len(pruned), len(all))
}

func TestDetectNeverMutatesInputs(t *testing.T) {
	records := benign(4)
	records = append(records, icmpRecord(4, "10.0.0.5", time.Unix(1700000000, 0)))
	before := make([]core.PacketRecord, len(records))
	copy(before, records)

	Detect(records, nil, DefaultConfig())
	assert.Equal(t, before, records)
}
