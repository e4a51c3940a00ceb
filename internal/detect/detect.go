// Package detect flags security, performance and malformed-traffic issues
// over a parsed record batch. Rules are independent pure predicates run in a
// fixed order; one rule firing never suppresses another.
package detect

import (
	"github.com/packetscope/packetscope/internal/core"
	"github.com/packetscope/packetscope/internal/stats"
)

// Severity grades how urgent an issue is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Category groups issues by the kind of problem they describe.
type Category string

const (
	CategorySecurity    Category = "security"
	CategoryPerformance Category = "performance"
	CategoryMalformed   Category = "malformed"
)

// Rule names, usable as threshold keys in Config.Thresholds.
const (
	RuleTopTalker      = "top-talker"
	RuleICMPFlood      = "icmp-flood"
	RuleTCPFlags       = "tcp-flags"
	RuleTCPRetransmit  = "tcp-retransmit"
	RuleSuspiciousPort = "suspicious-port"
	RuleBroadcastStorm = "broadcast-storm"
	RuleHighRate       = "high-rate"
	RuleTinyTCP        = "tiny-tcp"
	RuleDecodeWarnings = "decode-warnings"
)

// Issue is one detected anomaly. RecordRefs carries the capture indexes of
// the records that triggered the rule, in capture order.
type Issue struct {
	Rule        string   `json:"rule"`
	Severity    Severity `json:"severity"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
	RecordRefs  []int    `json:"record_refs,omitempty"`
}

// Config tunes the rule set. Thresholds overrides the per-rule defaults by
// rule name; Categories switches whole categories on or off. A nil Categories
// map enables everything.
type Config struct {
	Thresholds map[string]float64
	Categories map[Category]bool
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		Thresholds: map[string]float64{
			RuleTopTalker:      0.6, // fraction of total traffic from one source
			RuleICMPFlood:      100, // ICMP packets per second
			RuleTCPRetransmit:  5,   // TCP packets in one conversation
			RuleBroadcastStorm: 0.3, // fraction of broadcast frames
			RuleHighRate:       50,  // packets per second overall
			RuleTinyTCP:        60,  // minimum sane TCP frame length
			RuleDecodeWarnings: 10,  // records carrying decode warnings
		},
	}
}

func (c Config) threshold(rule string) float64 {
	if v, ok := c.Thresholds[rule]; ok {
		return v
	}
	return DefaultConfig().Thresholds[rule]
}

func (c Config) enabled(cat Category) bool {
	if c.Categories == nil {
		return true
	}
	return c.Categories[cat]
}

// ruleFunc evaluates one rule over the batch. Implementations must not
// mutate records or stats and must be deterministic for a given input.
type ruleFunc func(records []core.PacketRecord, s *stats.Statistics, cfg Config) []Issue

type rule struct {
	name     string
	category Category
	run      ruleFunc
}

// Evaluation order is fixed so repeated runs yield identical sequences.
var rules = []rule{
	{RuleTopTalker, CategorySecurity, detectTopTalker},
	{RuleICMPFlood, CategoryPerformance, detectICMPFlood},
	{RuleTCPFlags, CategoryMalformed, detectTCPFlags},
	{RuleTCPRetransmit, CategoryPerformance, detectTCPRetransmit},
	{RuleSuspiciousPort, CategorySecurity, detectSuspiciousPorts},
	{RuleBroadcastStorm, CategoryPerformance, detectBroadcastStorm},
	{RuleHighRate, CategoryPerformance, detectHighRate},
	{RuleTinyTCP, CategoryMalformed, detectTinyTCP},
	{RuleDecodeWarnings, CategoryMalformed, detectDecodeWarnings},
}

// Detect runs every enabled rule over the batch and returns the issues in
// rule order. When s is nil the statistics are computed on the fly.
func Detect(records []core.PacketRecord, s *stats.Statistics, cfg Config) []Issue {
	if len(records) == 0 {
		return nil
	}
	if s == nil {
		agg := stats.Aggregate(records, stats.Config{})
		s = &agg
	}

	var issues []Issue
	for _, r := range rules {
		if !cfg.enabled(r.category) {
			continue
		}
		issues = append(issues, r.run(records, s, cfg)...)
	}
	return issues
}
