// Package stats computes aggregate traffic statistics over packet records.
// Aggregation is a pure reduction: shuffling the input never changes the
// resulting counts.
package stats

import (
	"sort"
	"strconv"
	"time"

	"github.com/packetscope/packetscope/internal/core"
)

// DefaultSizeBounds are the inclusive upper edges of the size buckets:
// ≤64, 65–512, 513–1500, >1500 bytes.
var DefaultSizeBounds = []int{64, 512, 1500}

const (
	defaultWindow           = time.Second
	defaultTopConversations = 5
)

// Config controls an aggregation pass.
type Config struct {
	Window           time.Duration // timeline interval size; <=0 = 1s
	SizeBounds       []int         // ascending upper edges; nil = DefaultSizeBounds
	TopConversations int           // entries in the conversation ranking; <=0 = 5
}

// SizeBucket is one histogram bucket over [Low, High]; High 0 marks the
// open-ended final bucket.
type SizeBucket struct {
	Low   int    `json:"low"`
	High  int    `json:"high,omitempty"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// IntervalCount is the packet count of one timeline interval
// [Start, Start+Window).
type IntervalCount struct {
	Start time.Time `json:"start"`
	Count int       `json:"count"`
}

// Conversation is one ranked src→dst endpoint pair.
type Conversation struct {
	Endpoints string `json:"endpoints"`
	Count     int    `json:"count"`
}

// Statistics is the result of one aggregation pass. Built fresh per call,
// never mutated afterwards.
type Statistics struct {
	TotalPackets int           `json:"total_packets"`
	TotalBytes   int           `json:"total_bytes"`
	Duration     time.Duration `json:"duration"`

	ProtocolCounts     map[string]int  `json:"protocol_counts"`
	SizeHistogram      []SizeBucket    `json:"size_histogram"`
	PacketsPerInterval []IntervalCount `json:"packets_per_interval"`

	MinSize int     `json:"min_size"`
	MaxSize int     `json:"max_size"`
	AvgSize float64 `json:"avg_size"`

	TopConversations []Conversation `json:"top_conversations"`
}

// ProtocolShare returns the fraction of records carrying the given
// protocol tag, in [0, 1].
func (s *Statistics) ProtocolShare(protocol string) float64 {
	if s.TotalPackets == 0 {
		return 0
	}
	return float64(s.ProtocolCounts[protocol]) / float64(s.TotalPackets)
}

// PacketRate returns the average packet rate over the capture duration,
// or 0 when the capture spans a single instant.
func (s *Statistics) PacketRate() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.TotalPackets) / s.Duration.Seconds()
}

// Aggregate reduces the records into a Statistics value.
func Aggregate(records []core.PacketRecord, cfg Config) Statistics {
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}
	if cfg.SizeBounds == nil {
		cfg.SizeBounds = DefaultSizeBounds
	}
	if cfg.TopConversations <= 0 {
		cfg.TopConversations = defaultTopConversations
	}

	s := Statistics{
		TotalPackets:   len(records),
		ProtocolCounts: make(map[string]int),
		SizeHistogram:  makeBuckets(cfg.SizeBounds),
	}
	if len(records) == 0 {
		return s
	}

	convCounts := make(map[string]int)
	s.MinSize = records[0].Length
	first, last := records[0].Timestamp, records[0].Timestamp

	for _, rec := range records {
		s.TotalBytes += rec.Length
		s.ProtocolCounts[rec.Protocol()]++
		bucketFor(s.SizeHistogram, rec.Length).Count++

		if rec.Length < s.MinSize {
			s.MinSize = rec.Length
		}
		if rec.Length > s.MaxSize {
			s.MaxSize = rec.Length
		}
		if rec.Timestamp.Before(first) {
			first = rec.Timestamp
		}
		if rec.Timestamp.After(last) {
			last = rec.Timestamp
		}
		if conv, ok := rec.Conversation(); ok {
			convCounts[conv]++
		}
	}

	s.AvgSize = float64(s.TotalBytes) / float64(s.TotalPackets)
	s.Duration = last.Sub(first)
	s.PacketsPerInterval = buildTimeline(records, first, cfg.Window)
	s.TopConversations = rankConversations(convCounts, cfg.TopConversations)
	return s
}

func makeBuckets(bounds []int) []SizeBucket {
	buckets := make([]SizeBucket, 0, len(bounds)+1)
	low := 0
	for _, high := range bounds {
		label := between(low, high)
		buckets = append(buckets, SizeBucket{Low: low, High: high, Label: label})
		low = high + 1
	}
	return append(buckets, SizeBucket{Low: low, Label: between(low, 0)})
}

func between(low, high int) string {
	switch {
	case high == 0:
		return ">" + strconv.Itoa(low-1)
	case low == 0:
		return "<=" + strconv.Itoa(high)
	default:
		return strconv.Itoa(low) + "-" + strconv.Itoa(high)
	}
}

// bucketFor finds the single bucket covering the length. Buckets partition
// the whole non-negative range, so every record lands in exactly one.
func bucketFor(buckets []SizeBucket, length int) *SizeBucket {
	for i := range buckets {
		if buckets[i].High == 0 || length <= buckets[i].High {
			return &buckets[i]
		}
	}
	return &buckets[len(buckets)-1]
}

// buildTimeline counts packets per fixed window starting at the earliest
// timestamp. Intervals are half-open [start, start+window); the final
// partial interval is included.
func buildTimeline(records []core.PacketRecord, first time.Time, window time.Duration) []IntervalCount {
	maxIdx := 0
	for _, rec := range records {
		if idx := int(rec.Timestamp.Sub(first) / window); idx > maxIdx {
			maxIdx = idx
		}
	}

	timeline := make([]IntervalCount, maxIdx+1)
	for i := range timeline {
		timeline[i].Start = first.Add(time.Duration(i) * window)
	}
	for _, rec := range records {
		timeline[int(rec.Timestamp.Sub(first)/window)].Count++
	}
	return timeline
}

// rankConversations orders by count descending, breaking ties on the
// endpoint string so the ranking is deterministic.
func rankConversations(counts map[string]int, n int) []Conversation {
	ranked := make([]Conversation, 0, len(counts))
	for k, v := range counts {
		ranked = append(ranked, Conversation{Endpoints: k, Count: v})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Endpoints < ranked[j].Endpoints
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
