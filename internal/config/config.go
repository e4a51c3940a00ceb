// Package config loads the engine configuration. Settings live under the
// `packetscope:` root key in YAML and can be overridden through
// PACKETSCOPE_* environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/packetscope/packetscope/internal/detect"
	"github.com/packetscope/packetscope/internal/filter"
	"github.com/packetscope/packetscope/internal/log"
	"github.com/packetscope/packetscope/internal/stats"
)

type Config struct {
	Source   SourceConfig   `mapstructure:"source"`
	Filter   FilterConfig   `mapstructure:"filter"`
	Stats    StatsConfig    `mapstructure:"stats"`
	Detect   DetectConfig   `mapstructure:"detect"`
	Analyzer AnalyzerConfig `mapstructure:"analyzer"`
	Output   OutputConfig   `mapstructure:"output"`
	Log      log.Config     `mapstructure:"log"`
}

// SourceConfig names the frame producer and carries its raw options block.
type SourceConfig struct {
	Name    string                 `mapstructure:"name"`
	Options map[string]interface{} `mapstructure:"options"`
}

// FilterConfig is the declarative form of one filter criteria. Empty
// fields are wildcards.
type FilterConfig struct {
	Protocol string `mapstructure:"protocol"`
	SrcIP    string `mapstructure:"src_ip"`
	DstIP    string `mapstructure:"dst_ip"`
	Port     uint16 `mapstructure:"port"`
	SrcPort  uint16 `mapstructure:"src_port"`
	DstPort  uint16 `mapstructure:"dst_port"`
	MinSize  int    `mapstructure:"min_size"`
	MaxSize  int    `mapstructure:"max_size"`
}

// Criteria converts the declarative form into a filter criteria.
func (f FilterConfig) Criteria() (filter.Criteria, error) {
	c := filter.Criteria{
		Protocol: f.Protocol,
		Port:     f.Port,
		SrcPort:  f.SrcPort,
		DstPort:  f.DstPort,
		MinSize:  f.MinSize,
		MaxSize:  f.MaxSize,
	}
	if f.SrcIP != "" {
		p, err := filter.ParseIP(f.SrcIP)
		if err != nil {
			return filter.Criteria{}, err
		}
		c.SrcIP = p
	}
	if f.DstIP != "" {
		p, err := filter.ParseIP(f.DstIP)
		if err != nil {
			return filter.Criteria{}, err
		}
		c.DstIP = p
	}
	return c, nil
}

// StatsConfig carries the aggregation tuning. Window is a duration string
// ("1s", "500ms") so it reads naturally in YAML and env vars.
type StatsConfig struct {
	Window           string `mapstructure:"window"`
	TopConversations int    `mapstructure:"top_conversations"`
	SizeBounds       []int  `mapstructure:"size_bounds"`
}

// StatsConfig converts to the aggregator's config, parsing the window.
// Size bounds must be positive and strictly ascending; a zero bound would
// turn the first bucket into the open-ended one.
func (s StatsConfig) StatsConfig() (stats.Config, error) {
	for i, b := range s.SizeBounds {
		if b <= 0 {
			return stats.Config{}, fmt.Errorf("stats size bound %d is not positive", b)
		}
		if i > 0 && b <= s.SizeBounds[i-1] {
			return stats.Config{}, fmt.Errorf("stats size bounds %v are not ascending", s.SizeBounds)
		}
	}
	cfg := stats.Config{
		TopConversations: s.TopConversations,
		SizeBounds:       s.SizeBounds,
	}
	if s.Window != "" {
		d, err := time.ParseDuration(s.Window)
		if err != nil {
			return stats.Config{}, fmt.Errorf("invalid stats window %q: %w", s.Window, err)
		}
		cfg.Window = d
	}
	return cfg, nil
}

// DetectConfig tunes issue detection. Categories lists the enabled
// categories; empty enables all of them.
type DetectConfig struct {
	Thresholds map[string]float64 `mapstructure:"thresholds"`
	Categories []string           `mapstructure:"categories"`
}

// DetectConfig converts to the detector's config.
func (d DetectConfig) DetectConfig() (detect.Config, error) {
	cfg := detect.DefaultConfig()
	for rule, v := range d.Thresholds {
		cfg.Thresholds[rule] = v
	}
	if len(d.Categories) > 0 {
		cfg.Categories = make(map[detect.Category]bool, len(d.Categories))
		for _, name := range d.Categories {
			switch cat := detect.Category(name); cat {
			case detect.CategorySecurity, detect.CategoryPerformance, detect.CategoryMalformed:
				cfg.Categories[cat] = true
			default:
				return detect.Config{}, fmt.Errorf("unknown issue category %q", name)
			}
		}
	}
	return cfg, nil
}

type AnalyzerConfig struct {
	Workers   int `mapstructure:"workers"`
	BatchSize int `mapstructure:"batch_size"`
	// StrictChecksums rejects IPv4 headers with bad checksums instead of
	// recording a warning.
	StrictChecksums bool `mapstructure:"strict_checksums"`
}

// OutputConfig controls the sinks. Save is a file path; empty disables
// the file sink.
type OutputConfig struct {
	Save       string `mapstructure:"save"`
	Format     string `mapstructure:"format"`
	MaxRecords int    `mapstructure:"max_records"` // console per-packet listing cap
}
