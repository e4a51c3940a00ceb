// Package file persists analysis results to disk as JSON or YAML. A saved
// capture loads back into the same record shape the engine produces, so
// stored captures can be re-filtered and re-analyzed.
package file

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/packetscope/packetscope/internal/core"
	"github.com/packetscope/packetscope/internal/detect"
	"github.com/packetscope/packetscope/internal/log"
	"github.com/packetscope/packetscope/internal/sink"
	"github.com/packetscope/packetscope/internal/stats"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"

	captureVersion = "1.0"
)

// Capture is the on-disk envelope.
type Capture struct {
	Metadata Metadata            `json:"metadata"`
	Records  []core.PacketRecord `json:"records"`
	Stats    *stats.Statistics   `json:"statistics,omitempty"`
	Issues   []detect.Issue      `json:"issues,omitempty"`
}

type Metadata struct {
	Version      string    `json:"version"`
	SavedAt      time.Time `json:"saved_at"`
	TotalPackets int       `json:"total_packets"`
	TotalBytes   int       `json:"total_bytes"`
	Protocols    []string  `json:"protocols"`
}

type Sink struct {
	path   string
	format string
}

// NewSink writes captures to path. Format defaults to json; an empty path
// is rejected up front so failures surface before analysis runs.
func NewSink(path, format string) (*Sink, error) {
	if path == "" {
		return nil, fmt.Errorf("file sink: path is required")
	}
	if format == "" {
		format = FormatJSON
	}
	if format != FormatJSON && format != FormatYAML {
		return nil, fmt.Errorf("file sink: unsupported format %q", format)
	}
	return &Sink{path: path, format: format}, nil
}

func (s *Sink) Write(res *sink.Results) error {
	capture := &Capture{
		Metadata: Metadata{
			Version:      captureVersion,
			SavedAt:      time.Now().UTC(),
			TotalPackets: len(res.Records),
			TotalBytes:   totalBytes(res.Records),
			Protocols:    protocolSet(res.Records),
		},
		Records: res.Records,
		Stats:   res.Stats,
		Issues:  res.Issues,
	}

	data, err := marshal(capture, s.format)
	if err != nil {
		return fmt.Errorf("failed to encode capture: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create capture directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write capture: %w", err)
	}
	log.GetLogger().WithFields(map[string]interface{}{
		"path":    s.path,
		"packets": len(res.Records),
	}).Info("capture saved")
	return nil
}

func (s *Sink) Close() error { return nil }

// Load reads a capture saved by this sink, picking the format from the
// file extension (.yaml/.yml, otherwise JSON).
func Load(path string) (*Capture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture: %w", err)
	}

	var capture Capture
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		// Through the JSON field names, see marshal.
		var doc interface{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode capture: %w", err)
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to decode capture: %w", err)
		}
		if err := json.Unmarshal(raw, &capture); err != nil {
			return nil, fmt.Errorf("failed to decode capture: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &capture); err != nil {
			return nil, fmt.Errorf("failed to decode capture: %w", err)
		}
	}
	return &capture, nil
}

// marshal encodes the capture. YAML output rides the JSON field names so
// a record round-trips identically in both formats.
func marshal(capture *Capture, format string) ([]byte, error) {
	raw, err := json.MarshalIndent(capture, "", "  ")
	if err != nil {
		return nil, err
	}
	if format == FormatJSON {
		return raw, nil
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return yaml.Marshal(doc)
}

func totalBytes(records []core.PacketRecord) int {
	total := 0
	for _, rec := range records {
		total += rec.Length
	}
	return total
}

func protocolSet(records []core.PacketRecord) []string {
	seen := make(map[string]struct{})
	for _, rec := range records {
		seen[rec.Protocol()] = struct{}{}
	}
	protocols := make([]string, 0, len(seen))
	for proto := range seen {
		protocols = append(protocols, proto)
	}
	sort.Strings(protocols)
	return protocols
}
