// Package console renders analysis results as a human-readable report.
package console

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/packetscope/packetscope/internal/detect"
	"github.com/packetscope/packetscope/internal/sink"
)

const Name = "console"

type Sink struct {
	out io.Writer
	// MaxRecords caps the per-packet listing; 0 disables the listing.
	maxRecords int
}

type Option func(*Sink)

// WithWriter redirects the report, mainly for tests.
func WithWriter(w io.Writer) Option {
	return func(s *Sink) { s.out = w }
}

// WithRecordListing enables the per-packet listing, capped at n records.
func WithRecordListing(n int) Option {
	return func(s *Sink) { s.maxRecords = n }
}

func NewSink(opts ...Option) *Sink {
	s := &Sink{out: os.Stdout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sink) Write(res *sink.Results) error {
	fmt.Fprintf(s.out, "%d frames: %d parsed, %d with warnings, %d failed\n",
		res.Report.Frames(), res.Report.Parsed, res.Report.Warned, res.Report.Failed)

	if s.maxRecords > 0 {
		s.writeRecords(res)
	}
	if res.Stats != nil {
		s.writeStats(res)
	}
	if res.Issues != nil {
		s.writeIssues(res.Issues)
	}
	return nil
}

func (s *Sink) Close() error { return nil }

func (s *Sink) writeRecords(res *sink.Results) {
	fmt.Fprintln(s.out, "\n--- Packets ---")
	for i, rec := range res.Records {
		if i == s.maxRecords {
			fmt.Fprintf(s.out, "... %d more\n", len(res.Records)-i)
			return
		}
		fmt.Fprintf(s.out, "#%-5d %s\n", rec.Index, rec.Summary())
	}
}

func (s *Sink) writeStats(res *sink.Results) {
	st := res.Stats

	fmt.Fprintln(s.out, "\n--- Statistics ---")
	fmt.Fprintf(s.out, "Total packets: %d\n", st.TotalPackets)
	fmt.Fprintf(s.out, "Total bytes:   %d\n", st.TotalBytes)
	fmt.Fprintf(s.out, "Duration:      %s\n", st.Duration)
	if rate := st.PacketRate(); rate > 0 {
		fmt.Fprintf(s.out, "Rate:          %.1f packets/second\n", rate)
	}
	if st.TotalPackets > 0 {
		fmt.Fprintf(s.out, "Sizes:         min %d / avg %.1f / max %d bytes\n",
			st.MinSize, st.AvgSize, st.MaxSize)
	}

	fmt.Fprintln(s.out, "\nProtocols:")
	for _, proto := range sortedKeys(st.ProtocolCounts) {
		fmt.Fprintf(s.out, "  %-8s %6d (%.1f%%)\n",
			proto, st.ProtocolCounts[proto], st.ProtocolShare(proto)*100)
	}

	fmt.Fprintln(s.out, "\nSize distribution:")
	for _, b := range st.SizeHistogram {
		fmt.Fprintf(s.out, "  %-10s %6d\n", b.Label, b.Count)
	}

	if len(st.TopConversations) > 0 {
		fmt.Fprintln(s.out, "\nTop conversations:")
		for i, conv := range st.TopConversations {
			fmt.Fprintf(s.out, "  %d. %s (%d packets)\n", i+1, conv.Endpoints, conv.Count)
		}
	}

	if len(st.PacketsPerInterval) > 0 {
		busiest := st.PacketsPerInterval[0]
		for _, iv := range st.PacketsPerInterval[1:] {
			if iv.Count > busiest.Count {
				busiest = iv
			}
		}
		fmt.Fprintf(s.out, "\nBusiest interval: %d packets at %s\n",
			busiest.Count, busiest.Start.Format("15:04:05.000"))
	}
}

func (s *Sink) writeIssues(issues []detect.Issue) {
	fmt.Fprintln(s.out, "\n--- Issues ---")
	if len(issues) == 0 {
		fmt.Fprintln(s.out, "none detected")
		return
	}
	for _, sev := range []detect.Severity{detect.SeverityCritical, detect.SeverityWarning, detect.SeverityInfo} {
		for _, issue := range issues {
			if issue.Severity != sev {
				continue
			}
			fmt.Fprintf(s.out, "[%s] %s/%s: %s\n",
				issue.Severity, issue.Category, issue.Rule, issue.Description)
			if n := len(issue.RecordRefs); n > 0 {
				fmt.Fprintf(s.out, "        %d related packets\n", n)
			}
		}
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
