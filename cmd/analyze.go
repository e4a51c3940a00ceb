package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/packetscope/packetscope/internal/analyzer"
	"github.com/packetscope/packetscope/internal/config"
	"github.com/packetscope/packetscope/internal/core/decoder"
	"github.com/packetscope/packetscope/internal/detect"
	"github.com/packetscope/packetscope/internal/filter"
	"github.com/packetscope/packetscope/internal/log"
	"github.com/packetscope/packetscope/internal/sink"
	"github.com/packetscope/packetscope/internal/sink/console"
	filesink "github.com/packetscope/packetscope/internal/sink/file"
	"github.com/packetscope/packetscope/internal/source"
	_ "github.com/packetscope/packetscope/internal/source/file"
	_ "github.com/packetscope/packetscope/internal/source/sim"
	"github.com/packetscope/packetscope/internal/stats"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Decode and analyze network traffic",
	Long: `Decode frames from a pcap file or the built-in traffic generator,
then filter, aggregate and inspect the results.

Examples:
  packetscope analyze -r capture.pcap --stats
  packetscope analyze -r capture.pcap --filter-protocol tcp --filter-port 443
  packetscope analyze --simulate 500 --detect-issues --save out.json`,
	Run: func(cmd *cobra.Command, args []string) {
		runAnalyze(cmd)
	},
}

var analyzeFlags struct {
	readFile     string
	simulate     int
	seed         int64
	bpf          string
	protocol     string
	srcIP        string
	dstIP        string
	port         uint16
	minSize      int
	maxSize      int
	showStats    bool
	detectIssues bool
	listPackets  bool
	save         string
	saveFormat   string
	workers      int
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVarP(&analyzeFlags.readFile, "read", "r", "", "pcap file to read")
	f.IntVar(&analyzeFlags.simulate, "simulate", 0, "generate N synthetic frames instead of reading a file")
	f.Int64Var(&analyzeFlags.seed, "seed", 0, "seed for the traffic generator")
	f.StringVar(&analyzeFlags.bpf, "bpf", "", "BPF capture filter expression")
	f.StringVar(&analyzeFlags.protocol, "filter-protocol", "", "keep only this protocol (tcp, udp, icmp, ...)")
	f.StringVar(&analyzeFlags.srcIP, "filter-src-ip", "", "keep only this source IP or CIDR")
	f.StringVar(&analyzeFlags.dstIP, "filter-dst-ip", "", "keep only this destination IP or CIDR")
	f.Uint16Var(&analyzeFlags.port, "filter-port", 0, "keep only packets touching this port")
	f.IntVar(&analyzeFlags.minSize, "filter-min-size", 0, "keep only packets at least this long")
	f.IntVar(&analyzeFlags.maxSize, "filter-max-size", 0, "keep only packets at most this long")
	f.BoolVar(&analyzeFlags.showStats, "stats", false, "print traffic statistics")
	f.BoolVar(&analyzeFlags.detectIssues, "detect-issues", false, "run issue detection")
	f.BoolVar(&analyzeFlags.listPackets, "list", false, "print the per-packet listing")
	f.StringVar(&analyzeFlags.save, "save", "", "save results to this file")
	f.StringVar(&analyzeFlags.saveFormat, "save-format", "", "saved capture format: json or yaml")
	f.IntVar(&analyzeFlags.workers, "workers", 0, "parallel decode workers")
	analyzeCmd.MarkFlagsMutuallyExclusive("read", "simulate")
}

func runAnalyze(cmd *cobra.Command) {
	cfg, err := config.Load(configFile)
	if err != nil {
		exitWithError("invalid configuration", err)
	}
	applyAnalyzeFlags(cmd, cfg)

	if err := log.Init(cfg.Log); err != nil {
		exitWithError("failed to init logging", err)
	}
	logger := log.GetLogger()

	src, err := source.Open(cfg.Source.Name, source.Options(cfg.Source.Options))
	if err != nil {
		exitWithError("failed to open source", err)
	}
	defer src.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session := analyzer.NewSession(analyzer.Options{
		Workers:   cfg.Analyzer.Workers,
		BatchSize: cfg.Analyzer.BatchSize,
		Decoder:   decoder.New(decoder.Config{StrictChecksums: cfg.Analyzer.StrictChecksums}),
	})
	records, report, err := session.Drain(ctx, src)
	if err != nil && err != context.Canceled {
		exitWithError("capture failed", err)
	}
	if err == context.Canceled {
		logger.Warn("interrupted, reporting on frames read so far")
	}

	criteria, err := cfg.Filter.Criteria()
	if err != nil {
		exitWithError("invalid filter", err)
	}
	if !criteria.IsZero() {
		before := len(records)
		records = filter.Apply(records, criteria)
		logger.Infof("filter [%s] kept %d of %d records", criteria.Describe(), len(records), before)
	}

	results := &sink.Results{Records: records, Report: report}
	attachAnalysis(cfg, results, analyzeFlags.showStats, analyzeFlags.detectIssues)

	sinks := buildSinks(cfg, analyzeFlags.listPackets)
	for _, s := range sinks {
		if err := s.Write(results); err != nil {
			exitWithError("failed to write results", err)
		}
		s.Close()
	}
}

// attachAnalysis runs the on-demand stats and detection stages over the
// filtered records and attaches their output to the results.
func attachAnalysis(cfg *config.Config, results *sink.Results, showStats, detectIssues bool) {
	if !showStats && !detectIssues {
		return
	}
	statsCfg, err := cfg.Stats.StatsConfig()
	if err != nil {
		exitWithError("invalid stats config", err)
	}
	st := stats.Aggregate(results.Records, statsCfg)
	if showStats {
		results.Stats = &st
	}
	if detectIssues {
		detectCfg, err := cfg.Detect.DetectConfig()
		if err != nil {
			exitWithError("invalid detect config", err)
		}
		issues := detect.Detect(results.Records, &st, detectCfg)
		if issues == nil {
			issues = []detect.Issue{}
		}
		results.Issues = issues
	}
}

// applyAnalyzeFlags lets command-line flags override the config file.
func applyAnalyzeFlags(cmd *cobra.Command, cfg *config.Config) {
	if analyzeFlags.readFile != "" {
		cfg.Source.Name = "file"
		cfg.Source.Options = map[string]interface{}{"path": analyzeFlags.readFile}
		if analyzeFlags.bpf != "" {
			cfg.Source.Options["bpf"] = analyzeFlags.bpf
		}
	} else if analyzeFlags.simulate > 0 {
		cfg.Source.Name = "sim"
		cfg.Source.Options = map[string]interface{}{
			"count": analyzeFlags.simulate,
			"seed":  analyzeFlags.seed,
		}
		if analyzeFlags.bpf != "" {
			cfg.Source.Options["bpf"] = analyzeFlags.bpf
		}
	}

	if analyzeFlags.protocol != "" {
		cfg.Filter.Protocol = analyzeFlags.protocol
	}
	if analyzeFlags.srcIP != "" {
		cfg.Filter.SrcIP = analyzeFlags.srcIP
	}
	if analyzeFlags.dstIP != "" {
		cfg.Filter.DstIP = analyzeFlags.dstIP
	}
	if analyzeFlags.port != 0 {
		cfg.Filter.Port = analyzeFlags.port
	}
	if analyzeFlags.minSize != 0 {
		cfg.Filter.MinSize = analyzeFlags.minSize
	}
	if analyzeFlags.maxSize != 0 {
		cfg.Filter.MaxSize = analyzeFlags.maxSize
	}
	if cmd.Flags().Changed("workers") {
		cfg.Analyzer.Workers = analyzeFlags.workers
	}
	if analyzeFlags.save != "" {
		cfg.Output.Save = analyzeFlags.save
	}
	if analyzeFlags.saveFormat != "" {
		cfg.Output.Format = analyzeFlags.saveFormat
	}
}

func buildSinks(cfg *config.Config, listPackets bool) []sink.Sink {
	opts := []console.Option{}
	if listPackets {
		opts = append(opts, console.WithRecordListing(cfg.Output.MaxRecords))
	}
	sinks := []sink.Sink{console.NewSink(opts...)}

	if cfg.Output.Save != "" {
		fs, err := filesink.NewSink(cfg.Output.Save, cfg.Output.Format)
		if err != nil {
			exitWithError("invalid save target", err)
		}
		sinks = append(sinks, fs)
	}
	return sinks
}
