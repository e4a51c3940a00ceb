package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/packetscope/packetscope/internal/config"
)

func resetAnalyzeFlags() {
	analyzeFlags = struct {
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
	}{}
}

func TestApplyFlagsSimulatedSource(t *testing.T) {
	defer resetAnalyzeFlags()
	analyzeFlags.simulate = 250
	analyzeFlags.seed = 7
	analyzeFlags.bpf = "udp port 53"

	cfg := config.Default()
	applyAnalyzeFlags(analyzeCmd, cfg)

	assert.Equal(t, "sim", cfg.Source.Name)
	assert.Equal(t, 250, cfg.Source.Options["count"])
	assert.Equal(t, int64(7), cfg.Source.Options["seed"])
	assert.Equal(t, "udp port 53", cfg.Source.Options["bpf"])
}

func TestApplyFlagsFileSourceWins(t *testing.T) {
	defer resetAnalyzeFlags()
	analyzeFlags.readFile = "trace.pcap"

	cfg := config.Default()
	applyAnalyzeFlags(analyzeCmd, cfg)

	assert.Equal(t, "file", cfg.Source.Name)
	assert.Equal(t, "trace.pcap", cfg.Source.Options["path"])
}

func TestApplyFlagsFilterOverrides(t *testing.T) {
	defer resetAnalyzeFlags()
	analyzeFlags.protocol = "tcp"
	analyzeFlags.srcIP = "10.0.0.0/8"
	analyzeFlags.port = 443
	analyzeFlags.save = "out.yaml"
	analyzeFlags.saveFormat = "yaml"

	cfg := config.Default()
	applyAnalyzeFlags(analyzeCmd, cfg)

	assert.Equal(t, "tcp", cfg.Filter.Protocol)
	assert.Equal(t, "10.0.0.0/8", cfg.Filter.SrcIP)
	assert.Equal(t, uint16(443), cfg.Filter.Port)
	assert.Equal(t, "out.yaml", cfg.Output.Save)
	assert.Equal(t, "yaml", cfg.Output.Format)

	crit, err := cfg.Filter.Criteria()
	assert.NoError(t, err)
	assert.False(t, crit.IsZero())
}

func TestApplyFlagsKeepsConfigWhenUnset(t *testing.T) {
	defer resetAnalyzeFlags()

	cfg := config.Default()
	cfg.Source.Name = "file"
	cfg.Source.Options = map[string]interface{}{"path": "from-config.pcap"}
	applyAnalyzeFlags(analyzeCmd, cfg)

	assert.Equal(t, "file", cfg.Source.Name)
	assert.Equal(t, "from-config.pcap", cfg.Source.Options["path"])
}
