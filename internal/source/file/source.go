// Package file reads frames from an offline pcap capture.
package file

import (
	"fmt"
	"io"

	"github.com/google/gopacket/pcap"

	"github.com/packetscope/packetscope/internal/core"
	"github.com/packetscope/packetscope/internal/source"
)

const Name = "file"

type Config struct {
	Path string `mapstructure:"path"`
	BPF  string `mapstructure:"bpf"` // optional capture filter expression
}

type Source struct {
	path   string
	handle *pcap.Handle
}

func init() {
	source.Register(Name, func(opts source.Options) (source.Source, error) {
		var cfg Config
		if err := source.DecodeOptions(opts, &cfg); err != nil {
			return nil, err
		}
		return New(cfg)
	})
}

// New opens the capture file and applies the optional BPF filter.
func New(cfg Config) (*Source, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("file source: path is required")
	}
	handle, err := pcap.OpenOffline(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pcap file %s: %w", cfg.Path, err)
	}
	if cfg.BPF != "" {
		if err := handle.SetBPFFilter(cfg.BPF); err != nil {
			handle.Close()
			return nil, fmt.Errorf("failed to set BPF filter %q: %w", cfg.BPF, err)
		}
	}
	return &Source{path: cfg.Path, handle: handle}, nil
}

// Next reads the next frame from the file. Returns io.EOF at end of capture.
func (s *Source) Next() (core.Frame, error) {
	if s.handle == nil {
		return core.Frame{}, core.ErrSourceNotStarted
	}
	data, ci, err := s.handle.ReadPacketData()
	if err != nil {
		if err == io.EOF {
			return core.Frame{}, io.EOF
		}
		return core.Frame{}, fmt.Errorf("failed to read packet: %w", err)
	}
	frame := core.NewFrame(data, ci.Timestamp)
	if ci.CaptureLength > 0 && ci.CaptureLength < frame.Length {
		frame.Length = ci.CaptureLength
	}
	return frame, nil
}

func (s *Source) Close() error {
	if s.handle != nil {
		s.handle.Close()
		s.handle = nil
	}
	return nil
}
