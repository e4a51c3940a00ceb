// Package sim generates deterministic synthetic traffic. Frames are real
// Ethernet/IPv4 byte sequences built with gopacket, so the engine decodes
// them exactly like captured traffic. The same seed always yields the same
// frame sequence.
package sim

import (
	"fmt"
	"io"
	"math/rand"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/packetscope/packetscope/internal/core"
	"github.com/packetscope/packetscope/internal/source"
	"github.com/packetscope/packetscope/internal/utils"
)

const Name = "sim"

const (
	snapLen      = 65535
	defaultCount = 100
)

type Config struct {
	Count int    `mapstructure:"count"`
	Seed  int64  `mapstructure:"seed"`
	BPF   string `mapstructure:"bpf"` // optional filter applied in userspace
}

type Source struct {
	rnd       *rand.Rand
	matcher   *utils.Matcher
	remaining int
	clock     time.Time
	serialize gopacket.SerializeOptions
}

var (
	sourceIPs = []string{"192.168.1.100", "10.0.0.5", "172.16.0.10"}
	destIPs   = []string{"8.8.8.8", "93.184.216.34", "151.101.1.69"}

	// Weighted toward the ports real traffic mixes favor.
	tcpPorts = []uint16{80, 443, 22, 8080}
	udpPorts = []uint16{53, 123, 5353}
)

func init() {
	source.Register(Name, func(opts source.Options) (source.Source, error) {
		var cfg Config
		if err := source.DecodeOptions(opts, &cfg); err != nil {
			return nil, err
		}
		return New(cfg)
	})
}

// New builds a generator producing cfg.Count frames.
func New(cfg Config) (*Source, error) {
	if cfg.Count < 0 {
		return nil, fmt.Errorf("sim source: count must not be negative, got %d", cfg.Count)
	}
	if cfg.Count == 0 {
		cfg.Count = defaultCount
	}
	var matcher *utils.Matcher
	if cfg.BPF != "" {
		var err error
		matcher, err = utils.NewMatcher(cfg.BPF, snapLen)
		if err != nil {
			return nil, err
		}
	}
	return &Source{
		rnd:       rand.New(rand.NewSource(cfg.Seed)),
		matcher:   matcher,
		remaining: cfg.Count,
		clock:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		serialize: gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true},
	}, nil
}

// Next generates the next frame. Frames rejected by the BPF filter still
// consume generation slots, so the source stays finite under any filter.
func (s *Source) Next() (core.Frame, error) {
	for s.remaining > 0 {
		s.remaining--
		s.clock = s.clock.Add(time.Duration(s.rnd.Intn(50)+1) * time.Millisecond)

		data, err := s.buildFrame()
		if err != nil {
			return core.Frame{}, err
		}
		if s.matcher != nil && !s.matcher.Match(data) {
			continue
		}
		return core.NewFrame(data, s.clock), nil
	}
	return core.Frame{}, io.EOF
}

func (s *Source) Close() error { return nil }

func (s *Source) buildFrame() ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, byte(s.rnd.Intn(4) + 1)},
		DstMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0xFE},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version: 4,
		TTL:     64,
		SrcIP:   net.ParseIP(sourceIPs[s.rnd.Intn(len(sourceIPs))]),
		DstIP:   net.ParseIP(destIPs[s.rnd.Intn(len(destIPs))]),
	}
	payload := make([]byte, s.rnd.Intn(1200))
	s.rnd.Read(payload)

	buf := gopacket.NewSerializeBuffer()
	var err error
	switch s.rnd.Intn(3) {
	case 0:
		ip.Protocol = layers.IPProtocolTCP
		tcp := &layers.TCP{
			SrcPort: layers.TCPPort(uint16(s.rnd.Intn(28000)) + 32768),
			DstPort: layers.TCPPort(tcpPorts[s.rnd.Intn(len(tcpPorts))]),
			Seq:     s.rnd.Uint32(),
			ACK:     true,
			PSH:     len(payload) > 0,
			Window:  65535,
		}
		if err = tcp.SetNetworkLayerForChecksum(ip); err != nil {
			return nil, err
		}
		err = gopacket.SerializeLayers(buf, s.serialize, eth, ip, tcp, gopacket.Payload(payload))
	case 1:
		ip.Protocol = layers.IPProtocolUDP
		udp := &layers.UDP{
			SrcPort: layers.UDPPort(uint16(s.rnd.Intn(28000)) + 32768),
			DstPort: layers.UDPPort(udpPorts[s.rnd.Intn(len(udpPorts))]),
		}
		if err = udp.SetNetworkLayerForChecksum(ip); err != nil {
			return nil, err
		}
		err = gopacket.SerializeLayers(buf, s.serialize, eth, ip, udp, gopacket.Payload(payload))
	default:
		ip.Protocol = layers.IPProtocolICMPv4
		icmp := &layers.ICMPv4{
			TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0),
			Id:       uint16(s.rnd.Intn(65536)),
			Seq:      uint16(s.rnd.Intn(65536)),
		}
		err = gopacket.SerializeLayers(buf, s.serialize, eth, ip, icmp, gopacket.Payload(payload))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to serialize frame: %w", err)
	}
	return buf.Bytes(), nil
}
