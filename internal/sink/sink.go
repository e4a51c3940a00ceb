// Package sink defines where analysis results end up. Sinks receive plain
// data and own all formatting; the engine never knows how results are
// rendered or persisted.
package sink

import (
	"github.com/packetscope/packetscope/internal/analyzer"
	"github.com/packetscope/packetscope/internal/core"
	"github.com/packetscope/packetscope/internal/detect"
	"github.com/packetscope/packetscope/internal/stats"
)

// Results carries everything one analysis run produced. Stats and Issues
// are nil when the corresponding stage was not requested.
type Results struct {
	Records []core.PacketRecord
	Report  analyzer.Report
	Stats   *stats.Statistics
	Issues  []detect.Issue
}

type Sink interface {
	Write(res *Results) error
	Close() error
}
