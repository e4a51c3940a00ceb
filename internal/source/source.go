// Package source provides frame producers for the analysis pipeline. A
// producer hands out frames one at a time; the engine never cares whether
// they come from a capture file or a generator.
package source

import (
	"github.com/packetscope/packetscope/internal/core"
)

// Source is a finite or infinite sequence of frames. Next returns io.EOF
// when the capture is exhausted; any other error is a read failure.
type Source interface {
	Next() (core.Frame, error)
	Close() error
}
