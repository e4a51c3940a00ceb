// Package analyzer drains a frame source through the decoder and produces
// the ordered record stream the rest of the engine consumes.
package analyzer

import (
	"context"
	"io"
	"sync"

	"github.com/packetscope/packetscope/internal/core"
	"github.com/packetscope/packetscope/internal/core/decoder"
	"github.com/packetscope/packetscope/internal/log"
	"github.com/packetscope/packetscope/internal/source"
)

const defaultBatchSize = 256

type Options struct {
	// Workers sets the number of parallel decode goroutines per batch.
	// Values below 2 decode inline.
	Workers int
	// Decoder overrides the default decoder configuration.
	Decoder *decoder.Decoder
	// BatchSize bounds how many frames are read ahead of decoding.
	BatchSize int
}

// Report tallies one Drain call. Failed counts frames rejected at the
// Ethernet layer; they produce no record but still consume a sequence index.
type Report struct {
	Parsed int `json:"parsed"`
	Warned int `json:"warned"`
	Failed int `json:"failed"`
}

// Frames returns the total number of frames consumed from the source.
func (r Report) Frames() int {
	return r.Parsed + r.Warned + r.Failed
}

type Session struct {
	dec       *decoder.Decoder
	workers   int
	batchSize int
	logger    log.Logger
}

func NewSession(opts Options) *Session {
	dec := opts.Decoder
	if dec == nil {
		dec = decoder.New(decoder.Config{})
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Session{
		dec:       dec,
		workers:   opts.Workers,
		batchSize: batchSize,
		logger:    log.GetLogger().WithField("component", "analyzer"),
	}
}

// Drain pulls frames until the source is exhausted, decoding each one and
// returning the records in capture order. A frame that fails to decode is
// counted and skipped, never aborting the stream. Cancellation is honored
// between frames; on cancel the frames already read are still decoded and
// returned along with ctx.Err().
func (s *Session) Drain(ctx context.Context, src source.Source) ([]core.PacketRecord, Report, error) {
	var (
		records []core.PacketRecord
		report  Report
		index   int
	)
	batch := make([]core.Frame, 0, s.batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		s.decodeBatch(batch, index, &records, &report)
		index += len(batch)
		batch = batch[:0]
	}

	for {
		if err := ctx.Err(); err != nil {
			flush()
			return records, report, err
		}
		frame, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			flush()
			return records, report, err
		}
		batch = append(batch, frame)
		if len(batch) == s.batchSize {
			flush()
		}
	}
	flush()

	if report.Failed > 0 {
		s.logger.Warnf("%d of %d frames failed to decode", report.Failed, report.Frames())
	}
	s.logger.Debugf("drained %d frames, %d records", report.Frames(), len(records))
	return records, report, nil
}

type decoded struct {
	rec core.PacketRecord
	err error
}

// decodeBatch decodes one batch, in parallel when configured, and appends
// the results in capture order. Each worker writes only its own slots, so
// completion order never leaks into the output.
func (s *Session) decodeBatch(batch []core.Frame, base int, records *[]core.PacketRecord, report *Report) {
	out := make([]decoded, len(batch))

	if s.workers > 1 {
		jobs := make(chan int)
		var wg sync.WaitGroup
		for w := 0; w < s.workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range jobs {
					out[i].rec, out[i].err = s.dec.Parse(batch[i])
				}
			}()
		}
		for i := range batch {
			jobs <- i
		}
		close(jobs)
		wg.Wait()
	} else {
		for i := range batch {
			out[i].rec, out[i].err = s.dec.Parse(batch[i])
		}
	}

	for i, d := range out {
		if d.err != nil {
			report.Failed++
			continue
		}
		d.rec.Index = base + i
		if len(d.rec.Warnings) > 0 {
			report.Warned++
		} else {
			report.Parsed++
		}
		*records = append(*records, d.rec)
	}
}
