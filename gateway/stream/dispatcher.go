// Package stream frames incremental chat output as server-sent events.
//
// Every stream is the same ordered sequence regardless of how the provider
// produced it: a start frame, zero or more chunk frames, an end frame, and
// a literal [DONE] sentinel, each written as "data: <payload>\n\n". When
// the provider cannot stream natively the dispatcher synthesizes the
// sequence from one complete response by slicing it into fixed-size chunks
// with a pacing delay between writes.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flowgate-ai/flowgate/gateway"
	"github.com/flowgate-ai/flowgate/internal/metrics"
)

// Stream production modes, reported in the start frame so consumers can
// tell true incremental output from the synthesized illusion.
const (
	ModeNative      = "native"
	ModeSynthesized = "synthesized"
)

// Sentinel is the literal final payload of every completed stream.
const Sentinel = "[DONE]"

// Frame is one SSE payload.
type Frame struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Mode    string `json:"mode,omitempty"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

const (
	frameStart = "start"
	frameChunk = "chunk"
	frameEnd   = "end"
	frameError = "error"
)

// Dispatcher writes framed event sequences.
type Dispatcher struct {
	chunkSize int
	delay     time.Duration
	logger    *zap.Logger
	metrics   *metrics.Collector
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithChunkSize sets the slice width for synthesized streaming.
func WithChunkSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.chunkSize = n
		}
	}
}

// WithDelay sets the pacing delay between synthesized chunk writes.
func WithDelay(delay time.Duration) Option {
	return func(d *Dispatcher) {
		if delay >= 0 {
			d.delay = delay
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithMetrics records chunk counts and in-flight streams on m.
func WithMetrics(m *metrics.Collector) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// New returns a Dispatcher with 24-char chunks and 30ms pacing by default.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		chunkSize: 24,
		delay:     30 * time.Millisecond,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With(zap.String("component", "stream"))
	return d
}

// DispatchNative forwards provider chunks verbatim as they arrive. A chunk
// carrying an error turns into an in-band error frame followed by the
// sentinel; the HTTP status is already on the wire and cannot change.
// Cancellation via ctx stops output promptly and is not an error.
func (d *Dispatcher) DispatchNative(ctx context.Context, w io.Writer, provider string, ch <-chan gateway.StreamChunk) error {
	if d.metrics != nil {
		defer d.metrics.StreamStarted(provider)()
	}

	id := uuid.NewString()
	if err := d.writeFrame(w, Frame{Type: frameStart, ID: id, Mode: ModeNative}); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			d.logger.Debug("stream cancelled", zap.String("id", id))
			return nil
		case chunk, ok := <-ch:
			if !ok {
				if err := d.writeFrame(w, Frame{Type: frameEnd, ID: id}); err != nil {
					return err
				}
				return d.writeSentinel(w)
			}
			if chunk.Err != nil {
				d.logger.Warn("stream failed mid-flight",
					zap.String("id", id),
					zap.Error(chunk.Err))
				if err := d.writeFrame(w, Frame{Type: frameError, ID: id, Error: chunk.Err.Error()}); err != nil {
					return err
				}
				return d.writeSentinel(w)
			}
			if err := d.writeFrame(w, Frame{Type: frameChunk, ID: id, Content: chunk.Content}); err != nil {
				return err
			}
			if d.metrics != nil {
				d.metrics.RecordStreamChunk(provider, ModeNative)
			}
		}
	}
}

// DispatchSynthesized slices one complete response into fixed-size chunks
// and paces them out with the configured delay. The pacing is a UX
// compromise for providers without native streaming, not a protocol
// requirement.
func (d *Dispatcher) DispatchSynthesized(ctx context.Context, w io.Writer, provider, content string) error {
	if d.metrics != nil {
		defer d.metrics.StreamStarted(provider)()
	}

	id := uuid.NewString()
	if err := d.writeFrame(w, Frame{Type: frameStart, ID: id, Mode: ModeSynthesized}); err != nil {
		return err
	}

	runes := []rune(content)
	for i := 0; i < len(runes); i += d.chunkSize {
		if i > 0 && d.delay > 0 {
			timer := time.NewTimer(d.delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				d.logger.Debug("stream cancelled", zap.String("id", id))
				return nil
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return nil
		}

		end := i + d.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		if err := d.writeFrame(w, Frame{Type: frameChunk, ID: id, Content: string(runes[i:end])}); err != nil {
			return err
		}
		if d.metrics != nil {
			d.metrics.RecordStreamChunk(provider, ModeSynthesized)
		}
	}

	if err := d.writeFrame(w, Frame{Type: frameEnd, ID: id}); err != nil {
		return err
	}
	return d.writeSentinel(w)
}

// Fail emits an in-band error frame and the sentinel. Handlers call this
// when the provider call fails after the SSE headers are already flushed.
func (d *Dispatcher) Fail(w io.Writer, message string) error {
	if err := d.writeFrame(w, Frame{Type: frameError, Error: message}); err != nil {
		return err
	}
	return d.writeSentinel(w)
}

func (d *Dispatcher) writeFrame(w io.Writer, f Frame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal stream frame: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("write stream frame: %w", err)
	}
	flush(w)
	return nil
}

func (d *Dispatcher) writeSentinel(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "data: %s\n\n", Sentinel); err != nil {
		return fmt.Errorf("write stream sentinel: %w", err)
	}
	flush(w)
	return nil
}

func flush(w io.Writer) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
