package filterapi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// MessageType classifies messages emitted while a filter runs.
type MessageType uint8

// Message types.
const (
	MessageInfo MessageType = iota + 1
	MessageWarning
	MessageError
	MessageProgress
)

func (t MessageType) String() string {
	switch t {
	case MessageInfo:
		return "info"
	case MessageWarning:
		return "warning"
	case MessageError:
		return "error"
	case MessageProgress:
		return "progress"
	}
	return fmt.Sprintf("message(%d)", uint8(t))
}

// Message is one progress or status line.
type Message struct {
	Type MessageType
	Text string
	// Fraction is the completed share in [0, 1] for progress messages.
	Fraction float64
}

// MessageHandler receives messages. A nil handler drops them.
type MessageHandler func(Message)

// Send delivers m when h is set.
func (h MessageHandler) Send(m Message) {
	if h != nil {
		h(m)
	}
}

// Infof sends an info message.
func (h MessageHandler) Infof(format string, args ...any) {
	h.Send(Message{Type: MessageInfo, Text: fmt.Sprintf(format, args...)})
}

// Warnf sends a warning message.
func (h MessageHandler) Warnf(format string, args ...any) {
	h.Send(Message{Type: MessageWarning, Text: fmt.Sprintf(format, args...)})
}

// DefaultProgressInterval bounds how often a ProgressReporter emits.
const DefaultProgressInterval = time.Second

type progressIntervalKey struct{}

// WithProgressInterval returns a context carrying the progress interval the
// driver configured for filters.
func WithProgressInterval(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, progressIntervalKey{}, d)
}

// ProgressInterval returns the interval set by WithProgressInterval, or
// DefaultProgressInterval.
func ProgressInterval(ctx context.Context) time.Duration {
	if d, ok := ctx.Value(progressIntervalKey{}).(time.Duration); ok && d > 0 {
		return d
	}
	return DefaultProgressInterval
}

// ProgressReporter turns per-item counts into progress messages emitted at
// most once per interval. Add is safe for concurrent use by workers.
type ProgressReporter struct {
	handler  MessageHandler
	label    string
	total    int64
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	done     int64
	lastEmit time.Time
}

// NewProgressReporter returns a reporter for total items. A non-positive
// interval uses DefaultProgressInterval.
func NewProgressReporter(h MessageHandler, label string, total int64, interval time.Duration) *ProgressReporter {
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	return &ProgressReporter{handler: h, label: label, total: total, interval: interval, now: time.Now}
}

// Add records n more completed items and emits when the interval elapsed.
func (p *ProgressReporter) Add(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done += n
	now := p.now()
	if !p.lastEmit.IsZero() && now.Sub(p.lastEmit) < p.interval {
		return
	}
	p.lastEmit = now
	p.emit()
}

// Finish emits a final message regardless of the interval.
func (p *ProgressReporter) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastEmit = p.now()
	p.emit()
}

// Done returns the completed item count.
func (p *ProgressReporter) Done() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

func (p *ProgressReporter) emit() {
	var frac float64
	if p.total > 0 {
		frac = float64(p.done) / float64(p.total)
		if frac > 1 {
			frac = 1
		}
	}
	p.handler.Send(Message{
		Type:     MessageProgress,
		Fraction: frac,
		Text: fmt.Sprintf("%s: %s of %s (%d%%)", p.label,
			humanize.Comma(p.done), humanize.Comma(p.total), int(frac*100)),
	})
}
