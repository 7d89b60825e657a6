// Package reveal renders a reply line by line on a fixed cadence,
// the way a person typing it out would.
package reveal

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apierrors "github.com/diogo/polychat/internal/errors"
	"github.com/diogo/polychat/internal/models"
)

// Sink receives revealed lines, usually a bot message container
type Sink interface {
	AppendLine(line models.Line) error
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(line models.Line) error

// AppendLine calls f(line)
func (f SinkFunc) AppendLine(line models.Line) error {
	return f(line)
}

// Job is one reply being revealed. The cursor only moves forward and
// never passes the line count.
type Job struct {
	lines    []string
	interval time.Duration
	done     chan struct{}

	mu     sync.Mutex
	cursor int
	err    error
}

// NewJob splits text into lines and prepares a job for it
func NewJob(text string, interval time.Duration) *Job {
	return &Job{
		lines:    models.SplitLines(text),
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Len returns the number of lines the job reveals
func (j *Job) Len() int {
	return len(j.lines)
}

// Cursor returns how many lines have been emitted so far
func (j *Job) Cursor() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cursor
}

// Done is closed once the job has emitted its last line or stopped
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Err returns why the job stopped early, or nil when it completed.
// Only meaningful after Done is closed.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *Job) next() (models.Line, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cursor >= len(j.lines) {
		return models.Line{}, false
	}
	line := models.NewLine(j.lines[j.cursor])
	j.cursor++
	return line, true
}

func (j *Job) finished() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cursor >= len(j.lines)
}

func (j *Job) stop(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.err = err
}

// Renderer schedules reveal jobs
type Renderer struct {
	interval time.Duration
	after    func(time.Duration) <-chan time.Time
	log      zerolog.Logger
}

// Option configures a Renderer
type Option func(*Renderer)

// WithInterval sets the delay between two lines. Zero or less reveals everything at once.
func WithInterval(interval time.Duration) Option {
	return func(r *Renderer) {
		r.interval = interval
	}
}

// WithAfter replaces time.After as the tick source
func WithAfter(after func(time.Duration) <-chan time.Time) Option {
	return func(r *Renderer) {
		r.after = after
	}
}

// WithLogger sets the diagnostic logger
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Renderer) {
		r.log = logger
	}
}

// NewRenderer creates a Renderer with a 20ms cadence unless configured otherwise
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		interval: models.DefaultRevealInterval,
		after:    time.After,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Interval returns the delay between two lines
func (r *Renderer) Interval() time.Duration {
	return r.interval
}

// Reveal starts revealing text into sink and returns immediately.
// Cancelling ctx stops the job before its next line.
func (r *Renderer) Reveal(ctx context.Context, sink Sink, text string) *Job {
	job := NewJob(text, r.interval)
	go func() {
		_ = r.run(ctx, sink, job)
	}()
	return job
}

// Run reveals text into sink and returns when the last line is out,
// ctx is cancelled, or the sink is detached.
func (r *Renderer) Run(ctx context.Context, sink Sink, text string) error {
	return r.run(ctx, sink, NewJob(text, r.interval))
}

func (r *Renderer) run(ctx context.Context, sink Sink, job *Job) error {
	defer close(job.done)

	for {
		if err := ctx.Err(); err != nil {
			job.stop(err)
			r.log.Debug().Int("cursor", job.Cursor()).Int("lines", job.Len()).Msg("reveal cancelled")
			return err
		}

		line, ok := job.next()
		if !ok {
			return nil
		}

		if err := sink.AppendLine(line); err != nil {
			job.stop(err)
			if apierrors.IsDetached(err) {
				r.log.Debug().Int("cursor", job.Cursor()).Msg("reveal target detached")
			} else {
				r.log.Warn().Err(err).Msg("reveal sink failed")
			}
			return err
		}

		if job.finished() || job.interval <= 0 {
			continue
		}

		select {
		case <-ctx.Done():
		case <-r.after(job.interval):
		}
	}
}
