package reveal

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	apierrors "github.com/diogo/polychat/internal/errors"
	"github.com/diogo/polychat/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// timeline records sink appends and scheduler waits in the order they happen
type timeline struct {
	mu     sync.Mutex
	events []string
	lines  []models.Line
}

func (tl *timeline) AppendLine(line models.Line) error {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.lines = append(tl.lines, line)
	tl.events = append(tl.events, "line:"+line.Text)
	return nil
}

func (tl *timeline) after(d time.Duration) <-chan time.Time {
	tl.mu.Lock()
	tl.events = append(tl.events, fmt.Sprintf("wait:%s", d))
	tl.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (tl *timeline) snapshot() ([]string, []models.Line) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return append([]string(nil), tl.events...), append([]models.Line(nil), tl.lines...)
}

func TestRun_SchoolScenario(t *testing.T) {
	tl := &timeline{}
	r := NewRenderer(WithAfter(tl.after))

	require.NoError(t, r.Run(context.Background(), tl, "🏫 School\nAddress: X"))

	events, lines := tl.snapshot()
	assert.Equal(t, []string{"line:🏫 School", "wait:20ms", "line:Address: X"}, events)
	require.Len(t, lines, 2)
	assert.True(t, lines[0].Emphasis)
	assert.False(t, lines[1].Emphasis)
}

func TestRun_EmptyReplyRendersOneEmptyLine(t *testing.T) {
	tl := &timeline{}
	r := NewRenderer(WithAfter(tl.after))

	require.NoError(t, r.Run(context.Background(), tl, ""))

	events, lines := tl.snapshot()
	assert.Equal(t, []string{"line:"}, events)
	assert.Equal(t, []models.Line{{Text: ""}}, lines)
}

func TestRun_LinesInOrderWithOneIntervalBetween(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"single", "hello", 1},
		{"blank lines kept", "a\n\nb\n", 4},
		{"college block", "🏫 College Name: GPT\n📜 Courses Offered:\n   - Civil (60 seats)\n🏷 College Code: 001\n📍 Location: X, Y\n📧 Email: N/A\n📞 Phone: N/A\n🏢 Facilities Available:\n   - Library\n", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := &timeline{}
			r := NewRenderer(WithAfter(tl.after), WithInterval(35*time.Millisecond))

			require.NoError(t, r.Run(context.Background(), tl, tt.text))

			events, lines := tl.snapshot()
			require.Len(t, lines, tt.want)
			for i, line := range lines {
				assert.Equal(t, models.SplitLines(tt.text)[i], line.Text)
				assert.Equal(t, models.IsHeading(line.Text), line.Emphasis)
			}

			// line, wait, line, wait, ..., line: never a wait after the final line
			require.Len(t, events, 2*tt.want-1)
			for i, ev := range events {
				if i%2 == 1 {
					assert.Equal(t, "wait:35ms", ev)
				} else {
					assert.Equal(t, "line:"+lines[i/2].Text, ev)
				}
			}
		})
	}
}

func TestRun_ZeroIntervalNeverWaits(t *testing.T) {
	tl := &timeline{}
	r := NewRenderer(WithAfter(tl.after), WithInterval(0))

	require.NoError(t, r.Run(context.Background(), tl, "a\nb\nc"))

	events, _ := tl.snapshot()
	assert.Equal(t, []string{"line:a", "line:b", "line:c"}, events)
}

func TestRun_RealClockSpacing(t *testing.T) {
	var mu sync.Mutex
	var stamps []time.Time
	sink := SinkFunc(func(models.Line) error {
		mu.Lock()
		defer mu.Unlock()
		stamps = append(stamps, time.Now())
		return nil
	})

	r := NewRenderer(WithInterval(5 * time.Millisecond))
	require.NoError(t, r.Run(context.Background(), sink, "a\nb\nc"))

	require.Len(t, stamps, 3)
	for i := 1; i < len(stamps); i++ {
		assert.GreaterOrEqual(t, stamps[i].Sub(stamps[i-1]), 5*time.Millisecond)
	}
}

func TestReveal_DoesNotBlockCaller(t *testing.T) {
	release := make(chan time.Time)
	r := NewRenderer(WithAfter(func(time.Duration) <-chan time.Time { return release }))
	tl := &timeline{}

	job := r.Reveal(context.Background(), tl, "one\ntwo")
	assert.Equal(t, 2, job.Len())

	require.Eventually(t, func() bool { return job.Cursor() == 1 }, time.Second, time.Millisecond)
	select {
	case <-job.Done():
		t.Fatal("job finished before its second tick")
	default:
	}

	release <- time.Now()
	<-job.Done()
	assert.Equal(t, 2, job.Cursor())
	assert.NoError(t, job.Err())
}

func TestReveal_CancelStopsBeforeNextLine(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []string
	sink := SinkFunc(func(line models.Line) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, line.Text)
		if len(got) == 2 {
			cancel()
		}
		return nil
	})

	r := NewRenderer(WithInterval(time.Millisecond))
	job := r.Reveal(ctx, sink, "1\n2\n3\n4\n5")
	<-job.Done()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"1", "2"}, got)
	assert.Equal(t, 2, job.Cursor())
	assert.ErrorIs(t, job.Err(), context.Canceled)
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tl := &timeline{}
	err := NewRenderer(WithAfter(tl.after)).Run(ctx, tl, "a\nb")
	assert.ErrorIs(t, err, context.Canceled)

	_, lines := tl.snapshot()
	assert.Empty(t, lines)
}

func TestRun_DetachedSinkStops(t *testing.T) {
	calls := 0
	sink := SinkFunc(func(models.Line) error {
		calls++
		if calls == 2 {
			return fmt.Errorf("append line: %w", apierrors.ErrDetached)
		}
		return nil
	})

	err := NewRenderer(WithInterval(0)).Run(context.Background(), sink, "a\nb\nc\nd")
	assert.True(t, apierrors.IsDetached(err))
	assert.Equal(t, 2, calls)
}

func TestJob_CursorBounded(t *testing.T) {
	job := NewJob("a\nb", time.Millisecond)
	for i := 0; i < 5; i++ {
		job.next()
	}
	assert.Equal(t, 2, job.Cursor())
	assert.True(t, job.finished())
}

func TestNewRenderer_Defaults(t *testing.T) {
	r := NewRenderer()
	assert.Equal(t, 20*time.Millisecond, r.Interval())
}
