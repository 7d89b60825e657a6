package chat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/diogo/polychat/internal/api"
	apierrors "github.com/diogo/polychat/internal/errors"
	"github.com/diogo/polychat/internal/models"
	"github.com/diogo/polychat/internal/reveal"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func sequentialIDs() func() string {
	var n int64
	return func() string {
		return fmt.Sprintf("id-%d", atomic.AddInt64(&n, 1))
	}
}

// syncBuffer is a log destination safe for concurrent turns
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) count(substr string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Count(b.buf.String(), substr)
}

func newTestController(sender api.Sender, view View, opts ...ControllerOption) *Controller {
	base := []ControllerOption{
		WithIDGenerator(sequentialIDs()),
		WithRenderer(reveal.NewRenderer(reveal.WithInterval(0))),
	}
	return NewController(sender, view, append(base, opts...)...)
}

func TestSubmit_EmptyInputIsIgnored(t *testing.T) {
	for _, raw := range []string{"", " ", "\t\n", "   \r\n  "} {
		t.Run(fmt.Sprintf("%q", raw), func(t *testing.T) {
			mock := &api.MockClient{Reply: "hi"}
			tr := NewTranscript()
			c := newTestController(mock, tr)
			defer c.Close()

			turn, ok := c.Submit(raw)
			c.Wait()

			assert.False(t, ok)
			assert.Equal(t, Turn{}, turn)
			assert.Equal(t, 0, tr.Len())
			assert.Empty(t, mock.Messages())
		})
	}
}

func TestSubmit_HelloScenario(t *testing.T) {
	mock := &api.MockClient{Reply: "🏫 School\nAddress: X"}
	tr := NewTranscript()
	c := newTestController(mock, tr)
	defer c.Close()

	turn, ok := c.Submit("  hello  ")
	require.True(t, ok)
	c.Wait()

	assert.Equal(t, []string{"hello"}, mock.Messages(), "exactly one request with the trimmed text")

	snap := tr.Snapshot()
	require.Len(t, snap, 2, "placeholder is gone, user message and reply remain")
	assert.Equal(t, turn.UserID, snap[0].ID)
	assert.Equal(t, "You: hello", snap[0].Text)
	assert.Equal(t, turn.ReplyID, snap[1].ID)
	assert.Equal(t, []models.Line{{Text: "🏫 School", Emphasis: true}, {Text: "Address: X"}}, snap[1].Lines)

	state, ok := c.Status(turn.ID)
	require.True(t, ok)
	assert.Equal(t, StateDone, state)
}

func TestSubmit_EmptyReplyRendersOneLine(t *testing.T) {
	mock := &api.MockClient{Reply: ""}
	tr := NewTranscript()
	c := newTestController(mock, tr)
	defer c.Close()

	turn, _ := c.Submit("hi")
	c.Wait()

	e, ok := tr.Get(turn.ReplyID)
	require.True(t, ok)
	assert.Equal(t, []models.Line{{Text: ""}}, e.Lines)
}

func TestSubmit_PlaceholderShownWhileAwaiting(t *testing.T) {
	release := make(chan struct{})
	mock := &api.MockClient{SendFunc: func(ctx context.Context, message string) (string, error) {
		<-release
		return "done", nil
	}}
	tr := NewTranscript()
	c := newTestController(mock, tr)
	defer c.Close()

	turn, ok := c.Submit("hello")
	require.True(t, ok)

	snap := tr.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, turn.PlaceholderID, snap[1].ID)
	assert.True(t, snap[1].Pending)
	assert.Equal(t, "Bot is typing...", snap[1].Text)

	state, _ := c.Status(turn.ID)
	assert.Equal(t, StateAwaitingReply, state)

	close(release)
	c.Wait()

	_, stillThere := tr.Get(turn.PlaceholderID)
	assert.False(t, stillThere)
}

func TestSubmit_NetworkFailure(t *testing.T) {
	netErr := apierrors.NewNetworkErrorWithEndpoint("send message", "http://127.0.0.1:5000/chatbot", errors.New("connection refused"))
	mock := &api.MockClient{Err: netErr}
	tr := NewTranscript()
	logs := &syncBuffer{}
	c := newTestController(mock, tr, WithLogger(zerolog.New(logs)))
	defer c.Close()

	turn, ok := c.Submit("hello")
	require.True(t, ok)
	c.Wait()

	assert.Equal(t, 1, logs.count(`"level":"error"`), "one diagnostic entry per failure")
	assert.Equal(t, 1, logs.count("error fetching response"))

	_, placeholder := tr.Get(turn.PlaceholderID)
	assert.False(t, placeholder, "placeholder is removed on failure")

	notice, ok := tr.Get(turn.ReplyID)
	require.True(t, ok)
	assert.True(t, notice.Failed)
	assert.Contains(t, notice.Text, "connection refused")

	state, _ := c.Status(turn.ID)
	assert.Equal(t, StateFailed, state)
	assert.Len(t, mock.Messages(), 1, "no retry")
}

func TestSubmit_MalformedReplyIsAFailure(t *testing.T) {
	mock := &api.MockClient{Err: apierrors.NewParseError("reply has no response field", "response")}
	tr := NewTranscript()
	c := newTestController(mock, tr)
	defer c.Close()

	turn, _ := c.Submit("hello")
	c.Wait()

	notice, ok := tr.Get(turn.ReplyID)
	require.True(t, ok)
	assert.True(t, notice.Failed)
}

func TestSubmit_ConcurrentTurnsStayIsolated(t *testing.T) {
	gates := map[string]chan struct{}{
		"first":  make(chan struct{}),
		"second": make(chan struct{}),
	}
	mock := &api.MockClient{SendFunc: func(ctx context.Context, message string) (string, error) {
		<-gates[message]
		return "reply to " + message + "\nline two", nil
	}}
	tr := NewTranscript()
	c := newTestController(mock, tr)
	defer c.Close()

	first, _ := c.Submit("first")
	second, _ := c.Submit("second")

	// replies arrive out of order
	close(gates["second"])
	require.Eventually(t, func() bool {
		s, _ := c.Status(second.ID)
		return s == StateDone
	}, time.Second, time.Millisecond)
	close(gates["first"])
	c.Wait()

	for _, tc := range []struct {
		turn Turn
		want string
	}{{first, "reply to first\nline two"}, {second, "reply to second\nline two"}} {
		e, ok := tr.Get(tc.turn.ReplyID)
		require.True(t, ok)
		assert.Equal(t, tc.want, e.Body())
		_, placeholder := tr.Get(tc.turn.PlaceholderID)
		assert.False(t, placeholder)
	}
	assert.Equal(t, 4, tr.Len())
}

func TestReset_StopsRunningReveal(t *testing.T) {
	ticks := make(chan time.Time)
	renderer := reveal.NewRenderer(reveal.WithAfter(func(time.Duration) <-chan time.Time { return ticks }))
	mock := &api.MockClient{Reply: "1\n2\n3"}
	tr := NewTranscript()
	c := newTestController(mock, tr, WithRenderer(renderer))
	defer c.Close()

	turn, _ := c.Submit("hello")
	require.Eventually(t, func() bool {
		e, ok := tr.Get(turn.ReplyID)
		return ok && len(e.Lines) == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, 1, c.Revealing())

	require.NoError(t, c.Reset())
	c.Wait()

	assert.Equal(t, 0, tr.Len())
	assert.Equal(t, 0, c.Revealing())
	state, _ := c.Status(turn.ID)
	assert.Equal(t, StateDiscarded, state)
}

func TestDiscard_StopsOneRevealOnly(t *testing.T) {
	ticks := make(chan time.Time)
	renderer := reveal.NewRenderer(reveal.WithAfter(func(time.Duration) <-chan time.Time { return ticks }))
	mock := &api.MockClient{Reply: "1\n2"}
	tr := NewTranscript()
	c := newTestController(mock, tr, WithRenderer(renderer))
	defer c.Close()

	a, _ := c.Submit("a")
	b, _ := c.Submit("b")
	require.Eventually(t, func() bool { return c.Revealing() == 2 }, time.Second, time.Millisecond)

	require.NoError(t, c.Discard(a.ReplyID))
	require.Eventually(t, func() bool {
		s, _ := c.Status(a.ID)
		return s == StateDiscarded
	}, time.Second, time.Millisecond)
	assert.Equal(t, 1, c.Revealing())

	ticks <- time.Now()
	c.Wait()

	_, ok := tr.Get(a.ReplyID)
	assert.False(t, ok)
	e, ok := tr.Get(b.ReplyID)
	require.True(t, ok)
	assert.Equal(t, "1\n2", e.Body())
}

func TestReset_WhileAwaitingDropsLateReply(t *testing.T) {
	release := make(chan struct{})
	mock := &api.MockClient{SendFunc: func(ctx context.Context, message string) (string, error) {
		<-release
		return "late", nil
	}}
	tr := NewTranscript()
	c := newTestController(mock, tr)
	defer c.Close()

	turn, _ := c.Submit("hello")
	require.NoError(t, c.Reset())
	close(release)
	c.Wait()

	assert.Equal(t, 0, tr.Len())
	state, _ := c.Status(turn.ID)
	assert.Equal(t, StateDiscarded, state)
}

// clearingView clears the conversation right after the placeholder is removed
type clearingView struct {
	*Transcript
	c *Controller
}

func (v *clearingView) Remove(id string) error {
	if err := v.Transcript.Remove(id); err != nil {
		return err
	}
	return v.c.Reset()
}

func TestReset_AfterPlaceholderRemovedDropsReply(t *testing.T) {
	for _, tc := range []struct {
		name string
		mock *api.MockClient
	}{
		{"reply", &api.MockClient{Reply: "late\nreply"}},
		{"failure", &api.MockClient{Err: errors.New("connection refused")}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			view := &clearingView{Transcript: NewTranscript()}
			c := newTestController(tc.mock, view)
			view.c = c
			defer c.Close()

			turn, ok := c.Submit("hello")
			require.True(t, ok)
			c.Wait()

			assert.Equal(t, 0, view.Len(), "nothing of a cleared turn may reach the view")
			state, _ := c.Status(turn.ID)
			assert.Equal(t, StateDiscarded, state)
		})
	}
}

func TestDiscard_PlaceholderCancelsRequest(t *testing.T) {
	mock := &api.MockClient{SendFunc: func(ctx context.Context, message string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	tr := NewTranscript()
	logs := &syncBuffer{}
	c := newTestController(mock, tr, WithLogger(zerolog.New(logs)))
	defer c.Close()

	turn, _ := c.Submit("hello")
	require.NoError(t, c.Discard(turn.PlaceholderID))
	c.Wait()

	assert.Equal(t, 1, tr.Len(), "only the user message remains")
	assert.Equal(t, 0, logs.count(`"level":"error"`))
	state, _ := c.Status(turn.ID)
	assert.Equal(t, StateDiscarded, state)
}

func TestReset_PrunesFinishedTurns(t *testing.T) {
	mock := &api.MockClient{Reply: "ok"}
	tr := NewTranscript()
	c := newTestController(mock, tr)
	defer c.Close()

	turn, _ := c.Submit("hello")
	c.Wait()
	_, ok := c.Status(turn.ID)
	require.True(t, ok)

	require.NoError(t, c.Reset())
	_, ok = c.Status(turn.ID)
	assert.False(t, ok)
}

func TestClose_CancelsInFlightRequest(t *testing.T) {
	mock := &api.MockClient{SendFunc: func(ctx context.Context, message string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	tr := NewTranscript()
	logs := &syncBuffer{}
	c := newTestController(mock, tr, WithLogger(zerolog.New(logs)))

	_, ok := c.Submit("hello")
	require.True(t, ok)
	c.Close()

	assert.Equal(t, 0, logs.count(`"level":"error"`), "shutting down is not a failure")
	_, ok = c.Submit("after close")
	assert.False(t, ok)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "awaiting_reply", StateAwaitingReply.String())
	assert.Equal(t, "revealing", StateRevealing.String())
	assert.Equal(t, "done", StateDone.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "discarded", StateDiscarded.String())
	assert.Equal(t, "unknown", State(99).String())
}
