package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/diogo/polychat/internal/api"
	apierrors "github.com/diogo/polychat/internal/errors"
	"github.com/diogo/polychat/internal/models"
	"github.com/diogo/polychat/internal/reveal"
)

// State is where a turn is in its lifecycle
type State int

const (
	StateAwaitingReply State = iota
	StateRevealing
	StateDone
	StateFailed
	StateDiscarded
)

func (s State) String() string {
	switch s {
	case StateAwaitingReply:
		return "awaiting_reply"
	case StateRevealing:
		return "revealing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// Turn holds the identifiers one submission owns
type Turn struct {
	ID            string
	UserID        string
	PlaceholderID string
	ReplyID       string
}

// Controller turns submitted text into requests and renders the replies.
// Each submission runs as its own task; tasks never share view entries.
type Controller struct {
	sender   api.Sender
	view     View
	renderer *reveal.Renderer
	log      zerolog.Logger
	newID    func() string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu also orders view appends against Reset and Discard
	mu     sync.Mutex
	live   map[string]liveTurn
	states map[string]State
}

// liveTurn is a turn whose request or reveal is still running
type liveTurn struct {
	turn   Turn
	cancel context.CancelFunc
}

func (t liveTurn) owns(id string) bool {
	return id == t.turn.PlaceholderID || id == t.turn.ReplyID
}

// ControllerOption configures a Controller
type ControllerOption func(*Controller)

// WithRenderer sets the reveal renderer
func WithRenderer(r *reveal.Renderer) ControllerOption {
	return func(c *Controller) {
		c.renderer = r
	}
}

// WithLogger sets the diagnostic channel
func WithLogger(logger zerolog.Logger) ControllerOption {
	return func(c *Controller) {
		c.log = logger
	}
}

// WithIDGenerator replaces uuid.NewString for message identifiers
func WithIDGenerator(gen func() string) ControllerOption {
	return func(c *Controller) {
		c.newID = gen
	}
}

// NewController creates a Controller that sends through sender and writes to view
func NewController(sender api.Sender, view View, opts ...ControllerOption) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		sender: sender,
		view:   view,
		log:    zerolog.Nop(),
		newID:  uuid.NewString,
		ctx:    ctx,
		cancel: cancel,
		live:   make(map[string]liveTurn),
		states: make(map[string]State),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.renderer == nil {
		c.renderer = reveal.NewRenderer(reveal.WithLogger(c.log))
	}
	return c
}

// Submit trims raw and, unless nothing is left, shows it as a user message,
// shows a typing placeholder and sends it. It returns false for empty input,
// in which case nothing was shown or sent and the caller keeps its input.
func (c *Controller) Submit(raw string) (Turn, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Turn{}, false
	}
	if c.ctx.Err() != nil {
		c.log.Warn().Msg("submit after close ignored")
		return Turn{}, false
	}

	turn := Turn{
		ID:            c.newID(),
		UserID:        c.newID(),
		PlaceholderID: c.newID(),
		ReplyID:       c.newID(),
	}

	if err := c.view.Append(models.UserMessage(turn.UserID, text)); err != nil {
		c.log.Warn().Err(err).Str("turn", turn.ID).Msg("failed to show user message")
	}
	if err := c.view.Append(models.PlaceholderMessage(turn.PlaceholderID)); err != nil {
		c.log.Warn().Err(err).Str("turn", turn.ID).Msg("failed to show typing placeholder")
	}

	ctx, cancel := context.WithCancel(c.ctx)
	c.mu.Lock()
	c.live[turn.ID] = liveTurn{turn: turn, cancel: cancel}
	c.mu.Unlock()

	c.setState(turn.ID, StateAwaitingReply)
	c.wg.Add(1)
	go c.runTurn(ctx, turn, text)

	return turn, true
}

func (c *Controller) runTurn(ctx context.Context, turn Turn, text string) {
	defer c.wg.Done()
	defer c.release(turn.ID)
	log := c.log.With().Str("turn", turn.ID).Logger()

	outcome := api.Ask(ctx, c.sender, text)
	if ctx.Err() != nil {
		c.setState(turn.ID, StateDiscarded)
		return
	}

	if err := c.view.Remove(turn.PlaceholderID); err != nil {
		if apierrors.IsDetached(err) {
			log.Debug().Msg("turn discarded before reply arrived")
			c.setState(turn.ID, StateDiscarded)
			return
		}
		log.Warn().Err(err).Msg("failed to remove typing placeholder")
	}

	if !outcome.OK() {
		log.Error().
			Err(outcome.Reason).
			Int("status", apierrors.GetHTTPStatus(outcome.Reason)).
			Str("endpoint", apierrors.GetEndpoint(outcome.Reason)).
			Msg("error fetching response")
		failure := models.Message{
			ID:     turn.ReplyID,
			Origin: models.OriginBot,
			Text:   outcome.FailureText(),
			Failed: true,
		}
		shown, err := c.appendLive(ctx, failure)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("failed to show failure notice")
		case !shown:
			c.setState(turn.ID, StateDiscarded)
			return
		}
		c.setState(turn.ID, StateFailed)
		return
	}

	shown, err := c.appendLive(ctx, models.ReplyContainer(turn.ReplyID))
	if err != nil {
		log.Warn().Err(err).Msg("failed to create reply container")
		c.setState(turn.ID, StateFailed)
		return
	}
	if !shown {
		log.Debug().Msg("turn discarded before reply was shown")
		c.setState(turn.ID, StateDiscarded)
		return
	}

	c.setState(turn.ID, StateRevealing)
	sink := containerSink{view: c.view, id: turn.ReplyID}
	if err := c.renderer.Run(ctx, sink, outcome.Reply); err != nil {
		log.Debug().Err(err).Msg("reveal stopped early")
		c.setState(turn.ID, StateDiscarded)
		return
	}

	c.setState(turn.ID, StateDone)
}

// appendLive appends msg unless the turn owning ctx was torn down
func (c *Controller) appendLive(ctx context.Context, msg models.Message) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		return false, nil
	}
	return true, c.view.Append(msg)
}

// Discard tears down one message container. When the container belongs to a
// turn that is still waiting or revealing, that turn is stopped as well.
func (c *Controller) Discard(id string) error {
	c.mu.Lock()
	for turnID, t := range c.live {
		if t.owns(id) {
			t.cancel()
			delete(c.live, turnID)
			break
		}
	}
	c.mu.Unlock()

	return c.view.Remove(id)
}

// Reset stops every running turn and clears the view
func (c *Controller) Reset() error {
	c.mu.Lock()
	for _, t := range c.live {
		t.cancel()
	}
	c.live = make(map[string]liveTurn)
	for turnID, s := range c.states {
		if s != StateAwaitingReply && s != StateRevealing {
			delete(c.states, turnID)
		}
	}
	c.mu.Unlock()

	return c.view.Reset()
}

// Wait blocks until every submitted turn has finished
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close cancels in-flight requests and reveals and waits for their tasks
func (c *Controller) Close() {
	c.cancel()
	c.wg.Wait()
}

// Status returns the state of a turn
func (c *Controller) Status(turnID string) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.states[turnID]
	return s, ok
}

// Revealing returns how many replies are being revealed right now
func (c *Controller) Revealing() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for turnID := range c.live {
		if c.states[turnID] == StateRevealing {
			n++
		}
	}
	return n
}

func (c *Controller) setState(turnID string, s State) {
	c.mu.Lock()
	c.states[turnID] = s
	c.mu.Unlock()
	c.log.Debug().Str("turn", turnID).Stringer("state", s).Msg("turn state")
}

func (c *Controller) release(turnID string) {
	c.mu.Lock()
	t, ok := c.live[turnID]
	delete(c.live, turnID)
	c.mu.Unlock()
	if ok {
		t.cancel()
	}
}

// containerSink reveals into one message of a View
type containerSink struct {
	view View
	id   string
}

func (s containerSink) AppendLine(line models.Line) error {
	return s.view.AppendLine(s.id, line)
}
