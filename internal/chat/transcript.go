// Package chat implements the conversation controller and the message list it drives.
package chat

import (
	"fmt"
	"strings"
	"sync"

	apierrors "github.com/diogo/polychat/internal/errors"
	"github.com/diogo/polychat/internal/models"
)

// View is the message list a Controller writes to.
// Each turn only touches the entries it created.
type View interface {
	Append(msg models.Message) error
	Remove(id string) error
	AppendLine(id string, line models.Line) error
	Reset() error
}

// Entry is a message as currently displayed, with the lines revealed so far
type Entry struct {
	models.Message
	Lines []models.Line
}

// Body returns the visible text of the entry
func (e Entry) Body() string {
	if e.Origin == models.OriginBot && !e.Pending && !e.Failed {
		texts := make([]string, len(e.Lines))
		for i, line := range e.Lines {
			texts[i] = line.Text
		}
		return strings.Join(texts, "\n")
	}
	return e.Text
}

// Transcript is an in-memory, concurrency-safe View.
// Every change is signalled on Changes, coalesced while nobody listens.
type Transcript struct {
	mu      sync.RWMutex
	entries []*Entry
	index   map[string]*Entry
	changes chan struct{}
}

// NewTranscript creates an empty transcript
func NewTranscript() *Transcript {
	return &Transcript{
		index:   make(map[string]*Entry),
		changes: make(chan struct{}, 1),
	}
}

// Append adds msg at the end of the list
func (t *Transcript) Append(msg models.Message) error {
	t.mu.Lock()
	if _, exists := t.index[msg.ID]; exists {
		t.mu.Unlock()
		return fmt.Errorf("message %s already exists", msg.ID)
	}
	e := &Entry{Message: msg}
	t.entries = append(t.entries, e)
	t.index[msg.ID] = e
	t.mu.Unlock()

	t.notify()
	return nil
}

// Remove deletes the message with the given id
func (t *Transcript) Remove(id string) error {
	t.mu.Lock()
	e, ok := t.index[id]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("remove %s: %w", id, apierrors.ErrDetached)
	}
	delete(t.index, id)
	for i, candidate := range t.entries {
		if candidate == e {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			break
		}
	}
	t.mu.Unlock()

	t.notify()
	return nil
}

// AppendLine adds a revealed line to the message with the given id
func (t *Transcript) AppendLine(id string, line models.Line) error {
	t.mu.Lock()
	e, ok := t.index[id]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("append line to %s: %w", id, apierrors.ErrDetached)
	}
	e.Lines = append(e.Lines, line)
	t.mu.Unlock()

	t.notify()
	return nil
}

// Reset clears every message
func (t *Transcript) Reset() error {
	t.mu.Lock()
	t.entries = nil
	t.index = make(map[string]*Entry)
	t.mu.Unlock()

	t.notify()
	return nil
}

// Snapshot returns a copy of the list, safe to read while turns keep running
func (t *Transcript) Snapshot() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		out[i] = Entry{
			Message: e.Message,
			Lines:   append([]models.Line(nil), e.Lines...),
		}
	}
	return out
}

// Get returns a copy of one entry
func (t *Transcript) Get(id string) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.index[id]
	if !ok {
		return Entry{}, false
	}
	return Entry{Message: e.Message, Lines: append([]models.Line(nil), e.Lines...)}, true
}

// Len returns the number of messages
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// LastReply returns the text of the most recent bot reply, if any
func (t *Transcript) LastReply() (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for i := len(t.entries) - 1; i >= 0; i-- {
		e := t.entries[i]
		if e.Origin == models.OriginBot && !e.Pending && !e.Failed {
			return (Entry{Message: e.Message, Lines: e.Lines}).Body(), true
		}
	}
	return "", false
}

// Changes signals that the transcript changed since the last receive
func (t *Transcript) Changes() <-chan struct{} {
	return t.changes
}

func (t *Transcript) notify() {
	select {
	case t.changes <- struct{}{}:
	default:
	}
}

var _ View = (*Transcript)(nil)
