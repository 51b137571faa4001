// Package exchange drives one streamed request/response cycle per
// conversation: it builds the outbound prompt, accumulates fragments
// into transient render state and commits the result exactly once.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	chatmodel "github.com/mviana/docchat/backend/internal/model/chat"
	"github.com/mviana/docchat/backend/internal/model/document"
	chatservice "github.com/mviana/docchat/backend/internal/service/chat"
)

// Completer produces a streamed model response for a prompt built from
// prior history and the final user entry.
type Completer interface {
	Stream(ctx context.Context, history []chatmodel.Message, query string) (*schema.StreamReader[*schema.Message], error)
}

// State of one conversation's exchange cycle.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateCommitting
)

// EventType tags the events delivered to subscribers.
type EventType string

const (
	EventStart EventType = "start"
	EventDelta EventType = "delta"
	EventDone  EventType = "done"
	EventError EventType = "error"
)

// Event is one render-visible update of an in-flight exchange. Delta
// events carry the new fragment; the done event carries the full text.
type Event struct {
	Type           EventType `json:"event"`
	ConversationID string    `json:"conversationId"`
	Content        string    `json:"content,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// Status is the transient state of one conversation, keyed by id so
// switching conversations never shows another conversation's stream.
type Status struct {
	State        State
	Loading      bool
	StreamedText string
	LastError    string
}

// ErrExchangeInFlight rejects a second send while a conversation's
// previous exchange has not resolved.
var ErrExchangeInFlight = errors.New("an exchange is already in flight for this conversation")

// documentSeparator joins the input and the attached documents' contents
// in the outbound prompt.
const documentSeparator = "\n\n"

// flight is one conversation's in-flight exchange.
type flight struct {
	convID string
	state  State
	text   strings.Builder
	subs   map[chan Event]struct{}
}

// Controller serializes exchanges per conversation id and owns all
// transient stream state.
type Controller struct {
	mu            sync.Mutex
	completer     Completer
	conversations *chatservice.Service
	documents     *document.Store
	idleTimeout   time.Duration
	flights       map[string]*flight
	lastErr       map[string]string
}

// NewController wires the exchange controller. idleTimeout bounds the
// gap between fragments; a stalled upstream fails the exchange instead
// of pinning the conversation in Streaming forever.
func NewController(completer Completer, conversations *chatservice.Service, documents *document.Store, idleTimeout time.Duration) *Controller {
	if idleTimeout <= 0 {
		idleTimeout = time.Minute
	}
	return &Controller{
		completer:     completer,
		conversations: conversations,
		documents:     documents,
		idleTimeout:   idleTimeout,
		flights:       make(map[string]*flight),
		lastErr:       make(map[string]string),
	}
}

// Send starts one streamed exchange against the given conversation. The
// user message (input only, never the document context) is appended
// before the request goes out. The returned channel delivers
// start/delta/done/error events and closes when the exchange resolves;
// the exchange keeps running and commits even if every subscriber goes
// away or the active conversation changes.
func (c *Controller) Send(ctx context.Context, convID, input string) (<-chan Event, error) {
	if strings.TrimSpace(input) == "" {
		return nil, chatservice.ErrEmptyMessage
	}
	conv, ok := c.conversations.Get(convID)
	if !ok {
		return nil, chatservice.ErrConversationNotFound
	}

	c.mu.Lock()
	if _, busy := c.flights[convID]; busy {
		c.mu.Unlock()
		return nil, ErrExchangeInFlight
	}
	f := &flight{convID: convID, state: StateSending, subs: make(map[chan Event]struct{})}
	c.flights[convID] = f
	delete(c.lastErr, convID)
	ch := subscribeLocked(f)
	c.mu.Unlock()

	// Prompt history is the transcript before this turn; the final user
	// entry carries the document context and is never stored.
	history := conv.Messages
	query := c.buildQuery(input)

	if err := c.conversations.AppendUserMessage(convID, input); err != nil {
		c.fail(f, err)
		return nil, err
	}

	go c.run(context.WithoutCancel(ctx), f, history, query)
	return ch, nil
}

// buildQuery folds the live document set into the outbound user entry.
func (c *Controller) buildQuery(input string) string {
	docs := c.documents.List()
	if len(docs) == 0 {
		return input
	}
	parts := make([]string, 0, len(docs)+1)
	parts = append(parts, input)
	for _, doc := range docs {
		parts = append(parts, doc.Content)
	}
	return strings.Join(parts, documentSeparator)
}

func (c *Controller) run(ctx context.Context, f *flight, history []chatmodel.Message, query string) {
	c.emit(f, Event{Type: EventStart, ConversationID: f.convID})

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.completer.Stream(streamCtx, history, query)
	if err != nil {
		c.fail(f, fmt.Errorf("open stream: %w", err))
		return
	}
	defer stream.Close()

	c.setState(f, StateStreaming)

	watchdog := time.AfterFunc(c.idleTimeout, cancel)
	defer watchdog.Stop()

	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			c.fail(f, fmt.Errorf("receive fragment: %w", recvErr))
			return
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}
		watchdog.Reset(c.idleTimeout)
		c.append(f, chunk.Content)
	}

	c.setState(f, StateCommitting)

	// Document snapshot is taken at commit time: files added or removed
	// mid-stream show up on this conversation's record, while the prompt
	// already went out with the send-time set.
	snapshot := c.documents.List()
	full := f.text.String()
	if err := c.conversations.CommitAssistantMessage(f.convID, full, snapshot); err != nil {
		c.fail(f, fmt.Errorf("commit assistant message: %w", err))
		return
	}

	c.resolve(f, Event{Type: EventDone, ConversationID: f.convID, Content: full}, "")
}

// Subscribe attaches to a conversation's in-flight exchange, if any. The
// returned cancel func detaches early; the channel also closes when the
// exchange resolves.
func (c *Controller) Subscribe(convID string) (<-chan Event, func(), bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.flights[convID]
	if !ok {
		return nil, nil, false
	}
	ch := subscribeLocked(f)
	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, live := f.subs[ch]; live {
			delete(f.subs, ch)
			close(ch)
		}
	}
	return ch, cancel, true
}

// Status returns the transient render state for one conversation.
func (c *Controller) Status(convID string) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f, ok := c.flights[convID]; ok {
		return Status{State: f.state, Loading: true, StreamedText: f.text.String()}
	}
	return Status{State: StateIdle, LastError: c.lastErr[convID]}
}

func subscribeLocked(f *flight) chan Event {
	ch := make(chan Event, 64)
	f.subs[ch] = struct{}{}
	return ch
}

func (c *Controller) setState(f *flight, s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f.state = s
}

// append grows the transient streamed text by one fragment and fans the
// delta out to subscribers.
func (c *Controller) append(f *flight, fragment string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f.text.WriteString(fragment)
	emitLocked(f, Event{Type: EventDelta, ConversationID: f.convID, Content: fragment})
}

func (c *Controller) emit(f *flight, ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	emitLocked(f, ev)
}

func emitLocked(f *flight, ev Event) {
	for ch := range f.subs {
		select {
		case ch <- ev:
		default:
			// Slow subscriber: drop the update. The terminal state still
			// arrives through the channel close.
		}
	}
}

// resolve emits the final event, closes every subscriber channel and
// clears the transient state. The loading indicator and streamed text
// for this conversation are gone once it returns.
func (c *Controller) resolve(f *flight, final Event, errMsg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	emitLocked(f, final)
	for ch := range f.subs {
		close(ch)
	}
	f.subs = nil
	delete(c.flights, f.convID)
	if errMsg != "" {
		c.lastErr[f.convID] = errMsg
	}
}

// fail resolves an exchange without committing anything: the user's
// message stays in the transcript unanswered.
func (c *Controller) fail(f *flight, err error) {
	log.Printf("[exchange] conversation %s: %v", f.convID, err)
	c.resolve(f, Event{Type: EventError, ConversationID: f.convID, Error: err.Error()}, err.Error())
}
