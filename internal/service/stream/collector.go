// Package stream forwards model output to a live client while recording the
// finished exchange exactly once.
package stream

import (
	"codegen-app/internal/logger"
	"codegen-app/internal/metrics"
	"codegen-app/internal/repository/db"
	"codegen-app/internal/service/chatmemory"
	"codegen-app/internal/service/llm"
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// EventKind distinguishes content from the two terminal markers
type EventKind int

const (
	EventData EventKind = iota
	EventDone
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventData:
		return "data"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one element delivered to the client. Exactly one EventDone or
// EventError ends every run.
type Event struct {
	Kind EventKind
	Data string
	Err  error
}

// State of a collector run
type State int32

const (
	StateIdle State = iota
	StateStreaming
	StateCompleted
	StateFailed
)

func (s State) String() string {
	return [...]string{"IDLE", "STREAMING", "COMPLETED", "FAILED"}[s]
}

// ErrAlreadyStarted is delivered when Run is called on a used collector
var ErrAlreadyStarted = errors.New("collector already started")

// TurnAppender stores conversation turns
type TurnAppender interface {
	Append(ctx context.Context, appID, ownerID, role, text string, opts ...chatmemory.AppendOption) (*db.ConversationTurn, error)
}

// CompleteFunc runs after a completed, non-empty response has been persisted
type CompleteFunc func(ctx context.Context, text string)

// Option configures a Collector
type Option func(*Collector)

// WithGenerationType labels metrics and logs with the application's generation type
func WithGenerationType(t string) Option {
	return func(c *Collector) { c.generationType = t }
}

// OnComplete registers a hook run after the assistant turn of a completed stream is stored
func OnComplete(fn CompleteFunc) Option {
	return func(c *Collector) { c.onComplete = fn }
}

// Collector drives one generation stream: STREAMING, then COMPLETED or FAILED
type Collector struct {
	store          TurnAppender
	appID          string
	ownerID        string
	generationType string
	onComplete     CompleteFunc

	state    atomic.Int32
	finished chan struct{}
}

// NewCollector creates a collector for one generation of one application
func NewCollector(store TurnAppender, appID, ownerID string, opts ...Option) *Collector {
	c := &Collector{
		store:    store,
		appID:    appID,
		ownerID:  ownerID,
		finished: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state
func (c *Collector) State() State {
	return State(c.state.Load())
}

// Finished is closed once persistence and the completion hook are done
func (c *Collector) Finished() <-chan struct{} {
	return c.finished
}

// Run consumes upstream and returns the client event channel. Cancelling ctx
// only stops forwarding; upstream is still consumed and the result still stored.
func (c *Collector) Run(ctx context.Context, upstream <-chan llm.StreamChunk) <-chan Event {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateStreaming)) {
		out := make(chan Event, 1)
		out <- Event{Kind: EventError, Err: ErrAlreadyStarted}
		close(out)
		return out
	}

	out := make(chan Event)
	go c.run(ctx, upstream, out)
	return out
}

func (c *Collector) run(ctx context.Context, upstream <-chan llm.StreamChunk, out chan<- Event) {
	defer close(c.finished)
	defer close(out)

	log := logger.Log.WithFields(logrus.Fields{"app_id": c.appID, "generation_type": c.generationType})
	persistCtx := context.WithoutCancel(ctx)

	var acc strings.Builder
	fragments := 0
	detached := false

	forward := func(ev Event) {
		if detached {
			return
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			detached = true
			log.WithField("fragments", fragments).Info("Client disconnected, continuing to collect stream")
		}
	}

	for chunk := range upstream {
		if chunk.Err != nil {
			c.state.Store(int32(StateFailed))
			go drain(upstream)

			partial := acc.String()
			log.WithFields(logrus.Fields{"fragments": fragments, "partial_length": len(partial)}).WithError(chunk.Err).Error("Generation stream failed")
			if partial != "" {
				if _, err := c.store.Append(persistCtx, c.appID, c.ownerID, db.TurnRoleAssistant, partial, chatmemory.Incomplete()); err != nil {
					log.WithError(err).Error("Failed to store partial response")
				}
			}

			c.countOutcome(metrics.StreamFailed, detached)
			forward(Event{Kind: EventError, Err: chunk.Err})
			return
		}

		if chunk.Content == "" {
			continue
		}
		fragments++
		forward(Event{Kind: EventData, Data: chunk.Content})
		acc.WriteString(chunk.Content)
	}

	c.state.Store(int32(StateCompleted))
	forward(Event{Kind: EventDone})
	c.countOutcome(metrics.StreamCompleted, detached)

	text := acc.String()
	if text == "" {
		log.Warn("Generation stream completed without content, nothing stored")
		return
	}

	if _, err := c.store.Append(persistCtx, c.appID, c.ownerID, db.TurnRoleAssistant, text); err != nil {
		log.WithError(err).Error("Failed to store response")
	} else {
		log.WithFields(logrus.Fields{"fragments": fragments, "response_length": len(text)}).Info("Stored generated response")
	}

	if c.onComplete != nil {
		c.onComplete(persistCtx, text)
	}
}

func (c *Collector) countOutcome(outcome string, detached bool) {
	metrics.StreamOutcome(c.generationType, outcome)
	if detached {
		metrics.StreamOutcome(c.generationType, metrics.StreamDetached)
	}
}

// drain discards whatever upstream still sends after a terminal state
func drain(upstream <-chan llm.StreamChunk) {
	for range upstream {
	}
}
