package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/asaidimu/go-events"
	"github.com/asaidimu/go-folio/core/schema"
	"github.com/google/uuid"
)

// EventType names an event emitted by RecordService.
type EventType string

const (
	TemplateCreateStart    EventType = "template:create:start"
	TemplateCreateSuccess  EventType = "template:create:success"
	TemplateCreateFailed   EventType = "template:create:failed"
	TemplateUpdateStart    EventType = "template:update:start"
	TemplateUpdateSuccess  EventType = "template:update:success"
	TemplateUpdateFailed   EventType = "template:update:failed"
	TemplateDeleteStart    EventType = "template:delete:start"
	TemplateDeleteSuccess  EventType = "template:delete:success"
	TemplateDeleteFailed   EventType = "template:delete:failed"
	RecordCreateStart      EventType = "record:create:start"
	RecordCreateSuccess    EventType = "record:create:success"
	RecordCreateFailed     EventType = "record:create:failed"
	RecordDeleteStart      EventType = "record:delete:start"
	RecordDeleteSuccess    EventType = "record:delete:success"
	RecordDeleteFailed     EventType = "record:delete:failed"
	ViewRenderStart        EventType = "view:render:start"
	ViewRenderSuccess      EventType = "view:render:success"
	ViewRenderFailed       EventType = "view:render:failed"
	SubscriptionRegister   EventType = "subscription:register"
	SubscriptionUnregister EventType = "subscription:unregister"
)

// Event describes one step of a service operation.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"` // Unix milliseconds.
	Operation string    `json:"operation"`
	// Template is the id of the template the operation acted on, if any.
	Template string         `json:"template,omitempty"`
	Input    any            `json:"input,omitempty"`
	Output   any            `json:"output,omitempty"`
	Error    *string        `json:"error,omitempty"`
	Issues   []schema.Issue `json:"issues,omitempty"`
	Duration *int64         `json:"duration,omitempty"` // Milliseconds.
}

// EventCallback handles an emitted event.
type EventCallback func(ctx context.Context, event Event) error

// SubscriptionOptions describes a callback to register for one event type.
type SubscriptionOptions struct {
	Event       EventType
	Label       string
	Description string
	Callback    EventCallback
}

// Subscription is a registered callback.
type Subscription struct {
	ID          string    `json:"id"`
	Event       EventType `json:"event"`
	Label       string    `json:"label,omitempty"`
	Description string    `json:"description,omitempty"`
	unsubscribe func()
}

// emitter owns the event bus and the set of live subscriptions.
type emitter struct {
	bus   *events.TypedEventBus[Event]
	mu    sync.RWMutex
	subs  map[string]*Subscription
	clock func() time.Time
}

func newEmitter(clock func() time.Time) (*emitter, error) {
	bus, err := events.NewTypedEventBus[Event](events.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("could not initialize event bus: %w", err)
	}
	return &emitter{bus: bus, subs: make(map[string]*Subscription), clock: clock}, nil
}

func (e *emitter) emit(event Event) {
	event.Timestamp = e.clock().UnixMilli()
	e.bus.Emit(string(event.Type), event)
}

// RegisterSubscription subscribes a callback and returns an id that
// UnregisterSubscription accepts.
func (e *emitter) RegisterSubscription(options SubscriptionOptions) string {
	e.mu.Lock()
	id := uuid.New().String()
	e.subs[id] = &Subscription{
		ID:          id,
		Event:       options.Event,
		Label:       options.Label,
		Description: options.Description,
		unsubscribe: e.bus.Subscribe(string(options.Event), options.Callback),
	}
	e.mu.Unlock()

	e.emit(Event{
		Type:      SubscriptionRegister,
		Operation: "register_subscription",
		Input:     map[string]any{"event": options.Event, "label": options.Label},
		Output:    map[string]any{"subscriptionId": id},
	})
	return id
}

// UnregisterSubscription removes a subscription. Unknown ids are ignored.
func (e *emitter) UnregisterSubscription(id string) {
	e.mu.Lock()
	sub, ok := e.subs[id]
	if ok {
		sub.unsubscribe()
		delete(e.subs, id)
	}
	e.mu.Unlock()

	if ok {
		e.emit(Event{
			Type:      SubscriptionUnregister,
			Operation: "unregister_subscription",
			Input:     map[string]any{"subscriptionId": id},
		})
	}
}

// Subscriptions lists the live subscriptions.
func (e *emitter) Subscriptions() []Subscription {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Subscription, 0, len(e.subs))
	for _, s := range e.subs {
		out = append(out, *s)
	}
	return out
}

// operation describes one emitting call.
type operation struct {
	name     string
	start    EventType
	success  EventType
	failed   EventType
	template string
	input    any
}

// around wraps fn with start, success and failure events.
func (e *emitter) around(op operation, fn func() (any, error)) (any, error) {
	started := e.clock()
	e.emit(Event{Type: op.start, Operation: op.name, Template: op.template, Input: op.input})

	result, err := fn()
	d := e.clock().Sub(started).Milliseconds()
	if err != nil {
		msg := err.Error()
		e.emit(Event{
			Type:      op.failed,
			Operation: op.name,
			Template:  op.template,
			Input:     op.input,
			Error:     &msg,
			Issues:    issuesOf(err),
			Duration:  &d,
		})
		return nil, err
	}

	e.emit(Event{
		Type:      op.success,
		Operation: op.name,
		Template:  op.template,
		Input:     op.input,
		Output:    result,
		Duration:  &d,
	})
	return result, nil
}

func issuesOf(err error) []schema.Issue {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Details
	}
	var terr *TemplateError
	if errors.As(err, &terr) {
		return terr.Issues
	}
	return nil
}
