// Package event is the in-process notification bus connecting the queue
// and the agent/worker managers: each emits an
// event carrying the affected entity's id, and any silo interested (the
// websocket sink, the notification sink, a test assertion) registers a
// handler rather than being wired in directly.
package event

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"github.com/ripcoord/ripcoord/pkg/logger"
)

var log = logger.Get("Event")

type (
	Event         string
	Payload       any
	HandlerMethod func(Event, Payload)

	HandlerChannel chan HandlerEvent
	HandlerEvent   struct {
		Event   Event
		Payload Payload
	}

	Dispatcher interface {
		Dispatch(Event, Payload)
	}

	Handler interface {
		RegisterAsyncHandlerFunction(Event, HandlerMethod)
		RegisterHandlerFunction(Event, HandlerMethod)
		RegisterHandlerChannel(HandlerChannel, ...Event)
	}

	Bus interface {
		Dispatcher
		Handler
	}

	eventBus struct {
		fnHandlers   map[Event][]handlerMethod
		chanHandlers map[Event][]HandlerChannel
	}

	handlerMethod struct {
		handle HandlerMethod
		async  bool
	}
)

// Event names. Every payload below is a uuid.UUID identifying the affected
// entity; handlers re-fetch full state from the store rather than trusting
// a stale copy carried on the event.
const (
	JobCreated   Event = "job:created"
	JobUpdated   Event = "job:updated"
	JobCompleted Event = "job:completed"
	JobFailed    Event = "job:failed"
	JobCancelled Event = "job:cancelled"

	AgentOffline   Event = "agent:offline"
	WorkerOffline  Event = "worker:offline"
	WorkerFailover Event = "worker:failover"
)

var validEvents = map[Event]bool{
	JobCreated: true, JobUpdated: true, JobCompleted: true, JobFailed: true, JobCancelled: true,
	AgentOffline: true, WorkerOffline: true, WorkerFailover: true,
}

func New() Bus {
	return &eventBus{
		fnHandlers:   make(map[Event][]handlerMethod),
		chanHandlers: make(map[Event][]HandlerChannel),
	}
}

// RegisterHandlerChannel delivers every Dispatch for the given events on
// handle. Channels should be buffered: an unconsumed channel blocks the
// dispatching goroutine.
func (b *eventBus) RegisterHandlerChannel(handle HandlerChannel, events ...Event) {
	for _, e := range events {
		b.chanHandlers[e] = append(b.chanHandlers[e], handle)
	}
}

// RegisterHandlerFunction registers a synchronous handler; it must return
// quickly or it blocks every other caller of Dispatch.
func (b *eventBus) RegisterHandlerFunction(event Event, handle HandlerMethod) {
	b.register(event, handlerMethod{handle, false})
}

// RegisterAsyncHandlerFunction registers a handler invoked in its own
// goroutine per dispatch.
func (b *eventBus) RegisterAsyncHandlerFunction(event Event, handle HandlerMethod) {
	b.register(event, handlerMethod{handle, true})
}

func (b *eventBus) register(event Event, h handlerMethod) {
	b.fnHandlers[event] = append(b.fnHandlers[event], h)
}

// Dispatch fans a payload out to every registered handler for event. Blocks
// until every synchronous handler and every channel send completes.
func (b *eventBus) Dispatch(event Event, payload Payload) {
	if err := validatePayload(event, payload); err != nil {
		log.Emit(logger.ERROR, "dispatch for %v failed validation: %v\n", event, err)
		return
	}

	for _, h := range b.fnHandlers[event] {
		if h.async {
			go h.handle(event, payload)
		} else {
			h.handle(event, payload)
		}
	}

	if handles, ok := b.chanHandlers[event]; ok {
		he := HandlerEvent{event, payload}
		for _, ch := range handles {
			ch <- he
		}
	}
}

func validatePayload(event Event, payload Payload) error {
	if !validEvents[event] {
		return errors.New("event type not recognized for validation")
	}
	if _, ok := payload.(uuid.UUID); !ok {
		var typeName string
		if t := reflect.TypeOf(payload); t != nil {
			typeName = t.Name()
		} else {
			typeName = "nil"
		}
		return fmt.Errorf("illegal payload (type %s) for %s event, expected uuid.UUID", typeName, event)
	}
	return nil
}
