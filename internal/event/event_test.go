package event_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripcoord/ripcoord/internal/event"
)

func TestDispatchInvokesOnlyHandlersRegisteredForThatEvent(t *testing.T) {
	bus := event.New()

	var gotCreated, gotCompleted event.Payload
	bus.RegisterHandlerFunction(event.JobCreated, func(e event.Event, p event.Payload) { gotCreated = p })
	bus.RegisterHandlerFunction(event.JobCompleted, func(e event.Event, p event.Payload) { gotCompleted = p })

	id := uuid.New()
	bus.Dispatch(event.JobCreated, id)

	assert.Equal(t, id, gotCreated)
	assert.Nil(t, gotCompleted, "a handler registered for a different event must not fire")
}

func TestDispatchRejectsPayloadsThatArentAUUID(t *testing.T) {
	bus := event.New()

	var called bool
	bus.RegisterHandlerFunction(event.JobCreated, func(e event.Event, p event.Payload) { called = true })

	bus.Dispatch(event.JobCreated, "not-a-uuid")

	assert.False(t, called, "dispatch should drop payloads that fail validation before reaching handlers")
}

func TestDispatchFansOutToRegisteredChannelHandlers(t *testing.T) {
	bus := event.New()
	ch := make(event.HandlerChannel, 1)
	bus.RegisterHandlerChannel(ch, event.JobUpdated)

	id := uuid.New()
	bus.Dispatch(event.JobUpdated, id)

	select {
	case got := <-ch:
		assert.Equal(t, event.JobUpdated, got.Event)
		assert.Equal(t, id, got.Payload)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel handler to receive the dispatched event")
	}
}

func TestAsyncHandlerRunsWithoutBlockingDispatch(t *testing.T) {
	bus := event.New()
	done := make(chan struct{})
	bus.RegisterAsyncHandlerFunction(event.JobFailed, func(e event.Event, p event.Payload) {
		close(done)
	})

	bus.Dispatch(event.JobFailed, uuid.New())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("async handler never ran")
	}
}

func TestDispatchRejectsUnrecognizedEventNames(t *testing.T) {
	bus := event.New()
	var called bool
	bus.RegisterHandlerFunction(event.Event("not:a:real:event"), func(e event.Event, p event.Payload) { called = true })

	require.NotPanics(t, func() {
		bus.Dispatch(event.Event("not:a:real:event"), uuid.New())
	})
	assert.False(t, called)
}
