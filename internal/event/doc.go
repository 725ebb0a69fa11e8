// Package event provides a pub-sub event bus for decoupled inter-component
// communication in Parley.
//
// This package enables loose coupling between the registry, orchestrator,
// and CLI by allowing them to communicate through events rather than direct
// method calls. Components can publish events without knowing who will
// receive them, and subscribe to events without knowing who will produce
// them.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// The package defines several categories of events:
//
// Session Lifecycle:
//   - [SessionCreatedEvent]: Emitted when the registry creates a session actor
//   - [SessionEvictedEvent]: Emitted when a session is removed from the registry
//   - [SessionCrashedEvent]: Emitted when an engine subprocess dies unexpectedly
//
// Maintenance:
//   - [SweepCompletedEvent]: Emitted after each idle sweep pass
//
// Conversation:
//   - [TurnCompletedEvent]: Emitted when a query turn finishes
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Multiple goroutines can publish
// and subscribe concurrently. Handlers are called synchronously and protected
// against panics - a panicking handler will not prevent other handlers from
// being called.
//
// # Basic Usage
//
//	bus := event.NewBus()
//
//	// Subscribe to specific event types
//	bus.Subscribe("session.crashed", func(e event.Event) {
//	    crashed := e.(event.SessionCrashedEvent)
//	    log.Printf("Session %s crashed", crashed.SessionID)
//	})
//
//	// Subscribe to all events (useful for logging)
//	bus.SubscribeAll(func(e event.Event) {
//	    log.Printf("Event: %s at %v", e.EventType(), e.Timestamp())
//	})
//
//	// Publish events
//	bus.Publish(event.NewSessionCreatedEvent("sess-1", "exec-1", false))
//
//	// Unsubscribe when done
//	id := bus.Subscribe("turn.completed", handler)
//	bus.Unsubscribe(id)
//
// # Event Type Naming Convention
//
// Event types follow the pattern "category.action":
//   - session.created, session.evicted, session.crashed
//   - sweep.completed
//   - turn.completed
package event
