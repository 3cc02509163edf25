// Package domain contains the core domain entities and value objects for ylog.
//
// This package represents the innermost layer of the Clean Architecture. It has
// no dependencies on infrastructure concerns (WebSocket, file system, logging)
// and contains only pure business logic.
//
// # Entities
//
//   - [Contact]: An immutable, validated contest contact (QSO)
//   - [Submission]: A contact accepted by the relay hub with its sequence id
//   - [Batch]: Submissions persisted together as one logsheet bracket
//   - [State]: Persistent relay state (last sequence id) for restarts
//   - [ConnState]: Per-connection state machine (Connecting, Open, Closing, Closed)
//
// # Design Principles
//
// Domain entities are:
//   - Immutable after construction (where practical)
//   - Free of infrastructure dependencies
//   - Focused on business rules and invariants
//   - Testable without mocks or external systems
package domain
