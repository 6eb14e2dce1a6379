// Package events carries the pipeline's named notifications.
//
// Three events drive an evolution cycle:
//
//   - ChatResponseGenerated (serving path): a conversation has a new reply
//     and may be evaluated.
//   - EvaluationFailed (critic): a conversation broke a rule; starts the
//     mutator.
//   - GenomePromoted (supervisor): CURRENT moved to a new version.
//
// Delivery is best-effort. Stages call Fire, which logs failures instead
// of returning them. Backends are a logger (default), an in-memory recorder
// for tests, and Redis pub/sub for an orchestrator in another process. Bus
// dispatches events to in-process handlers; the server subscribes the local
// runner to it when events.orchestrate is set.
package events
