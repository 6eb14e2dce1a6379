// Package genome defines the versioned data model of an evolving agent.
//
// A lineage is one agent's evolutionary history, stored in a single partition.
// Inside the partition every entity is addressed by a sort key:
//
//	VERSION#<timestamp>                          immutable genome version
//	VERSION#<timestamp>#CHAT#<conversationId>    conversation served by that version
//	VERSION#<timestamp>#CHALLENGER#attempt-<n>   candidate mutation of that version
//	VERSION#<timestamp>#TICKET#<ticketId>        escalated failure awaiting review
//	CURRENT                                      pointer to the active version
//
// Timestamps use TimestampLayout so keys sort lexically in creation order.
//
// The package also owns the pieces of logic that every pipeline stage shares:
// the deterministic system prompt builder, the content hash used for
// version_hash, structural validation, and the lineage DAG that links
// challengers to their parents through parent_hash.
//
// # Errors
//
// Stage failures are classified with the sentinel errors in errors.go
// (ErrNotFound, ErrValidation, ErrThrottled, ErrGateway, ErrParse,
// ErrAuditUnavailable). Typed errors carry detail and match the sentinels
// through errors.Is.
package genome
