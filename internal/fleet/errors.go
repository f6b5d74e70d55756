package fleet

import "errors"

// Error taxonomy for the roster core. Callers branch with errors.Is; each
// class has fixed retry semantics.
var (
	// ErrValidation marks malformed input (NaN fitness, negative damage,
	// unknown enum tags). Never retried; surfaced to the submitter.
	ErrValidation = errors.New("validation failed")

	// ErrContention marks a commit that could not complete within the flush
	// timeout. Safe to retry with backoff; updates are idempotent upserts.
	ErrContention = errors.New("commit lock contention")

	// ErrNotFound marks an operation against an entity missing from the
	// expected table, e.g. a performance update arriving after the graveyard
	// move. The specific update is logged and discarded.
	ErrNotFound = errors.New("entity not found")

	// ErrAlreadyDead marks a duplicate death trigger for an entity already
	// in the graveyard. Idempotent no-op, not a failure.
	ErrAlreadyDead = errors.New("entity already in graveyard")

	// ErrCommitFailed marks an I/O or constraint failure that rolled the
	// whole transaction back. Retryable; no partial writes are observable.
	ErrCommitFailed = errors.New("commit failed")

	// ErrNoParticipants marks a skirmish result with nobody in it.
	ErrNoParticipants = errors.New("skirmish has no participants")
)
