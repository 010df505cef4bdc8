package pool

import "errors"

var (
	// ErrNilState indicates the engine was used before SetState wired a
	// backing store.
	ErrNilState = errors.New("pool: state not configured")
	// ErrNilRegistry indicates no admin registry is wired.
	ErrNilRegistry = errors.New("pool: registry not configured")
	// ErrNilCustodian indicates no custody vault is wired.
	ErrNilCustodian = errors.New("pool: custodian not configured")

	// ErrPoolNotFound indicates the pool id was never created.
	ErrPoolNotFound = errors.New("pool: not found")
	// ErrWrongStatus indicates the operation is illegal in the pool's
	// current lifecycle status.
	ErrWrongStatus = errors.New("pool: operation not allowed in current status")
	// ErrJoinDeadline indicates the join deadline has passed.
	ErrJoinDeadline = errors.New("pool: join deadline passed")

	// ErrInvalidStake rejects a non-positive per-participant stake.
	ErrInvalidStake = errors.New("pool: stake must be positive")
	// ErrInvalidTargetCount rejects a zero participant target.
	ErrInvalidTargetCount = errors.New("pool: target count must be positive")
	// ErrDeadlineNotFuture rejects a join deadline at or before the current
	// time.
	ErrDeadlineNotFuture = errors.New("pool: join deadline must be in the future")
	// ErrZeroAddress rejects the zero identity as a participant.
	ErrZeroAddress = errors.New("pool: zero address")
	// ErrInvalidValue rejects a non-positive settlement value.
	ErrInvalidValue = errors.New("pool: settlement value must be positive")

	// ErrAlreadyActive indicates the identity already holds an active seat.
	ErrAlreadyActive = errors.New("pool: participant already active")
	// ErrNotParticipant indicates the identity never joined this pool.
	ErrNotParticipant = errors.New("pool: not a participant")
	// ErrAlreadyExited indicates the participant was already settled out.
	ErrAlreadyExited = errors.New("pool: participant already exited")
	// ErrNotExited indicates a revival was requested for a participant who
	// still holds an active seat.
	ErrNotExited = errors.New("pool: participant has not exited")
	// ErrEventConsumed indicates the settlement event id was already used
	// for this pool.
	ErrEventConsumed = errors.New("pool: event id already consumed")
)
