package room

import "errors"

var (
	// ErrNilState indicates the engine was used before SetState wired a
	// backing store.
	ErrNilState = errors.New("room: state not configured")
	// ErrNilRegistry indicates no admin registry is wired.
	ErrNilRegistry = errors.New("room: registry not configured")
	// ErrNilCustodian indicates no custody vault is wired.
	ErrNilCustodian = errors.New("room: custodian not configured")
	// ErrNilDomain indicates the signing domain has not been configured.
	ErrNilDomain = errors.New("room: signing domain not configured")

	// ErrRoomNotFound indicates the room id was never created.
	ErrRoomNotFound = errors.New("room: not found")
	// ErrWrongStatus indicates the operation is illegal in the room's
	// current lifecycle status.
	ErrWrongStatus = errors.New("room: operation not allowed in current status")
	// ErrJoinDeadline indicates the join deadline has passed.
	ErrJoinDeadline = errors.New("room: join deadline passed")
	// ErrDeadlineNotReached indicates a refund was requested at or before
	// the join deadline.
	ErrDeadlineNotReached = errors.New("room: join deadline not reached")

	// ErrInvalidStake rejects a non-positive stake.
	ErrInvalidStake = errors.New("room: stake must be positive")
	// ErrDeadlineNotFuture rejects a join deadline at or before the current
	// time.
	ErrDeadlineNotFuture = errors.New("room: join deadline must be in the future")
	// ErrZeroAddress rejects the zero identity as a player.
	ErrZeroAddress = errors.New("room: zero address")
	// ErrSamePlayer rejects a room whose two player slots hold the same
	// identity.
	ErrSamePlayer = errors.New("room: players must be distinct")
	// ErrInvalidWinner indicates the declared winner is not one of the two
	// players.
	ErrInvalidWinner = errors.New("room: winner is not a player")

	// ErrNotParticipant indicates the caller is not one of the two players.
	ErrNotParticipant = errors.New("room: not a participant")
	// ErrAlreadyPaid indicates the caller's payment bit is already set.
	ErrAlreadyPaid = errors.New("room: participant already paid")
	// ErrNotPaid indicates resolution was requested before both players
	// deposited.
	ErrNotPaid = errors.New("room: both players must pay before resolution")
	// ErrNothingToRefund indicates the caller never deposited a stake.
	ErrNothingToRefund = errors.New("room: nothing to refund")
	// ErrAlreadyRefunded indicates the caller already took the refund path.
	ErrAlreadyRefunded = errors.New("room: participant already refunded")
	// ErrNonceConsumed indicates the settlement nonce was already used for
	// this room.
	ErrNonceConsumed = errors.New("room: nonce already consumed")

	// ErrBadSignature indicates the resolve signature does not recover to
	// the current operator identity.
	ErrBadSignature = errors.New("room: signature does not recover to operator")
)
