package core

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/BenjDW/maitre-slither/core/events"
	mslstate "github.com/BenjDW/maitre-slither/core/state"
	"github.com/BenjDW/maitre-slither/native/common"
	"github.com/BenjDW/maitre-slither/native/fees"
	"github.com/BenjDW/maitre-slither/native/pool"
	"github.com/BenjDW/maitre-slither/native/registry"
	"github.com/BenjDW/maitre-slither/native/room"
	"github.com/BenjDW/maitre-slither/native/token"
	"github.com/BenjDW/maitre-slither/observability"
	"github.com/BenjDW/maitre-slither/observability/metrics"
	"github.com/BenjDW/maitre-slither/storage"
)

// GenesisAccount seeds one settlement token balance on first start.
type GenesisAccount struct {
	Account [20]byte
	Balance *big.Int
}

// Genesis carries the admin identities and balances applied to a fresh
// database. It is ignored once the registry has been bootstrapped, so a
// restarted node keeps whatever identities later rotations persisted.
type Genesis struct {
	Owner      [20]byte
	Operator   [20]byte
	Treasury   [20]byte
	FeeRateBps uint32
	Alloc      []GenesisAccount
}

// NodeConfig bundles the immutable runtime settings of a settlement node.
type NodeConfig struct {
	// ChainID scopes room settlement signatures to one network.
	ChainID uint64
	// Genesis is applied when the underlying database has never been
	// bootstrapped.
	Genesis Genesis
	// EventBacklog caps how many committed events are retained for
	// subscriber replay. Non-positive values select the default.
	EventBacklog int
	// AllowMigrate permits opening databases stamped with an older state
	// schema version.
	AllowMigrate bool
}

// Node owns the settlement state and serializes every operation against it.
// Each call opens a fresh state manager over the database, runs the relevant
// engine and either commits the buffered writes or discards them, so a failed
// operation leaves no partial state behind.
type Node struct {
	db          storage.Database
	chainID     uint64
	broadcaster *events.Broadcaster
	now         func() int64

	stateMu sync.Mutex
}

// NewNode opens the settlement state over db and bootstraps the registry and
// genesis balances if the database is fresh.
func NewNode(db storage.Database, cfg NodeConfig) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("core: storage database is required")
	}
	if cfg.ChainID == 0 {
		return nil, fmt.Errorf("core: chain id must not be zero")
	}
	if err := mslstate.EnsureStateVersion(db, cfg.AllowMigrate); err != nil {
		return nil, err
	}
	node := &Node{
		db:          db,
		chainID:     cfg.ChainID,
		broadcaster: events.NewBroadcaster(cfg.EventBacklog),
		now:         func() int64 { return time.Now().Unix() },
	}
	if err := node.bootstrap(cfg.Genesis); err != nil {
		return nil, err
	}
	return node, nil
}

// ChainID returns the configured chain identifier.
func (n *Node) ChainID() uint64 {
	return n.chainID
}

// SetNowFunc overrides the clock used for deadline checks. Passing nil
// restores the wall clock.
func (n *Node) SetNowFunc(now func() int64) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	n.now = now
}

// SubscribeEvents registers an event subscriber. Backlog entries with
// sequence numbers above cursor are returned for replay; later commits are
// delivered on the channel until cancel is called.
func (n *Node) SubscribeEvents(cursor uint64) (<-chan events.Entry, func(), []events.Entry) {
	return n.broadcaster.Subscribe(cursor)
}

// EventsSequence returns the sequence number of the most recently committed
// event.
func (n *Node) EventsSequence() uint64 {
	return n.broadcaster.Sequence()
}

// engines bundles one operation's view of every settlement module, all backed
// by the same state manager.
type engines struct {
	manager  *mslstate.Manager
	registry *registry.Registry
	ledger   *token.Ledger
	vault    *token.Vault
	pools    *pool.Engine
	rooms    *room.Engine
	fees     *fees.Engine
}

func (n *Node) newEngines(manager *mslstate.Manager, emitter events.Emitter) *engines {
	reg := registry.NewRegistry()
	reg.SetState(manager)
	reg.SetEmitter(emitter)

	ledger := token.NewLedger()
	ledger.SetState(manager)
	ledger.SetEmitter(emitter)
	vault := token.NewVault(ledger)

	pools := pool.NewEngine()
	pools.SetState(manager)
	pools.SetRegistry(reg)
	pools.SetCustodian(vault)
	pools.SetEmitter(emitter)
	pools.SetNowFunc(n.now)

	rooms := room.NewEngine()
	rooms.SetState(manager)
	rooms.SetRegistry(reg)
	rooms.SetCustodian(vault)
	rooms.SetDomain(room.SettlementDomain(n.chainID, vault.Address()))
	rooms.SetEmitter(emitter)
	rooms.SetNowFunc(n.now)

	feeEngine := fees.NewEngine()
	feeEngine.SetState(manager)
	feeEngine.SetRegistry(reg)
	feeEngine.SetCustodian(vault)
	feeEngine.SetEmitter(emitter)

	return &engines{
		manager:  manager,
		registry: reg,
		ledger:   ledger,
		vault:    vault,
		pools:    pools,
		rooms:    rooms,
		fees:     feeEngine,
	}
}

// eventBuffer collects engine events during an operation so they only reach
// subscribers once the state they describe has been committed.
type eventBuffer struct {
	pending []events.Event
}

func (b *eventBuffer) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	b.pending = append(b.pending, evt)
}

// apply runs fn against a fresh state manager and commits the buffered writes
// when it succeeds. On error the buffer is discarded along with any events fn
// emitted.
func (n *Node) apply(fn func(env *engines) error) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := mslstate.NewManager(n.db)
	buffer := &eventBuffer{}
	if err := fn(n.newEngines(manager, buffer)); err != nil {
		return err
	}
	if err := manager.Commit(); err != nil {
		return err
	}
	for _, evt := range buffer.pending {
		n.broadcaster.Emit(evt)
		observability.Events().RecordEvent(evt.EventType())
	}
	return nil
}

// view runs fn against a fresh state manager without committing anything.
func (n *Node) view(fn func(env *engines) error) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := mslstate.NewManager(n.db)
	return fn(n.newEngines(manager, events.NoopEmitter{}))
}

// bootstrap provisions the registry and genesis balances exactly once per
// database. A registry that already has an admin record wins over the
// supplied genesis.
func (n *Node) bootstrap(genesis Genesis) error {
	return n.apply(func(env *engines) error {
		_, err := env.registry.Admin()
		switch {
		case err == nil:
			return nil
		case errors.Is(err, registry.ErrNotBootstrapped):
		default:
			return err
		}
		if err := env.registry.Bootstrap(genesis.Owner, genesis.Operator, genesis.Treasury, genesis.FeeRateBps); err != nil {
			return err
		}
		for _, account := range genesis.Alloc {
			if account.Balance == nil || account.Balance.Sign() == 0 {
				continue
			}
			if err := env.ledger.Mint(account.Account, account.Balance); err != nil {
				return err
			}
		}
		return nil
	})
}

// snapshotFunds refreshes the fee and vault gauges from the operation's own
// state view. Runs as the last step of fund-moving operations so the gauges
// track committed values.
func (env *engines) snapshotFunds() error {
	accrued, err := env.fees.Accrued()
	if err != nil {
		return err
	}
	balance, err := env.vault.Balance()
	if err != nil {
		return err
	}
	metrics.Settlement().SetFeesAccrued(accrued)
	metrics.Settlement().SetVaultBalance(balance)
	return nil
}

// PoolCreate opens a new survival pool. Only the operator may create pools.
func (n *Node) PoolCreate(caller [20]byte, stake *big.Int, targetCount uint32, joinDeadline int64) (uint64, error) {
	var id uint64
	err := n.apply(func(env *engines) error {
		var err error
		id, err = env.pools.Create(caller, stake, targetCount, joinDeadline)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// PoolJoin stakes the caller into an open pool.
func (n *Node) PoolJoin(poolID uint64, caller [20]byte) error {
	return n.apply(func(env *engines) error {
		if err := env.pools.Join(poolID, caller); err != nil {
			return err
		}
		return env.snapshotFunds()
	})
}

// PoolStart locks the pool, snapshotting the fee rate and reserving the
// protocol fee from the deposited stakes.
func (n *Node) PoolStart(poolID uint64, caller [20]byte) error {
	return n.apply(func(env *engines) error {
		return env.pools.Start(poolID, caller)
	})
}

// PoolSettleDeath pays an eliminated participant half of the declared value
// and returns the payout.
func (n *Node) PoolSettleDeath(poolID uint64, caller, participant [20]byte, value *big.Int, eventID uint64) (*big.Int, error) {
	payout, err := n.settlePool(poolID, caller, participant, value, eventID, pool.OutcomeDeath)
	if err != nil {
		return nil, err
	}
	metrics.Settlement().ObserveSettlement("pool", pool.OutcomeDeath)
	return payout, nil
}

// PoolSettleAlive pays a surviving participant the declared value in full and
// returns the payout.
func (n *Node) PoolSettleAlive(poolID uint64, caller, participant [20]byte, value *big.Int, eventID uint64) (*big.Int, error) {
	payout, err := n.settlePool(poolID, caller, participant, value, eventID, pool.OutcomeAlive)
	if err != nil {
		return nil, err
	}
	metrics.Settlement().ObserveSettlement("pool", pool.OutcomeAlive)
	return payout, nil
}

func (n *Node) settlePool(poolID uint64, caller, participant [20]byte, value *big.Int, eventID uint64, outcome string) (*big.Int, error) {
	var payout *big.Int
	err := n.apply(func(env *engines) error {
		var err error
		switch outcome {
		case pool.OutcomeDeath:
			payout, err = env.pools.SettleDeath(poolID, caller, participant, value, eventID)
		case pool.OutcomeAlive:
			payout, err = env.pools.SettleAlive(poolID, caller, participant, value, eventID)
		default:
			err = fmt.Errorf("core: unknown settlement outcome %q", outcome)
		}
		if err != nil {
			return err
		}
		return env.snapshotFunds()
	})
	if err != nil {
		return nil, err
	}
	return payout, nil
}

// PoolRevive returns an exited participant to active play without moving
// funds.
func (n *Node) PoolRevive(poolID uint64, participant [20]byte) error {
	return n.apply(func(env *engines) error {
		return env.pools.Revive(poolID, participant)
	})
}

// PoolEnd closes a live pool and accrues its reserved fee to the protocol.
func (n *Node) PoolEnd(poolID uint64, caller [20]byte) error {
	return n.apply(func(env *engines) error {
		if err := env.pools.End(poolID, caller); err != nil {
			return err
		}
		return env.snapshotFunds()
	})
}

// PoolGet returns the pool record.
func (n *Node) PoolGet(poolID uint64) (*pool.Pool, error) {
	var record *pool.Pool
	err := n.view(func(env *engines) error {
		var err error
		record, err = env.pools.Get(poolID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// PoolParticipant returns the participant record for addr within a pool.
func (n *Node) PoolParticipant(poolID uint64, addr [20]byte) (*pool.Participant, error) {
	var record *pool.Participant
	err := n.view(func(env *engines) error {
		var err error
		record, err = env.pools.Participant(poolID, addr)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// PoolAvailable returns the funds still spendable on settlements for a pool.
func (n *Node) PoolAvailable(poolID uint64) (*big.Int, error) {
	var available *big.Int
	err := n.view(func(env *engines) error {
		var err error
		available, err = env.pools.Available(poolID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return available, nil
}

// RoomCreate opens a paired room for two named players. Only the operator may
// create rooms.
func (n *Node) RoomCreate(caller, playerA, playerB [20]byte, stake *big.Int, joinDeadline int64) (uint64, error) {
	var id uint64
	err := n.apply(func(env *engines) error {
		var err error
		id, err = env.rooms.Create(caller, playerA, playerB, stake, joinDeadline)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// RoomJoin stakes one of the named players into the room.
func (n *Node) RoomJoin(roomID uint64, caller [20]byte) error {
	return n.apply(func(env *engines) error {
		if err := env.rooms.Join(roomID, caller); err != nil {
			return err
		}
		return env.snapshotFunds()
	})
}

// RoomStart locks a fully paid room for play.
func (n *Node) RoomStart(roomID uint64) error {
	return n.apply(func(env *engines) error {
		return env.rooms.Start(roomID)
	})
}

// RoomResolve executes an operator-signed settlement and returns the winner
// payout.
func (n *Node) RoomResolve(params room.ResolveParams, sig []byte) (*big.Int, error) {
	var payout *big.Int
	err := n.apply(func(env *engines) error {
		var err error
		payout, err = env.rooms.Resolve(params, sig)
		if err != nil {
			return err
		}
		return env.snapshotFunds()
	})
	if err != nil {
		return nil, err
	}
	metrics.Settlement().ObserveSettlement("room", "resolved")
	return payout, nil
}

// RoomRefund returns the caller's stake from a room whose join deadline
// passed without a start.
func (n *Node) RoomRefund(roomID uint64, caller [20]byte) error {
	err := n.apply(func(env *engines) error {
		if err := env.rooms.Refund(roomID, caller); err != nil {
			return err
		}
		return env.snapshotFunds()
	})
	if err != nil {
		return err
	}
	metrics.Settlement().IncRefund()
	return nil
}

// RoomGet returns the room record.
func (n *Node) RoomGet(roomID uint64) (*room.Room, error) {
	var record *room.Room
	err := n.view(func(env *engines) error {
		var err error
		record, err = env.rooms.Get(roomID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// RoomVerifyResolve checks a settlement signature without consuming the nonce
// or moving funds.
func (n *Node) RoomVerifyResolve(params room.ResolveParams, sig []byte) (*room.VerificationResult, error) {
	var result *room.VerificationResult
	err := n.view(func(env *engines) error {
		var err error
		result, err = env.rooms.VerifyResolve(params, sig)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FeesAccrued returns the protocol fees collected and not yet withdrawn.
func (n *Node) FeesAccrued() (*big.Int, error) {
	var accrued *big.Int
	err := n.view(func(env *engines) error {
		var err error
		accrued, err = env.fees.Accrued()
		return err
	})
	if err != nil {
		return nil, err
	}
	return accrued, nil
}

// FeesWithdraw moves accrued fees from the vault to the treasury. Only the
// owner may withdraw.
func (n *Node) FeesWithdraw(caller [20]byte, amount *big.Int) error {
	err := n.apply(func(env *engines) error {
		if err := env.fees.Withdraw(caller, amount); err != nil {
			return err
		}
		return env.snapshotFunds()
	})
	if err != nil {
		return err
	}
	metrics.Settlement().IncFeeWithdrawal()
	return nil
}

// AdminInfo returns the current registry identities and fee rate.
func (n *Node) AdminInfo() (registry.Admin, error) {
	var admin registry.Admin
	err := n.view(func(env *engines) error {
		var err error
		admin, err = env.registry.Admin()
		return err
	})
	return admin, err
}

// AdminSetOwner rotates the owner identity. Only the current owner may call.
func (n *Node) AdminSetOwner(caller, next [20]byte) error {
	return n.apply(func(env *engines) error {
		return env.registry.SetOwner(caller, next)
	})
}

// AdminSetOperator rotates the operator identity. Only the owner may call.
func (n *Node) AdminSetOperator(caller, next [20]byte) error {
	return n.apply(func(env *engines) error {
		return env.registry.SetOperator(caller, next)
	})
}

// AdminSetTreasury rotates the treasury identity. Only the owner may call.
func (n *Node) AdminSetTreasury(caller, next [20]byte) error {
	return n.apply(func(env *engines) error {
		return env.registry.SetTreasury(caller, next)
	})
}

// AdminSetFeeRate changes the fee rate applied to future starts and
// resolutions. Only the owner may call.
func (n *Node) AdminSetFeeRate(caller [20]byte, bps uint32) error {
	return n.apply(func(env *engines) error {
		return env.registry.SetFeeRate(caller, bps)
	})
}

// TokenMint credits newly issued settlement tokens to an account. Only the
// owner may mint.
func (n *Node) TokenMint(caller, to [20]byte, amount *big.Int) error {
	return n.apply(func(env *engines) error {
		if err := env.registry.Authorize(caller, common.RoleOwner); err != nil {
			return err
		}
		return env.ledger.Mint(to, amount)
	})
}

// TokenTransfer moves tokens between accounts on behalf of from. Callers are
// authenticated upstream; the node book is authoritative.
func (n *Node) TokenTransfer(from, to [20]byte, amount *big.Int) error {
	return n.apply(func(env *engines) error {
		return env.ledger.Transfer(from, to, amount)
	})
}

// TokenApprove sets spender's allowance over owner's balance.
func (n *Node) TokenApprove(owner, spender [20]byte, amount *big.Int) error {
	return n.apply(func(env *engines) error {
		return env.ledger.Approve(owner, spender, amount)
	})
}

// TokenTransferFrom moves tokens from owner to recipient against spender's
// allowance.
func (n *Node) TokenTransferFrom(spender, owner, to [20]byte, amount *big.Int) error {
	return n.apply(func(env *engines) error {
		return env.ledger.TransferFrom(spender, owner, to, amount)
	})
}

// TokenBalanceOf returns the balance of addr.
func (n *Node) TokenBalanceOf(addr [20]byte) (*big.Int, error) {
	var balance *big.Int
	err := n.view(func(env *engines) error {
		var err error
		balance, err = env.ledger.BalanceOf(addr)
		return err
	})
	if err != nil {
		return nil, err
	}
	return balance, nil
}

// TokenAllowance returns spender's remaining allowance over owner's balance.
func (n *Node) TokenAllowance(owner, spender [20]byte) (*big.Int, error) {
	var allowance *big.Int
	err := n.view(func(env *engines) error {
		var err error
		allowance, err = env.ledger.Allowance(owner, spender)
		return err
	})
	if err != nil {
		return nil, err
	}
	return allowance, nil
}

// TokenTotalSupply returns the total minted supply.
func (n *Node) TokenTotalSupply() (*big.Int, error) {
	var supply *big.Int
	err := n.view(func(env *engines) error {
		var err error
		supply, err = env.ledger.TotalSupply()
		return err
	})
	if err != nil {
		return nil, err
	}
	return supply, nil
}

// VaultAddress returns the settlement vault account address.
func (n *Node) VaultAddress() [20]byte {
	return token.VaultAddress()
}

// VaultBalance returns the tokens currently held in custody.
func (n *Node) VaultBalance() (*big.Int, error) {
	var balance *big.Int
	err := n.view(func(env *engines) error {
		var err error
		balance, err = env.vault.Balance()
		return err
	})
	if err != nil {
		return nil, err
	}
	return balance, nil
}
