// Package registry persists the administrative identities of the settlement
// node (owner, operator, treasury) together with the configured fee rate, and
// answers every role check the engines perform.
package registry

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BenjDW/maitre-slither/core/events"
	"github.com/BenjDW/maitre-slither/native/common"
	"github.com/BenjDW/maitre-slither/native/fees"
)

// paramAdmin is the parameter-store key holding the admin record.
const paramAdmin = "registry/admin"

// StoreState captures the subset of state manager capabilities the registry
// needs to persist its admin record.
type StoreState interface {
	ParamStoreSet(name string, value []byte) error
	ParamStoreGet(name string) ([]byte, bool, error)
}

// Admin is a snapshot of the administrative identities and settings.
type Admin struct {
	Owner      [20]byte
	Operator   [20]byte
	Treasury   [20]byte
	FeeRateBps uint32
}

type adminRecord struct {
	Owner      string `json:"owner"`
	Operator   string `json:"operator"`
	Treasury   string `json:"treasury"`
	FeeRateBps uint32 `json:"feeRateBps"`
}

// Registry stores the admin record and acts as the single authorization
// decision point for privileged operations.
type Registry struct {
	state   StoreState
	emitter events.Emitter
}

// NewRegistry constructs a registry with no backing state. Callers must wire a
// state manager via SetState before use.
func NewRegistry() *Registry {
	return &Registry{emitter: events.NoopEmitter{}}
}

// SetState wires the parameter-store backend.
func (r *Registry) SetState(state StoreState) {
	r.state = state
}

// SetEmitter configures the sink that receives registry events. Passing nil
// restores the default no-op emitter.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	r.emitter = emitter
}

func (r *Registry) withState() (StoreState, error) {
	if r == nil || r.state == nil {
		return nil, ErrNilState
	}
	return r.state, nil
}

func (r *Registry) emit(evt events.Event) {
	if r == nil || r.emitter == nil {
		return
	}
	r.emitter.Emit(evt)
}

// Bootstrap writes the genesis admin record. It is a no-op when a record
// already exists so restarts keep the persisted identities rather than
// re-applying the node configuration.
func (r *Registry) Bootstrap(owner, operator, treasury [20]byte, feeRateBps uint32) error {
	state, err := r.withState()
	if err != nil {
		return err
	}
	_, ok, err := state.ParamStoreGet(paramAdmin)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if isZero(owner) || isZero(operator) || isZero(treasury) {
		return ErrZeroAddress
	}
	if !fees.ValidRate(feeRateBps) {
		return fees.ErrRateTooHigh
	}
	admin := Admin{Owner: owner, Operator: operator, Treasury: treasury, FeeRateBps: feeRateBps}
	if err := r.put(state, admin); err != nil {
		return err
	}
	r.emit(&BootstrappedEvent{Owner: owner, Operator: operator, Treasury: treasury, FeeRateBps: feeRateBps})
	return nil
}

// Admin returns the persisted admin record.
func (r *Registry) Admin() (Admin, error) {
	state, err := r.withState()
	if err != nil {
		return Admin{}, err
	}
	raw, ok, err := state.ParamStoreGet(paramAdmin)
	if err != nil {
		return Admin{}, err
	}
	if !ok || len(bytes.TrimSpace(raw)) == 0 {
		return Admin{}, ErrNotBootstrapped
	}
	var rec adminRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Admin{}, fmt.Errorf("registry: decode admin record: %w", err)
	}
	return rec.toAdmin()
}

// Owner returns the account holding the owner role.
func (r *Registry) Owner() ([20]byte, error) {
	admin, err := r.Admin()
	if err != nil {
		return [20]byte{}, err
	}
	return admin.Owner, nil
}

// Operator returns the account holding the operator role.
func (r *Registry) Operator() ([20]byte, error) {
	admin, err := r.Admin()
	if err != nil {
		return [20]byte{}, err
	}
	return admin.Operator, nil
}

// Treasury returns the account that receives withdrawn fees.
func (r *Registry) Treasury() ([20]byte, error) {
	admin, err := r.Admin()
	if err != nil {
		return [20]byte{}, err
	}
	return admin.Treasury, nil
}

// FeeRateBps returns the configured fee rate in basis points.
func (r *Registry) FeeRateBps() (uint32, error) {
	admin, err := r.Admin()
	if err != nil {
		return 0, err
	}
	return admin.FeeRateBps, nil
}

// Authorize reports whether the actor holds the requested role. Every
// privileged engine operation funnels its role check through this method.
func (r *Registry) Authorize(actor [20]byte, role common.Role) error {
	admin, err := r.Admin()
	if err != nil {
		return err
	}
	switch role {
	case common.RoleOwner:
		if actor != admin.Owner {
			return ErrNotOwner
		}
	case common.RoleOperator:
		if actor != admin.Operator {
			return ErrNotOperator
		}
	default:
		return ErrUnknownRole
	}
	return nil
}

// SetOwner rotates the owner role. Only the current owner may call it.
func (r *Registry) SetOwner(caller, next [20]byte) error {
	if err := r.Authorize(caller, common.RoleOwner); err != nil {
		return err
	}
	if isZero(next) {
		return ErrZeroAddress
	}
	admin, err := r.Admin()
	if err != nil {
		return err
	}
	prev := admin.Owner
	admin.Owner = next
	if err := r.store(admin); err != nil {
		return err
	}
	r.emit(&UpdatedEvent{Field: "owner", Previous: events.HexAddress(prev), Next: events.HexAddress(next)})
	return nil
}

// SetOperator rotates the operator role. Only the owner may call it.
func (r *Registry) SetOperator(caller, next [20]byte) error {
	if err := r.Authorize(caller, common.RoleOwner); err != nil {
		return err
	}
	if isZero(next) {
		return ErrZeroAddress
	}
	admin, err := r.Admin()
	if err != nil {
		return err
	}
	prev := admin.Operator
	admin.Operator = next
	if err := r.store(admin); err != nil {
		return err
	}
	r.emit(&UpdatedEvent{Field: "operator", Previous: events.HexAddress(prev), Next: events.HexAddress(next)})
	return nil
}

// SetTreasury rotates the fee destination account. Only the owner may call it.
func (r *Registry) SetTreasury(caller, next [20]byte) error {
	if err := r.Authorize(caller, common.RoleOwner); err != nil {
		return err
	}
	if isZero(next) {
		return ErrZeroAddress
	}
	admin, err := r.Admin()
	if err != nil {
		return err
	}
	prev := admin.Treasury
	admin.Treasury = next
	if err := r.store(admin); err != nil {
		return err
	}
	r.emit(&UpdatedEvent{Field: "treasury", Previous: events.HexAddress(prev), Next: events.HexAddress(next)})
	return nil
}

// SetFeeRate changes the fee rate applied to future pools and rooms. Only the
// owner may call it and the rate is capped at fees.MaxRateBps.
func (r *Registry) SetFeeRate(caller [20]byte, bps uint32) error {
	if err := r.Authorize(caller, common.RoleOwner); err != nil {
		return err
	}
	if !fees.ValidRate(bps) {
		return fees.ErrRateTooHigh
	}
	admin, err := r.Admin()
	if err != nil {
		return err
	}
	prev := admin.FeeRateBps
	admin.FeeRateBps = bps
	if err := r.store(admin); err != nil {
		return err
	}
	r.emit(&UpdatedEvent{Field: "feeRateBps", Previous: events.Uint32String(prev), Next: events.Uint32String(bps)})
	return nil
}

func (r *Registry) store(admin Admin) error {
	state, err := r.withState()
	if err != nil {
		return err
	}
	return r.put(state, admin)
}

func (r *Registry) put(state StoreState, admin Admin) error {
	rec := adminRecord{
		Owner:      events.HexAddress(admin.Owner),
		Operator:   events.HexAddress(admin.Operator),
		Treasury:   events.HexAddress(admin.Treasury),
		FeeRateBps: admin.FeeRateBps,
	}
	encoded, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("registry: encode admin record: %w", err)
	}
	return state.ParamStoreSet(paramAdmin, encoded)
}

func (rec adminRecord) toAdmin() (Admin, error) {
	owner, err := parseAddress(rec.Owner)
	if err != nil {
		return Admin{}, err
	}
	operator, err := parseAddress(rec.Operator)
	if err != nil {
		return Admin{}, err
	}
	treasury, err := parseAddress(rec.Treasury)
	if err != nil {
		return Admin{}, err
	}
	return Admin{Owner: owner, Operator: operator, Treasury: treasury, FeeRateBps: rec.FeeRateBps}, nil
}

func parseAddress(s string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, fmt.Errorf("registry: decode address %q: %w", s, err)
	}
	if len(decoded) != len(out) {
		return out, fmt.Errorf("registry: address %q must be %d bytes", s, len(out))
	}
	copy(out[:], decoded)
	return out, nil
}

func isZero(addr [20]byte) bool {
	return addr == [20]byte{}
}
