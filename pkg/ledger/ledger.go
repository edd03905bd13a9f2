// Package ledger implements the engine's balance-per-address accounting
// store. Every mutation goes through the Credit and Debit primitives, which
// assert non-negativity: a failed attempt to spend more than a balance holds
// is an error, never a silent negative balance.
package ledger

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

var (
	// ErrInsufficientDeposit is returned by Debit when the balance does not
	// cover the requested amount.
	ErrInsufficientDeposit = errors.New("insufficient deposit")

	// ErrNegativeAmount is returned when a caller passes a negative value.
	ErrNegativeAmount = errors.New("negative amount")
)

// Store persists ledger balances across restarts. Implementations must write
// the full balance for a key; the ledger never writes deltas.
type Store interface {
	Put(addr common.Address, balance *big.Int) error
	Load(fn func(addr common.Address, balance *big.Int)) error
	Close() error
}

// Ledger is the process-wide deposit ledger. Reads are lock-free; mutations
// are serialized so that a debit and its persistence are atomic with respect
// to other writers (deposits arrive from RPC concurrently with batch
// processing).
type Ledger struct {
	balances *xsync.MapOf[common.Address, *big.Int]
	mu       sync.Mutex
	store    Store
}

// New creates a ledger backed by store. A nil store keeps balances in memory
// only. Existing balances are loaded before the ledger is usable.
func New(store Store) (*Ledger, error) {
	l := &Ledger{
		balances: xsync.NewMapOf[common.Address, *big.Int](),
		store:    store,
	}
	if store != nil {
		if err := store.Load(func(addr common.Address, balance *big.Int) {
			l.balances.Store(addr, new(big.Int).Set(balance))
		}); err != nil {
			return nil, errors.Wrap(err, "ledger: load")
		}
	}
	return l, nil
}

// BalanceOf returns a copy of the balance for addr, zero for unknown keys.
func (l *Ledger) BalanceOf(addr common.Address) *big.Int {
	if b, ok := l.balances.Load(addr); ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// Credit increases the balance for addr.
func (l *Ledger) Credit(addr common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	next := new(big.Int).Add(l.BalanceOf(addr), amount)
	l.balances.Store(addr, next)
	return l.persist(addr, next)
}

// Debit decreases the balance for addr, failing with ErrInsufficientDeposit
// before any mutation if the balance is short.
func (l *Ledger) Debit(addr common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	cur := l.BalanceOf(addr)
	if cur.Cmp(amount) < 0 {
		return ErrInsufficientDeposit
	}
	next := cur.Sub(cur, amount)
	l.balances.Store(addr, next)
	return l.persist(addr, next)
}

func (l *Ledger) persist(addr common.Address, balance *big.Int) error {
	if l.store == nil {
		return nil
	}
	return errors.Wrap(l.store.Put(addr, balance), "ledger: persist")
}

// Close releases the backing store.
func (l *Ledger) Close() error {
	if l.store == nil {
		return nil
	}
	return l.store.Close()
}
