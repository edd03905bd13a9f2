// Package chain provides the in-process world state the settlement engine
// runs against: per-address code and native balance with snapshot/revert, and
// gas-metered call frames that bound every collaborator call.
package chain

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

var (
	// ErrInsufficientBalance is returned when a native transfer or SubBalance
	// would drive a balance negative. Balances never go negative silently.
	ErrInsufficientBalance = errors.New("insufficient native balance")
)

type account struct {
	code    []byte
	balance *big.Int
}

func (a *account) copy() *account {
	c := &account{balance: new(big.Int).Set(a.balance)}
	if a.code != nil {
		c.code = append([]byte(nil), a.code...)
	}
	return c
}

// State holds the world state. Individual reads and writes are safe for
// concurrent use; snapshot consistency across a batch is the engine's
// responsibility, since every mutation inside a batch happens on the
// submission goroutine under the engine's batch lock.
type State struct {
	mu        sync.RWMutex
	accounts  map[common.Address]*account
	snapshots []map[common.Address]*account
}

func NewState() *State {
	return &State{accounts: make(map[common.Address]*account)}
}

func (s *State) get(addr common.Address) *account {
	a, ok := s.accounts[addr]
	if !ok {
		a = &account{balance: new(big.Int)}
		s.accounts[addr] = a
	}
	return a
}

func (s *State) getCode(addr common.Address) []byte {
	if a, ok := s.accounts[addr]; ok {
		return a.code
	}
	return nil
}

// GetCode returns the code at addr, or nil for an empty account.
func (s *State) GetCode(addr common.Address) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getCode(addr)
}

func (s *State) SetCode(addr common.Address, code []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(addr).code = code
}

func (s *State) HasCode(addr common.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.getCode(addr)) > 0
}

// GetBalance returns a copy of the native balance at addr.
func (s *State) GetBalance(addr common.Address) *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.accounts[addr]; ok {
		return new(big.Int).Set(a.balance)
	}
	return new(big.Int)
}

func (s *State) addBalance(addr common.Address, value *big.Int) {
	a := s.get(addr)
	a.balance = new(big.Int).Add(a.balance, value)
}

func (s *State) subBalance(addr common.Address, value *big.Int) error {
	a := s.get(addr)
	if a.balance.Cmp(value) < 0 {
		return ErrInsufficientBalance
	}
	a.balance = new(big.Int).Sub(a.balance, value)
	return nil
}

func (s *State) AddBalance(addr common.Address, value *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addBalance(addr, value)
}

func (s *State) SubBalance(addr common.Address, value *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subBalance(addr, value)
}

// Transfer moves native value between two accounts atomically, failing
// without any mutation if the source balance is short.
func (s *State) Transfer(from, to common.Address, value *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.subBalance(from, value); err != nil {
		return err
	}
	s.addBalance(to, value)
	return nil
}

// Snapshot records the current state and returns an identifier for
// RevertToSnapshot. Snapshots nest; reverting to an id discards every
// snapshot taken after it.
func (s *State) Snapshot() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(map[common.Address]*account, len(s.accounts))
	for addr, a := range s.accounts {
		cp[addr] = a.copy()
	}
	s.snapshots = append(s.snapshots, cp)
	return len(s.snapshots) - 1
}

// RevertToSnapshot restores the state captured by Snapshot. An unknown id is
// a programming error and panics, mirroring the state database this models.
func (s *State) RevertToSnapshot(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= len(s.snapshots) {
		panic("chain: revert to unknown snapshot")
	}
	s.accounts = s.snapshots[id]
	s.snapshots = s.snapshots[:id]
}

// DiscardSnapshot drops snapshots taken at or after id while keeping the
// current state, committing the changes made since.
func (s *State) DiscardSnapshot(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= len(s.snapshots) {
		return
	}
	s.snapshots = s.snapshots[:id]
}
