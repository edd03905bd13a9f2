package engine

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
)

// AccessPolicy is the batch-level access control. The whitelist is the
// primary Sybil-resistance mechanism: while it is on, only listed bundlers
// may submit. Lifting it (unrestricted mode) removes the ability to tell
// good relayers from griefers, so the blast radius is shrunk by constraining
// every submission to a single operation.
type AccessPolicy struct {
	mu           sync.RWMutex
	whitelist    mapset.Set[common.Address]
	unrestricted bool
}

func NewAccessPolicy() *AccessPolicy {
	return &AccessPolicy{whitelist: mapset.NewThreadUnsafeSet[common.Address]()}
}

// Allowed reports whether bundler may submit a batch at all.
func (p *AccessPolicy) Allowed(bundler common.Address) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.unrestricted || p.whitelist.Contains(bundler)
}

// Unrestricted reports whether the whitelist is lifted.
func (p *AccessPolicy) Unrestricted() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.unrestricted
}

func (p *AccessPolicy) setBundler(bundler common.Address, allowed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if allowed {
		p.whitelist.Add(bundler)
	} else {
		p.whitelist.Remove(bundler)
	}
}

func (p *AccessPolicy) setUnrestricted(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unrestricted = on
}
