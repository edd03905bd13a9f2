package client

import (
	"math"
	"math/big"
	"sync"

	"github.com/wangjia184/sortedset"

	"github.com/okx/aa-settlement/pkg/op"
)

// Pool holds pending operations ordered by effective gas price so batch
// assembly can take the best-paying operations first. Keys are operation
// hashes; re-adding a hash replaces the entry.
type Pool struct {
	mu      sync.Mutex
	set     *sortedset.SortedSet
	baseFee *big.Int
}

func NewPool(baseFee *big.Int) *Pool {
	return &Pool{set: sortedset.New(), baseFee: baseFee}
}

// Add inserts or replaces an operation under its hash key.
func (p *Pool) Add(key string, o *op.Operation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.set.AddOrUpdate(key, feeScore(o, p.baseFee), o)
}

// Contains reports whether key is pooled.
func (p *Pool) Contains(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.set.GetByKey(key) != nil
}

// Take removes and returns up to max operations, highest fee first.
func (p *Pool) Take(max int) []*op.Operation {
	p.mu.Lock()
	defer p.mu.Unlock()

	if max <= 0 {
		return nil
	}
	nodes := p.set.GetByRankRange(-1, -max, true)
	ops := make([]*op.Operation, 0, len(nodes))
	for _, n := range nodes {
		ops = append(ops, n.Value.(*op.Operation))
	}
	return ops
}

// Size returns the number of pooled operations.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.set.GetCount()
}

// feeScore clamps the effective gas price into the sorted set's score range.
func feeScore(o *op.Operation, baseFee *big.Int) sortedset.SCORE {
	price := o.EffectiveGasPrice(baseFee)
	if !price.IsInt64() {
		return sortedset.SCORE(math.MaxInt64)
	}
	return sortedset.SCORE(price.Int64())
}
