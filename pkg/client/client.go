package client

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-logr/logr"

	"github.com/okx/aa-settlement/pkg/engine"
	rpcerrors "github.com/okx/aa-settlement/pkg/errors"
	"github.com/okx/aa-settlement/pkg/op"
)

// Client accepts operations from the RPC layer and periodically submits the
// best-paying ones to the engine as a batch.
type Client struct {
	engine      *engine.Engine
	pool        *Pool
	inflight    *Queue[*op.Operation]
	bundler     common.Address
	beneficiary common.Address
	maxBatch    int
	chainID     *big.Int
	logger      logr.Logger

	// One batch submission at a time; intake stays concurrent.
	submitMu sync.Mutex
}

// Config carries the client's identities and batching knobs.
type Config struct {
	Bundler      common.Address
	Beneficiary  common.Address
	MaxBatchSize int
	BaseFee      *big.Int
	Logger       logr.Logger
}

func New(eng *engine.Engine, cfg Config) *Client {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 10
	}
	return &Client{
		engine:      eng,
		pool:        NewPool(cfg.BaseFee),
		inflight:    NewQueue[*op.Operation](uint(cfg.MaxBatchSize)),
		bundler:     cfg.Bundler,
		beneficiary: cfg.Beneficiary,
		maxBatch:    cfg.MaxBatchSize,
		chainID:     eng.ChainID(),
		logger:      cfg.Logger.WithName("client"),
	}
}

// SendOperation accepts an operation into the pool and returns its hash.
func (c *Client) SendOperation(o *op.Operation) (common.Hash, error) {
	hash := o.Hash(c.engine.Self(), c.chainID)
	key := hash.String()

	if !o.HasInitCode() && !c.engine.State().HasCode(o.Sender) {
		return common.Hash{}, rpcerrors.NewRPCError(
			rpcerrors.INVALID_FIELDS, "sender not deployed and no init code", nil)
	}
	if c.pool.Contains(key) || c.inflight.Contains(key) {
		return common.Hash{}, rpcerrors.NewRPCError(
			rpcerrors.INVALID_FIELDS, "operation already known", key)
	}

	c.pool.Add(key, o)
	c.logger.WithValues(
		"op_hash", key,
		"sender", o.Sender.String(),
		"nonce", o.Nonce.String(),
	).Info("operation accepted")
	return hash, nil
}

// SendBatchNow assembles a batch from the pool and submits it. Returns the
// number of operations submitted; a batch-fatal engine error is returned
// as-is after the staged operations are dropped.
func (c *Client) SendBatchNow() (int, error) {
	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	// An unrestricted engine fatally rejects any batch larger than one op, so
	// drain the pool one operation per submission instead of losing the rest.
	max := c.maxBatch
	if c.engine.Unrestricted() {
		max = 1
	}
	ops := c.pool.Take(max)
	if len(ops) == 0 {
		return 0, nil
	}
	for _, o := range ops {
		c.inflight.EnqueueTail(o.Hash(c.engine.Self(), c.chainID).String(), o)
	}
	defer c.inflight.Reset(uint(c.maxBatch))

	if err := c.engine.HandleOps(ops, c.bundler, c.beneficiary); err != nil {
		c.logger.Error(err, "batch submission failed", "batch_size", len(ops))
		return 0, err
	}
	return len(ops), nil
}

// Run submits batches on a fixed interval until the context is canceled.
func (c *Client) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n, err := c.SendBatchNow(); err == nil && n > 0 {
				c.logger.V(1).Info("batch submitted", "batch_size", n)
			}
		}
	}
}
