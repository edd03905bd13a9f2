// Package engine implements the settlement engine: it receives a batch of
// operations from a privileged bundler and drives each one through
// deployment, two-stage validation, prefund collection, execution, sponsor
// post-processing and refund. A failure in one operation never aborts the
// processing of the others.
package engine

import (
	"context"
	"math/big"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/okx/aa-settlement/pkg/chain"
	"github.com/okx/aa-settlement/pkg/ledger"
	"github.com/okx/aa-settlement/pkg/op"
	"github.com/okx/aa-settlement/pkg/protocol"
)

// Batch-fatal submission failures. These revert the whole submission and no
// per-operation event is emitted.
var (
	ErrBundlerNotAllowed      = errors.New("bundler not allowed")
	ErrOnlyOneOp              = errors.New("only support one op")
	ErrAggregatorNotSupported = errors.New("aggregator not supported")
	ErrEmptyBatch             = errors.New("empty batch")
	ErrNotAdmin               = errors.New("caller is not the administrator")
)

// minSponsorVerificationGas is the protocol floor on the verification budget
// that must remain before the sponsor validation call is attempted.
const minSponsorVerificationGas = 10000

// Config carries the deployment-fixed parameters of an engine.
type Config struct {
	// Self is the engine's own address; prefunds are paid to it and its
	// ledger identity backs all deposits.
	Self common.Address

	// Admin is the single administrator identity gating the policy surface.
	Admin common.Address

	ChainID *big.Int
	BaseFee *big.Int

	// Now returns the current timestamp for expiry checks. Defaults to wall
	// clock seconds.
	Now func() uint64

	Logger logr.Logger
	Sink   Sink
	Meter  metric.Meter
}

// Engine owns the deposit ledger and drives batches against the world state.
type Engine struct {
	self    common.Address
	admin   common.Address
	chainID *big.Int
	baseFee *big.Int
	now     func() uint64

	ledger   *ledger.Ledger
	state    *chain.State
	registry *protocol.Registry

	policy *AccessPolicy
	// Admin mutators run on RPC goroutines while a batch reads these, so
	// both allowlists are thread-safe sets.
	factories mapset.Set[common.Address]
	modules   mapset.Set[common.Address]

	sink   Sink
	logger logr.Logger

	opsProcessed metric.Int64Counter
	opsFailed    metric.Int64Counter

	// Batch submissions are strictly sequential; deposits and reads may run
	// concurrently with a batch.
	mu sync.Mutex
}

// New wires an engine over the given ledger, world state and collaborator
// registry.
func New(l *ledger.Ledger, st *chain.State, reg *protocol.Registry, cfg Config) *Engine {
	if cfg.Now == nil {
		cfg.Now = wallClock
	}
	if cfg.Sink == nil {
		cfg.Sink = NewLogSink(cfg.Logger)
	}
	meter := cfg.Meter
	if meter == nil {
		meter = otel.Meter("aa-settlement")
	}
	opsProcessed, _ := meter.Int64Counter("settlement.operations.processed")
	opsFailed, _ := meter.Int64Counter("settlement.operations.failed")

	return &Engine{
		self:         cfg.Self,
		admin:        cfg.Admin,
		chainID:      cfg.ChainID,
		baseFee:      cfg.BaseFee,
		now:          cfg.Now,
		ledger:       l,
		state:        st,
		registry:     reg,
		policy:       NewAccessPolicy(),
		factories:    mapset.NewSet[common.Address](),
		modules:      mapset.NewSet[common.Address](),
		sink:         cfg.Sink,
		logger:       cfg.Logger.WithName("engine"),
		opsProcessed: opsProcessed,
		opsFailed:    opsFailed,
	}
}

// Self returns the engine's own address.
func (e *Engine) Self() common.Address {
	return e.self
}

// ChainID returns the deployment chain id.
func (e *Engine) ChainID() *big.Int {
	return new(big.Int).Set(e.chainID)
}

// State exposes the world state, used by intake-side checks and tests.
func (e *Engine) State() *chain.State {
	return e.state
}

// Unrestricted reports whether submissions are open to any caller. While on,
// every batch is limited to exactly one operation.
func (e *Engine) Unrestricted() bool {
	return e.policy.Unrestricted()
}

// HandleOps processes a batch of operations in array order and credits the
// sum of the settled costs to beneficiary. The only errors returned are
// batch-fatal; per-operation failures surface as events.
func (e *Engine) HandleOps(ops []*op.Operation, bundler, beneficiary common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.policy.Allowed(bundler) {
		return ErrBundlerNotAllowed
	}
	if e.policy.Unrestricted() && len(ops) != 1 {
		return ErrOnlyOneOp
	}
	if len(ops) == 0 {
		return ErrEmptyBatch
	}

	collected := new(big.Int)
	for i, o := range ops {
		contribution := e.processOp(o)
		e.logger.V(1).WithValues(
			"op_index", i,
			"sender", o.Sender.String(),
			"nonce", o.Nonce.String(),
			"collected", contribution.String(),
		).Info("operation settled")
		collected.Add(collected, contribution)
	}

	if collected.Sign() > 0 {
		if err := e.ledger.Credit(beneficiary, collected); err != nil {
			return errors.Wrap(err, "beneficiary compensation")
		}
	}
	return nil
}

// HandleAggregatedOps is the entry point for signature-aggregator groups. It
// is an intentional stub, not a bug: aggregation is unsupported and every
// call fails fatally.
func (e *Engine) HandleAggregatedOps([]*op.Operation, common.Address, common.Address) error {
	return ErrAggregatorNotSupported
}

// processOp runs the full per-operation pipeline and returns the amount the
// engine collected toward the beneficiary. Failures degrade to events.
func (e *Engine) processOp(o *op.Operation) *big.Int {
	opHash := o.Hash(e.self, e.chainID)

	deployGas, failed := e.ensureDeployed(o, opHash)
	if failed == nil {
		var c *opContext
		c, failed = e.validate(o, opHash, deployGas)
		if failed == nil {
			return e.execute(c)
		}
	}

	e.opsFailed.Add(context.Background(), 1)
	e.sink.OperationFailed(OperationFailedEvent{
		Sender: o.Sender,
		Nonce:  o.Nonce,
		Reason: failed.Reason,
		Detail: failed.Detail,
	})
	return new(big.Int)
}

// DepositFor moves native value from the payer to the engine and credits
// account's deposit. This is the RPC-facing entry point; it serializes
// against batch submissions so a deposit cannot land inside a batch's
// snapshot and be rolled back with it.
func (e *Engine) DepositFor(account common.Address, from common.Address, value *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.depositFor(account, from, value)
}

// batchDepositor is the protocol.Depositor handed to collaborators during
// validation. HandleOps already holds the batch lock, so prefund payments
// route around the locking entry point.
type batchDepositor struct {
	engine *Engine
}

func (d batchDepositor) DepositFor(account common.Address, from common.Address, value *big.Int) error {
	return d.engine.depositFor(account, from, value)
}

func (e *Engine) depositFor(account common.Address, from common.Address, value *big.Int) error {
	if value == nil || value.Sign() == 0 {
		return nil
	}
	if err := e.state.Transfer(from, e.self, value); err != nil {
		return err
	}
	if err := e.ledger.Credit(account, value); err != nil {
		return err
	}
	e.sink.DepositIncreased(DepositEvent{
		Account: account,
		Amount:  value,
		Balance: e.ledger.BalanceOf(account),
	})
	return nil
}

// BalanceOf returns account's deposit balance.
func (e *Engine) BalanceOf(account common.Address) *big.Int {
	return e.ledger.BalanceOf(account)
}

// WithdrawTo moves amount of owner's deposit back to a native balance. Only
// the balance owner may withdraw.
func (e *Engine) WithdrawTo(owner, to common.Address, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ledger.Debit(owner, amount); err != nil {
		return err
	}
	// The engine's native balance backs the ledger; move it out.
	return e.state.Transfer(e.self, to, amount)
}

func wallClock() uint64 {
	return uint64(time.Now().Unix())
}
