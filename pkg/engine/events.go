package engine

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-logr/logr"

	"github.com/okx/aa-settlement/pkg/protocol"
)

// OperationEvent is emitted once for every operation that reached execution.
// Success reports whether the call data executed without reverting; the
// operation's cost settled either way. External observers depend on this
// exact field set.
type OperationEvent struct {
	OpHash        common.Hash
	Sender        common.Address
	Sponsor       common.Address
	Nonce         *big.Int
	Success       bool
	ActualGasCost *big.Int
	ActualGasUsed *big.Int
}

// OperationFailedEvent is emitted instead of an OperationEvent when an
// operation is dropped before or during settlement. Keyed by
// (sender, nonce, reason); the failure never propagates to the batch caller.
type OperationFailedEvent struct {
	Sender common.Address
	Nonce  *big.Int
	Reason protocol.Reason
	Detail string
}

// OperationRevertedEvent carries the revert payload of an executed-but-
// reverted operation, alongside its OperationEvent.
type OperationRevertedEvent struct {
	OpHash       common.Hash
	Sender       common.Address
	Nonce        *big.Int
	RevertReason []byte
}

// AccountDeployedEvent is emitted when the deploy step constructs the sender.
type AccountDeployedEvent struct {
	OpHash  common.Hash
	Sender  common.Address
	Factory common.Address
	Sponsor common.Address
}

// DepositEvent is emitted when a ledger balance is increased by an explicit
// deposit.
type DepositEvent struct {
	Account common.Address
	Amount  *big.Int
	Balance *big.Int
}

// PolicyEvent records an administrative change to the access policy or one
// of the allowlists.
type PolicyEvent struct {
	Kind    string // "bundler", "unrestricted", "factory", "module"
	Subject common.Address
	Allowed bool
}

// Sink receives engine events. Implementations must not block; the engine
// emits synchronously from the batch loop.
type Sink interface {
	OperationProcessed(OperationEvent)
	OperationFailed(OperationFailedEvent)
	OperationReverted(OperationRevertedEvent)
	AccountDeployed(AccountDeployedEvent)
	DepositIncreased(DepositEvent)
	PolicyChanged(PolicyEvent)
}

// LogSink writes events to a structured logger.
type LogSink struct {
	logger logr.Logger
}

func NewLogSink(l logr.Logger) *LogSink {
	return &LogSink{logger: l.WithName("events")}
}

func (s *LogSink) OperationProcessed(e OperationEvent) {
	s.logger.WithValues(
		"op_hash", e.OpHash.String(),
		"sender", e.Sender.String(),
		"sponsor", e.Sponsor.String(),
		"nonce", e.Nonce.String(),
		"success", e.Success,
		"actual_gas_cost", e.ActualGasCost.String(),
		"actual_gas_used", e.ActualGasUsed.String(),
	).Info("operation processed")
}

func (s *LogSink) OperationFailed(e OperationFailedEvent) {
	s.logger.WithValues(
		"sender", e.Sender.String(),
		"nonce", e.Nonce.String(),
		"reason", string(e.Reason),
		"detail", e.Detail,
	).Info("operation failed")
}

func (s *LogSink) OperationReverted(e OperationRevertedEvent) {
	s.logger.WithValues(
		"op_hash", e.OpHash.String(),
		"sender", e.Sender.String(),
		"nonce", e.Nonce.String(),
	).Info("operation reverted")
}

func (s *LogSink) AccountDeployed(e AccountDeployedEvent) {
	s.logger.WithValues(
		"op_hash", e.OpHash.String(),
		"sender", e.Sender.String(),
		"factory", e.Factory.String(),
		"sponsor", e.Sponsor.String(),
	).Info("account deployed")
}

func (s *LogSink) DepositIncreased(e DepositEvent) {
	s.logger.WithValues(
		"account", e.Account.String(),
		"amount", e.Amount.String(),
		"balance", e.Balance.String(),
	).Info("deposit increased")
}

func (s *LogSink) PolicyChanged(e PolicyEvent) {
	s.logger.WithValues(
		"kind", e.Kind,
		"subject", e.Subject.String(),
		"allowed", e.Allowed,
	).Info("policy changed")
}

// Collector buffers events for inspection; used by tests and the RPC
// receipt lookups.
type Collector struct {
	mu        sync.Mutex
	Processed []OperationEvent
	Failed    []OperationFailedEvent
	Reverted  []OperationRevertedEvent
	Deployed  []AccountDeployedEvent
	Deposits  []DepositEvent
	Policies  []PolicyEvent
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) OperationProcessed(e OperationEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Processed = append(c.Processed, e)
}

func (c *Collector) OperationFailed(e OperationFailedEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Failed = append(c.Failed, e)
}

func (c *Collector) OperationReverted(e OperationRevertedEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Reverted = append(c.Reverted, e)
}

func (c *Collector) AccountDeployed(e AccountDeployedEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Deployed = append(c.Deployed, e)
}

func (c *Collector) DepositIncreased(e DepositEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Deposits = append(c.Deposits, e)
}

func (c *Collector) PolicyChanged(e PolicyEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Policies = append(c.Policies, e)
}
