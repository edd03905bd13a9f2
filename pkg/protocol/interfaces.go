package protocol

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/okx/aa-settlement/pkg/chain"
	"github.com/okx/aa-settlement/pkg/op"
)

// PostOpMode tells a sponsor how the sponsored operation ended.
type PostOpMode uint8

const (
	// OpSucceeded: the operation's call data executed without reverting.
	OpSucceeded PostOpMode = iota

	// OpReverted: execution reverted; the sponsor still pays.
	OpReverted

	// PostOpReverted: a previous PostProcess call itself reverted and was
	// retried after the execution effects were rolled back.
	PostOpReverted
)

func (m PostOpMode) String() string {
	switch m {
	case OpSucceeded:
		return "opSucceeded"
	case OpReverted:
		return "opReverted"
	case PostOpReverted:
		return "postOpReverted"
	default:
		return "unknown"
	}
}

// Depositor is the slice of the engine a collaborator may call back into
// during validation to pay its prefund. Credits the engine's deposit ledger
// on behalf of account, moving native balance from the payer.
type Depositor interface {
	DepositFor(account common.Address, from common.Address, value *big.Int) error
}

// Account is the controller-account capability. Implementations are untrusted:
// any returned error is treated as a revert of the call, and all work must be
// metered through the supplied frame.
type Account interface {
	// ValidateOperation checks the operation's authorization. If missingFunds
	// is non-zero the account must pay at least that much into the engine's
	// ledger through dep before returning; the engine verifies the balance
	// delta rather than trusting the return value. A failed signature is
	// reported through the window's AuthFailed flag, not an error.
	ValidateOperation(o *op.Operation, opHash common.Hash, missingFunds *big.Int, frame *chain.Frame, dep Depositor) (DeadlineWindow, error)

	// Execute performs the requested call data. May revert.
	Execute(callData []byte, frame *chain.Frame) ([]byte, error)
}

// Sponsor is the paymaster capability: a third party that pre-funds an
// operation's cost in exchange for validation and post-processing hooks.
type Sponsor interface {
	// ValidateSponsorship checks that the sponsor agrees to pay up to maxCost
	// for the operation. The returned context is passed back to PostProcess
	// after execution.
	ValidateSponsorship(o *op.Operation, opHash common.Hash, maxCost *big.Int, frame *chain.Frame) (context []byte, window DeadlineWindow, err error)

	// PostProcess runs after execution with the actual gas cost. A revert
	// here degrades the whole operation to failed without affecting other
	// operations in the batch.
	PostProcess(mode PostOpMode, context []byte, actualGasCost *big.Int, frame *chain.Frame) error
}

// Factory deploys controller accounts. Create must be deterministic for a
// given payload and idempotent: repeating a successful create returns the
// same address as a silent no-op, because a relayer may resubmit.
type Factory interface {
	Create(data []byte, frame *chain.Frame) (common.Address, error)
}

// Registry is the engine's dynamic-dispatch surface: it resolves an address
// to the collaborator implementation registered for it. Code presence in the
// chain state says that an address is live; the registry says what it does.
type Registry struct {
	accounts  map[common.Address]Account
	sponsors  map[common.Address]Sponsor
	factories map[common.Address]Factory
}

func NewRegistry() *Registry {
	return &Registry{
		accounts:  make(map[common.Address]Account),
		sponsors:  make(map[common.Address]Sponsor),
		factories: make(map[common.Address]Factory),
	}
}

func (r *Registry) PutAccount(addr common.Address, a Account) { r.accounts[addr] = a }
func (r *Registry) PutSponsor(addr common.Address, s Sponsor) { r.sponsors[addr] = s }
func (r *Registry) PutFactory(addr common.Address, f Factory) { r.factories[addr] = f }

func (r *Registry) Account(addr common.Address) (Account, bool) {
	a, ok := r.accounts[addr]
	return a, ok
}

func (r *Registry) Sponsor(addr common.Address) (Sponsor, bool) {
	s, ok := r.sponsors[addr]
	return s, ok
}

func (r *Registry) Factory(addr common.Address) (Factory, bool) {
	f, ok := r.factories[addr]
	return f, ok
}
