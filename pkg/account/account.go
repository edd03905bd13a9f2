// Package account provides reference collaborator implementations: an ECDSA
// controller account, a deterministic counterfactual factory, and a
// signature-verifying sponsor. Production wallets, factories and paymasters
// live outside this repository; these stand-ins exercise the full engine
// contract and back the integration tests.
package account

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/okx/aa-settlement/pkg/chain"
	"github.com/okx/aa-settlement/pkg/op"
	"github.com/okx/aa-settlement/pkg/protocol"
)

const (
	validationGas = 6000
	executionGas  = 9000
	signatureLen  = 65
)

// transferCallLen is [to(20 bytes)][value(32 bytes)].
const transferCallLen = common.AddressLength + 32

// SimpleAccount is a single-owner ECDSA account. Authorization is a 65-byte
// secp256k1 signature over the operation hash; the nonce is a sequential
// counter enforced here, not by the engine.
type SimpleAccount struct {
	address common.Address
	owner   common.Address
	nonce   uint64

	// Window bounds every authorization this account grants. The zero value
	// is unbounded.
	Window protocol.DeadlineWindow
}

func NewSimpleAccount(address, owner common.Address) *SimpleAccount {
	return &SimpleAccount{address: address, owner: owner}
}

// Address returns the account's own address.
func (a *SimpleAccount) Address() common.Address {
	return a.address
}

// Nonce returns the next expected operation nonce.
func (a *SimpleAccount) Nonce() uint64 {
	return a.nonce
}

func (a *SimpleAccount) ValidateOperation(o *op.Operation, opHash common.Hash, missingFunds *big.Int, frame *chain.Frame, dep protocol.Depositor) (protocol.DeadlineWindow, error) {
	var window protocol.DeadlineWindow
	if err := frame.Consume(validationGas); err != nil {
		return window, err
	}

	if !o.Nonce.IsUint64() || o.Nonce.Uint64() != a.nonce {
		return window, errors.Wrapf(protocol.ErrInvalidNonce, "want %d", a.nonce)
	}

	if missingFunds != nil && missingFunds.Sign() > 0 {
		if err := dep.DepositFor(a.address, a.address, missingFunds); err != nil {
			return window, errors.Wrap(err, "prefund payment")
		}
	}

	window = a.Window
	if !verifySignature(a.owner, opHash, o.Authorization) {
		window.AuthFailed = true
		return window, nil
	}

	a.nonce++
	return window, nil
}

func (a *SimpleAccount) Execute(callData []byte, frame *chain.Frame) ([]byte, error) {
	if err := frame.Consume(executionGas + uint64(len(callData))); err != nil {
		return nil, err
	}
	if len(callData) == 0 {
		return nil, nil
	}
	if len(callData) != transferCallLen {
		return nil, errors.Errorf("malformed call data: %d bytes", len(callData))
	}

	to := common.BytesToAddress(callData[:common.AddressLength])
	value := new(big.Int).SetBytes(callData[common.AddressLength:])
	if err := frame.State.Transfer(a.address, to, value); err != nil {
		return nil, err
	}
	return nil, nil
}

// TransferCallData packs a native transfer into the account's call data
// encoding.
func TransferCallData(to common.Address, value *big.Int) []byte {
	data := make([]byte, transferCallLen)
	copy(data, to.Bytes())
	value.FillBytes(data[common.AddressLength:])
	return data
}

func verifySignature(signer common.Address, hash common.Hash, sig []byte) bool {
	if len(sig) != signatureLen {
		return false
	}
	pub, err := crypto.SigToPub(hash.Bytes(), sig)
	if err != nil {
		return false
	}
	return crypto.PubkeyToAddress(*pub) == signer
}
