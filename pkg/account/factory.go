package account

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/okx/aa-settlement/pkg/chain"
	"github.com/okx/aa-settlement/pkg/protocol"
)

const createGas = 10000

// accountMarker is the code installed at a deployed account address. Code
// presence is what the engine checks; behavior is dispatched through the
// registry.
var accountMarker = []byte{0x01}

// SimpleFactory deploys SimpleAccounts at addresses derived deterministically
// from (factory, owner, salt). Create is idempotent: repeating it for an
// already-deployed address is a silent no-op, because a relayer may resubmit.
type SimpleFactory struct {
	address  common.Address
	registry *protocol.Registry
}

func NewSimpleFactory(address common.Address, registry *protocol.Registry) *SimpleFactory {
	return &SimpleFactory{address: address, registry: registry}
}

// Address returns the factory's own address.
func (f *SimpleFactory) Address() common.Address {
	return f.address
}

// AddressOf derives the counterfactual account address for (owner, salt).
// Deterministic, so a sender address can be known before first use.
func (f *SimpleFactory) AddressOf(owner common.Address, salt *big.Int) common.Address {
	buf := make([]byte, 0, 1+common.AddressLength+32+32)
	buf = append(buf, 0xff)
	buf = append(buf, f.address.Bytes()...)
	buf = append(buf, common.BigToHash(salt).Bytes()...)
	buf = append(buf, crypto.Keccak256(owner.Bytes())...)
	return common.BytesToAddress(crypto.Keccak256(buf)[12:])
}

// InitCodeFor packs the factory address and create payload into an
// operation's init code.
func (f *SimpleFactory) InitCodeFor(owner common.Address, salt *big.Int) []byte {
	data := make([]byte, 0, common.AddressLength*2+32)
	data = append(data, f.address.Bytes()...)
	data = append(data, owner.Bytes()...)
	data = append(data, common.BigToHash(salt).Bytes()...)
	return data
}

// Create deploys the account for a [owner(20)][salt(32)] payload.
func (f *SimpleFactory) Create(data []byte, frame *chain.Frame) (common.Address, error) {
	if err := frame.Consume(createGas); err != nil {
		return common.Address{}, err
	}
	if len(data) != common.AddressLength+32 {
		return common.Address{}, errors.Errorf("malformed create payload: %d bytes", len(data))
	}

	owner := common.BytesToAddress(data[:common.AddressLength])
	salt := new(big.Int).SetBytes(data[common.AddressLength:])
	addr := f.AddressOf(owner, salt)

	if frame.State.HasCode(addr) {
		return addr, nil
	}
	frame.State.SetCode(addr, accountMarker)
	f.registry.PutAccount(addr, NewSimpleAccount(addr, owner))
	return addr, nil
}
