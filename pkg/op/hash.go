package op

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

func pad32(b []byte) []byte {
	padded := make([]byte, 32)
	if len(b) > 32 {
		b = b[len(b)-32:]
	}
	copy(padded[32-len(b):], b)
	return padded
}

func padBig(n *big.Int) []byte {
	if n == nil {
		return make([]byte, 32)
	}
	return pad32(n.Bytes())
}

// Hash computes the operation hash used for signing: keccak256 of the packed
// static fields (dynamic fields hashed first), bound to the engine address
// and chain id so a signature cannot be replayed on another deployment.
func (o *Operation) Hash(engine common.Address, chainID *big.Int) common.Hash {
	packed := make([]byte, 0, 32*10)
	packed = append(packed, pad32(o.Sender.Bytes())...)
	packed = append(packed, padBig(o.Nonce)...)
	packed = append(packed, crypto.Keccak256(o.InitCode)...)
	packed = append(packed, crypto.Keccak256(o.CallData)...)
	packed = append(packed, padBig(o.CallGasLimit)...)
	packed = append(packed, padBig(o.VerificationGasLimit)...)
	packed = append(packed, padBig(o.PreVerificationGas)...)
	packed = append(packed, padBig(o.MaxFeePerGas)...)
	packed = append(packed, padBig(o.MaxPriorityFeePerGas)...)
	packed = append(packed, crypto.Keccak256(o.SponsorAndData)...)

	inner := crypto.Keccak256(packed)

	outer := make([]byte, 0, 32+common.AddressLength+32)
	outer = append(outer, inner...)
	outer = append(outer, engine.Bytes()...)
	outer = append(outer, padBig(chainID)...)
	return common.BytesToHash(crypto.Keccak256(outer))
}

// SponsorHash is the digest a sponsor's off-chain signer commits to: the
// operation hash computed with the sponsor payload stripped to the bare
// sponsor address, since the payload carries the resulting signature.
func (o *Operation) SponsorHash(engine common.Address, chainID *big.Int) common.Hash {
	stripped := *o
	if o.HasSponsor() {
		stripped.SponsorAndData = o.SponsorAndData[:common.AddressLength]
	}
	return stripped.Hash(engine, chainID)
}
