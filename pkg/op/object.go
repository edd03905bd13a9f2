// Package op models a signed operation: the intent of a (possibly not yet
// deployed) controller account, including its gas parameters, optional init
// code and optional sponsor payload.
package op

import (
	"encoding/json"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// Operation is a settlement-engine operation. Sender is immutable once the
// operation is constructed; Authorization is opaque to the engine and
// interpreted only by the sender's account.
type Operation struct {
	Sender               common.Address `json:"sender" mapstructure:"sender" validate:"required"`
	Nonce                *big.Int       `json:"nonce" mapstructure:"nonce" validate:"required"`
	InitCode             []byte         `json:"initCode" mapstructure:"initCode"`
	CallData             []byte         `json:"callData" mapstructure:"callData"`
	CallGasLimit         *big.Int       `json:"callGasLimit" mapstructure:"callGasLimit" validate:"required"`
	VerificationGasLimit *big.Int       `json:"verificationGasLimit" mapstructure:"verificationGasLimit" validate:"required"`
	PreVerificationGas   *big.Int       `json:"preVerificationGas" mapstructure:"preVerificationGas" validate:"required"`
	MaxFeePerGas         *big.Int       `json:"maxFeePerGas" mapstructure:"maxFeePerGas" validate:"required"`
	MaxPriorityFeePerGas *big.Int       `json:"maxPriorityFeePerGas" mapstructure:"maxPriorityFeePerGas" validate:"required"`
	SponsorAndData       []byte         `json:"sponsorAndData" mapstructure:"sponsorAndData"`
	Authorization        []byte         `json:"authorization" mapstructure:"authorization" validate:"required"`
}

var validate = validator.New()

// decodeOpTypes converts the JSON-RPC wire representation (hex strings) into
// the field types above during mapstructure decoding.
func decodeOpTypes(f reflect.Kind, t reflect.Kind, data interface{}) (interface{}, error) {
	if f != reflect.String {
		return data, nil
	}
	str := data.(string)

	switch t {
	case reflect.Array: // common.Address
		if !common.IsHexAddress(str) {
			return nil, errors.Errorf("not a valid address: %s", str)
		}
		return common.HexToAddress(str), nil

	case reflect.Slice: // []byte
		b, err := hexutil.Decode(str)
		if err != nil {
			if str == "0x" || str == "" {
				return []byte{}, nil
			}
			return nil, errors.Wrapf(err, "not valid hex bytes: %s", str)
		}
		return b, nil

	case reflect.Ptr: // *big.Int
		if strings.HasPrefix(str, "0x") {
			n, err := hexutil.DecodeBig(str)
			if err != nil {
				// hexutil rejects "0x0" leading zeros edge; fall through to
				// base-16 parse of the digits.
				n, ok := new(big.Int).SetString(str[2:], 16)
				if !ok {
					return nil, errors.Errorf("not a valid number: %s", str)
				}
				return n, nil
			}
			return n, nil
		}
		n, ok := new(big.Int).SetString(str, 10)
		if !ok {
			return nil, errors.Errorf("not a valid number: %s", str)
		}
		return n, nil
	}
	return data, nil
}

// New decodes an operation from the generic map produced by the JSON-RPC
// layer: structural validation against the schema, type conversion, then
// required-field and numeric-range checks.
func New(data map[string]any) (*Operation, error) {
	if err := opSchema.Validate(data); err != nil {
		return nil, errors.Wrap(err, "op: schema")
	}

	var o Operation
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.DecodeHookFuncKind(decodeOpTypes),
		Result:     &o,
		ErrorUnset: false,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(data); err != nil {
		return nil, errors.Wrap(err, "op: decode")
	}

	if err := validate.Struct(&o); err != nil {
		return nil, errors.Wrap(err, "op: validate")
	}
	if err := o.checkNumerics(); err != nil {
		return nil, err
	}
	return &o, nil
}

// checkNumerics bounds the numeric fields. The three gas limits must fit in
// 64 bits because the call frames meter them as uint64; a wider limit would
// be priced into the prefund but silently truncated at the frame. Fees and
// the nonce only need to stay well below 128 bits so prefund arithmetic
// cannot overflow.
func (o *Operation) checkNumerics() error {
	for _, limit := range []*big.Int{o.CallGasLimit, o.VerificationGasLimit, o.PreVerificationGas} {
		if limit.Sign() < 0 || !limit.IsUint64() {
			return errors.New("op: gas limit overflows 64 bits")
		}
	}
	all := new(big.Int).Or(o.Nonce, o.MaxFeePerGas)
	all.Or(all, o.MaxPriorityFeePerGas)
	if all.Sign() < 0 || all.BitLen() > 128 {
		return errors.New("op: gas values overflow")
	}
	return nil
}

// HasInitCode reports whether the operation carries factory init data.
func (o *Operation) HasInitCode() bool {
	return len(o.InitCode) > 0
}

// Factory returns the factory address packed into the first 20 bytes of the
// init code, or the zero address when there is none.
func (o *Operation) Factory() common.Address {
	if len(o.InitCode) < common.AddressLength {
		return common.Address{}
	}
	return common.BytesToAddress(o.InitCode[:common.AddressLength])
}

// FactoryData returns the opaque payload passed to the factory.
func (o *Operation) FactoryData() []byte {
	if len(o.InitCode) <= common.AddressLength {
		return nil
	}
	return o.InitCode[common.AddressLength:]
}

// HasSponsor reports whether a sponsor address is packed into SponsorAndData.
func (o *Operation) HasSponsor() bool {
	return len(o.SponsorAndData) >= common.AddressLength
}

// Sponsor returns the sponsor address from the first 20 bytes of
// SponsorAndData, or the zero address when the operation is self-funded.
func (o *Operation) Sponsor() common.Address {
	if !o.HasSponsor() {
		return common.Address{}
	}
	return common.BytesToAddress(o.SponsorAndData[:common.AddressLength])
}

// SponsorPayload returns the opaque sponsor payload after the address.
func (o *Operation) SponsorPayload() []byte {
	if len(o.SponsorAndData) <= common.AddressLength {
		return nil
	}
	return o.SponsorAndData[common.AddressLength:]
}

// EffectiveGasPrice returns min(maxFeePerGas, baseFee + maxPriorityFeePerGas).
// A sender who sets maxFeePerGas below maxPriorityFeePerGas still pays only
// maxFeePerGas, never more.
func (o *Operation) EffectiveGasPrice(baseFee *big.Int) *big.Int {
	if baseFee == nil {
		baseFee = new(big.Int)
	}
	effective := new(big.Int).Add(baseFee, o.MaxPriorityFeePerGas)
	if effective.Cmp(o.MaxFeePerGas) > 0 {
		effective.Set(o.MaxFeePerGas)
	}
	return effective
}

// sponsorVerificationMul covers the sponsor validation and the up to two
// PostProcess invocations that may run against the verification budget.
const sponsorVerificationMul = 3

// MaxPrefund returns the worst-case cost estimate withheld from the payer
// before execution: (callGasLimit + verificationGasLimit·mul +
// preVerificationGas) · effectiveGasPrice.
func (o *Operation) MaxPrefund(baseFee *big.Int) *big.Int {
	mul := big.NewInt(1)
	if o.HasSponsor() {
		mul = big.NewInt(sponsorVerificationMul)
	}
	gas := new(big.Int).Mul(o.VerificationGasLimit, mul)
	gas.Add(gas, o.CallGasLimit)
	gas.Add(gas, o.PreVerificationGas)
	return gas.Mul(gas, o.EffectiveGasPrice(baseFee))
}

// MarshalJSON serializes the operation with hex-encoded numeric and byte
// fields, the wire format relayers submit.
func (o *Operation) MarshalJSON() ([]byte, error) {
	enc := struct {
		Sender               string `json:"sender"`
		Nonce                string `json:"nonce"`
		InitCode             string `json:"initCode"`
		CallData             string `json:"callData"`
		CallGasLimit         string `json:"callGasLimit"`
		VerificationGasLimit string `json:"verificationGasLimit"`
		PreVerificationGas   string `json:"preVerificationGas"`
		MaxFeePerGas         string `json:"maxFeePerGas"`
		MaxPriorityFeePerGas string `json:"maxPriorityFeePerGas"`
		SponsorAndData       string `json:"sponsorAndData"`
		Authorization        string `json:"authorization"`
	}{
		Sender:               o.Sender.Hex(),
		Nonce:                hexutil.EncodeBig(o.Nonce),
		InitCode:             hexutil.Encode(o.InitCode),
		CallData:             hexutil.Encode(o.CallData),
		CallGasLimit:         hexutil.EncodeBig(o.CallGasLimit),
		VerificationGasLimit: hexutil.EncodeBig(o.VerificationGasLimit),
		PreVerificationGas:   hexutil.EncodeBig(o.PreVerificationGas),
		MaxFeePerGas:         hexutil.EncodeBig(o.MaxFeePerGas),
		MaxPriorityFeePerGas: hexutil.EncodeBig(o.MaxPriorityFeePerGas),
		SponsorAndData:       hexutil.Encode(o.SponsorAndData),
		Authorization:        hexutil.Encode(o.Authorization),
	}
	return json.Marshal(&enc)
}
