package client

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/okx/aa-settlement/pkg/engine"
	rpcerrors "github.com/okx/aa-settlement/pkg/errors"
	"github.com/okx/aa-settlement/pkg/op"
)

// RpcAdapter exposes the client and the engine's administrative surface as
// JSON-RPC methods. Method names map 1:1 onto RPC methods through the
// jsonrpc controller (e.g. Eth_sendOperation handles "eth_sendOperation").
type RpcAdapter struct {
	client *Client
	engine *engine.Engine

	// admin is the identity RPC admin calls act under. Deployments expose
	// the admin namespace on a trusted listener only.
	admin common.Address
}

func NewRpcAdapter(c *Client, eng *engine.Engine, admin common.Address) *RpcAdapter {
	return &RpcAdapter{client: c, engine: eng, admin: admin}
}

func (r *RpcAdapter) Eth_sendOperation(data map[string]any) (string, error) {
	o, err := op.New(data)
	if err != nil {
		return "", rpcerrors.NewRPCError(rpcerrors.INVALID_FIELDS, err.Error(), err.Error())
	}
	hash, err := r.client.SendOperation(o)
	if err != nil {
		return "", err
	}
	return hash.String(), nil
}

func (r *RpcAdapter) Eth_chainId() (string, error) {
	return hexutil.EncodeBig(r.engine.ChainID()), nil
}

func (r *RpcAdapter) Eth_getDepositOf(addr string) (string, error) {
	if !common.IsHexAddress(addr) {
		return "", rpcerrors.NewRPCError(rpcerrors.INVALID_PARAMS, "invalid address", addr)
	}
	return hexutil.EncodeBig(r.engine.BalanceOf(common.HexToAddress(addr))), nil
}

// Eth_depositTo credits a deposit from the admin's native balance. The usual
// path is accounts topping up during validation; this is the operator's
// out-of-band top-up for sponsors.
func (r *RpcAdapter) Eth_depositTo(addr string, amount string) (bool, error) {
	if !common.IsHexAddress(addr) {
		return false, rpcerrors.NewRPCError(rpcerrors.INVALID_PARAMS, "invalid address", addr)
	}
	value, err := hexutil.DecodeBig(amount)
	if err != nil {
		v, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			return false, rpcerrors.NewRPCError(rpcerrors.INVALID_PARAMS, "invalid amount", amount)
		}
		value = v
	}
	if err := r.engine.DepositFor(common.HexToAddress(addr), r.admin, value); err != nil {
		return false, rpcerrors.NewRPCError(rpcerrors.INTERNAL, err.Error(), nil)
	}
	return true, nil
}

func (r *RpcAdapter) Admin_setBundler(addr string, allowed bool) (bool, error) {
	if !common.IsHexAddress(addr) {
		return false, rpcerrors.NewRPCError(rpcerrors.INVALID_PARAMS, "invalid address", addr)
	}
	if err := r.engine.SetBundler(r.admin, common.HexToAddress(addr), allowed); err != nil {
		return false, rpcerrors.NewRPCError(rpcerrors.REJECTED_BY_ENGINE, err.Error(), nil)
	}
	return true, nil
}

func (r *RpcAdapter) Admin_setUnrestricted(on bool) (bool, error) {
	if err := r.engine.SetUnrestricted(r.admin, on); err != nil {
		return false, rpcerrors.NewRPCError(rpcerrors.REJECTED_BY_ENGINE, err.Error(), nil)
	}
	return true, nil
}

func (r *RpcAdapter) Admin_setFactory(addr string, allowed bool) (bool, error) {
	if !common.IsHexAddress(addr) {
		return false, rpcerrors.NewRPCError(rpcerrors.INVALID_PARAMS, "invalid address", addr)
	}
	if err := r.engine.SetFactory(r.admin, common.HexToAddress(addr), allowed); err != nil {
		return false, rpcerrors.NewRPCError(rpcerrors.REJECTED_BY_ENGINE, err.Error(), nil)
	}
	return true, nil
}

func (r *RpcAdapter) Admin_setModule(addr string, allowed bool) (bool, error) {
	if !common.IsHexAddress(addr) {
		return false, rpcerrors.NewRPCError(rpcerrors.INVALID_PARAMS, "invalid address", addr)
	}
	if err := r.engine.SetModule(r.admin, common.HexToAddress(addr), allowed); err != nil {
		return false, rpcerrors.NewRPCError(rpcerrors.REJECTED_BY_ENGINE, err.Error(), nil)
	}
	return true, nil
}

func (r *RpcAdapter) Debug_sendBatchNow() (int, error) {
	n, err := r.client.SendBatchNow()
	if err != nil {
		return 0, rpcerrors.NewRPCError(rpcerrors.REJECTED_BY_ENGINE, err.Error(), nil)
	}
	return n, nil
}
