package ledger

import (
	"math/big"

	"github.com/onemorebsmith/psychcoins/src/model"
	"github.com/pkg/errors"
)

// Every read has exactly one typed output. Anything else is treated as a
// broken node or a wrong contract, never silently defaulted.

func decodeBool(method string, out []interface{}) (bool, error) {
	if len(out) != 1 {
		return false, errors.Wrapf(model.ErrRpc, "%s: expected 1 output, got %d", method, len(out))
	}
	v, ok := out[0].(bool)
	if !ok {
		return false, errors.Wrapf(model.ErrRpc, "%s: expected bool output, got %T", method, out[0])
	}
	return v, nil
}

func decodeUint(method string, out []interface{}) (*big.Int, error) {
	if len(out) != 1 {
		return nil, errors.Wrapf(model.ErrRpc, "%s: expected 1 output, got %d", method, len(out))
	}
	v, ok := out[0].(*big.Int)
	if !ok || v == nil {
		return nil, errors.Wrapf(model.ErrRpc, "%s: expected uint256 output, got %T", method, out[0])
	}
	if v.Sign() < 0 {
		return nil, errors.Wrapf(model.ErrRpc, "%s: negative uint256 %s", method, v)
	}
	return v, nil
}

func decodeCount(method string, out []interface{}) (uint64, error) {
	v, err := decodeUint(method, out)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, errors.Wrapf(model.ErrRpc, "%s: count %s overflows", method, v)
	}
	return v.Uint64(), nil
}
