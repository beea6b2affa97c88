package model

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrConnectivity     = fmt.Errorf("no account or rpc provider available")
	ErrChainMismatch    = fmt.Errorf("active chain does not match the required chain")
	ErrRejected         = fmt.Errorf("signer declined the request")
	ErrRpc              = fmt.Errorf("rpc failure")
	ErrSwitchRejected   = fmt.Errorf("chain switch rejected")
	ErrUnsupportedChain = fmt.Errorf("unsupported chain")
	ErrNetwork          = fmt.Errorf("network could not be corrected")
	ErrTimeout          = fmt.Errorf("ledger write timed out")
	ErrUnknownAction    = fmt.Errorf("action is not part of the current stage")
)

// ErrorKind is the stable, client facing name of an error class
type ErrorKind string

const (
	KindNone             ErrorKind = ""
	KindConnectivity     ErrorKind = "connectivity"
	KindNetworkMismatch  ErrorKind = "network_mismatch"
	KindRejected         ErrorKind = "rejected"
	KindRpc              ErrorKind = "rpc"
	KindSwitchRejected   ErrorKind = "switch_rejected"
	KindUnsupportedChain ErrorKind = "unsupported_chain"
	KindNetwork          ErrorKind = "network"
	KindTimeout          ErrorKind = "timeout"
	KindUnknownAction    ErrorKind = "unknown_action"
	KindUnknown          ErrorKind = "unknown"
)

var kindTable = []struct {
	err  error
	kind ErrorKind
}{
	// order matters, a network error usually wraps a switch failure
	{ErrSwitchRejected, KindSwitchRejected},
	{ErrUnsupportedChain, KindUnsupportedChain},
	{ErrNetwork, KindNetwork},
	{ErrChainMismatch, KindNetworkMismatch},
	{ErrRejected, KindRejected},
	{ErrTimeout, KindTimeout},
	{context.DeadlineExceeded, KindTimeout},
	{ErrConnectivity, KindConnectivity},
	{ErrUnknownAction, KindUnknownAction},
	{ErrRpc, KindRpc},
}

// KindOf classifies err into one of the known kinds
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, v := range kindTable {
		if errors.Is(err, v.err) {
			return v.kind
		}
	}
	return KindUnknown
}

// NetworkError is returned when the guard could not move the connection to
// the required chain. It matches ErrNetwork and unwraps to the switch failure.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	if e.Err == nil {
		return ErrNetwork.Error()
	}
	return ErrNetwork.Error() + ": " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }
