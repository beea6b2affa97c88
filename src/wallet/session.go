package wallet

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/onemorebsmith/psychcoins/src/model"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Backend is the subset of ethclient the ledger needs
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

type Config struct {
	RPCServer     string
	Endpoints     map[uint64]string
	PrivateKeyHex string
}

// Session is the connectivity provider: one active endpoint, an optional
// signing key and the approval hooks that model the wallet prompts.
type Session struct {
	lock      sync.RWMutex
	endpoints map[uint64]string
	active    Backend
	closer    func()
	key       *ecdsa.PrivateKey
	account   common.Address
	approver  Approver
	dial      func(ctx context.Context, url string) (Backend, func(), error)
	logger    *zap.Logger
}

func dialEthclient(ctx context.Context, url string) (Backend, func(), error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	return client, client.Close, nil
}

// KeyFromEnv loads a hex private key from the named env var, empty if unset
func KeyFromEnv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

func NewSession(ctx context.Context, cfg Config, approver Approver, logger *zap.Logger) (*Session, error) {
	return newSession(ctx, cfg, approver, logger, dialEthclient)
}

func newSession(ctx context.Context, cfg Config, approver Approver, logger *zap.Logger,
	dial func(ctx context.Context, url string) (Backend, func(), error)) (*Session, error) {
	if approver == nil {
		approver = AutoApprove()
	}
	s := &Session{
		endpoints: map[uint64]string{},
		approver:  approver,
		dial:      dial,
		logger:    logger.With(zap.String("component", "wallet_session")),
	}
	for k, v := range cfg.Endpoints {
		s.endpoints[k] = v
	}
	if cfg.PrivateKeyHex != "" {
		key, err := crypto.HexToECDSA(trimHexPrefix(cfg.PrivateKeyHex))
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse signing key")
		}
		s.key = key
		s.account = crypto.PubkeyToAddress(key.PublicKey)
	}
	if cfg.RPCServer != "" {
		backend, closer, err := dial(ctx, cfg.RPCServer)
		if err != nil {
			// stays disconnected, reads will report connectivity errors
			s.logger.Warn("failed to dial rpc endpoint", zap.String("rpc", cfg.RPCServer), zap.Error(err))
		} else {
			s.active, s.closer = backend, closer
		}
	}
	return s, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return s[2:]
	}
	return s
}

// Account is the zero address when no key is loaded
func (s *Session) Account() common.Address {
	return s.account
}

func (s *Session) Connected() bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.active != nil
}

func (s *Session) Backend() (Backend, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.active == nil {
		return nil, model.ErrConnectivity
	}
	return s.active, nil
}

// ChainID asks the active endpoint, never a cached value
func (s *Session) ChainID(ctx context.Context) (*big.Int, error) {
	backend, err := s.Backend()
	if err != nil {
		return nil, err
	}
	id, err := backend.ChainID(ctx)
	if err != nil {
		return nil, errors.Wrapf(model.ErrConnectivity, "failed reading chain id: %s", err)
	}
	return id, nil
}

// SwitchChain moves the session to the endpoint configured for target
func (s *Session) SwitchChain(ctx context.Context, target *big.Int) error {
	if target == nil || !target.IsUint64() {
		return errors.Wrap(model.ErrUnsupportedChain, "invalid chain id")
	}
	url, ok := s.endpoints[target.Uint64()]
	if !ok {
		return errors.Wrapf(model.ErrUnsupportedChain, "no endpoint configured for chain %s", target)
	}
	current, _ := s.ChainID(ctx)
	if !s.approver.ApproveSwitch(ctx, current, target) {
		return errors.Wrapf(model.ErrSwitchRejected, "switch to chain %s declined", target)
	}

	backend, closer, err := s.dial(ctx, url)
	if err != nil {
		return errors.Wrapf(model.ErrUnsupportedChain, "failed dialing %s: %s", url, err)
	}
	got, err := backend.ChainID(ctx)
	if err != nil || got.Cmp(target) != 0 {
		closer()
		return errors.Wrapf(model.ErrUnsupportedChain, "endpoint %s does not serve chain %s", url, target)
	}

	s.lock.Lock()
	old := s.closer
	s.active, s.closer = backend, closer
	s.lock.Unlock()
	if old != nil {
		old()
	}
	s.logger.Info("switched chain", zap.String("chain_id", target.String()))
	return nil
}

// TransactOpts builds signing options for one write. The signer asks the
// approver first so a decline never reaches the network.
func (s *Session) TransactOpts(ctx context.Context, chainID *big.Int, req TxRequest) (*bind.TransactOpts, error) {
	if s.key == nil {
		return nil, errors.Wrap(model.ErrConnectivity, "no signing key loaded")
	}
	opts, err := bind.NewKeyedTransactorWithChainID(s.key, chainID)
	if err != nil {
		return nil, errors.Wrap(model.ErrRpc, err.Error())
	}
	sign := opts.Signer
	req.ChainID = chainID
	opts.Signer = func(from common.Address, tx *types.Transaction) (*types.Transaction, error) {
		if !s.approver.ApproveTransaction(ctx, req) {
			return nil, errors.Wrapf(model.ErrRejected, "%s(%s)", req.Method, req.ActionId)
		}
		return sign(from, tx)
	}
	opts.Context = ctx
	return opts, nil
}

func (s *Session) Close() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closer != nil {
		s.closer()
	}
	s.active, s.closer = nil, nil
}
