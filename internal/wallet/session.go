package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/0xvasu/hederabet/internal/chain"
)

// ErrNotConnected is returned by operations that need an active account.
var ErrNotConnected = errors.New("wallet: not connected, please connect wallet")

// autoConnectPref is the persisted preference key for silent reconnects.
const autoConnectPref = "wallet.autoConnect"

// PrefStore persists small user preferences across restarts.
type PrefStore interface {
	GetBool(key string) (bool, error)
	SetBool(key string, value bool) error
}

// Session tracks the active account on top of a Provider. An explicit
// Connect records an auto-connect preference so Restore can silently resume
// the session after a restart; an explicit Disconnect clears it.
type Session struct {
	provider Provider
	prefs    PrefStore
	chainID  uint64

	mu      sync.RWMutex
	account common.Address
	active  bool
}

func NewSession(provider Provider, prefs PrefStore, chainID uint64) *Session {
	return &Session{provider: provider, prefs: prefs, chainID: chainID}
}

// Connect prompts the provider for accounts and activates the first one.
func (s *Session) Connect(ctx context.Context) (common.Address, error) {
	accounts, err := s.provider.RequestAccounts(ctx)
	if err != nil {
		return common.Address{}, fmt.Errorf("request accounts: %w", err)
	}
	if len(accounts) == 0 {
		return common.Address{}, ErrNoAccounts
	}
	if err := s.checkChain(ctx); err != nil {
		return common.Address{}, err
	}

	s.mu.Lock()
	s.account = accounts[0]
	s.active = true
	s.mu.Unlock()

	if err := s.prefs.SetBool(autoConnectPref, true); err != nil {
		log.Warn().Err(err).Msg("⚠️ could not persist auto-connect preference")
	}
	log.Info().Str("account", accounts[0].Hex()).Msg("🔗 wallet connected")
	return accounts[0], nil
}

// Restore silently resumes a previous session when the auto-connect
// preference is set. An empty account list is not an error, the session just
// stays disconnected until the user connects explicitly.
func (s *Session) Restore(ctx context.Context) error {
	auto, err := s.prefs.GetBool(autoConnectPref)
	if err != nil {
		return fmt.Errorf("read auto-connect preference: %w", err)
	}
	if !auto {
		return nil
	}
	accounts, err := s.provider.Accounts(ctx)
	if err != nil {
		return fmt.Errorf("restore accounts: %w", err)
	}
	if len(accounts) == 0 {
		log.Debug().Msg("auto-connect set but no accounts exposed, staying disconnected")
		return nil
	}
	if err := s.checkChain(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.account = accounts[0]
	s.active = true
	s.mu.Unlock()
	log.Info().Str("account", accounts[0].Hex()).Msg("🔗 wallet session restored")
	return nil
}

// Disconnect drops the active account and clears the auto-connect preference.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.account = common.Address{}
	s.active = false
	s.mu.Unlock()

	if err := s.prefs.SetBool(autoConnectPref, false); err != nil {
		log.Warn().Err(err).Msg("⚠️ could not clear auto-connect preference")
	}
	log.Info().Msg("🔌 wallet disconnected")
}

// Account returns the active account, if any.
func (s *Session) Account() (common.Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account, s.active
}

// Connected reports whether a session is active.
func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Balance returns the active account's HBAR balance.
func (s *Session) Balance(ctx context.Context) (decimal.Decimal, error) {
	account, ok := s.Account()
	if !ok {
		return decimal.Zero, ErrNotConnected
	}
	return s.provider.BalanceAt(ctx, account)
}

// Signer resolves a signer for the active account. It re-validates the
// account against the provider on every call rather than caching, so a
// wallet that disconnected or switched accounts mid-flight is caught before
// anything is signed.
func (s *Session) Signer(ctx context.Context) (chain.Signer, error) {
	account, ok := s.Account()
	if !ok {
		return nil, ErrNotConnected
	}
	accounts, err := s.provider.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify account: %w", err)
	}
	if !containsAddress(accounts, account) {
		s.mu.Lock()
		s.account = common.Address{}
		s.active = false
		s.mu.Unlock()
		return nil, ErrNotConnected
	}
	return s.provider.SignerFor(account)
}

// Watch consumes provider events until ctx is done, keeping the session in
// sync with account and network changes.
func (s *Session) Watch(ctx context.Context) {
	events := s.provider.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.handleEvent(ev)
		}
	}
}

func (s *Session) handleEvent(ev Event) {
	switch ev.Kind {
	case EventAccountsChanged:
		if len(ev.Accounts) == 0 {
			log.Warn().Msg("⚠️ wallet exposed no accounts, disconnecting session")
			s.mu.Lock()
			s.account = common.Address{}
			s.active = false
			s.mu.Unlock()
			return
		}
		s.mu.Lock()
		s.account = ev.Accounts[0]
		s.active = true
		s.mu.Unlock()
		log.Info().Str("account", ev.Accounts[0].Hex()).Msg("🔁 wallet account changed")
	case EventChainChanged:
		if ev.ChainID != s.chainID {
			log.Warn().Uint64("got", ev.ChainID).Uint64("want", s.chainID).Msg("⚠️ wallet switched to wrong network, disconnecting session")
			s.mu.Lock()
			s.account = common.Address{}
			s.active = false
			s.mu.Unlock()
		}
	case EventDisconnected:
		s.mu.Lock()
		s.account = common.Address{}
		s.active = false
		s.mu.Unlock()
		log.Info().Msg("🔌 wallet reported disconnect")
	}
}

func (s *Session) checkChain(ctx context.Context) error {
	got, err := s.provider.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("query chain id: %w", err)
	}
	if got != s.chainID {
		return fmt.Errorf("wallet is on chain %d, expected %d (Hedera testnet)", got, s.chainID)
	}
	return nil
}

func containsAddress(list []common.Address, a common.Address) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}
