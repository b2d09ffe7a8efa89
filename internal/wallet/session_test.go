package wallet

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xvasu/hederabet/internal/chain"
)

const testChainID = 296

var addr1 = common.HexToAddress("0x1111111111111111111111111111111111111111")

type memPrefs map[string]bool

func (p memPrefs) GetBool(key string) (bool, error) { return p[key], nil }
func (p memPrefs) SetBool(key string, v bool) error { p[key] = v; return nil }

type fakeProvider struct {
	accounts []common.Address
	chainID  uint64
	events   chan Event
}

func newFakeProvider(accounts ...common.Address) *fakeProvider {
	return &fakeProvider{accounts: accounts, chainID: testChainID, events: make(chan Event)}
}

func (p *fakeProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	return p.accounts, nil
}

func (p *fakeProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	return p.accounts, nil
}

func (p *fakeProvider) ChainID(ctx context.Context) (uint64, error) { return p.chainID, nil }

func (p *fakeProvider) BalanceAt(ctx context.Context, account common.Address) (decimal.Decimal, error) {
	return decimal.NewFromInt(50), nil
}

func (p *fakeProvider) SignerFor(account common.Address) (chain.Signer, error) {
	return nil, nil
}

func (p *fakeProvider) Subscribe() <-chan Event { return p.events }

func TestConnectPersistsAutoConnect(t *testing.T) {
	prefs := memPrefs{}
	s := NewSession(newFakeProvider(addr1), prefs, testChainID)

	account, err := s.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, addr1, account)
	assert.True(t, s.Connected())
	assert.True(t, prefs["wallet.autoConnect"])
}

func TestConnectNoAccounts(t *testing.T) {
	s := NewSession(newFakeProvider(), memPrefs{}, testChainID)

	_, err := s.Connect(context.Background())
	assert.ErrorIs(t, err, ErrNoAccounts)
	assert.False(t, s.Connected())
}

func TestConnectWrongChain(t *testing.T) {
	p := newFakeProvider(addr1)
	p.chainID = 1
	s := NewSession(p, memPrefs{}, testChainID)

	_, err := s.Connect(context.Background())
	require.Error(t, err)
	assert.False(t, s.Connected())
}

func TestRestoreHonorsPreference(t *testing.T) {
	p := newFakeProvider(addr1)

	// Preference unset: stays disconnected.
	s := NewSession(p, memPrefs{}, testChainID)
	require.NoError(t, s.Restore(context.Background()))
	assert.False(t, s.Connected())

	// Preference set: silently reconnects.
	s = NewSession(p, memPrefs{"wallet.autoConnect": true}, testChainID)
	require.NoError(t, s.Restore(context.Background()))
	assert.True(t, s.Connected())
}

func TestRestoreEmptyAccountsIsNotAnError(t *testing.T) {
	s := NewSession(newFakeProvider(), memPrefs{"wallet.autoConnect": true}, testChainID)

	require.NoError(t, s.Restore(context.Background()))
	assert.False(t, s.Connected())
}

func TestDisconnectClearsPreference(t *testing.T) {
	prefs := memPrefs{}
	s := NewSession(newFakeProvider(addr1), prefs, testChainID)

	_, err := s.Connect(context.Background())
	require.NoError(t, err)
	s.Disconnect()

	assert.False(t, s.Connected())
	assert.False(t, prefs["wallet.autoConnect"])

	_, err = s.Balance(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestSignerAfterAccountVanishes(t *testing.T) {
	p := newFakeProvider(addr1)
	s := NewSession(p, memPrefs{}, testChainID)
	_, err := s.Connect(context.Background())
	require.NoError(t, err)

	// Wallet drops the account between cycles.
	p.accounts = nil

	_, err = s.Signer(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.False(t, s.Connected(), "session must drop a vanished account")
}

func TestLocalWalletSignerBoundToKey(t *testing.T) {
	key := "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	w, err := NewLocalWallet(key, testChainID, nil)
	require.NoError(t, err)

	accounts, err := w.Accounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 1)

	signer, err := w.SignerFor(accounts[0])
	require.NoError(t, err)
	assert.Equal(t, accounts[0], signer.Address())

	_, err = w.SignerFor(addr1)
	assert.Error(t, err, "foreign accounts must be refused")
}

func TestLocalWalletRejectsBadKey(t *testing.T) {
	_, err := NewLocalWallet("not-a-key", testChainID, nil)
	assert.Error(t, err)
}

func TestLockedProvider(t *testing.T) {
	p := Locked(testChainID)

	accounts, err := p.Accounts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, accounts)

	_, err = p.RequestAccounts(context.Background())
	assert.ErrorIs(t, err, ErrNoAccounts)

	_, err = p.SignerFor(addr1)
	assert.ErrorIs(t, err, ErrNoAccounts)
}
