package wallet

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/0xvasu/hederabet/internal/chain"
)

// lockedProvider holds no accounts. Used when the daemon runs without key
// material so read paths keep working and every trading path fails cleanly.
type lockedProvider struct {
	chainID uint64
	events  chan Event
}

// Locked returns a provider with no accounts.
func Locked(chainID uint64) Provider {
	return &lockedProvider{chainID: chainID, events: make(chan Event)}
}

func (p *lockedProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	return nil, nil
}

func (p *lockedProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	return nil, ErrNoAccounts
}

func (p *lockedProvider) ChainID(ctx context.Context) (uint64, error) {
	return p.chainID, nil
}

func (p *lockedProvider) BalanceAt(ctx context.Context, account common.Address) (decimal.Decimal, error) {
	return decimal.Zero, ErrNoAccounts
}

func (p *lockedProvider) SignerFor(account common.Address) (chain.Signer, error) {
	return nil, ErrNoAccounts
}

func (p *lockedProvider) Subscribe() <-chan Event { return p.events }
