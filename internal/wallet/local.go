package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"github.com/0xvasu/hederabet/internal/chain"
)

// Balancer is the balance-query subset of an RPC client.
type Balancer interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// LocalWallet is a Provider backed by a single in-process private key. Used
// by the headless daemon; a browser extension fills the same role for the UI.
type LocalWallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	client  Balancer
	events  chan Event
}

// NewLocalWallet derives a wallet from a hex-encoded ECDSA private key.
func NewLocalWallet(privateKeyHex string, chainID uint64, client Balancer) (*LocalWallet, error) {
	k := strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	key, err := crypto.HexToECDSA(k)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &LocalWallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: new(big.Int).SetUint64(chainID),
		client:  client,
		events:  make(chan Event),
	}, nil
}

func (w *LocalWallet) Accounts(ctx context.Context) ([]common.Address, error) {
	return []common.Address{w.address}, nil
}

// RequestAccounts is identical to Accounts for a local key, there is nothing
// to prompt for.
func (w *LocalWallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	return w.Accounts(ctx)
}

func (w *LocalWallet) ChainID(ctx context.Context) (uint64, error) {
	return w.chainID.Uint64(), nil
}

func (w *LocalWallet) BalanceAt(ctx context.Context, account common.Address) (decimal.Decimal, error) {
	if w.client == nil {
		return decimal.Zero, fmt.Errorf("wallet: no RPC client configured for balance queries")
	}
	wei, err := w.client.BalanceAt(ctx, account, nil)
	if err != nil {
		return decimal.Zero, chain.NormalizeError("balance", err)
	}
	return chain.HBARFromWei(wei), nil
}

func (w *LocalWallet) SignerFor(account common.Address) (chain.Signer, error) {
	if account != w.address {
		return nil, fmt.Errorf("wallet: account %s is not held by this wallet", account.Hex())
	}
	return &keySigner{key: w.key, address: w.address, chainID: w.chainID}, nil
}

// Subscribe returns the event stream. A local key never changes accounts so
// the channel stays silent.
func (w *LocalWallet) Subscribe() <-chan Event { return w.events }

type keySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
}

func (s *keySigner) Address() common.Address { return s.address }

func (s *keySigner) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.key)
}
