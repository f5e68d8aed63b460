/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package signer builds, signs and submits user operations. A Signer is either a
// RelaySigner, which hands the operation to a remote relay over JSON-RPC, or a
// DebugSigner, which calls the entry point directly from a local key. Exactly one
// is active per run.
package signer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/jerry-enebeli/runop/chain"
	"github.com/jerry-enebeli/runop/model"
)

var (
	ErrNotConnected  = errors.New("signer is not connected to a wallet")
	ErrNoOwnerKey    = errors.New("signer has no owner key")
	ErrUnexpectedOut = errors.New("unexpected wallet nonce output")
)

// Signer is the submission capability used by the runner.
type Signer interface {
	// ConnectWalletAddress binds the signer to an already deployed wallet.
	ConnectWalletAddress(ctx context.Context, wallet common.Address) error
	// Address returns the wallet the signer acts for.
	Address(ctx context.Context) (common.Address, error)
	// Invoke wraps call in a user operation and submits it.
	Invoke(ctx context.Context, call model.Call) (*model.PendingOperation, error)
}

// Backend is what the signers need from the chain.
type Backend interface {
	ChainID() *big.Int
	BlockNumber(ctx context.Context) (uint64, error)
	LocalAddress() common.Address
	Call(ctx context.Context, call model.Call) ([]interface{}, error)
	SuggestFees(ctx context.Context) (tip *big.Int, feeCap *big.Int, err error)
	HandleOps(ctx context.Context, ops []model.UserOperation, beneficiary common.Address) (common.Hash, error)
	WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	WaitUserOperation(ctx context.Context, opHash common.Hash, fromBlock uint64) (*types.Receipt, error)
}

// GasLimits are the fixed gas fields placed on every operation.
type GasLimits struct {
	CallGasLimit         uint64
	VerificationGasLimit uint64
	PreVerificationGas   uint64
}

// Options selects and configures the signer variant.
type Options struct {
	EntryPoint common.Address
	// RelayURL selects the relay variant when set; otherwise the debug variant is used.
	RelayURL string
	Owner    *ecdsa.PrivateKey
	Gas      GasLimits
}

// New returns a RelaySigner when opts.RelayURL is set and a DebugSigner otherwise.
func New(ctx context.Context, backend Backend, opts Options) (Signer, error) {
	if opts.Owner == nil {
		return nil, ErrNoOwnerKey
	}
	b := builder{backend: backend, entryPoint: opts.EntryPoint, owner: opts.Owner, gas: opts.Gas}
	if opts.RelayURL != "" {
		relay, err := rpc.DialContext(ctx, opts.RelayURL)
		if err != nil {
			return nil, fmt.Errorf("dial relay: %w", err)
		}
		return &RelaySigner{builder: b, relay: relay}, nil
	}
	return &DebugSigner{builder: b}, nil
}

// builder holds what both variants share: the connected wallet and the logic that
// turns a call into a signed user operation.
type builder struct {
	backend    Backend
	entryPoint common.Address
	owner      *ecdsa.PrivateKey
	gas        GasLimits
	wallet     common.Address
}

func (b *builder) ConnectWalletAddress(_ context.Context, wallet common.Address) error {
	if wallet == (common.Address{}) {
		return fmt.Errorf("connect wallet: %w", ErrNotConnected)
	}
	b.wallet = wallet
	return nil
}

func (b *builder) Address(_ context.Context) (common.Address, error) {
	if b.wallet == (common.Address{}) {
		return common.Address{}, ErrNotConnected
	}
	return b.wallet, nil
}

// build packs call into the wallet's execute method, fills nonce and fees and signs
// the operation hash. The call is packed before any RPC so malformed calls fail early.
func (b *builder) build(ctx context.Context, call model.Call) (*model.UserOperation, common.Hash, error) {
	if b.wallet == (common.Address{}) {
		return nil, common.Hash{}, ErrNotConnected
	}
	inner, err := call.Pack()
	if err != nil {
		return nil, common.Hash{}, err
	}
	value := call.Value
	if value == nil {
		value = new(big.Int)
	}
	callData, err := chain.WalletABI.Pack("execute", call.Contract, value, inner)
	if err != nil {
		return nil, common.Hash{}, err
	}

	out, err := b.backend.Call(ctx, model.Call{Contract: b.wallet, ABI: chain.WalletABI, Method: "nonce"})
	if err != nil {
		return nil, common.Hash{}, err
	}
	if len(out) != 1 {
		return nil, common.Hash{}, ErrUnexpectedOut
	}
	nonce, ok := out[0].(*big.Int)
	if !ok {
		return nil, common.Hash{}, ErrUnexpectedOut
	}

	tip, feeCap, err := b.backend.SuggestFees(ctx)
	if err != nil {
		return nil, common.Hash{}, err
	}

	op := &model.UserOperation{
		Sender:               b.wallet,
		Nonce:                nonce,
		CallData:             callData,
		CallGasLimit:         new(big.Int).SetUint64(b.gas.CallGasLimit),
		VerificationGasLimit: new(big.Int).SetUint64(b.gas.VerificationGasLimit),
		PreVerificationGas:   new(big.Int).SetUint64(b.gas.PreVerificationGas),
		MaxFeePerGas:         feeCap,
		MaxPriorityFeePerGas: tip,
	}
	hash, err := op.Hash(b.entryPoint, b.backend.ChainID())
	if err != nil {
		return nil, common.Hash{}, err
	}
	op.Signature, err = Sign(b.owner, hash)
	if err != nil {
		return nil, common.Hash{}, err
	}
	return op, hash, nil
}

// Sign produces the wallet owner's personal-message signature over hash, with
// the recovery id in the 27/28 form wallets verify.
func Sign(key *ecdsa.PrivateKey, hash common.Hash) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(hash.Bytes()), key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

func inclusionFrom(receipt *types.Receipt) *model.Inclusion {
	return &model.Inclusion{
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}
}
