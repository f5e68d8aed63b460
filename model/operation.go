package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrMissingMethod = errors.New("call has no method")
	ErrNoWaiter      = errors.New("pending operation cannot be awaited")
)

// Call is a contract method invocation: the state change an operation carries.
type Call struct {
	Contract common.Address
	ABI      abi.ABI
	Method   string
	Args     []interface{}
	Value    *big.Int
}

// Pack encodes the call data. It never touches the network, so a malformed
// method or argument list fails here before anything is sent.
func (c Call) Pack() ([]byte, error) {
	if c.Method == "" {
		return nil, ErrMissingMethod
	}
	data, err := c.ABI.Pack(c.Method, c.Args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", c.Method, err)
	}
	return data, nil
}

// UserOperation is the meta-transaction submitted to the entry point. Field names
// follow the entry point's struct so the ABI encoder can map them.
type UserOperation struct {
	Sender               common.Address
	Nonce                *big.Int
	InitCode             []byte
	CallData             []byte
	CallGasLimit         *big.Int
	VerificationGasLimit *big.Int
	PreVerificationGas   *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	PaymasterAndData     []byte
	Signature            []byte
}

var (
	addressType, _ = abi.NewType("address", "", nil)
	uint256Type, _ = abi.NewType("uint256", "", nil)
	bytes32Type, _ = abi.NewType("bytes32", "", nil)

	userOpPackArgs = abi.Arguments{
		{Type: addressType}, {Type: uint256Type}, {Type: bytes32Type}, {Type: bytes32Type},
		{Type: uint256Type}, {Type: uint256Type}, {Type: uint256Type}, {Type: uint256Type},
		{Type: uint256Type}, {Type: bytes32Type},
	}
	userOpHashArgs = abi.Arguments{{Type: bytes32Type}, {Type: addressType}, {Type: uint256Type}}
)

// Hash returns the operation hash the wallet owner signs: the packed operation
// (signature excluded) bound to the entry point address and chain id.
func (op *UserOperation) Hash(entryPoint common.Address, chainID *big.Int) (common.Hash, error) {
	packed, err := userOpPackArgs.Pack(
		op.Sender,
		zeroIfNil(op.Nonce),
		[32]byte(crypto.Keccak256Hash(op.InitCode)),
		[32]byte(crypto.Keccak256Hash(op.CallData)),
		zeroIfNil(op.CallGasLimit),
		zeroIfNil(op.VerificationGasLimit),
		zeroIfNil(op.PreVerificationGas),
		zeroIfNil(op.MaxFeePerGas),
		zeroIfNil(op.MaxPriorityFeePerGas),
		[32]byte(crypto.Keccak256Hash(op.PaymasterAndData)),
	)
	if err != nil {
		return common.Hash{}, err
	}
	enc, err := userOpHashArgs.Pack([32]byte(crypto.Keccak256Hash(packed)), entryPoint, zeroIfNil(chainID))
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(enc), nil
}

// MarshalJSON renders the operation in the hex encoding relays expect.
func (op UserOperation) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Sender               common.Address `json:"sender"`
		Nonce                *hexutil.Big   `json:"nonce"`
		InitCode             hexutil.Bytes  `json:"initCode"`
		CallData             hexutil.Bytes  `json:"callData"`
		CallGasLimit         *hexutil.Big   `json:"callGasLimit"`
		VerificationGasLimit *hexutil.Big   `json:"verificationGasLimit"`
		PreVerificationGas   *hexutil.Big   `json:"preVerificationGas"`
		MaxFeePerGas         *hexutil.Big   `json:"maxFeePerGas"`
		MaxPriorityFeePerGas *hexutil.Big   `json:"maxPriorityFeePerGas"`
		PaymasterAndData     hexutil.Bytes  `json:"paymasterAndData"`
		Signature            hexutil.Bytes  `json:"signature"`
	}{
		Sender:               op.Sender,
		Nonce:                (*hexutil.Big)(zeroIfNil(op.Nonce)),
		InitCode:             op.InitCode,
		CallData:             op.CallData,
		CallGasLimit:         (*hexutil.Big)(zeroIfNil(op.CallGasLimit)),
		VerificationGasLimit: (*hexutil.Big)(zeroIfNil(op.VerificationGasLimit)),
		PreVerificationGas:   (*hexutil.Big)(zeroIfNil(op.PreVerificationGas)),
		MaxFeePerGas:         (*hexutil.Big)(zeroIfNil(op.MaxFeePerGas)),
		MaxPriorityFeePerGas: (*hexutil.Big)(zeroIfNil(op.MaxPriorityFeePerGas)),
		PaymasterAndData:     op.PaymasterAndData,
		Signature:            op.Signature,
	})
}

// Inclusion is what a pending operation resolves to once it is mined.
type Inclusion struct {
	TxHash      common.Hash `json:"tx_hash"`
	BlockNumber uint64      `json:"block_number"`
	GasUsed     uint64      `json:"gas_used"`
}

// WaitFunc blocks until the operation is included or ctx is done.
type WaitFunc func(ctx context.Context) (*Inclusion, error)

// PendingOperation is the handle returned by a signer after submission.
type PendingOperation struct {
	Hash   common.Hash    `json:"hash"`
	Sender common.Address `json:"sender"`
	wait   WaitFunc
}

func NewPendingOperation(hash common.Hash, sender common.Address, wait WaitFunc) *PendingOperation {
	return &PendingOperation{Hash: hash, Sender: sender, wait: wait}
}

// Wait blocks until inclusion. Callers bound it through ctx.
func (p *PendingOperation) Wait(ctx context.Context) (*Inclusion, error) {
	if p == nil || p.wait == nil {
		return nil, ErrNoWaiter
	}
	return p.wait(ctx)
}
