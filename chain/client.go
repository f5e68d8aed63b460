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

package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jerry-enebeli/runop/model"
)

const (
	transferGas         = uint64(21000)
	defaultPollInterval = time.Second
)

var ErrReverted = errors.New("transaction reverted")

// Backend is the subset of an Ethereum RPC client the runner needs. *ethclient.Client
// and the simulated backend's client both satisfy it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// Client is the execution-environment capability: balance and stake queries,
// deposits, funding transfers, receipts and entry point events.
type Client struct {
	backend      Backend
	chainID      *big.Int
	entryPoint   common.Address
	contract     *bind.BoundContract
	key          *ecdsa.PrivateKey
	pollInterval time.Duration
}

// Dial connects to rpcURL and builds a Client whose local key is used for funding
// transfers, deposits and local operation submission.
func Dial(ctx context.Context, rpcURL string, entryPoint common.Address, key *ecdsa.PrivateKey) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "dial %s", rpcURL)
	}
	return NewClient(ctx, eth, entryPoint, key)
}

func NewClient(ctx context.Context, backend Backend, entryPoint common.Address, key *ecdsa.PrivateKey) (*Client, error) {
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "fetch chain id")
	}
	return &Client{
		backend:      backend,
		chainID:      chainID,
		entryPoint:   entryPoint,
		contract:     bind.NewBoundContract(entryPoint, EntryPointABI, backend, backend, backend),
		key:          key,
		pollInterval: defaultPollInterval,
	}, nil
}

// SetPollInterval changes how often receipts and events are polled.
func (c *Client) SetPollInterval(d time.Duration) {
	if d > 0 {
		c.pollInterval = d
	}
}

func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

func (c *Client) EntryPoint() common.Address {
	return c.entryPoint
}

// LocalAddress is the address of the local key.
func (c *Client) LocalAddress() common.Address {
	return crypto.PubkeyToAddress(c.key.PublicKey)
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return c.backend.BlockNumber(ctx)
}

func (c *Client) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	balance, err := c.backend.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "balance of %s", addr.Hex())
	}
	return balance, nil
}

// StakeInfo reads the entry point's stake record for addr.
func (c *Client) StakeInfo(ctx context.Context, addr common.Address) (*model.StakeInfo, error) {
	var out []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getStakeInfo", addr)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "getStakeInfo(%s)", addr.Hex())
	}
	if len(out) != 3 {
		return nil, pkgerrors.Errorf("getStakeInfo returned %d values", len(out))
	}
	stake, ok := out[0].(*big.Int)
	if !ok {
		return nil, pkgerrors.Errorf("getStakeInfo stake is %T", out[0])
	}
	delay, ok := out[1].(uint32)
	if !ok {
		return nil, pkgerrors.Errorf("getStakeInfo unstakeDelaySec is %T", out[1])
	}
	withdraw, ok := out[2].(uint64)
	if !ok {
		return nil, pkgerrors.Errorf("getStakeInfo withdrawTime is %T", out[2])
	}
	return &model.StakeInfo{Stake: stake, UnstakeDelaySec: delay, WithdrawTime: withdraw}, nil
}

// AddDepositTo sends amount to the entry point on behalf of addr. It returns once
// the transaction is accepted by the node; use WaitReceipt to confirm it.
func (c *Client) AddDepositTo(ctx context.Context, addr common.Address, amount *big.Int) (common.Hash, error) {
	opts, err := c.transactOpts(ctx, amount)
	if err != nil {
		return common.Hash{}, err
	}
	tx, err := c.contract.Transact(opts, "addDepositTo", addr)
	if err != nil {
		return common.Hash{}, pkgerrors.Wrapf(err, "addDepositTo(%s)", addr.Hex())
	}
	return tx.Hash(), nil
}

// HandleOps submits ops to the entry point directly from the local key. Gas is
// estimated first, so an operation that fails simulation never reaches the chain.
func (c *Client) HandleOps(ctx context.Context, ops []model.UserOperation, beneficiary common.Address) (common.Hash, error) {
	opts, err := c.transactOpts(ctx, nil)
	if err != nil {
		return common.Hash{}, err
	}
	tx, err := c.contract.Transact(opts, "handleOps", ops, beneficiary)
	if err != nil {
		return common.Hash{}, pkgerrors.Wrap(err, "handleOps")
	}
	return tx.Hash(), nil
}

// Transfer sends a plain value transfer from the local key to to.
func (c *Client) Transfer(ctx context.Context, to common.Address, amount *big.Int) (common.Hash, error) {
	from := c.LocalAddress()
	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, pkgerrors.Wrap(err, "pending nonce")
	}
	tip, feeCap, err := c.SuggestFees(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       transferGas,
		To:        &to,
		Value:     amount,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return common.Hash{}, pkgerrors.Wrap(err, "sign transfer")
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, pkgerrors.Wrapf(err, "send transfer to %s", to.Hex())
	}
	logrus.WithFields(logrus.Fields{"to": to.Hex(), "amount": model.FormatEther(amount), "tx": signed.Hash().Hex()}).Debug("transfer sent")
	return signed.Hash(), nil
}

// SuggestFees returns the priority fee and a fee cap of twice the current base fee plus tip.
func (c *Client) SuggestFees(ctx context.Context) (tip *big.Int, feeCap *big.Int, err error) {
	tip, err = c.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(err, "suggest tip")
	}
	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(err, "latest header")
	}
	baseFee := head.BaseFee
	if baseFee == nil {
		baseFee = new(big.Int)
	}
	feeCap = new(big.Int).Add(tip, new(big.Int).Mul(baseFee, big.NewInt(2)))
	return tip, feeCap, nil
}

// Call performs a read-only contract call and returns the decoded outputs.
func (c *Client) Call(ctx context.Context, call model.Call) ([]interface{}, error) {
	contract := bind.NewBoundContract(call.Contract, call.ABI, c.backend, c.backend, c.backend)
	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, call.Method, call.Args...); err != nil {
		return nil, pkgerrors.Wrapf(err, "call %s on %s", call.Method, call.Contract.Hex())
	}
	return out, nil
}

// WaitReceipt polls for the receipt of hash until it exists or ctx is done.
// A reverted transaction yields the receipt together with ErrReverted.
func (c *Client) WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	err := c.poll(ctx, func() error {
		r, err := c.backend.TransactionReceipt(ctx, hash)
		if err != nil {
			if errors.Is(err, ethereum.NotFound) {
				return err
			}
			return backoff.Permanent(err)
		}
		receipt = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, pkgerrors.Wrapf(ErrReverted, "tx %s", hash.Hex())
	}
	return receipt, nil
}

// WaitUserOperation waits for the entry point to emit a UserOperationEvent for
// opHash at or after fromBlock and returns the receipt of the bundle transaction.
func (c *Client) WaitUserOperation(ctx context.Context, opHash common.Hash, fromBlock uint64) (*types.Receipt, error) {
	topic := EntryPointABI.Events["UserOperationEvent"].ID
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		Addresses: []common.Address{c.entryPoint},
		Topics:    [][]common.Hash{{topic}, {opHash}},
	}
	var txHash common.Hash
	err := c.poll(ctx, func() error {
		logs, err := c.backend.FilterLogs(ctx, query)
		if err != nil {
			return backoff.Permanent(err)
		}
		if len(logs) == 0 {
			return ethereum.NotFound
		}
		txHash = logs[0].TxHash
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.WaitReceipt(ctx, txHash)
}

// QueryEvents returns the decoded entry point events in blocks [from, to].
func (c *Client) QueryEvents(ctx context.Context, from, to uint64) ([]model.Event, error) {
	logs, err := c.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{c.entryPoint},
	})
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "filter entry point logs %d-%d", from, to)
	}
	return DecodeLogs(EntryPointABI, logs)
}

func (c *Client) transactOpts(ctx context.Context, value *big.Int) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "transactor")
	}
	opts.Context = ctx
	opts.Value = value
	return opts, nil
}

func (c *Client) poll(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.pollInterval
	b.MaxInterval = 8 * c.pollInterval
	b.MaxElapsedTime = 0
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}
