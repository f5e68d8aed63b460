package runop

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/mock"

	"github.com/jerry-enebeli/runop/model"
)

type MockEnvironment struct {
	mock.Mock
}

func (m *MockEnvironment) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	args := m.Called(ctx, addr)
	if v, ok := args.Get(0).(*big.Int); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEnvironment) StakeInfo(ctx context.Context, addr common.Address) (*model.StakeInfo, error) {
	args := m.Called(ctx, addr)
	if v, ok := args.Get(0).(*model.StakeInfo); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEnvironment) AddDepositTo(ctx context.Context, addr common.Address, amount *big.Int) (common.Hash, error) {
	args := m.Called(ctx, addr, amount)
	return args.Get(0).(common.Hash), args.Error(1)
}

func (m *MockEnvironment) QueryEvents(ctx context.Context, from, to uint64) ([]model.Event, error) {
	args := m.Called(ctx, from, to)
	if v, ok := args.Get(0).([]model.Event); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEnvironment) WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	args := m.Called(ctx, hash)
	if v, ok := args.Get(0).(*types.Receipt); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEnvironment) Call(ctx context.Context, call model.Call) ([]interface{}, error) {
	args := m.Called(ctx, call)
	if v, ok := args.Get(0).([]interface{}); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockFunder struct {
	mock.Mock
}

func (m *MockFunder) Transfer(ctx context.Context, to common.Address, amount *big.Int) (common.Hash, error) {
	args := m.Called(ctx, to, amount)
	return args.Get(0).(common.Hash), args.Error(1)
}

type MockSigner struct {
	mock.Mock
}

func (m *MockSigner) ConnectWalletAddress(ctx context.Context, wallet common.Address) error {
	args := m.Called(ctx, wallet)
	return args.Error(0)
}

func (m *MockSigner) Address(ctx context.Context) (common.Address, error) {
	args := m.Called(ctx)
	return args.Get(0).(common.Address), args.Error(1)
}

func (m *MockSigner) Invoke(ctx context.Context, call model.Call) (*model.PendingOperation, error) {
	args := m.Called(ctx, call)
	if v, ok := args.Get(0).(*model.PendingOperation); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockLock struct {
	mock.Mock
}

func (m *MockLock) WaitLock(ctx context.Context, lockTTL, waitTimeout time.Duration) error {
	args := m.Called(ctx, lockTTL, waitTimeout)
	return args.Error(0)
}

func (m *MockLock) ExtendLock(ctx context.Context, extension time.Duration) error {
	args := m.Called(ctx, extension)
	return args.Error(0)
}

func (m *MockLock) Unlock(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
