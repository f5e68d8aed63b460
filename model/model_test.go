package model

import (
	"context"
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const counterABI = `[{"inputs":[],"name":"count","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"internalType":"address","name":"","type":"address"}],"name":"counters","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

func TestGenerateUUIDWithSuffix(t *testing.T) {
	module := "run"
	id := GenerateUUIDWithSuffix(module)
	assert.True(t, strings.HasPrefix(id, module+"_"))
}

func TestParseEther(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{name: "one hundredth", input: "0.01", expected: "10000000000000000"},
		{name: "whole", input: "2", expected: "2000000000000000000"},
		{name: "padded", input: " 0.5 ", expected: "500000000000000000"},
		{name: "smallest unit", input: "0.000000000000000001", expected: "1"},
		{name: "too precise", input: "0.0000000000000000001", wantErr: true},
		{name: "negative", input: "-1", wantErr: true},
		{name: "garbage", input: "ten", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wei, err := ParseEther(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, wei.String())
		})
	}
}

func TestFormatGwei(t *testing.T) {
	assert.Equal(t, "21000", FormatGwei(big.NewInt(21_000_000_000_000)))
	assert.Equal(t, "0.5", FormatGwei(big.NewInt(500_000_000)))
	assert.Equal(t, "0", FormatGwei(nil))
	assert.Equal(t, "0.01", FormatEther(big.NewInt(10_000_000_000_000_000)))
}

func TestThresholds_TopUpFor(t *testing.T) {
	minBalance, _ := ParseEther("0.01")
	th := Thresholds{MinBalance: minBalance, TopUpAmount: minBalance}

	// zero balance is funded with exactly the minimum
	assert.Equal(t, minBalance, th.TopUpFor(big.NewInt(0)))

	// a deficit larger than the top-up amount is covered in full
	th.TopUpAmount = big.NewInt(1)
	assert.Equal(t, minBalance, th.TopUpFor(big.NewInt(0)))
	assert.True(t, th.BalanceSufficient(minBalance))
	assert.False(t, th.BalanceSufficient(new(big.Int).Sub(minBalance, big.NewInt(1))))
}

func TestThresholds_DepositFor(t *testing.T) {
	minStake, _ := ParseEther("0.01")
	th := Thresholds{MinStake: minStake, DepositAmount: minStake}

	stake, _ := ParseEther("0.02")
	assert.True(t, th.StakeSufficient(stake))
	assert.Equal(t, minStake, th.DepositFor(big.NewInt(0)))
}

func TestComputeFee_ExactSubtraction(t *testing.T) {
	for i := 0; i < 50; i++ {
		pre := new(big.Int).SetUint64(gofakeit.Uint64())
		fee := new(big.Int).SetUint64(uint64(gofakeit.Uint32()))
		pre.Add(pre, fee)
		post := new(big.Int).Sub(pre, fee)

		assert.Equal(t, 0, ComputeFee(pre, post).Cmp(fee))
		// recomputation yields the same value
		assert.Equal(t, ComputeFee(pre, post), ComputeFee(pre, post))
	}
}

func TestCall_Pack(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(counterABI))
	require.NoError(t, err)

	data, err := Call{ABI: parsed, Method: "count"}.Pack()
	require.NoError(t, err)
	assert.Equal(t, parsed.Methods["count"].ID, data)

	_, err = Call{ABI: parsed, Method: "missing"}.Pack()
	assert.Error(t, err)

	_, err = Call{ABI: parsed, Method: "counters", Args: []interface{}{"not an address"}}.Pack()
	assert.Error(t, err)

	_, err = Call{ABI: parsed}.Pack()
	assert.ErrorIs(t, err, ErrMissingMethod)
}

func TestUserOperation_Hash(t *testing.T) {
	op := &UserOperation{
		Sender:               common.HexToAddress("0x1000000000000000000000000000000000000001"),
		Nonce:                big.NewInt(1),
		CallData:             []byte{0xde, 0xad},
		CallGasLimit:         big.NewInt(200000),
		VerificationGasLimit: big.NewInt(150000),
		PreVerificationGas:   big.NewInt(50000),
		MaxFeePerGas:         big.NewInt(2_000_000_000),
		MaxPriorityFeePerGas: big.NewInt(1_000_000_000),
	}
	entryPoint := common.HexToAddress("0x2000000000000000000000000000000000000002")

	h1, err := op.Hash(entryPoint, big.NewInt(1337))
	require.NoError(t, err)
	h2, err := op.Hash(entryPoint, big.NewInt(1337))
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	// the signature is not part of the hash
	op.Signature = []byte{1, 2, 3}
	h3, err := op.Hash(entryPoint, big.NewInt(1337))
	require.NoError(t, err)
	assert.Equal(t, h1, h3)

	other, err := op.Hash(entryPoint, big.NewInt(1))
	require.NoError(t, err)
	assert.NotEqual(t, h1, other)
}

func TestUserOperation_MarshalJSON(t *testing.T) {
	op := UserOperation{
		Sender:   common.HexToAddress("0x1000000000000000000000000000000000000001"),
		Nonce:    big.NewInt(16),
		CallData: []byte{0x01},
	}
	data, err := json.Marshal(op)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "0x10", decoded["nonce"])
	assert.Equal(t, "0x01", decoded["callData"])
	assert.Equal(t, "0x0", decoded["callGasLimit"])
	assert.Equal(t, "0x", decoded["signature"])
}

func TestPendingOperation_Wait(t *testing.T) {
	var empty *PendingOperation
	_, err := empty.Wait(context.Background())
	assert.ErrorIs(t, err, ErrNoWaiter)

	p := NewPendingOperation(common.HexToHash("0x01"), common.Address{}, func(ctx context.Context) (*Inclusion, error) {
		return &Inclusion{BlockNumber: 7}, nil
	})
	inc, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(7), inc.BlockNumber)
}

func TestInclusionRecord_EventsFrom(t *testing.T) {
	entryPoint := common.HexToAddress("0x2000000000000000000000000000000000000002")
	rec := &InclusionRecord{
		FeePaid: big.NewInt(1_500_000_000),
		Events: []Event{
			{Name: "UserOperationEvent", Address: entryPoint},
			{Name: "Transfer", Address: common.HexToAddress("0x03")},
		},
	}
	assert.Len(t, rec.EventsFrom(entryPoint), 1)
	assert.Equal(t, "1.5", rec.FeeGwei())
}

func TestInclusionRecord_FeeGweiUnknown(t *testing.T) {
	rec := &InclusionRecord{BlockNumber: 9}
	assert.Equal(t, "unknown", rec.FeeGwei())
}
