package model

import "math/big"

// Thresholds holds the preconditions that must hold before dispatch, in wei.
type Thresholds struct {
	MinBalance    *big.Int `json:"min_balance"`
	TopUpAmount   *big.Int `json:"top_up_amount"`
	MinStake      *big.Int `json:"min_stake"`
	DepositAmount *big.Int `json:"deposit_amount"`
}

// TopUpFor returns the amount the funding source has to send so that balance reaches
// MinBalance: the configured top-up, or the full deficit when that is larger.
func (t Thresholds) TopUpFor(balance *big.Int) *big.Int {
	deficit := new(big.Int).Sub(zeroIfNil(t.MinBalance), zeroIfNil(balance))
	amount := zeroIfNil(t.TopUpAmount)
	if deficit.Cmp(amount) > 0 {
		return deficit
	}
	return amount
}

// DepositFor returns the deposit needed to lift stake to MinStake, never less than DepositAmount.
func (t Thresholds) DepositFor(stake *big.Int) *big.Int {
	deficit := new(big.Int).Sub(zeroIfNil(t.MinStake), zeroIfNil(stake))
	amount := zeroIfNil(t.DepositAmount)
	if deficit.Cmp(amount) > 0 {
		return deficit
	}
	return amount
}

// BalanceSufficient reports whether balance >= MinBalance.
func (t Thresholds) BalanceSufficient(balance *big.Int) bool {
	return zeroIfNil(balance).Cmp(zeroIfNil(t.MinBalance)) >= 0
}

// StakeSufficient reports whether stake >= MinStake.
func (t Thresholds) StakeSufficient(stake *big.Int) bool {
	return zeroIfNil(stake).Cmp(zeroIfNil(t.MinStake)) >= 0
}

// StakeInfo is the entry point's view of an account's stake.
type StakeInfo struct {
	Stake           *big.Int `json:"stake"`
	UnstakeDelaySec uint32   `json:"unstake_delay_sec"`
	WithdrawTime    uint64   `json:"withdraw_time"`
}
