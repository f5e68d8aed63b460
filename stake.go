package runop

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/jerry-enebeli/runop/model"
)

// StakeResult reports what the stake guard observed and did.
type StakeResult struct {
	// Stake is the stake observed before any deposit.
	Stake     *big.Int    `json:"stake"`
	Deposited bool        `json:"deposited"`
	Amount    *big.Int    `json:"amount,omitempty"`
	DepositTx common.Hash `json:"deposit_tx,omitempty"`
	// Warning carries a STAKE_UNAVAILABLE error. The run continues past it.
	Warning error `json:"-"`
}

// EnsureStake deposits for identity at the entry point when its stake is below the
// minimum. Query and deposit failures only produce a warning.
func (r *Runner) EnsureStake(ctx context.Context, identity common.Address) (*StakeResult, error) {
	ctx, span := tracer.Start(ctx, "Ensuring stake")
	defer span.End()

	log := logrus.WithField("identity", identity.Hex())
	warn := func(message string, err error) *StakeResult {
		warning := newRunError(KindStakeUnavailable, "stake", message, err)
		span.RecordError(warning)
		log.Warn(warning)
		return &StakeResult{Warning: warning}
	}

	info, err := r.env.StakeInfo(ctx, identity)
	if err != nil {
		return warn("stake query failed", err), nil
	}
	result := &StakeResult{Stake: info.Stake}
	log.Infof("current stake=%s", model.FormatEther(info.Stake))

	if r.thresholds.StakeSufficient(info.Stake) {
		span.AddEvent("stake sufficient")
		return result, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, cancelled("stake", err)
	}
	amount := r.thresholds.DepositFor(info.Stake)
	log.WithField("amount", model.FormatEther(amount)).Info("depositing for wallet")

	hash, err := r.env.AddDepositTo(ctx, identity, amount)
	if err != nil {
		w := warn("deposit rejected", err)
		w.Stake = info.Stake
		return w, nil
	}
	result.Deposited = true
	result.Amount = amount
	result.DepositTx = hash

	if !r.opts.AwaitDeposit {
		log.WithField("tx_hash", hash.Hex()).Info("deposit sent, not awaiting confirmation")
		return result, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, r.opts.InclusionTimeout)
	defer cancel()
	if _, err := r.env.WaitReceipt(waitCtx, hash); err != nil {
		w := warn("deposit "+hash.Hex()+" not confirmed", err)
		result.Warning = w.Warning
	}
	return result, nil
}
