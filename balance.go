package runop

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jerry-enebeli/runop/model"
)

// BalanceResult reports what the balance guard observed and did.
type BalanceResult struct {
	ToppedUp bool `json:"topped_up"`
	// Balance is the balance read before any top-up.
	Balance   *big.Int    `json:"balance"`
	Amount    *big.Int    `json:"amount,omitempty"`
	FundingTx common.Hash `json:"funding_tx,omitempty"`
}

// EnsureBalance tops identity up from the funding account when its balance is below
// the minimum and waits for the funding receipt. Any failure is fatal.
func (r *Runner) EnsureBalance(ctx context.Context, identity common.Address) (*BalanceResult, error) {
	ctx, span := tracer.Start(ctx, "Ensuring balance")
	defer span.End()

	balance, err := r.env.BalanceAt(ctx, identity)
	if err != nil {
		return nil, logAndRecordError(span, "balance query: ", newRunError(KindFundingFailed, "balance", "cannot read identity balance", err))
	}
	result := &BalanceResult{Balance: balance}
	if r.thresholds.BalanceSufficient(balance) {
		span.AddEvent("balance sufficient")
		return result, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, cancelled("balance", err)
	}
	amount := r.thresholds.TopUpFor(balance)
	span.AddEvent("prefunding identity", trace.WithAttributes(attribute.String("amount", model.FormatEther(amount))))
	logrus.WithFields(logrus.Fields{
		"identity": identity.Hex(),
		"balance":  model.FormatEther(balance),
		"amount":   model.FormatEther(amount),
	}).Info("prefund wallet")

	hash, err := r.funder.Transfer(ctx, identity, amount)
	if err != nil {
		return nil, logAndRecordError(span, "funding transfer: ", newRunError(KindFundingFailed, "balance", "funding transfer failed", err))
	}
	result.ToppedUp = true
	result.Amount = amount
	result.FundingTx = hash

	waitCtx, cancel := context.WithTimeout(ctx, r.opts.InclusionTimeout)
	defer cancel()
	if _, err := r.env.WaitReceipt(waitCtx, hash); err != nil {
		return result, logAndRecordError(span, "funding receipt: ", newRunError(KindFundingFailed, "balance", "funding transfer "+hash.Hex()+" not confirmed", err))
	}
	return result, nil
}
