package runop

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jerry-enebeli/runop/model"
)

// VerifyInclusion waits for pending within the inclusion timeout, then computes the
// fee identity paid relative to pre and decodes the entry point events of the
// inclusion block.
//
// Once the operation is included a record is always returned. When the post-inclusion
// balance cannot be read it carries no fee and comes with ACCOUNTING_FAILED. When only
// the event query fails it carries EventsError and comes with EVENT_QUERY_FAILED.
func (r *Runner) VerifyInclusion(ctx context.Context, identity common.Address, pending *model.PendingOperation, pre *big.Int) (*model.InclusionRecord, error) {
	ctx, span := tracer.Start(ctx, "Verifying inclusion")
	defer span.End()

	waitCtx, cancel := context.WithTimeout(ctx, r.opts.InclusionTimeout)
	defer cancel()

	inclusion, err := pending.Wait(waitCtx)
	if err != nil {
		switch {
		case errors.Is(waitCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
			return nil, logAndRecordError(span, "inclusion: ", newRunError(KindInclusionTimeout, "inclusion",
				"operation "+pending.Hash.Hex()+" not included within "+r.opts.InclusionTimeout.String(), err))
		case ctx.Err() != nil:
			return nil, newRunError(KindCancelled, "inclusion", "wait abandoned", err)
		default:
			return nil, logAndRecordError(span, "inclusion: ", newRunError(KindDispatchFailed, "inclusion", "operation "+pending.Hash.Hex()+" failed", err))
		}
	}
	span.AddEvent("included", trace.WithAttributes(
		attribute.String("tx_hash", inclusion.TxHash.Hex()),
		attribute.Int64("block", int64(inclusion.BlockNumber)),
	))
	logrus.WithFields(logrus.Fields{
		"tx_hash":  inclusion.TxHash.Hex(),
		"block":    inclusion.BlockNumber,
		"gas_used": inclusion.GasUsed,
	}).Info("operation included")

	preBalance := new(big.Int)
	if pre != nil {
		preBalance.Set(pre)
	}
	record := &model.InclusionRecord{
		Identity:        identity,
		OperationHash:   pending.Hash,
		TransactionHash: inclusion.TxHash,
		BlockNumber:     inclusion.BlockNumber,
		GasUsed:         inclusion.GasUsed,
		PreBalance:      preBalance,
		CreatedAt:       time.Now(),
	}

	post, err := r.env.BalanceAt(ctx, identity)
	if err != nil {
		return record, logAndRecordError(span, "post-inclusion balance: ", newRunError(KindAccountingFailed, "inclusion", "inclusion stands, fee unknown", err))
	}
	record.PostBalance = post
	record.FeePaid = model.ComputeFee(preBalance, post)

	events, err := r.env.QueryEvents(ctx, inclusion.BlockNumber, inclusion.BlockNumber)
	if err != nil {
		queryErr := newRunError(KindEventQueryFailed, "events", "inclusion stands, events unavailable", err)
		record.EventsError = queryErr.Error()
		span.RecordError(queryErr)
		logrus.Warn(queryErr)
		return record, queryErr
	}
	record.Events = events
	for _, ev := range events {
		logrus.WithFields(logrus.Fields{"ev": ev.Name, "block": ev.BlockNumber}).Info(ev.Args)
	}
	return record, nil
}
