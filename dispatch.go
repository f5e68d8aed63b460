package runop

import (
	"context"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jerry-enebeli/runop/model"
)

// Dispatch hands call to the signer. There is no retry: any failure is DISPATCH_FAILED.
func (r *Runner) Dispatch(ctx context.Context, call model.Call) (*model.PendingOperation, error) {
	ctx, span := tracer.Start(ctx, "Dispatching operation")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, cancelled("dispatch", err)
	}
	span.SetAttributes(attribute.String("target", call.Contract.Hex()), attribute.String("method", call.Method))

	pending, err := r.signer.Invoke(ctx, call)
	if err != nil {
		return nil, logAndRecordError(span, "dispatch: ", newRunError(KindDispatchFailed, "dispatch", "operation "+call.Method+" rejected", err))
	}
	span.SetAttributes(attribute.String("operation.hash", pending.Hash.Hex()))
	logrus.WithField("op_hash", pending.Hash.Hex()).Info("waiting for mine")
	return pending, nil
}
