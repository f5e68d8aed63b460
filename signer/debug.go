package signer

import (
	"context"

	"github.com/jerry-enebeli/runop/model"
)

// DebugSigner executes operations by calling the entry point's handleOps from the
// local key, which also collects the fee as beneficiary.
type DebugSigner struct {
	builder
}

func (s *DebugSigner) Invoke(ctx context.Context, call model.Call) (*model.PendingOperation, error) {
	op, opHash, err := s.build(ctx, call)
	if err != nil {
		return nil, err
	}
	txHash, err := s.backend.HandleOps(ctx, []model.UserOperation{*op}, s.backend.LocalAddress())
	if err != nil {
		return nil, err
	}

	backend := s.backend
	return model.NewPendingOperation(opHash, op.Sender, func(ctx context.Context) (*model.Inclusion, error) {
		receipt, err := backend.WaitReceipt(ctx, txHash)
		if err != nil {
			return nil, err
		}
		return inclusionFrom(receipt), nil
	}), nil
}
