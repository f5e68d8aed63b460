package signer

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"

	"github.com/jerry-enebeli/runop/model"
)

var ErrEmptyRelayHash = errors.New("relay returned an empty operation hash")

// RelaySigner submits operations to a remote relay with eth_sendUserOperation.
type RelaySigner struct {
	builder
	relay *rpc.Client
}

func (s *RelaySigner) Invoke(ctx context.Context, call model.Call) (*model.PendingOperation, error) {
	op, localHash, err := s.build(ctx, call)
	if err != nil {
		return nil, err
	}
	fromBlock, err := s.backend.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}

	var opHash common.Hash
	if err := s.relay.CallContext(ctx, &opHash, "eth_sendUserOperation", op, s.entryPoint); err != nil {
		return nil, fmt.Errorf("eth_sendUserOperation: %w", err)
	}
	if opHash == (common.Hash{}) {
		return nil, ErrEmptyRelayHash
	}
	if opHash != localHash {
		logrus.WithFields(logrus.Fields{"relay": opHash.Hex(), "local": localHash.Hex()}).Warn("relay returned a different operation hash")
	}

	backend := s.backend
	return model.NewPendingOperation(opHash, op.Sender, func(ctx context.Context) (*model.Inclusion, error) {
		receipt, err := backend.WaitUserOperation(ctx, opHash, fromBlock)
		if err != nil {
			return nil, err
		}
		return inclusionFrom(receipt), nil
	}), nil
}

// Close releases the relay connection.
func (s *RelaySigner) Close() {
	s.relay.Close()
}
