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

// Package runop runs a single account-abstraction user operation through an entry
// point: it funds and stakes the sending wallet, dispatches the operation through a
// signer and verifies that it was included.
package runop

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jerry-enebeli/runop/model"
	"github.com/jerry-enebeli/runop/signer"
)

var (
	tracer = otel.Tracer("runop.pipeline")
)

const (
	DefaultInclusionTimeout = 2 * time.Minute
	DefaultLockWait         = 30 * time.Second
	// LockMargin is added to every identity lock lease on top of the waits it covers.
	LockMargin = time.Minute
)

// MinLockTTL is the shortest identity lock lease a run may hold: the funding,
// deposit and inclusion waits, each bounded by inclusionTimeout, plus LockMargin.
func MinLockTTL(inclusionTimeout time.Duration) time.Duration {
	return 3*inclusionTimeout + LockMargin
}

// Environment is the execution environment the pipeline reads from and deposits into.
// *chain.Client implements it.
type Environment interface {
	BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error)
	StakeInfo(ctx context.Context, addr common.Address) (*model.StakeInfo, error)
	AddDepositTo(ctx context.Context, addr common.Address, amount *big.Int) (common.Hash, error)
	QueryEvents(ctx context.Context, from, to uint64) ([]model.Event, error)
	WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	Call(ctx context.Context, call model.Call) ([]interface{}, error)
}

// Funder sends plain value transfers from the funding account.
type Funder interface {
	Transfer(ctx context.Context, to common.Address, amount *big.Int) (common.Hash, error)
}

// Journal persists inclusion records. database.Datasource implements it.
type Journal interface {
	RecordInclusion(ctx context.Context, record *model.InclusionRecord) (*model.InclusionRecord, error)
}

// Lock serialises operations for one identity. *redlock.Locker implements it.
type Lock interface {
	WaitLock(ctx context.Context, lockTTL, waitTimeout time.Duration) error
	ExtendLock(ctx context.Context, extension time.Duration) error
	Unlock(ctx context.Context) error
}

// LockFactory returns the lock guarding identity for the run runID.
type LockFactory func(identity common.Address, runID string) Lock

type Options struct {
	// AwaitDeposit waits for the stake deposit receipt before dispatch.
	AwaitDeposit bool
	// InclusionTimeout bounds every receipt wait: funding, deposit and inclusion.
	InclusionTimeout time.Duration
	// ExplorerURL is the block explorer base used to build transaction links.
	ExplorerURL string
	Journal     Journal
	Locks       LockFactory
	// LockTTL is raised to MinLockTTL(InclusionTimeout) when shorter.
	LockTTL  time.Duration
	LockWait time.Duration
}

// Plan describes the single operation to run.
type Plan struct {
	Wallet common.Address
	Target model.Call
	// Probe names a view method on the target taking the identity, read before and after the run.
	Probe string
}

type Runner struct {
	env        Environment
	funder     Funder
	signer     signer.Signer
	thresholds model.Thresholds
	opts       Options
}

func NewRunner(env Environment, funder Funder, s signer.Signer, thresholds model.Thresholds, opts Options) *Runner {
	if opts.InclusionTimeout <= 0 {
		opts.InclusionTimeout = DefaultInclusionTimeout
	}
	if floor := MinLockTTL(opts.InclusionTimeout); opts.LockTTL < floor {
		opts.LockTTL = floor
	}
	if opts.LockWait <= 0 {
		opts.LockWait = DefaultLockWait
	}
	return &Runner{env: env, funder: funder, signer: s, thresholds: thresholds, opts: opts}
}

func logAndRecordError(span trace.Span, msg string, err error) error {
	span.RecordError(err)
	logrus.Error(msg, err)
	return err
}

func cancelled(stage string, err error) error {
	return newRunError(KindCancelled, stage, "aborted before any mutating call", err)
}

// Run executes plan: balance guard, stake guard, dispatch and inclusion, in that order.
// A non-nil record is returned whenever the operation was included, even when the
// event query failed.
func (r *Runner) Run(ctx context.Context, plan Plan) (*model.InclusionRecord, error) {
	runID := model.GenerateUUIDWithSuffix("run")
	ctx, span := tracer.Start(ctx, "Running operation")
	defer span.End()
	span.SetAttributes(attribute.String("run.id", runID))

	if err := ctx.Err(); err != nil {
		return nil, cancelled("connect", err)
	}
	if err := r.signer.ConnectWalletAddress(ctx, plan.Wallet); err != nil {
		return nil, logAndRecordError(span, "connect wallet: ", newRunError(KindConfiguration, "connect", "cannot connect wallet", err))
	}
	identity, err := r.signer.Address(ctx)
	if err != nil {
		return nil, logAndRecordError(span, "resolve identity: ", newRunError(KindConfiguration, "connect", "cannot resolve wallet address", err))
	}
	span.SetAttributes(attribute.String("identity", identity.Hex()))
	log := logrus.WithFields(logrus.Fields{"run_id": runID, "identity": identity.Hex()})

	var lock Lock
	if r.opts.Locks != nil {
		lock = r.opts.Locks(identity, runID)
		if err := lock.WaitLock(ctx, r.opts.LockTTL, r.opts.LockWait); err != nil {
			if ctx.Err() != nil {
				return nil, cancelled("lock", err)
			}
			return nil, logAndRecordError(span, "identity lock: ", newRunError(KindIdentityBusy, "lock", "another operation is in flight for this identity", err))
		}
		defer func() {
			if err := lock.Unlock(context.WithoutCancel(ctx)); err != nil {
				log.WithError(err).Warn("failed to release identity lock")
			}
		}()
	}

	if _, err := r.EnsureBalance(ctx, identity); err != nil {
		return nil, err
	}
	stake, err := r.EnsureStake(ctx, identity)
	if err != nil {
		return nil, err
	}

	pre, err := r.env.BalanceAt(ctx, identity)
	if err != nil {
		return nil, logAndRecordError(span, "pre-dispatch balance: ", newRunError(KindAccountingFailed, "snapshot", "cannot read balance before dispatch", err))
	}
	counterBefore := r.probe(ctx, plan, identity)
	log.Infof("current counter=%s balance=%s stake=%s", counterBefore, model.FormatEther(pre), model.FormatEther(stake.Stake))

	pending, err := r.Dispatch(ctx, plan.Target)
	if err != nil {
		return nil, err
	}

	// the operation is irrevocable from here on
	ctx = context.WithoutCancel(ctx)

	if lock != nil {
		if err := lock.ExtendLock(ctx, r.opts.InclusionTimeout+LockMargin); err != nil {
			span.RecordError(err)
			log.WithError(err).Warn("failed to renew identity lock")
		}
	}

	record, verifyErr := r.VerifyInclusion(ctx, identity, pending, pre)
	if record == nil {
		return nil, verifyErr
	}
	record.RunID = runID
	record.CounterBefore = counterBefore
	record.CounterAfter = r.probe(ctx, plan, identity)
	record.ExplorerLink = r.explorerLink(record.TransactionHash)

	log.WithFields(logrus.Fields{
		"tx_hash":  record.TransactionHash.Hex(),
		"block":    record.BlockNumber,
		"gas_used": record.GasUsed,
	}).Infof("counter after=%s paid=%s gwei", record.CounterAfter, record.FeeGwei())
	if record.ExplorerLink != "" {
		log.Infof("explorer: %s", record.ExplorerLink)
	}

	if r.opts.Journal != nil {
		if _, err := r.opts.Journal.RecordInclusion(ctx, record); err != nil {
			span.RecordError(err)
			log.WithError(err).Warn("failed to journal inclusion")
		}
	}

	return record, verifyErr
}

func (r *Runner) probe(ctx context.Context, plan Plan, identity common.Address) string {
	if plan.Probe == "" {
		return ""
	}
	out, err := r.env.Call(ctx, model.Call{
		Contract: plan.Target.Contract,
		ABI:      plan.Target.ABI,
		Method:   plan.Probe,
		Args:     []interface{}{identity},
	})
	if err != nil {
		logrus.WithError(err).Debugf("probe %s failed", plan.Probe)
		return ""
	}
	if len(out) == 0 {
		return ""
	}
	return fmt.Sprint(out[0])
}

func (r *Runner) explorerLink(tx common.Hash) string {
	if r.opts.ExplorerURL == "" {
		return ""
	}
	return strings.TrimRight(r.opts.ExplorerURL, "/") + "/tx/" + tx.Hex()
}
