package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jerry-enebeli/runop"
	"github.com/jerry-enebeli/runop/chain"
	"github.com/jerry-enebeli/runop/config"
	"github.com/jerry-enebeli/runop/database"
	"github.com/jerry-enebeli/runop/deployments"
	redlock "github.com/jerry-enebeli/runop/internal/lock"
	"github.com/jerry-enebeli/runop/internal/notification"
	redis_db "github.com/jerry-enebeli/runop/internal/redis-db"
	trace "github.com/jerry-enebeli/runop/internal/traces"
	"github.com/jerry-enebeli/runop/model"
	"github.com/jerry-enebeli/runop/signer"
)

func configurationError(stage string, err error) error {
	return &runop.RunError{Kind: runop.KindConfiguration, Stage: stage, Err: err}
}

func runCommands(b *runopInstance) *cobra.Command {
	var method, probe string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "fund, stake, dispatch and verify a single user operation",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			record, err := execute(ctx, b.cnf, cmd.OutOrStdout(), method, probe)
			if record != nil {
				if perr := printRecord(cmd.OutOrStdout(), record); perr != nil {
					logrus.WithError(perr).Warn("failed to print inclusion record")
				}
			}
			if err != nil {
				notification.NotifyError(ctx, err)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&method, "method", "count", "target method invoked by the operation")
	cmd.Flags().StringVar(&probe, "probe", "counters", "target view method read for the wallet before and after the run (empty to skip)")

	return cmd
}

// execute wires configuration, deployments, chain client, signer and the optional
// lock and journal into a runner and runs one operation.
func execute(ctx context.Context, cnf *config.Configuration, out io.Writer, method, probe string) (*model.InclusionRecord, error) {
	fmt.Fprintf(out, "net= %s\n", cnf.Network.Name)

	shutdown, err := trace.SetupOTelSDK(ctx, cnf.ProjectName, cnf.Observability.OtelEndpoint)
	if err != nil {
		return nil, configurationError("tracing", err)
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			logrus.WithError(err).Warn("tracing shutdown")
		}
	}()

	store := deployments.NewStore(cnf.Deployments.Dir, cnf.Network.Name)
	addrs, err := store.Addresses(ctx, cnf.Deployments.EntryPoint, cnf.Deployments.Wallet, cnf.Deployments.Target)
	if err != nil {
		return nil, configurationError("deployments", err)
	}
	entryPoint := addrs[cnf.Deployments.EntryPoint]

	fundingKey, err := cnf.FundingKey()
	if err != nil {
		return nil, configurationError("keys", err)
	}
	ownerKey, err := cnf.OwnerKey()
	if err != nil {
		return nil, configurationError("keys", err)
	}
	thresholds, err := cnf.ModelThresholds()
	if err != nil {
		return nil, configurationError("thresholds", err)
	}

	client, err := chain.Dial(ctx, cnf.Network.RPCURL, entryPoint, fundingKey)
	if err != nil {
		return nil, configurationError("chain", err)
	}
	client.SetPollInterval(cnf.PollInterval())

	s, err := signer.New(ctx, client, signer.Options{
		EntryPoint: entryPoint,
		RelayURL:   cnf.Relay.URL,
		Owner:      ownerKey,
		Gas: signer.GasLimits{
			CallGasLimit:         cnf.Gas.CallGasLimit,
			VerificationGasLimit: cnf.Gas.VerificationGasLimit,
			PreVerificationGas:   cnf.Gas.PreVerificationGas,
		},
	})
	if err != nil {
		return nil, configurationError("signer", err)
	}
	if relay, ok := s.(*signer.RelaySigner); ok {
		defer relay.Close()
		logrus.Infof("submitting through relay %s", cnf.Relay.URL)
	} else {
		logrus.Info("no relay configured, submitting handleOps directly")
	}

	opts := runop.Options{
		AwaitDeposit:     cnf.Stake.AwaitDeposit,
		InclusionTimeout: cnf.InclusionTimeout(),
		ExplorerURL:      cnf.Network.ExplorerURL,
	}

	if cnf.Redis.Dns != "" {
		rc, err := redis_db.NewRedisClient(ctx, cnf.Redis.Dns)
		if err != nil {
			return nil, configurationError("redis", err)
		}
		defer rc.Close()
		opts.LockTTL = cnf.LockTTL()
		opts.LockWait = cnf.LockWait()
		opts.Locks = func(identity common.Address, runID string) runop.Lock {
			return redlock.NewIdentityLock(rc, identity.Hex(), runID)
		}
	}

	if cnf.DataSource.Dns != "" {
		ds, err := database.NewDataSource(cnf)
		if err != nil {
			return nil, configurationError("data source", err)
		}
		defer ds.Close()
		opts.Journal = ds
	}

	runner := runop.NewRunner(client, client, s, thresholds, opts)
	return runner.Run(ctx, runop.Plan{
		Wallet: addrs[cnf.Deployments.Wallet],
		Target: model.Call{
			Contract: addrs[cnf.Deployments.Target],
			ABI:      chain.CounterABI,
			Method:   method,
		},
		Probe: probe,
	})
}

// printRecord writes the human summary followed by the record as JSON.
func printRecord(out io.Writer, record *model.InclusionRecord) error {
	fmt.Fprintf(out, "rcpt %s block=%d %s\n", record.TransactionHash.Hex(), record.BlockNumber, record.ExplorerLink)
	fmt.Fprintf(out, "counter after= %s paid= %s gwei gasUsed= %d\n", record.CounterAfter, record.FeeGwei(), record.GasUsed)
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
