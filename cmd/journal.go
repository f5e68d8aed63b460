package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/jerry-enebeli/runop/config"
	"github.com/jerry-enebeli/runop/database"
)

var errNoDataSource = errors.New("no data source configured, set RUNOP_DATA_SOURCE_DNS")

func openJournal(cnf *config.Configuration) (database.IDataSource, error) {
	if cnf.DataSource.Dns == "" {
		return nil, configurationError("journal", errNoDataSource)
	}
	ds, err := database.NewDataSource(cnf)
	if err != nil {
		return nil, configurationError("journal", err)
	}
	return ds, nil
}

func journalCommands(b *runopInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "inspect journaled inclusions",
	}

	show := &cobra.Command{
		Use:   "show <run-id>",
		Short: "print the inclusion recorded for a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := openJournal(b.cnf)
			if err != nil {
				return err
			}
			defer ds.Close()

			record, err := ds.GetInclusion(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printRecord(cmd.OutOrStdout(), record)
		},
	}

	var limit int
	list := &cobra.Command{
		Use:   "list <identity>",
		Short: "list the latest inclusions of a wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !common.IsHexAddress(args[0]) {
				return fmt.Errorf("invalid identity address %q", args[0])
			}
			ds, err := openJournal(b.cnf)
			if err != nil {
				return err
			}
			defer ds.Close()

			records, err := ds.GetInclusionsByIdentity(cmd.Context(), common.HexToAddress(args[0]), limit)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(records, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "maximum number of records")

	cmd.AddCommand(show, list)
	return cmd
}
