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

package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jerry-enebeli/runop"
	"github.com/jerry-enebeli/runop/config"
)

// Runop represents the CLI application, encapsulating the root Cobra command.
type Runop struct {
	cmd *cobra.Command
}

// runopInstance holds the configuration loaded by the persistent pre-run hook.
type runopInstance struct {
	cnf *config.Configuration
}

// recoverPanic handles any panics during program execution and logs the error using Logrus.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration file (and environment overrides) before any command runs.
func preRun(app *runopInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig(*configFile)
		if err != nil {
			return &runop.RunError{Kind: runop.KindConfiguration, Stage: "config", Message: "error loading config", Err: err}
		}

		cnf, err := config.Fetch()
		if err != nil {
			return &runop.RunError{Kind: runop.KindConfiguration, Stage: "config", Err: err}
		}
		app.cnf = cnf
		return nil
	}
}

// NewCLI creates the command-line interface with the run, config and journal commands.
func NewCLI() *Runop {
	var configFile string
	b := &runopInstance{}

	var rootCmd = &cobra.Command{
		Use:           "runop",
		Short:         "Run a single user operation through an account-abstraction entry point",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./runop.json", "Configuration file for runop")
	rootCmd.PersistentPreRunE = preRun(b, &configFile)

	rootCmd.AddCommand(runCommands(b))
	rootCmd.AddCommand(configCommands(b))
	rootCmd.AddCommand(journalCommands(b))

	return &Runop{cmd: rootCmd}
}

// executeCLI runs the root command. It is the only place the process exits with a
// failure status, derived from the error kind.
func (r Runop) executeCLI() {
	if err := r.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(runop.ExitCode(err))
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
