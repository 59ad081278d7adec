package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iota-uz/iota-import/modules/imports/services"
	"github.com/iota-uz/iota-import/pkg/configuration"
)

// cliEnv carries what every subcommand needs from the process configuration.
type cliEnv struct {
	logger *logrus.Logger
	config services.Config
	dsn    string
}

func envFromConfiguration(conf *configuration.Configuration) *cliEnv {
	return &cliEnv{
		logger: conf.Logger(),
		config: services.Config{
			ChunkSize:      conf.Import.ChunkSize,
			ErrorFlushSize: conf.Import.ErrorFlushSize,
			MappingWorkers: conf.Import.MappingWorkers,
			MaxFileBytes:   conf.Import.MaxFileBytes,
		},
		dsn: conf.Database.Opts,
	}
}

func newRootCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "import-data",
		Short:         "Bulk import of customers, contacts, jobs, invoices and estimates",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newRunCmd(env))
	cmd.AddCommand(newSuggestCmd(env))
	cmd.AddCommand(newBatchesCmd(env))
	cmd.AddCommand(newErrorsCmd(env))
	cmd.AddCommand(newUndoCmd(env))
	cmd.AddCommand(newSchemasCmd(env))
	cmd.AddCommand(newMigrateCmd(env))
	return cmd
}

func Execute() {
	conf := configuration.Use()
	err := newRootCmd(envFromConfiguration(conf)).Execute()
	conf.Unload()
	if err != nil {
		code := exitCode(err)
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(code)
	}
}
