package commands

import (
	"os"

	"github.com/DOIDFoundation/tmrpc/config"
	"github.com/DOIDFoundation/tmrpc/flags"
	"github.com/cometbft/cometbft/libs/cli"
	cmtflags "github.com/cometbft/cometbft/libs/cli/flags"
	"github.com/cometbft/cometbft/libs/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	logger  = log.NewTMLogger(log.NewSyncWriter(os.Stderr))
	verbose bool
)

// RootCmd is the root command for tmrpc. It is called once in the main
// function.
var RootCmd = &cobra.Command{
	Use:   "tmrpc",
	Short: "JSON-RPC client for CometBFT nodes",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
		viper.AddConfigPath(".")
		if viper.GetBool(flags.Trace) {
			logger = log.NewTracingLogger(logger)
		}

		logger, err = cmtflags.ParseLogLevel(viper.GetString(flags.Log_Level), logger.With("module", "main"), cmd.Flag(flags.Log_Level).DefValue)
		return err
	},
}

func init() {
	config.SetDefaults()
	RootCmd.PersistentFlags().String(flags.Log_Level, "info", "level of logging, can be debug, info, error, none or comma-separated list of module:level pairs with an optional *:level pair (* means all other modules). e.g. 'conn:debug,*:error'")
	RootCmd.PersistentFlags().String(flags.RPC_Addr, config.Address(), "node address, tcp://, http(s):// or ws(s)://")
	RootCmd.PersistentFlags().Duration(flags.RPC_Timeout, viper.GetDuration(flags.RPC_Timeout), "timeout of a single call, 0 for none")
	RootCmd.PersistentFlags().String(flags.RPC_Dialect, viper.GetString(flags.RPC_Dialect), "subscription dialect, tendermint or ethereum[:namespace]")
	RootCmd.AddCommand(
		CallCmd,
		SubscribeCmd,
		RecordCmd,
		FixturesCmd,
		ServeCmd,
		VersionCmd,
		cli.NewCompletionCmd(RootCmd, true),
	)
}
