package commands

import (
	"fmt"

	"github.com/DOIDFoundation/tmrpc/config"
	"github.com/DOIDFoundation/tmrpc/flags"
	"github.com/DOIDFoundation/tmrpc/mock"
	"github.com/DOIDFoundation/tmrpc/store"
	"github.com/cometbft/cometbft/libs/os"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ServeCmd runs a stub node answering from recorded fixtures.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a stub node that answers from recorded fixtures",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fixtures, err := store.NewFixtureStore(logger)
		if err != nil {
			return fmt.Errorf("failed to open fixtures: %w", err)
		}

		s := mock.NewServer(mock.FixtureMatcher(fixtures), config.Server(), logger)
		if err := s.Start(); err != nil {
			fixtures.Close()
			return fmt.Errorf("failed to start stub node: %w", err)
		}

		logger.Info("started stub node")

		// Stop upon receiving SIGTERM or CTRL-C.
		os.TrapSignal(logger, func() {
			if s.IsRunning() {
				if err := s.Stop(); err != nil {
					logger.Error("unable to stop the stub node", "error", err)
				}
			}
			fixtures.Close()
		})

		// Run forever.
		select {}
	},
}

func init() {
	ServeCmd.Flags().String(flags.Serve_Addr, viper.GetString(flags.Serve_Addr), "address to listen on")
	addFixtureFlags(ServeCmd)
}
