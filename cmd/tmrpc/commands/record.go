package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/DOIDFoundation/tmrpc/config"
	"github.com/DOIDFoundation/tmrpc/flags"
	"github.com/DOIDFoundation/tmrpc/rpc"
	"github.com/DOIDFoundation/tmrpc/store"
	"github.com/DOIDFoundation/tmrpc/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func addFixtureFlags(cmd *cobra.Command) {
	cmd.Flags().String(flags.Fixtures_Dir, "", "fixture database directory, defaults to $HOME/fixtures")
	cmd.Flags().String(flags.Fixtures_Engine, viper.GetString(flags.Fixtures_Engine), "fixture database backend, goleveldb or memdb")
}

// RecordCmd calls a method on a live node and stores the answer as a
// fixture for the serve command.
var RecordCmd = &cobra.Command{
	Use:   "record <method> [params]",
	Short: "Record the answer of a node as a fixture",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parseParams(args)
		if err != nil {
			return err
		}
		cfg, err := config.RPC()
		if err != nil {
			return err
		}
		fixtures, err := store.NewFixtureStore(logger)
		if err != nil {
			return fmt.Errorf("failed to open fixtures: %w", err)
		}
		defer fixtures.Close()

		c, err := rpc.Dial(context.Background(), config.Address(), cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		defer c.Close()

		f := &store.Fixture{}
		raw, err := c.Call(context.Background(), args[0], params)
		if rpcErr, ok := types.IsRPCError(err); ok {
			f.Error = rpcErr
		} else if err != nil {
			return err
		} else {
			f.Result = raw
		}
		var rawParams json.RawMessage
		if params != nil {
			rawParams = params.(json.RawMessage)
		}
		if err := fixtures.WriteFixture(args[0], rawParams, f); err != nil {
			return err
		}
		logger.Info("recorded fixture", "method", args[0], "error", f.Error != nil)
		return nil
	},
}

// FixturesCmd manages recorded fixtures.
var FixturesCmd = &cobra.Command{
	Use:   "fixtures",
	Short: "List or delete recorded fixtures",
}

var fixturesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List methods with recorded fixtures",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fixtures, err := store.NewFixtureStore(logger)
		if err != nil {
			return fmt.Errorf("failed to open fixtures: %w", err)
		}
		defer fixtures.Close()
		methods, err := fixtures.Methods()
		if err != nil {
			return err
		}
		for _, m := range methods {
			fmt.Fprintln(cmd.OutOrStdout(), m)
		}
		return nil
	},
}

var fixturesDeleteCmd = &cobra.Command{
	Use:   "delete <method>",
	Short: "Delete every fixture of a method",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fixtures, err := store.NewFixtureStore(logger)
		if err != nil {
			return fmt.Errorf("failed to open fixtures: %w", err)
		}
		defer fixtures.Close()
		return fixtures.DeleteFixtures(args[0])
	},
}

func init() {
	addFixtureFlags(RecordCmd)
	addFixtureFlags(fixturesListCmd)
	addFixtureFlags(fixturesDeleteCmd)
	FixturesCmd.AddCommand(fixturesListCmd, fixturesDeleteCmd)
}
