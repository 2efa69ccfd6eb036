package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/DOIDFoundation/tmrpc/config"
	"github.com/DOIDFoundation/tmrpc/rpc"
	"github.com/spf13/cobra"
)

func parseParams(args []string) (interface{}, error) {
	if len(args) < 2 {
		return nil, nil
	}
	if !json.Valid([]byte(args[1])) {
		return nil, fmt.Errorf("params must be JSON: %s", args[1])
	}
	return json.RawMessage(args[1]), nil
}

func printJSON(cmd *cobra.Command, raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), buf.String())
	return nil
}

// CallCmd calls a method once and prints the result.
var CallCmd = &cobra.Command{
	Use:     "call <method> [params]",
	Short:   "Call a method on the node",
	Example: `  tmrpc call block '{"height":"5"}'`,
	Args:    cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parseParams(args)
		if err != nil {
			return err
		}
		cfg, err := config.RPC()
		if err != nil {
			return err
		}
		c, err := rpc.Dial(context.Background(), config.Address(), cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		defer c.Close()

		raw, err := c.Call(context.Background(), args[0], params)
		if err != nil {
			return err
		}
		return printJSON(cmd, raw)
	},
}
