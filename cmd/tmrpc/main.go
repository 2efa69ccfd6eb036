package main

import (
	"os"
	"path/filepath"

	"github.com/DOIDFoundation/tmrpc/cmd/tmrpc/commands"

	"github.com/cometbft/cometbft/libs/cli"
)

func main() {
	cmd := cli.PrepareBaseCmd(commands.RootCmd, "TMRPC", os.ExpandEnv(filepath.Join("$HOME", ".tmrpc")))

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
