package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/DOIDFoundation/tmrpc/config"
	"github.com/DOIDFoundation/tmrpc/conn"
	"github.com/DOIDFoundation/tmrpc/flags"
	"github.com/DOIDFoundation/tmrpc/rpc"
	cmtos "github.com/cometbft/cometbft/libs/os"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func addWebsocketFlags(cmd *cobra.Command) {
	cmd.Flags().Duration(flags.WS_PingPeriod, viper.GetDuration(flags.WS_PingPeriod), "interval between keepalive pings, 0 disables them")
	cmd.Flags().Int(flags.WS_EventBuffer, viper.GetInt(flags.WS_EventBuffer), "events buffered per subscription")
	cmd.Flags().String(flags.WS_Overflow, viper.GetString(flags.WS_Overflow), "what to do when the buffer is full, block or drop-oldest")
	cmd.Flags().String(flags.Metrics_Addr, "", "serve prometheus metrics on this address, e.g. 127.0.0.1:9090")
}

func serveMetrics(reg *prometheus.Registry) {
	addr := viper.GetString(flags.Metrics_Addr)
	srv := &http.Server{Addr: addr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
	go func() {
		logger.Info("serving metrics", "listenAddr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "err", err)
		}
	}()
}

// SubscribeCmd prints every event of a query until interrupted.
var SubscribeCmd = &cobra.Command{
	Use:     "subscribe <query>",
	Short:   "Subscribe to events and print them",
	Example: `  tmrpc subscribe "tm.event='NewBlock'"`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.RPC()
		if err != nil {
			return err
		}
		if viper.GetString(flags.Metrics_Addr) != "" {
			reg := prometheus.NewRegistry()
			cfg.Metrics = conn.PrometheusMetrics("tmrpc", reg)
			serveMetrics(reg)
		}

		c, err := rpc.NewWebSocketClient(context.Background(), config.Address(), cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		sub, err := c.Subscribe(context.Background(), args[0])
		if err != nil {
			c.Close()
			return err
		}
		logger.Info("subscribed", "query", sub.Query(), "subscription", sub.ID())

		// Stop upon receiving SIGTERM or CTRL-C.
		cmtos.TrapSignal(logger, func() {
			if err := c.Close(); err != nil {
				logger.Error("unable to close connection", "error", err)
			}
		})

		for ev := range sub.Events() {
			if err := printJSON(cmd, ev.Data); err != nil {
				logger.Error("unable to print event", "err", err)
			}
		}
		return sub.Err()
	},
}

func init() {
	addWebsocketFlags(SubscribeCmd)
}
