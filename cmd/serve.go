package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kilianp07/skyplan/app"
	"github.com/kilianp07/skyplan/infra/logger"
	"github.com/kilianp07/skyplan/infra/metrics"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the planning API and metrics over HTTP",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	return withService(func(ctx context.Context, svc *app.Service) error {
		addr := svc.Addr()
		if serveAddr != "" {
			addr = serveAddr
		}
		logger.New("server").Infof("listening on %s", addr)
		return metrics.Serve(ctx, addr, svc.Handler())
	})
}
