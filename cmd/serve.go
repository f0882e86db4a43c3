package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aerosolar/solar-cli/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the solar analysis API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		eng, err := initEngine()
		if err != nil {
			return err
		}

		srvCfg := cfg.Server
		if servePort != 0 {
			srvCfg.Port = servePort
		}

		srv := server.New(srvCfg, eng.cache, eng.cache, eng.registry, eng.regions, defaultQuery())
		return srv.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
