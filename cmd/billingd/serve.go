package main

import (
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/billable/pkg/httpserver"
)

func newServeCmd(envFiles *[]string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the billing API and webhook endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadAppConfig(*envFiles)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			log := newLogger(cfg)
			ctx := cmd.Context()

			a, err := buildApp(ctx, cfg, *envFiles, log)
			if err != nil {
				return err
			}
			srv := httpserver.NewFromConfig(cfg.HTTP, a.serverOptions()...)
			return srv.Run(ctx, a.router())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides HTTP_ADDR")
	return cmd
}
