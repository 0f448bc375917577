package main

import (
	"github.com/spf13/cobra"

	"github.com/pagecast/pagecast/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Pagecast server",
	Long: `Start the Pagecast HTTP server.

This starts the HTTP API server and the conversion worker pool. Jobs
submitted while the server runs are processed in the background and their
finished EPUBs stored under the pagecast home directory.

Examples:
  pagecast serve                 # Start on default port 8080
  pagecast serve --port 3000     # Start on custom port
  pagecast serve --host 0.0.0.0  # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		rt.configMgr.WatchConfig()

		cfg := rt.configMgr.Get()
		host := serveHost
		if host == "" {
			host = cfg.Server.Host
		}
		port := servePort
		if port == "" {
			port = cfg.Server.Port
		}

		srv, err := server.New(server.Config{
			Host:          host,
			Port:          port,
			Orchestrator:  rt.orchestrator,
			Store:         rt.store,
			Pool:          rt.pool,
			ConfigManager: rt.configMgr,
			Home:          rt.home,
			Logger:        rt.logger,
		})
		if err != nil {
			return err
		}

		// Start blocks until shutdown and closes the store.
		return srv.Start(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default from config)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (default from config)")

	rootCmd.AddCommand(serveCmd)
}
