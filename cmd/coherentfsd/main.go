// Command coherentfsd is the server process: it hosts the Open-Mode
// Arbiter over a configured persistence root and dispatches the nine
// registered RPC procedures.
package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/coherentfs/coherentfs/arbiter"
	"github.com/coherentfs/coherentfs/internal/wlog"
)

var (
	bindAddr    string
	metricsAddr string
	logLevel    = wlog.NewLevelFlag()
)

var rootCmd = &cobra.Command{
	Use:   "coherentfsd <persistence-root>",
	Short: "Run the arbiter server over a persistence root directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := args[0]
		if _, err := os.Stat(root); err != nil {
			return errors.Wrapf(err, "stat persistence root %s", root)
		}

		srv, err := arbiter.NewServer(arbiter.Config{
			Root:        root,
			BindAddr:    bindAddr,
			MetricsAddr: metricsAddr,
		})
		if err != nil {
			return errors.Wrap(err, "build arbiter server")
		}
		wlog.Infof("coherentfsd", "serving %s", root)
		return errors.Wrap(srv.Serve(bindAddr), "serve")
	},
}

func init() {
	rootCmd.Flags().StringVar(&bindAddr, "bind", "127.0.0.1", "address to bind the RPC listener on")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on (empty disables)")
	rootCmd.Flags().VarP(logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		wlog.Errorf("coherentfsd", "%v", err)
		os.Exit(1)
	}
}
