// Command coherentfsmount is the client process: it mounts a FUSE
// filesystem backed by a Client Session Manager talking to a
// coherentfsd server named by SERVER_ADDRESS/SERVER_PORT.
package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/coherentfs/coherentfs/internal/fuseio"
	"github.com/coherentfs/coherentfs/internal/rpcapi"
	"github.com/coherentfs/coherentfs/internal/wlog"
	"github.com/coherentfs/coherentfs/vfs"
)

var (
	freshness   time.Duration
	metricsAddr string
	logLevel    = wlog.NewLevelFlag()
)

var rootCmd = &cobra.Command{
	Use:   "coherentfsmount <mount-point> <cache-dir>",
	Short: "Mount a coherent network filesystem backed by a coherentfsd server",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mountPoint, cacheDir := args[0], args[1]
		if err := os.MkdirAll(cacheDir, 0755); err != nil {
			return errors.Wrapf(err, "create cache dir %s", cacheDir)
		}

		client, err := rpcapi.ClientInit()
		if err != nil {
			return errors.Wrap(err, "dial server")
		}
		defer rpcapi.ClientDestroy(client)

		cst := vfs.NewCST()
		var stats *vfs.Metrics
		var reg *prometheus.Registry
		if metricsAddr != "" {
			reg = prometheus.NewRegistry()
			stats = vfs.NewMetrics(reg, cst)
		}

		remote := vfs.NewRemote(client)
		sessions := vfs.NewSessionManager(cacheDir, cst, remote, freshness, stats)

		conn, err := fuse.Mount(mountPoint, fuse.VolumeName("coherentfs"))
		if err != nil {
			return errors.Wrapf(err, "mount %s", mountPoint)
		}
		defer conn.Close()

		wlog.Infof("coherentfsmount", "mounted %s (cache=%s freshness=%s)", mountPoint, cacheDir, freshness)

		g, ctx := errgroup.WithContext(context.Background())

		if reg != nil {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			metricsSrv := &http.Server{Addr: metricsAddr, Handler: mux}
			g.Go(func() error {
				if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					return errors.Wrap(err, "metrics listener")
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				return metricsSrv.Close()
			})
		}

		g.Go(func() error {
			return errors.Wrap(fusefs.Serve(conn, &fuseio.FS{Sessions: sessions}), "fuse serve")
		})
		g.Go(func() error {
			<-conn.Ready
			return conn.MountError
		})

		return g.Wait()
	},
}

func init() {
	rootCmd.Flags().DurationVar(&freshness, "freshness", 3*time.Second, "read-only session freshness interval T")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on (empty disables)")
	rootCmd.Flags().VarP(logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		wlog.Errorf("coherentfsmount", "%v", err)
		os.Exit(1)
	}
}
