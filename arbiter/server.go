package arbiter

import (
	"context"
	"net/http"
	"net/rpc"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/coherentfs/coherentfs/internal/rpcapi"
	"github.com/coherentfs/coherentfs/internal/wlog"
)

// Server owns the listener, the registered RPC service, and an optional
// metrics HTTP endpoint.
type Server struct {
	Service *Service
	Somt    *SOMT
	Metrics *Metrics

	rpcServer   *rpc.Server
	reg         *prometheus.Registry
	metricsAddr string
}

// Config carries the handful of knobs a server process accepts.
type Config struct {
	Root        string
	BindAddr    string
	MetricsAddr string // empty disables the metrics listener
}

// NewServer builds a Server rooted at cfg.Root with a fresh SOMT and
// metrics registry. The metrics listener, if any, is not started until
// Serve is called.
func NewServer(cfg Config) (*Server, error) {
	somt := NewSOMT()
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, somt)
	svc := NewService(cfg.Root, somt, metrics)

	rs := rpc.NewServer()
	if err := rs.RegisterName(rpcapi.ServiceName, svc); err != nil {
		return nil, errors.Wrap(err, "register rpc service")
	}

	return &Server{
		Service:     svc,
		Somt:        somt,
		Metrics:     metrics,
		rpcServer:   rs,
		reg:         reg,
		metricsAddr: cfg.MetricsAddr,
	}, nil
}

// Serve binds bindAddr, announces it via rpcapi.ServerInit, and runs the
// RPC accept loop alongside the optional metrics listener, returning
// whichever of the two fails first.
func (s *Server) Serve(bindAddr string) error {
	ln, err := rpcapi.ServerInit(bindAddr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", bindAddr)
	}
	wlog.Infof("arbiter", "listening on %s", ln.Addr())

	g, ctx := errgroup.WithContext(context.Background())

	if s.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: s.metricsAddr, Handler: mux}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return errors.Wrap(err, "metrics listener")
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return srv.Close()
		})
		g.Go(func() error {
			<-ctx.Done()
			return ln.Close()
		})
	}

	g.Go(func() error {
		return errors.Wrap(rpcapi.ServerExecute(ln, s.rpcServer), "rpc accept loop")
	})

	return g.Wait()
}
