package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/quillkernel/quill/config"
	"github.com/quillkernel/quill/kernel"
	"github.com/quillkernel/quill/transport"
	"github.com/quillkernel/quill/transport/tcp"
	"github.com/quillkernel/quill/transport/ws"
)

type serveOptions struct {
	connectionPath string
	writePath      string
	transportName  string
	ip             string
	settingsDir    string
	metricsAddr    string
	logRequests    bool
}

func newServeCmd() *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the kernel over a stream transport",
		Long:  "serve binds the kernel's channels and dispatches requests until a shutdown request or signal arrives. Without a connection file it binds ephemeral ports; pass --write-connection so front-ends can find them.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.connectionPath, "connection", "", "connection file naming the transport and ports")
	f.StringVar(&opts.writePath, "write-connection", "", "write the bound ports to this connection file")
	f.StringVar(&opts.transportName, "transport", "tcp", "transport when no connection file is given (tcp or ws)")
	f.StringVar(&opts.ip, "ip", "127.0.0.1", "bind address when no connection file is given")
	f.StringVar(&opts.settingsDir, "settings", "", "directory holding quill.yaml")
	f.StringVar(&opts.metricsAddr, "metrics", "", "expose Prometheus metrics on this address")
	f.BoolVar(&opts.logRequests, "log-requests", false, "log each dispatched request")
	return cmd
}

// server is what both stream transports offer: the kernel-facing Streams
// surface plus an accept loop.
type server interface {
	transport.Streams
	Serve(ctx context.Context) error
}

func listen(conn config.Connection, logged bool) (server, error) {
	switch conn.Transport {
	case "tcp":
		cfg := tcp.Config{
			IP:            conn.IP,
			ShellPort:     conn.Shell,
			ControlPort:   conn.Control,
			IOPubPort:     conn.IOPub,
			StdinPort:     conn.Stdin,
			HeartbeatPort: conn.Heartbeat,
		}
		if logged {
			cfg.Logger = stdLogger{}
		}
		s, err := tcp.Listen(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "ws":
		cfg := ws.Config{IP: conn.IP, Port: conn.Shell}
		if logged {
			cfg.Logger = stdLogger{}
		}
		s, err := ws.Listen(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unsupported transport %q", conn.Transport)
}

func runServe(cmd *cobra.Command, opts serveOptions) error {
	settings, err := config.LoadSettings(opts.settingsDir)
	if err != nil {
		return err
	}

	conn := config.Connection{Transport: opts.transportName, IP: opts.ip}
	if opts.connectionPath != "" {
		conn, err = config.ReadConnection(opts.connectionPath)
		if err != nil {
			return err
		}
	}
	if err := conn.Validate(); err != nil {
		return err
	}

	logged := opts.logRequests || settings.LogRequests
	streams, err := listen(conn, logged)
	if err != nil {
		return err
	}
	defer streams.Close()

	ports := streams.Ports()
	if opts.writePath != "" {
		if err := config.ConnectionFromPorts(ports).Write(opts.writePath); err != nil {
			return err
		}
	}

	kcfg := kernel.Config{
		Streams:         streams,
		Language:        settings.Language,
		LanguageVersion: settings.LanguageVersion,
		Banner:          settings.Banner,
	}
	if logged {
		kcfg.Logger = stdLogger{}
	}

	metricsAddr := settings.MetricsAddr
	if opts.metricsAddr != "" {
		metricsAddr = opts.metricsAddr
	}
	var metricsServer *http.Server
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		metrics, err := kernel.NewMetrics(reg)
		if err != nil {
			return err
		}
		kcfg.Metrics = metrics
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: metricsAddr, Handler: mux}
	}

	k, err := kernel.New(kcfg)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s serving %s on %s (shell=%d control=%d iopub=%d stdin=%d hb=%d)\n",
		color.CyanString(kernel.Implementation), kernel.Version,
		conn.Transport, ports.IP, ports.Shell, ports.Control, ports.IOPub, ports.Stdin, ports.Heartbeat)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCanceled(streams.Serve(gctx))
	})
	g.Go(func() error {
		// Run returning ends the whole process: release the transport and
		// the signal context so the other goroutines unwind.
		defer stop()
		defer streams.Close()
		return ignoreCanceled(k.Run(gctx))
	})
	if metricsServer != nil {
		g.Go(func() error {
			err := metricsServer.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}
	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// stdLogger adapts the standard logger to the transports' and kernel's
// logging interface, tagging kernel lines so they stand out in mixed
// output.
type stdLogger struct{}

func (stdLogger) Logf(format string, args ...any) {
	log.Printf("%s %s", color.CyanString("[kernel]"), fmt.Sprintf(format, args...))
}
