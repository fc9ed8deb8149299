package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/zipcounty/internal/server"
	"github.com/sells-group/zipcounty/internal/zipcode"
)

var (
	servePort int
	serveZIPs string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve ZIP and FIPS lookups over HTTP",
	Long: "Resolves the primary dataset once (plus crosswalk fills for --zips, when given) and serves " +
		"/zip/{zip}, /fips/{code}, /health and /metrics until interrupted.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var zips []string
		if serveZIPs != "" {
			var err error
			if zips, err = zipcode.LoadList(serveZIPs); err != nil {
				return eris.Wrap(err, "serve")
			}
		}

		resolver, err := newResolver(ctx)
		if err != nil {
			return err
		}
		p, closeFn := newPipeline(ctx, resolver)
		defer closeFn()

		mapping, _, err := p.Resolve(ctx, zips)
		if err != nil {
			return eris.Wrap(err, "serve")
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := server.New(mapping, resolver, server.NewMetrics(), server.Options{
			Port:        port,
			CORSOrigins: cfg.Server.CORSOrigins,
		})

		return runServer(ctx, srv)
	},
}

// lifecycle is the part of *server.Server that runServer drives.
type lifecycle interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// runServer starts srv and shuts it down when ctx is cancelled.
func runServer(ctx context.Context, srv lifecycle) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveZIPs, "zips", "", "ZIP list to fill from the crosswalk at startup")
	rootCmd.AddCommand(serveCmd)
}
