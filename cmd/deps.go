package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zipcounty/internal/crosswalk"
	"github.com/sells-group/zipcounty/internal/fetcher"
	"github.com/sells-group/zipcounty/internal/fips"
	"github.com/sells-group/zipcounty/internal/pipeline"
	"github.com/sells-group/zipcounty/internal/source"
)

// newRouter builds a single-attempt fetcher router with the given timeout.
func newRouter(timeout time.Duration) *fetcher.Router {
	httpDL := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:   cfg.Primary.UserAgent,
		Timeout:     timeout,
		MaxAttempts: 1,
	})
	ftpDL := fetcher.NewFTPFetcher(fetcher.FTPOptions{
		Timeout:  timeout,
		Identity: cfg.Primary.UserAgent,
	})
	return fetcher.NewRouter(httpDL, ftpDL)
}

// newResolver loads the configured FIPS table, or the embedded one.
func newResolver(ctx context.Context) (*fips.Resolver, error) {
	table, err := fips.Load(ctx, newRouter(cfg.Primary.Timeout()), cfg.FIPS.TablePath, fips.LoadOptions{
		Encoding: cfg.FIPS.TableEncoding,
		TempDir:  cfg.Fetch.TempDir,
	})
	if err != nil {
		return nil, eris.Wrap(err, "load fips table")
	}
	return fips.NewResolver(table), nil
}

// openStore connects to the configured crosswalk warehouse.
func openStore(ctx context.Context) (crosswalk.Store, error) {
	if !cfg.Secondary.Enabled() {
		return nil, eris.New("crosswalk: no warehouse configured (set secondary.driver and secondary.dsn)")
	}
	return crosswalk.Open(ctx, cfg.Secondary.Driver, cfg.Secondary.DSN, cfg.Secondary.Table)
}

// newSecondary returns the warehouse source, or Unavailable when none is
// configured or the connection fails. The returned func releases the store.
func newSecondary(ctx context.Context, resolver *fips.Resolver) (source.Secondary, func()) {
	noop := func() {}
	if !cfg.Secondary.Enabled() {
		return source.Unavailable{}, noop
	}

	connCtx := ctx
	if t := cfg.Secondary.Timeout(); t > 0 {
		var cancel context.CancelFunc
		connCtx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	st, err := openStore(connCtx)
	if err != nil {
		zap.L().Warn("secondary source unavailable", zap.Error(err))
		return source.Unavailable{}, noop
	}

	w := source.NewWarehouse(st, resolver, source.WarehouseOptions{
		Timeout:     cfg.Secondary.Timeout(),
		MinResRatio: cfg.Secondary.MinResRatio,
	})
	return w, func() { _ = st.Close() }
}

// newPipeline wires the report pipeline from configuration.
func newPipeline(ctx context.Context, resolver *fips.Resolver) (*pipeline.Pipeline, func()) {
	primary := source.NewPrimary(newRouter(cfg.Primary.Timeout()), cfg.Primary.URL)
	secondary, closeFn := newSecondary(ctx, resolver)
	return pipeline.New(primary, secondary), closeFn
}
