package business

import (
	"context"
	"fmt"
	"net/url"

	slogctx "github.com/veqryn/slog-context"

	"github.com/passengerlk/owner-session/internal/business/server"
	"github.com/passengerlk/owner-session/internal/config"
)

// ProxyMain serves the local authenticating proxy until ctx is done.
func ProxyMain(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s, closeFn, err := initSession(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialising the session: %w", err)
	}
	defer closeFn()

	backend, err := url.Parse(cfg.Backend.BaseURL)
	if err != nil {
		return fmt.Errorf("parsing backend base url: %w", err)
	}

	if s.purger != nil && cfg.Credentials.HousekeepingInterval > 0 {
		go housekeep(ctx, s.purger, cfg.Credentials.HousekeepingInterval)
	}

	slogctx.Info(ctx, "Proxying to backend", "backend", backend.String(), "login_url", s.LoginURL)

	return server.StartHTTPServer(ctx, cfg, server.NewProxy(backend, s.Gateway))
}
