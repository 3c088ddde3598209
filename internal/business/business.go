package business

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/valkey-io/valkey-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	slogctx "github.com/veqryn/slog-context"

	"github.com/passengerlk/owner-session/internal/config"
	"github.com/passengerlk/owner-session/internal/gateway"
	"github.com/passengerlk/owner-session/internal/owner"
	"github.com/passengerlk/owner-session/pkg/credential"
	credentialmemory "github.com/passengerlk/owner-session/pkg/credential/memory"
	credentialsql "github.com/passengerlk/owner-session/pkg/credential/sql"
	credentialvalkey "github.com/passengerlk/owner-session/pkg/credential/valkey"
)

var ErrUnknownStore = errors.New("unknown credential store")

// Session holds everything a command needs to act as the signed-in owner.
type Session struct {
	Store     credential.Store
	Gateway   *gateway.Client
	Refresher *gateway.Refresher
	Owner     *owner.Service
	LoginURL  string

	// purger is set when the store keeps expired rows around.
	purger expiredPurger
}

type expiredPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// initSession wires the configured store into a gateway and the sign-in
// service. closeFn releases the store connections.
func initSession(ctx context.Context, cfg *config.Config) (_ *Session, closeFn func(), _ error) {
	policy := cfg.Credentials.Policy()
	if err := policy.Validate(); err != nil {
		return nil, nil, fmt.Errorf("validating credential ttls: %w", err)
	}

	loginURL, err := cfg.Backend.LoginURL()
	if err != nil {
		return nil, nil, fmt.Errorf("making login url: %w", err)
	}

	httpClient, err := loadHTTPClient(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("loading http client: %w", err)
	}

	store, closeFn, err := initStore(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("initialising the credential store: %w", err)
	}

	refresher, err := gateway.NewRefresher(store, httpClient, cfg.Backend.BaseURL, policy)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("creating refresher: %w", err)
	}

	gw, err := gateway.NewClient(store, refresher, httpClient, loginURL)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("creating gateway: %w", err)
	}

	ownerSvc, err := owner.NewService(owner.Config{
		BaseURL:         cfg.Backend.BaseURL,
		Policy:          policy,
		PendingLoginTTL: cfg.Credentials.PendingLoginTTL,
	}, store, httpClient, gw, refresher)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("creating owner service: %w", err)
	}

	s := &Session{
		Store:     store,
		Gateway:   gw,
		Refresher: refresher,
		Owner:     ownerSvc,
		LoginURL:  loginURL,
	}
	if p, ok := store.(expiredPurger); ok {
		s.purger = p
	}

	return s, closeFn, nil
}

func initStore(ctx context.Context, cfg *config.Config) (_ credential.Store, closeFn func(), _ error) {
	switch cfg.Credentials.Store {
	case config.StoreMemory, "":
		slogctx.Warn(ctx, "Credentials are kept in memory and are lost on exit")
		return credentialmemory.NewStore(), func() {}, nil
	case config.StoreValKey:
		client, err := newValKeyClient(cfg.ValKey)
		if err != nil {
			return nil, nil, err
		}

		return credentialvalkey.NewRepository(client, cfg.ValKey.Prefix), client.Close, nil
	case config.StorePostgres:
		pool, err := newPool(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}

		return credentialsql.NewRepository(pool, cfg.Database.Namespace), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownStore, cfg.Credentials.Store)
	}
}

func newValKeyClient(cfg config.ValKey) (valkey.Client, error) {
	auth, err := config.LoadValKeyAuth(cfg)
	if err != nil {
		return nil, err
	}

	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{auth.Address},
		Username:    auth.Username,
		Password:    auth.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("creating a new valkey client: %w", err)
	}

	return client, nil
}

func newPool(ctx context.Context, cfg config.Database) (*pgxpool.Pool, error) {
	connStr, err := config.MakeConnStr(cfg)
	if err != nil {
		return nil, fmt.Errorf("making dsn from config: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing pgxpool config: %w", err)
	}
	poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("initialising pgxpool connection: %w", err)
	}

	return pool, nil
}

// loadHTTPClient returns the client shared by every backend call. Its cookie
// jar carries backend cookies across calls.
func loadHTTPClient(cfg *config.Config) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	var transport http.RoundTripper

	switch cfg.Client.Type {
	case config.ClientMTLS:
		if cfg.Client.MTLS == nil {
			return nil, errors.New("mtls client requires an mtls section")
		}

		tlsConfig, err := commoncfg.LoadMTLSConfig(cfg.Client.MTLS)
		if err != nil {
			return nil, fmt.Errorf("loading mTLS config: %w", err)
		}

		transport = &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: tlsConfig,
		}
	case config.ClientDefault, "":
		transport = http.DefaultTransport
	default:
		return nil, fmt.Errorf("unknown client type %q", cfg.Client.Type)
	}

	return &http.Client{
		Transport: otelhttp.NewTransport(transport),
		Jar:       jar,
		Timeout:   cfg.Backend.Timeout,
		// redirects are answers for the caller, the gateway returns them as they are
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}, nil
}
