package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	slogctx "github.com/veqryn/slog-context"

	"github.com/passengerlk/owner-session/internal/serviceerr"
	"github.com/passengerlk/owner-session/pkg/credential"
)

const refreshPath = "/refresh/"

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// refreshResponse accepts the canonical {access, refresh} body. Older
// backends answer with refresh_token instead of refresh.
type refreshResponse struct {
	Access       string `json:"access"`
	Refresh      string `json:"refresh"`
	RefreshToken string `json:"refresh_token"`
}

func (r refreshResponse) pair() credential.Pair {
	refresh := r.Refresh
	if refresh == "" {
		refresh = r.RefreshToken
	}

	return credential.Pair{Access: r.Access, Refresh: refresh}
}

// Refresher exchanges the stored refresh credential for a new pair.
type Refresher struct {
	store      credential.Store
	httpClient *http.Client
	endpoint   string
	policy     credential.Policy
}

func NewRefresher(store credential.Store, httpClient *http.Client, baseURL string, policy credential.Policy) (*Refresher, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("validating credential policy: %w", err)
	}

	endpoint, err := url.JoinPath(baseURL, refreshPath)
	if err != nil {
		return nil, fmt.Errorf("making refresh endpoint: %w", err)
	}

	return &Refresher{
		store:      store,
		httpClient: httpClient,
		endpoint:   endpoint,
		policy:     policy,
	}, nil
}

// Refresh issues one call to the refresh endpoint and overwrites both
// stored credentials on success. On failure the store is left unchanged and
// the error matches one of serviceerr.ErrNoRefreshCredential,
// serviceerr.ErrNetworkFailure or serviceerr.ErrRefreshRejected.
func (r *Refresher) Refresh(ctx context.Context) (credential.Pair, error) {
	refresh, err := r.store.Read(ctx, credential.RefreshTokenName)
	switch {
	case errors.Is(err, serviceerr.ErrNotFound), err == nil && refresh == "":
		return credential.Pair{}, serviceerr.ErrNoRefreshCredential
	case err != nil:
		return credential.Pair{}, errors.Join(serviceerr.ErrNetworkFailure, fmt.Errorf("reading refresh credential: %w", err))
	}

	body, err := json.Marshal(refreshRequest{RefreshToken: refresh})
	if err != nil {
		return credential.Pair{}, fmt.Errorf("encoding refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return credential.Pair{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return credential.Pair{}, errors.Join(serviceerr.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, resp.Body)
		return credential.Pair{}, fmt.Errorf("%w: refresh endpoint returned status %d", serviceerr.ErrRefreshRejected, resp.StatusCode)
	}

	var tokens refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return credential.Pair{}, fmt.Errorf("%w: decoding response: %w", serviceerr.ErrRefreshRejected, err)
	}

	pair := tokens.pair()
	if pair.Access == "" || pair.Refresh == "" {
		return credential.Pair{}, fmt.Errorf("%w: response is missing a credential", serviceerr.ErrRefreshRejected)
	}

	if err := r.store.WritePair(ctx, pair, r.policy); err != nil {
		return credential.Pair{}, errors.Join(serviceerr.ErrNetworkFailure, fmt.Errorf("storing refreshed credentials: %w", err))
	}

	slogctx.Debug(ctx, "Refreshed credentials")

	return pair, nil
}
