package server

import (
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"

	slogctx "github.com/veqryn/slog-context"

	"github.com/passengerlk/owner-session/internal/gateway"
)

// Authenticator sends requests as the signed-in owner.
type Authenticator interface {
	http.RoundTripper
	LoginURL() string
}

var _ = Authenticator(&gateway.Client{})

// NewProxy forwards every request to backend through auth. A lost session
// answers 302 to the login page.
func NewProxy(backend *url.URL, auth Authenticator) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(backend)
			pr.SetXForwarded()
			// the stored credential replaces whatever the caller sent
			pr.Out.Header.Del("Authorization")
		},
		Transport: auth,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			if errors.Is(err, gateway.ErrLoginRequired) {
				http.Redirect(w, r, auth.LoginURL(), http.StatusFound)
				return
			}

			slogctx.Error(r.Context(), "Failed to reach the backend", "error", err)
			w.WriteHeader(http.StatusBadGateway)
		},
	}
}
