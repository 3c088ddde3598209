package business

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/passengerlk/owner-session/internal/config"
	"github.com/passengerlk/owner-session/internal/gateway"
	"github.com/passengerlk/owner-session/internal/tokeninfo"
)

// FetchRequest describes one authenticated call made by the fetch command.
type FetchRequest struct {
	Method  string
	Target  string
	Body    string
	Headers []string
	Out     io.Writer
}

// LoginMain requests an OTP for phone, unless a stored session can be
// resumed.
func LoginMain(ctx context.Context, cfg *config.Config, phone string, out io.Writer) error {
	return withSession(ctx, cfg, func(s *Session) error {
		resumed, err := s.Owner.ResumeSession(ctx)
		if err != nil {
			slogctx.Warn(ctx, "Could not resume the stored session", "error", err)
		}
		if resumed {
			_, _ = fmt.Fprintln(out, "Session resumed, already signed in.")
			return nil
		}

		if err := s.Owner.RegisterOrLogin(ctx, phone); err != nil {
			return fmt.Errorf("requesting OTP: %w", err)
		}

		_, _ = fmt.Fprintln(out, "OTP sent. Run verify-otp with the code you received.")

		return nil
	})
}

func VerifyOTPMain(ctx context.Context, cfg *config.Config, otp string, out io.Writer) error {
	return withSession(ctx, cfg, func(s *Session) error {
		msg, err := s.Owner.VerifyOTP(ctx, otp)
		if err != nil {
			return fmt.Errorf("verifying OTP: %w", err)
		}

		if msg == "" {
			msg = "Signed in."
		}
		_, _ = fmt.Fprintln(out, msg)

		return nil
	})
}

func RefreshMain(ctx context.Context, cfg *config.Config, out io.Writer) error {
	return withSession(ctx, cfg, func(s *Session) error {
		if _, err := s.Refresher.Refresh(ctx); err != nil {
			return fmt.Errorf("refreshing credentials: %w", err)
		}

		_, _ = fmt.Fprintln(out, "Credentials refreshed.")

		return nil
	})
}

func LogoutMain(ctx context.Context, cfg *config.Config, out io.Writer) error {
	return withSession(ctx, cfg, func(s *Session) error {
		if err := s.Owner.Logout(ctx); err != nil {
			return fmt.Errorf("logging out: %w", err)
		}

		_, _ = fmt.Fprintln(out, "Signed out.")

		return nil
	})
}

// StatusMain prints what is known about the stored credentials.
func StatusMain(ctx context.Context, cfg *config.Config, out io.Writer) error {
	return withSession(ctx, cfg, func(s *Session) error {
		pair, err := s.Store.ReadPair(ctx)
		if err != nil {
			return fmt.Errorf("reading credentials: %w", err)
		}

		return tokeninfo.NewReport(pair, time.Now()).WriteYAML(out)
	})
}

// FetchMain performs req as the signed-in owner and copies the response
// body to req.Out.
func FetchMain(ctx context.Context, cfg *config.Config, req FetchRequest) error {
	return withSession(ctx, cfg, func(s *Session) error {
		httpReq, err := newFetchRequest(ctx, cfg.Backend.BaseURL, req)
		if err != nil {
			return err
		}

		resp, err := s.Gateway.Do(httpReq)
		if errors.Is(err, gateway.ErrLoginRequired) {
			return fmt.Errorf("session expired, sign in again at %s: %w", s.LoginURL, err)
		}
		if err != nil {
			return fmt.Errorf("fetching %s: %w", httpReq.URL.Path, err)
		}
		defer resp.Body.Close()

		slogctx.Info(ctx, "Fetched", "method", httpReq.Method, "path", httpReq.URL.Path, "status", resp.StatusCode)

		if _, err := io.Copy(req.Out, resp.Body); err != nil {
			return fmt.Errorf("reading response: %w", err)
		}

		if resp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("backend answered %s", resp.Status)
		}

		return nil
	})
}

func newFetchRequest(ctx context.Context, baseURL string, req FetchRequest) (*http.Request, error) {
	target, err := resolveTarget(baseURL, req.Target)
	if err != nil {
		return nil, err
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if req.Body != "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	for _, h := range req.Headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			return nil, fmt.Errorf("malformed header %q, want Name: value", h)
		}
		httpReq.Header.Set(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	return httpReq, nil
}

// resolveTarget joins a path with the backend base url. Absolute urls are
// used as they are.
func resolveTarget(baseURL, target string) (string, error) {
	ref, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parsing target: %w", err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing backend base url: %w", err)
	}

	return base.ResolveReference(ref).String(), nil
}

func withSession(ctx context.Context, cfg *config.Config, fn func(*Session) error) error {
	s, closeFn, err := initSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	return fn(s)
}
