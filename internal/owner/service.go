// Package owner implements the bus owner sign-in flow: phone number login,
// OTP verification, resuming a stored session and logging out.
package owner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/passengerlk/owner-session/internal/gateway"
	"github.com/passengerlk/owner-session/internal/serviceerr"
	"github.com/passengerlk/owner-session/pkg/credential"
)

const (
	loginPath     = "/bus-owners/register-or-login/"
	verifyOTPPath = "/bus-owners/verify-otp/"
	logoutPath    = "/logout/"

	roleOwner = "OWNER"
)

var (
	phonePattern = regexp.MustCompile(`^\d{10}$`)
	otpPattern   = regexp.MustCompile(`^\d{6}$`)
)

type Config struct {
	BaseURL         string
	Policy          credential.Policy
	PendingLoginTTL time.Duration
}

type Service struct {
	cfg        Config
	store      credential.Store
	httpClient *http.Client
	gateway    *gateway.Client
	refresher  *gateway.Refresher
}

// NewService returns the sign-in service. httpClient sends the
// unauthenticated login calls; gw is used for logout.
func NewService(cfg Config, store credential.Store, httpClient *http.Client, gw *gateway.Client, refresher *gateway.Refresher) (*Service, error) {
	if err := cfg.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("validating credential policy: %w", err)
	}
	if cfg.PendingLoginTTL <= 0 {
		return nil, fmt.Errorf("%w: pending login ttl must be positive", serviceerr.ErrInvalidTTL)
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}

	return &Service{
		cfg:        cfg,
		store:      store,
		httpClient: httpClient,
		gateway:    gw,
		refresher:  refresher,
	}, nil
}

type loginRequest struct {
	Role        string `json:"role"`
	PhoneNumber string `json:"phone_number"`
}

type verifyRequest struct {
	PhoneNumber string `json:"phone_number"`
	OTPCode     string `json:"otp_code"`
}

type verifyResponse struct {
	Message string `json:"message"`
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// errorBody covers the error shapes the backend answers with.
type errorBody struct {
	Error   string `json:"error"`
	Detail  string `json:"detail"`
	Message string `json:"message"`
}

func (e errorBody) String() string {
	switch {
	case e.Error != "":
		return e.Error
	case e.Detail != "":
		return e.Detail
	case e.Message != "":
		return e.Message
	default:
		return "unknown error"
	}
}

// RegisterOrLogin asks the backend to send an OTP to phone and remembers
// the number for VerifyOTP.
func (s *Service) RegisterOrLogin(ctx context.Context, phone string) error {
	if !phonePattern.MatchString(phone) {
		return serviceerr.ErrInvalidPhoneNumber
	}

	resp, err := s.post(ctx, loginPath, loginRequest{Role: roleOwner, PhoneNumber: phone})
	if err != nil {
		return errors.Join(serviceerr.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: %s", serviceerr.ErrLoginRejected, readError(resp.Body))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	if err := s.store.Write(ctx, credential.PhoneNumberName, phone, s.cfg.PendingLoginTTL); err != nil {
		return fmt.Errorf("storing pending phone number: %w", err)
	}

	slogctx.Info(ctx, "OTP requested")

	return nil
}

// VerifyOTP exchanges otp for a credential pair. It returns the backend's
// greeting message.
func (s *Service) VerifyOTP(ctx context.Context, otp string) (string, error) {
	phone, err := s.store.Read(ctx, credential.PhoneNumberName)
	switch {
	case errors.Is(err, serviceerr.ErrNotFound):
		return "", serviceerr.ErrNoPendingLogin
	case err != nil:
		return "", fmt.Errorf("reading pending phone number: %w", err)
	}

	if !otpPattern.MatchString(otp) {
		return "", serviceerr.ErrInvalidOTP
	}

	resp, err := s.post(ctx, verifyOTPPath, verifyRequest{PhoneNumber: phone, OTPCode: otp})
	if err != nil {
		return "", errors.Join(serviceerr.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	// only an explicit 200 counts as verified
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s", serviceerr.ErrLoginRejected, readError(resp.Body))
	}

	var body verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: decoding response: %w", serviceerr.ErrLoginRejected, err)
	}

	pair := credential.Pair{Access: body.Access, Refresh: body.Refresh}
	if pair.Access == "" || pair.Refresh == "" {
		return "", fmt.Errorf("%w: response is missing a credential", serviceerr.ErrLoginRejected)
	}

	if err := s.store.WritePair(ctx, pair, s.cfg.Policy); err != nil {
		return "", fmt.Errorf("storing credentials: %w", err)
	}

	if err := s.store.Clear(ctx, credential.PhoneNumberName); err != nil {
		slogctx.Warn(ctx, "Failed to clear pending phone number", "error", err)
	}

	slogctx.Info(ctx, "Owner signed in")

	return body.Message, nil
}

// ResumeSession refreshes the stored pair, reporting whether a session
// could be resumed. Missing or rejected credentials are not an error.
func (s *Service) ResumeSession(ctx context.Context) (bool, error) {
	_, err := s.refresher.Refresh(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, serviceerr.ErrNoRefreshCredential), errors.Is(err, serviceerr.ErrRefreshRejected):
		slogctx.Debug(ctx, "No session to resume", "error", err)
		return false, nil
	default:
		return false, err
	}
}

// Logout tells the backend to end the session and clears the stored pair
// whatever the backend answers.
func (s *Service) Logout(ctx context.Context) error {
	pair, err := s.store.ReadPair(ctx)
	if err != nil {
		return fmt.Errorf("reading credentials: %w", err)
	}

	if !pair.Empty() {
		s.notifyLogout(ctx, pair.Refresh)
	}

	if err := s.store.ClearPair(ctx); err != nil {
		return fmt.Errorf("clearing credentials: %w", err)
	}

	slogctx.Info(ctx, "Owner signed out")

	return nil
}

// notifyLogout revokes refresh on the backend. The gateway may rotate the
// pair while answering a stale access credential and then replays the
// old body, so the rotated refresh credential is revoked in a second call.
func (s *Service) notifyLogout(ctx context.Context, refresh string) {
	s.postLogout(ctx, refresh)

	current, err := s.store.ReadPair(ctx)
	if err != nil {
		slogctx.Warn(ctx, "Failed to re-read credentials after logout", "error", err)
		return
	}
	if current.Refresh == "" || current.Refresh == refresh {
		return
	}

	slogctx.Debug(ctx, "Credentials rotated during logout, revoking the new refresh credential")
	s.postLogout(ctx, current.Refresh)
}

func (s *Service) postLogout(ctx context.Context, refresh string) {
	body, err := json.Marshal(logoutRequest{RefreshToken: refresh})
	if err != nil {
		slogctx.Warn(ctx, "Failed to encode logout request", "error", err)
		return
	}

	endpoint, err := url.JoinPath(s.cfg.BaseURL, logoutPath)
	if err != nil {
		slogctx.Warn(ctx, "Failed to build logout url", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		slogctx.Warn(ctx, "Failed to create logout request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.gateway.Do(req)
	if err != nil {
		slogctx.Warn(ctx, "Backend logout failed", "error", err)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	slogctx.Debug(ctx, "Backend logout answered", "status", resp.StatusCode)
}

func (s *Service) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	endpoint, err := url.JoinPath(s.cfg.BaseURL, path)
	if err != nil {
		return nil, fmt.Errorf("making endpoint: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	return resp, nil
}

func readError(r io.Reader) string {
	var body errorBody
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return "unknown error"
	}

	return body.String()
}
