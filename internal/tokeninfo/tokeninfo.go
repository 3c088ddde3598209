// Package tokeninfo decodes stored bearer tokens for display. Signatures are
// not verified: the backend remains the only judge of a token's validity.
package tokeninfo

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/goccy/go-yaml"

	"github.com/passengerlk/owner-session/pkg/credential"
)

// ErrOpaqueToken is returned for tokens that are not JWTs.
var ErrOpaqueToken = errors.New("token is not a JWT")

var supportedAlgorithms = []jose.SignatureAlgorithm{
	jose.HS256, jose.HS384, jose.HS512,
	jose.RS256, jose.RS384, jose.RS512,
	jose.ES256, jose.ES384, jose.ES512,
	jose.PS256, jose.EdDSA,
}

// backendClaims are the extra claims the passenger backend puts in its
// tokens next to the registered ones.
type backendClaims struct {
	TokenType   string `json:"token_type"`
	UserID      any    `json:"user_id"`
	Role        string `json:"role"`
	PhoneNumber string `json:"phone_number"`
}

type Token struct {
	Present   bool       `yaml:"present"`
	Opaque    bool       `yaml:"opaque,omitempty"`
	Type      string     `yaml:"type,omitempty"`
	Subject   string     `yaml:"subject,omitempty"`
	UserID    string     `yaml:"userID,omitempty"`
	Role      string     `yaml:"role,omitempty"`
	Phone     string     `yaml:"phoneNumber,omitempty"`
	IssuedAt  *time.Time `yaml:"issuedAt,omitempty"`
	ExpiresAt *time.Time `yaml:"expiresAt,omitempty"`
	Expired   bool       `yaml:"expired,omitempty"`
}

type Report struct {
	Access  Token `yaml:"access"`
	Refresh Token `yaml:"refresh"`
}

// Inspect decodes raw without verifying its signature.
func Inspect(raw string, now time.Time) (Token, error) {
	if raw == "" {
		return Token{}, nil
	}

	parsed, err := jwt.ParseSigned(raw, supportedAlgorithms)
	if err != nil {
		return Token{Present: true, Opaque: true}, fmt.Errorf("%w: %w", ErrOpaqueToken, err)
	}

	var (
		registered jwt.Claims
		extra      backendClaims
	)
	if err := parsed.UnsafeClaimsWithoutVerification(&registered, &extra); err != nil {
		return Token{Present: true, Opaque: true}, fmt.Errorf("%w: %w", ErrOpaqueToken, err)
	}

	tok := Token{
		Present: true,
		Type:    extra.TokenType,
		Subject: registered.Subject,
		Role:    extra.Role,
		Phone:   extra.PhoneNumber,
	}
	if extra.UserID != nil {
		tok.UserID = fmt.Sprint(extra.UserID)
	}
	if registered.IssuedAt != nil {
		iat := registered.IssuedAt.Time().UTC()
		tok.IssuedAt = &iat
	}
	if registered.Expiry != nil {
		exp := registered.Expiry.Time().UTC()
		tok.ExpiresAt = &exp
		tok.Expired = !now.Before(exp)
	}

	return tok, nil
}

// NewReport inspects both members of pair. Opaque tokens are reported as
// such rather than failing.
func NewReport(pair credential.Pair, now time.Time) Report {
	access, _ := Inspect(pair.Access, now)
	refresh, _ := Inspect(pair.Refresh, now)

	return Report{Access: access, Refresh: refresh}
}

func (r Report) WriteYAML(w io.Writer) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding token report: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing token report: %w", err)
	}

	return nil
}
