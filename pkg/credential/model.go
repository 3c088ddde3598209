// Package credential defines the access/refresh credential pair and the
// storage contract shared by the memory, valkey and sql backends.
package credential

import (
	"fmt"
	"time"

	"github.com/passengerlk/owner-session/internal/serviceerr"
)

// Fixed entry names of the persisted layout.
const (
	AccessTokenName  = "access_token"
	RefreshTokenName = "refresh_token"
	PhoneNumberName  = "phone_number"
)

const (
	DefaultAccessTTL       = 7 * 24 * time.Hour
	DefaultRefreshTTL      = 14 * 24 * time.Hour
	DefaultPendingLoginTTL = 10 * time.Minute
)

// Pair is the bearer credential pair issued at OTP verification and
// replaced on every refresh.
type Pair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Empty reports whether neither credential is set.
func (p Pair) Empty() bool {
	return p.Access == "" && p.Refresh == ""
}

// Policy holds the time-to-live of each pair member.
type Policy struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// DefaultPolicy returns the 7 day access / 14 day refresh policy.
func DefaultPolicy() Policy {
	return Policy{
		AccessTTL:  DefaultAccessTTL,
		RefreshTTL: DefaultRefreshTTL,
	}
}

// Validate checks that both TTLs are positive and the refresh
// credential outlives the access credential.
func (p Policy) Validate() error {
	if p.AccessTTL <= 0 || p.RefreshTTL <= 0 {
		return fmt.Errorf("%w: ttls must be positive", serviceerr.ErrInvalidTTL)
	}
	if p.RefreshTTL <= p.AccessTTL {
		return fmt.Errorf("%w: refresh ttl %s must exceed access ttl %s", serviceerr.ErrInvalidTTL, p.RefreshTTL, p.AccessTTL)
	}

	return nil
}
