//go:build integration

package integration_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

const (
	ownerPhone = "0771234567"
	ownerOTP   = "123456"
)

// passengerBackend is an in-process stand-in for the passenger backend that
// the CLI processes talk to.
type passengerBackend struct {
	*httptest.Server

	mu           sync.Mutex
	validAccess  string
	validRefresh string
	generation   int
	refreshes    int
}

func newPassengerBackend(t *testing.T) *passengerBackend {
	t.Helper()

	b := &passengerBackend{}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /bus-owners/register-or-login/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"message": "OTP sent"}`))
	})
	mux.HandleFunc("POST /bus-owners/verify-otp/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["phone_number"] != ownerPhone || body["otp_code"] != ownerOTP {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"detail": "Invalid OTP."}`))
			return
		}

		access, refresh := b.rotate(false)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Welcome", "access": access, "refresh": refresh})
	})
	mux.HandleFunc("POST /refresh/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)

		b.mu.Lock()
		ok := body["refresh_token"] != "" && body["refresh_token"] == b.validRefresh
		b.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		access, refresh := b.rotate(true)
		_ = json.NewEncoder(w).Encode(map[string]string{"access": access, "refresh": refresh})
	})
	mux.HandleFunc("POST /logout/", func(w http.ResponseWriter, _ *http.Request) {
		b.mu.Lock()
		b.validAccess, b.validRefresh = "", ""
		b.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/bus-owners/owner-buses/", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		ok := b.validAccess != "" && r.Header.Get("Authorization") == "Bearer "+b.validAccess
		b.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		_, _ = w.Write([]byte(`{"buses": [{"bus_id": "NB-1234"}]}`))
	})

	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Close)

	return b
}

func (b *passengerBackend) rotate(refresh bool) (string, string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.generation++
	if refresh {
		b.refreshes++
	}
	b.validAccess = fmt.Sprintf("access-%d", b.generation)
	b.validRefresh = fmt.Sprintf("refresh-%d", b.generation)

	return b.validAccess, b.validRefresh
}

// expireAccess invalidates the current access credential only.
func (b *passengerBackend) expireAccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.validAccess = "expired"
}

// revoke invalidates both credentials.
func (b *passengerBackend) revoke() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.validAccess, b.validRefresh = "revoked", "revoked"
}

func (b *passengerBackend) refreshCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.refreshes
}
