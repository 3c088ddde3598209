package gateway_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const (
	busesPath = "/bus-owners/owner-buses/"
	loginURL  = "http://localhost/bus-owners/web/login-or-register/"
)

// fakeBackend imitates the passenger backend: the API answers 401 unless
// it sees the currently valid access token, and /refresh/ rotates the pair.
type fakeBackend struct {
	*httptest.Server

	mu           sync.Mutex
	validAccess  string
	validRefresh string
	generation   int

	refreshStatus    int  // non-zero forces the refresh endpoint to answer with it
	legacyRefresh    bool // answer with refresh_token instead of refresh
	alwaysReject     bool // API answers 401 even to valid tokens
	refreshDelay     time.Duration
	unauthorizedGate *gate

	refreshCalls atomic.Int32
	apiCalls     atomic.Int32

	seenAuth   []string
	seenBodies []string
	seenHeader []string
}

// newFakeBackend applies opts before the server starts serving.
func newFakeBackend(t *testing.T, validAccess, validRefresh string, opts ...func(*fakeBackend)) *fakeBackend {
	t.Helper()

	b := &fakeBackend{
		validAccess:  validAccess,
		validRefresh: validRefresh,
	}
	for _, opt := range opts {
		opt(b)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/refresh/", b.handleRefresh)
	mux.HandleFunc("/", b.handleAPI)
	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Close)

	return b
}

func (b *fakeBackend) handleAPI(w http.ResponseWriter, r *http.Request) {
	b.apiCalls.Add(1)
	body, _ := io.ReadAll(r.Body)

	b.mu.Lock()
	b.seenAuth = append(b.seenAuth, r.Header.Get("Authorization"))
	b.seenBodies = append(b.seenBodies, string(body))
	b.seenHeader = append(b.seenHeader, r.Header.Get("X-Trip-Id"))
	authorised := !b.alwaysReject && r.Header.Get("Authorization") == "Bearer "+b.validAccess
	gate := b.unauthorizedGate
	b.mu.Unlock()

	if !authorised {
		if gate != nil {
			gate.arrive()
		}
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": "Invalid or expired access token"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"buses": [{"bus_id": "NB-1234"}]}`))
}

func (b *fakeBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.refreshCalls.Add(1)

	if b.refreshDelay > 0 {
		time.Sleep(b.refreshDelay)
	}

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.refreshStatus != 0 {
		w.WriteHeader(b.refreshStatus)
		return
	}
	if req.RefreshToken != b.validRefresh {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	b.generation++
	b.validAccess = fmt.Sprintf("access-%d", b.generation)
	b.validRefresh = fmt.Sprintf("refresh-%d", b.generation)

	refreshField := "refresh"
	if b.legacyRefresh {
		refreshField = "refresh_token"
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"access":     b.validAccess,
		refreshField: b.validRefresh,
	})
}

func (b *fakeBackend) current() (string, string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.validAccess, b.validRefresh
}

func (b *fakeBackend) auths() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]string(nil), b.seenAuth...)
}

func (b *fakeBackend) bodies() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]string(nil), b.seenBodies...)
}

func (b *fakeBackend) headers() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]string(nil), b.seenHeader...)
}

// gate holds unauthorised responses until n requests have arrived, so
// concurrent callers all observe the 401 with the same stale token.
type gate struct {
	wg   sync.WaitGroup
	done chan struct{}
}

func newGate(n int) *gate {
	g := &gate{done: make(chan struct{})}
	g.wg.Add(n)
	go func() {
		g.wg.Wait()
		close(g.done)
	}()

	return g
}

func (g *gate) arrive() {
	g.wg.Done()
	select {
	case <-g.done:
	case <-time.After(5 * time.Second):
	}
}

func newRequest(t *testing.T, method, url, body string) *http.Request {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(t.Context(), method, url, r)
	if err != nil {
		t.Fatalf("creating request: %s", err)
	}

	return req
}
