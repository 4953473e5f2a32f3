// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/juac793lc/sala-chat/internal/auth"
	"github.com/juac793lc/sala-chat/internal/config"
	"github.com/juac793lc/sala-chat/internal/logging"
	"github.com/juac793lc/sala-chat/internal/models"
	"github.com/juac793lc/sala-chat/internal/proximity"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "error", Format: "json", Output: io.Discard})
}

type fakeMarkers struct {
	markers []models.Marker
	stats   proximity.Stats
}

func (f *fakeMarkers) ListActive() []models.Marker { return f.markers }
func (f *fakeMarkers) Stats() proximity.Stats      { return f.stats }

type fakeStore struct {
	mu      sync.Mutex
	saved   []models.PushSubscription
	removed []string
	err     error
}

func (f *fakeStore) SavePushSubscription(_ context.Context, s models.PushSubscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, s)
	return nil
}

func (f *fakeStore) RemovePushSubscription(_ context.Context, endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.removed = append(f.removed, endpoint)
	return nil
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func newTestRouter(t *testing.T, deps Dependencies, mwCfg *ChiMiddlewareConfig) http.Handler {
	t.Helper()
	if mwCfg == nil {
		mwCfg = DefaultChiMiddlewareConfig()
		mwCfg.CORSAllowedOrigins = []string{"https://map.example"}
		mwCfg.RateLimitDisabled = true
	}
	return NewRouter(NewHandler(deps), NewChiMiddleware(mwCfg)).SetupChi()
}

type envelope struct {
	Status   string          `json:"status"`
	Data     json.RawMessage `json:"data"`
	Metadata models.Metadata `json:"metadata"`
	Error    *models.APIError `json:"error"`
}

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s: %v", rec.Body.String(), err)
		}
	}
	return rec, env
}

func TestHealth(t *testing.T) {
	markers := &fakeMarkers{stats: proximity.Stats{ActiveMarkers: 3, TrackedLocations: 2, Connections: 4}}
	tests := []struct {
		name       string
		db         Pinger
		wantStatus string
		wantDB     bool
	}{
		{name: "healthy", db: fakePinger{}, wantStatus: "healthy", wantDB: true},
		{name: "database down", db: fakePinger{err: errors.New("closed")}, wantStatus: "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(t, Dependencies{Markers: markers, Database: tt.db}, nil)
			rec, env := do(t, h, http.MethodGet, "/health", "", nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			var hs models.HealthStatus
			if err := json.Unmarshal(env.Data, &hs); err != nil {
				t.Fatal(err)
			}
			if hs.Status != tt.wantStatus || hs.Database != tt.wantDB {
				t.Errorf("health = %+v", hs)
			}
			if hs.ActiveMarkers != 3 || hs.Locations != 2 || hs.Connections != 4 {
				t.Errorf("counters = %+v", hs)
			}
			if rec.Header().Get("X-Request-ID") == "" {
				t.Error("missing X-Request-ID")
			}
		})
	}
}

func TestMarkers(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	exp := now.Add(50 * time.Minute)
	markers := &fakeMarkers{markers: []models.Marker{
		{ID: "b", OwnerID: "u2", Latitude: 40.1, Longitude: -3.7, Category: models.CategoryPointOfInterest, CreatedAt: now, ExpiresAt: exp, Active: true},
		{ID: "a", OwnerID: "u1", Latitude: 40.0, Longitude: -3.6, Category: models.CategoryGeneralReport, CreatedAt: now.Add(-time.Hour), Active: true},
	}}
	h := newTestRouter(t, Dependencies{Markers: markers}, nil)

	rec, env := do(t, h, http.MethodGet, "/api/markers", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var views []models.MarkerView
	if err := json.Unmarshal(env.Data, &views); err != nil {
		t.Fatal(err)
	}
	if len(views) != 2 || views[0].ID != "b" || views[1].ID != "a" {
		t.Errorf("views = %+v", views)
	}
	if env.Metadata.Count == nil || *env.Metadata.Count != 2 {
		t.Errorf("count = %v", env.Metadata.Count)
	}
	for _, hdr := range []string{"X-Content-Type-Options", "X-Frame-Options", "Cache-Control"} {
		if rec.Header().Get(hdr) == "" {
			t.Errorf("missing security header %s", hdr)
		}
	}
}

func TestMarkers_NoEngine(t *testing.T) {
	h := newTestRouter(t, Dependencies{}, nil)
	rec, env := do(t, h, http.MethodGet, "/api/markers", "", nil)
	if rec.Code != http.StatusServiceUnavailable || env.Error == nil || env.Error.Code != "UNAVAILABLE" {
		t.Errorf("status = %d, error = %+v", rec.Code, env.Error)
	}
}

func TestVAPIDPublicKey(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		wantCode int
	}{
		{"configured", "BPubKey", http.StatusOK},
		{"disabled", "", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(t, Dependencies{VAPIDPublicKey: tt.key}, nil)
			rec, env := do(t, h, http.MethodGet, "/api/push/vapid-public-key", "", nil)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d", rec.Code)
			}
			if tt.wantCode == http.StatusOK {
				var resp VAPIDKeyResponse
				_ = json.Unmarshal(env.Data, &resp)
				if resp.PublicKey != tt.key {
					t.Errorf("publicKey = %q", resp.PublicKey)
				}
			}
		})
	}
}

const validSubscription = `{"userId":"ana","subscription":{"endpoint":"https://push.example/abc","keys":{"p256dh":"BKey","auth":"secret"}}}`

func TestPushSubscribe(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
		wantUser string
	}{
		{name: "stores subscription", body: validSubscription, wantCode: http.StatusOK, wantUser: "ana"},
		{name: "anonymous", body: `{"subscription":{"endpoint":"https://push.example/x","keys":{"p256dh":"k","auth":"a"}}}`, wantCode: http.StatusOK},
		{name: "missing endpoint", body: `{"subscription":{"keys":{"p256dh":"k","auth":"a"}}}`, wantCode: http.StatusBadRequest, wantErr: "VALIDATION_ERROR"},
		{name: "endpoint not a url", body: `{"subscription":{"endpoint":"nope","keys":{"p256dh":"k","auth":"a"}}}`, wantCode: http.StatusBadRequest, wantErr: "VALIDATION_ERROR"},
		{name: "missing keys", body: `{"subscription":{"endpoint":"https://push.example/x"}}`, wantCode: http.StatusBadRequest, wantErr: "VALIDATION_ERROR"},
		{name: "malformed json", body: `{"subscription":`, wantCode: http.StatusBadRequest, wantErr: "INVALID_JSON"},
		{name: "oversized body", body: `{"userId":"` + strings.Repeat("a", maxBodyBytes) + `"}`, wantCode: http.StatusRequestEntityTooLarge, wantErr: "PAYLOAD_TOO_LARGE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			h := newTestRouter(t, Dependencies{Subscriptions: store}, nil)
			rec, env := do(t, h, http.MethodPost, "/api/push/subscribe", tt.body, map[string]string{"Content-Type": "application/json"})
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			if tt.wantErr != "" {
				if env.Error == nil || env.Error.Code != tt.wantErr {
					t.Errorf("error = %+v, want %s", env.Error, tt.wantErr)
				}
				if len(store.saved) != 0 {
					t.Errorf("saved %d subscriptions on error", len(store.saved))
				}
				return
			}
			if len(store.saved) != 1 || store.saved[0].UserID != tt.wantUser {
				t.Errorf("saved = %+v", store.saved)
			}
		})
	}
}

func TestPushSubscribe_IdentityOverridesBody(t *testing.T) {
	authn, err := auth.NewAuthenticator(&config.SecurityConfig{AuthMode: auth.ModeJWT, JWTSecret: "test-secret-with-enough-length-123"})
	if err != nil {
		t.Fatal(err)
	}
	token, err := authn.JWT().GenerateToken("luis", "Luis")
	if err != nil {
		t.Fatal(err)
	}

	store := &fakeStore{}
	h := newTestRouter(t, Dependencies{Subscriptions: store, Auth: authn}, nil)

	rec, _ := do(t, h, http.MethodPost, "/api/push/subscribe", validSubscription, map[string]string{"Authorization": "Bearer " + token})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if store.saved[0].UserID != "luis" {
		t.Errorf("user = %q, want luis", store.saved[0].UserID)
	}

	// A bad token is ignored rather than rejected.
	rec, _ = do(t, h, http.MethodPost, "/api/push/subscribe", validSubscription, map[string]string{"Authorization": "Bearer garbage"})
	if rec.Code != http.StatusOK || store.saved[1].UserID != "ana" {
		t.Errorf("status = %d, user = %q", rec.Code, store.saved[1].UserID)
	}
}

func TestPushSubscribe_StoreFailure(t *testing.T) {
	h := newTestRouter(t, Dependencies{Subscriptions: &fakeStore{err: errors.New("disk full")}}, nil)
	rec, env := do(t, h, http.MethodPost, "/api/push/subscribe", validSubscription, nil)
	if rec.Code != http.StatusInternalServerError || env.Error == nil || env.Error.Code != "INTERNAL_ERROR" {
		t.Errorf("status = %d, error = %+v", rec.Code, env.Error)
	}
}

func TestPushUnsubscribe(t *testing.T) {
	store := &fakeStore{}
	h := newTestRouter(t, Dependencies{Subscriptions: store}, nil)

	rec, _ := do(t, h, http.MethodPost, "/api/push/unsubscribe", `{"endpoint":"https://push.example/abc"}`, nil)
	if rec.Code != http.StatusOK || len(store.removed) != 1 || store.removed[0] != "https://push.example/abc" {
		t.Errorf("status = %d, removed = %v", rec.Code, store.removed)
	}

	rec, env := do(t, h, http.MethodPost, "/api/push/unsubscribe", `{}`, nil)
	if rec.Code != http.StatusBadRequest || env.Error == nil || env.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("status = %d, error = %+v", rec.Code, env.Error)
	}
}

func TestPushRoutes_Disabled(t *testing.T) {
	h := newTestRouter(t, Dependencies{}, nil)
	for _, path := range []string{"/api/push/subscribe", "/api/push/unsubscribe"} {
		rec, env := do(t, h, http.MethodPost, path, validSubscription, nil)
		if rec.Code != http.StatusServiceUnavailable || env.Error == nil || env.Error.Code != "PUSH_DISABLED" {
			t.Errorf("%s: status = %d, error = %+v", path, rec.Code, env.Error)
		}
	}
}

func TestRateLimit(t *testing.T) {
	cfg := DefaultChiMiddlewareConfig()
	cfg.RateLimitRequests = 2
	cfg.RateLimitWindow = time.Minute
	h := newTestRouter(t, Dependencies{Markers: &fakeMarkers{}}, cfg)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec, _ := do(t, h, http.MethodGet, "/api/markers", "", nil)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}

	// /health sits outside the limited group.
	if rec, _ := do(t, h, http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Errorf("/health status = %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestRouter(t, Dependencies{Subscriptions: &fakeStore{}}, nil)
	tests := []struct {
		origin string
		want   string
	}{
		{"https://map.example", "https://map.example"},
		{"https://evil.example", ""},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			rec, _ := do(t, h, http.MethodOptions, "/api/push/subscribe", "", map[string]string{
				"Origin":                        tt.origin,
				"Access-Control-Request-Method": http.MethodPost,
			})
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestRouter(t, Dependencies{Markers: &fakeMarkers{}}, nil)
	do(t, h, http.MethodGet, "/api/markers", "", nil)

	rec, _ := do(t, h, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `api_requests_total{endpoint="/api/markers"`) {
		t.Error("metrics output misses the /api/markers request counter")
	}
}

func TestChiMiddlewareConfigFromSecurity(t *testing.T) {
	cfg := ChiMiddlewareConfigFromSecurity(config.SecurityConfig{
		CORSOrigins:     []string{"*"},
		RateLimitReqs:   7,
		RateLimitWindow: 10 * time.Second,
	})
	if cfg.RateLimitRequests != 7 || cfg.RateLimitWindow != 10*time.Second || len(cfg.CORSAllowedOrigins) != 1 {
		t.Errorf("config = %+v", cfg)
	}

	defaults := ChiMiddlewareConfigFromSecurity(config.SecurityConfig{RateLimitDisabled: true})
	if defaults.RateLimitRequests != 100 || defaults.RateLimitWindow != time.Minute || !defaults.RateLimitDisabled {
		t.Errorf("defaults = %+v", defaults)
	}
}

func TestSanitizeLogValue(t *testing.T) {
	if got := sanitizeLogValue("a\nb\tc"); got != `a\x0ab\x09c` {
		t.Errorf("sanitizeLogValue() = %q", got)
	}
}
