package gateway

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAuthConfig_Authenticate(t *testing.T) {
	t.Parallel()

	both := AuthConfig{BearerToken: "plugin-admin", BasicUser: "ops", BasicPass: "hunter22"}
	tests := []struct {
		name    string
		cfg     AuthConfig
		prepare func(r *http.Request)
		want    error
	}{
		{"no header", both, func(*http.Request) {}, errNoCredentials},
		{"bearer", both, func(r *http.Request) { r.Header.Set("Authorization", "Bearer plugin-admin") }, nil},
		{"wrong bearer", both, func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, errBadCredentials},
		{"basic", both, func(r *http.Request) { r.SetBasicAuth("ops", "hunter22") }, nil},
		{"wrong password", both, func(r *http.Request) { r.SetBasicAuth("ops", "hunter2") }, errBadCredentials},
		{"wrong user", both, func(r *http.Request) { r.SetBasicAuth("root", "hunter22") }, errBadCredentials},
		{
			"basic when only bearer is set",
			AuthConfig{BearerToken: "plugin-admin"},
			func(r *http.Request) { r.SetBasicAuth("ops", "hunter22") },
			errBadCredentials,
		},
		{
			"bearer when only basic is set",
			AuthConfig{BasicUser: "ops", BasicPass: "hunter22"},
			func(r *http.Request) { r.Header.Set("Authorization", "Bearer hunter22") },
			errBadCredentials,
		},
		{"unknown scheme", both, func(r *http.Request) { r.Header.Set("Authorization", "Token plugin-admin") }, errBadCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "/internal/status/", nil)
			tt.prepare(r)
			if err := tt.cfg.authenticate(r); !errors.Is(err, tt.want) {
				t.Errorf("authenticate = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAuthConfig_IsConfigured(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cfg  AuthConfig
		want bool
	}{
		{AuthConfig{}, false},
		{AuthConfig{BearerToken: "t"}, true},
		{AuthConfig{BasicUser: "u", BasicPass: "p"}, true},
		{AuthConfig{BasicUser: "u"}, false},
		{AuthConfig{BasicPass: "p"}, false},
	}
	for _, tt := range tests {
		if got := tt.cfg.IsConfigured(); got != tt.want {
			t.Errorf("%+v.IsConfigured() = %v, want %v", tt.cfg, got, tt.want)
		}
	}
}

func TestGateway_RequireAdmin(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	g := &Gateway{
		config: Config{Auth: AuthConfig{BasicUser: "ops", BasicPass: "hunter22"}},
		logger: slog.New(slog.NewTextHandler(&logs, nil)),
	}
	h := g.requireAdmin(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/internal/status/", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	if got := rr.Header().Get("WWW-Authenticate"); !strings.Contains(got, "Basic") {
		t.Errorf("WWW-Authenticate = %q", got)
	}
	if !strings.Contains(logs.String(), "missing authorization header") {
		t.Errorf("failure not logged: %s", logs.String())
	}

	req := httptest.NewRequest(http.MethodPut, "/internal/status/", nil)
	req.SetBasicAuth("ops", "hunter22")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rr.Code)
	}
}
