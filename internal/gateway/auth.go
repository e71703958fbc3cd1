package gateway

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

// AuthConfig protects the /internal endpoints. Either a bearer token, a
// basic user/password pair, or both may be set; the plugin protocol itself
// is never authenticated.
type AuthConfig struct {
	BearerToken string `yaml:"bearer_token"`
	BasicUser   string `yaml:"basic_user"`
	BasicPass   string `yaml:"basic_pass"`
}

// IsConfigured reports whether a complete credential is set.
func (a AuthConfig) IsConfigured() bool {
	return a.BearerToken != "" || a.basicConfigured()
}

func (a AuthConfig) basicConfigured() bool {
	return a.BasicUser != "" && a.BasicPass != ""
}

var (
	errNoCredentials  = errors.New("missing authorization header")
	errBadCredentials = errors.New("invalid credentials")
)

// authenticate checks the Authorization header of r against a.
func (a AuthConfig) authenticate(r *http.Request) error {
	header := r.Header.Get("Authorization")
	if header == "" {
		return errNoCredentials
	}
	if token, ok := strings.CutPrefix(header, "Bearer "); ok && a.BearerToken != "" {
		if secureCompare(token, a.BearerToken) {
			return nil
		}
		return errBadCredentials
	}
	if !a.basicConfigured() {
		return errBadCredentials
	}
	user, pass, ok := r.BasicAuth()
	// Both comparisons always run.
	userOK := secureCompare(user, a.BasicUser)
	passOK := secureCompare(pass, a.BasicPass)
	if !ok || !userOK || !passOK {
		return errBadCredentials
	}
	return nil
}

// requireAdmin rejects /internal requests that do not carry the configured
// credentials.
func (g *Gateway) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := g.config.Auth.authenticate(r); err != nil {
			g.logger.Warn("internal endpoint auth failed",
				"reason", err.Error(),
				"remote_addr", r.RemoteAddr,
				"method", r.Method,
				"path", r.URL.Path,
			)
			if g.config.Auth.basicConfigured() {
				w.Header().Set("WWW-Authenticate", `Basic realm="pluginhost"`)
			}
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
