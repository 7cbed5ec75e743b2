package server

import (
	"net/http"
	"strings"

	"github.com/Suhaibinator/SPipeline/pkg/codec"
	"github.com/Suhaibinator/SPipeline/pkg/pipeline"
	"go.uber.org/zap"
)

// AuthProvider defines an interface for authentication providers. Different
// authentication mechanisms can implement this interface to be used with the
// RequireAuth and OptionalAuth plugins. The framework includes
// BasicAuthProvider, BearerTokenProvider, and APIKeyProvider.
type AuthProvider interface {
	// Authenticate examines the request for authentication credentials and
	// validates them according to the provider's implementation. It returns
	// true if the request is authenticated.
	Authenticate(r *http.Request) bool
}

// BasicAuthProvider provides HTTP Basic Authentication. It validates
// username and password credentials against a predefined map.
type BasicAuthProvider struct {
	Credentials map[string]string // username -> password
}

// Authenticate authenticates a request using HTTP Basic Authentication. The
// Authorization header payload is decoded with the codec package's base64
// helpers and validated against the stored credentials.
func (p *BasicAuthProvider) Authenticate(r *http.Request) bool {
	authHeader := r.Header.Get("Authorization")
	payload, ok := strings.CutPrefix(authHeader, "Basic ")
	if !ok {
		return false
	}

	username, password, err := codec.DecodeBasicAuth(payload)
	if err != nil {
		return false
	}

	expectedPassword, exists := p.Credentials[username]
	if !exists {
		return false
	}
	return password == expectedPassword
}

// BearerTokenProvider provides Bearer Token Authentication. It can validate
// tokens against a predefined map or using a custom validator function.
type BearerTokenProvider struct {
	ValidTokens map[string]bool         // token -> valid
	Validator   func(token string) bool // optional token validator
}

// Authenticate authenticates a request using Bearer Token Authentication.
// It extracts the token from the Authorization header and validates it using
// either the validator function (if provided) or the ValidTokens map.
func (p *BearerTokenProvider) Authenticate(r *http.Request) bool {
	authHeader := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		return false
	}

	if p.Validator != nil {
		return p.Validator(token)
	}
	return p.ValidTokens[token]
}

// APIKeyProvider provides API Key Authentication. It can validate API keys
// provided in a header or query parameter.
type APIKeyProvider struct {
	ValidKeys map[string]bool // key -> valid
	Header    string          // header name (e.g., "X-API-Key")
	Query     string          // query parameter name (e.g., "api_key")
}

// Authenticate authenticates a request using API Key Authentication. It
// checks for the API key in either the specified header or query parameter.
func (p *APIKeyProvider) Authenticate(r *http.Request) bool {
	if p.Header != "" {
		key := r.Header.Get(p.Header)
		if key != "" && p.ValidKeys[key] {
			return true
		}
	}

	if p.Query != "" {
		key := r.URL.Query().Get(p.Query)
		if key != "" && p.ValidKeys[key] {
			return true
		}
	}

	return false
}

// RequireAuth returns a plugins-phase step that rejects unauthenticated
// calls with 401 Unauthorized and finishes the execution early so that no
// handler runs.
func RequireAuth(provider AuthProvider, logger *zap.Logger) pipeline.Step[*Call] {
	return func(c *pipeline.Context[*Call], call *Call) error {
		if provider != nil && provider.Authenticate(call.Request) {
			call.Authenticated = true
			return nil
		}

		logger.Warn("Authentication failed",
			zap.String("method", call.Request.Method),
			zap.String("path", call.Request.URL.Path),
			zap.String("remote_addr", call.Request.RemoteAddr),
		)
		call.RespondText(http.StatusUnauthorized, "Unauthorized")
		c.Finish()
		return nil
	}
}

// OptionalAuth returns a plugins-phase step that records successful
// authentication on the call but lets the call proceed either way.
func OptionalAuth(provider AuthProvider) pipeline.Step[*Call] {
	return func(c *pipeline.Context[*Call], call *Call) error {
		if provider != nil && provider.Authenticate(call.Request) {
			call.Authenticated = true
		}
		return nil
	}
}
