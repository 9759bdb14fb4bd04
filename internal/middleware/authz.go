package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/dpshade/wakatime-mcp/internal/auth"
)

// Auth types recorded in AuthContext.
const (
	AuthTypeJWT       = "jwt"
	AuthTypeAnonymous = "anonymous"
)

// AuthContext identifies the caller of a request.
type AuthContext struct {
	Subject  string
	AuthType string
	TokenID  string
}

// Authorizer handles bearer token checks on the MCP endpoint.
// A nil verifier disables authentication and every caller is anonymous.
type Authorizer struct {
	verifier *auth.Verifier
	logger   *zap.Logger
}

// NewAuthorizer creates a new authorizer.
func NewAuthorizer(verifier *auth.Verifier, logger *zap.Logger) *Authorizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authorizer{verifier: verifier, logger: logger}
}

// Authorize is HTTP middleware that checks authorization
func (a *Authorizer) Authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx, err := a.ValidateRequest(r)
		if err != nil {
			writeErrorResponse(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), AuthContextKey, authCtx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ValidateRequest validates the request and returns auth context
func (a *Authorizer) ValidateRequest(r *http.Request) (*AuthContext, error) {
	if a.verifier == nil {
		return &AuthContext{Subject: clientAddr(r), AuthType: AuthTypeAnonymous}, nil
	}

	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		a.securityEvent(r, "missing_bearer_token", nil)
		return nil, &AuthError{
			Code:    "MISSING_TOKEN",
			Message: "Missing bearer token",
			Status:  http.StatusUnauthorized,
		}
	}

	claims, err := a.verifier.Verify(strings.TrimSpace(token))
	if err != nil {
		a.securityEvent(r, "invalid_bearer_token", err)
		return nil, &AuthError{
			Code:    "INVALID_TOKEN",
			Message: "Invalid bearer token",
			Status:  http.StatusUnauthorized,
		}
	}

	return &AuthContext{
		Subject:  claims.Subject,
		AuthType: AuthTypeJWT,
		TokenID:  claims.ID,
	}, nil
}

func (a *Authorizer) securityEvent(r *http.Request, event string, err error) {
	fields := []zap.Field{
		zap.String("type", "security"),
		zap.String("event", event),
		zap.String("request_id", GetRequestID(r.Context())),
		zap.String("remote_addr", r.RemoteAddr),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	a.logger.Warn("authorization rejected", fields...)
}

// AuthError represents an authorization error
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *AuthError) Error() string {
	return e.Message
}

// writeErrorResponse writes an authorization error response
func writeErrorResponse(w http.ResponseWriter, err error) {
	authErr, ok := err.(*AuthError)
	if !ok {
		authErr = &AuthError{
			Code:    "AUTHORIZATION_ERROR",
			Message: err.Error(),
			Status:  http.StatusInternalServerError,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if authErr.Status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="wakatime-mcp"`)
	}
	w.WriteHeader(authErr.Status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   authErr.Code,
		"message": authErr.Message,
	})
}

// clientAddr returns the remote host without port.
func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return host
}
