package core

import (
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"zonewatch/internal/types"
)

// OperatorGate guards mutating routes with the operator key. Read methods
// pass through: the daemon's read surface (catalog, session status, events,
// position) is harmless, while every mutating route changes monitoring
// behavior and requires Authorization: Bearer <key> matching the configured
// bcrypt hash.
//
//  1. Safe methods (GET, HEAD, OPTIONS) bypass the gate entirely.
//  2. The Bearer token is extracted from the Authorization header.
//  3. The key is verified against Config.Auth.OperatorKeyHash with bcrypt.
//  4. Returns 401 Unauthorized on failure with distinct error codes:
//     - auth_token_missing: No Authorization header or empty Bearer token.
//     - auth_token_invalid: Key does not match the configured hash.
//
// An empty configured hash disables the gate. The config loader requires
// OPERATOR_KEY_HASH, so this only happens in test servers constructed
// without auth.
func (s *Server) OperatorGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Read methods never mutate; let them through.
		if isSafeMethod(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		// If no operator key hash is configured, pass through.
		hash := s.operatorKeyHash()
		if hash == "" {
			next.ServeHTTP(w, r)
			return
		}

		// Extract the Authorization header.
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.writeAuthError(w, r, types.ErrCodeAuthTokenMissing, "Authorization header is required")
			return
		}

		// Parse the Bearer token.
		key := extractBearerToken(authHeader)
		if key == "" {
			s.writeAuthError(w, r, types.ErrCodeAuthTokenMissing, "Bearer token is required")
			return
		}

		// Verify against the configured hash. bcrypt comparison is
		// constant-cost with respect to the submitted key.
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
			s.Logger.Warn("operator key rejected",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
			)
			s.writeAuthError(w, r, types.ErrCodeAuthTokenInvalid, "Invalid operator key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// operatorKeyHash returns the configured bcrypt hash for the operator key,
// or empty when auth is not configured.
func (s *Server) operatorKeyHash() string {
	if s.Config == nil {
		return ""
	}
	return string(s.Config.Auth.OperatorKeyHash)
}

// isSafeMethod returns true for HTTP methods that do not cause state changes
// and are therefore exempt from the operator gate.
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// extractBearerToken parses the Authorization header value and returns
// the token string. It expects the format "Bearer <token>" (case-insensitive
// scheme per RFC 7235). Returns empty string if the format is invalid.
func extractBearerToken(authHeader string) string {
	const prefix = "Bearer "
	if len(authHeader) < len(prefix) {
		return ""
	}
	// Case-insensitive comparison of the "Bearer " scheme prefix per RFC 7235.
	if !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return ""
	}
	token := authHeader[len(prefix):]
	return strings.TrimSpace(token)
}

// writeAuthError writes a 401 Unauthorized JSON response with the given error code.
func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, code types.ErrorCode, message string) {
	requestID := types.GetRequestID(r.Context())
	resp := APIErrorResponse{
		Error: ErrorDetail{
			Code:      string(code),
			Message:   message,
			RequestID: requestID,
		},
	}
	JSON(w, r, http.StatusUnauthorized, resp)
}
