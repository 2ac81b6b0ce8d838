package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type authContextKey string

const contextKeyUserID authContextKey = "sitewatch-user-id"

// requireAuth ensures the request carries a valid bearer token before invoking next.
// Params: next protected handler.
// Returns: handler that rejects unauthenticated requests with 401.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		token, err := bearerToken(req.Header.Get("Authorization"))
		if err != nil {
			s.logger.Warn("authorization header invalid", "error", err.Error(), "path", req.URL.Path)
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		userID, err := s.verifyToken(token)
		if err != nil {
			s.logger.Warn("token validation failed", "error", err.Error(), "path", req.URL.Path)
			writeError(w, http.StatusUnauthorized, "authentication failed")
			return
		}

		ctx := context.WithValue(req.Context(), contextKeyUserID, userID)
		next(w, req.WithContext(ctx))
	}
}

// verifyToken validates one HS256 JWT and extracts the subject.
// Params: token compact JWT string.
// Returns: user ID from the subject claim or validation error.
func (s *Server) verifyToken(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", err
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("read subject claim: %w", err)
	}
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("token subject is empty")
	}
	return subject, nil
}

// userFromContext extracts the authenticated user ID.
// Params: ctx request context after requireAuth.
// Returns: user ID, empty when the request was not authenticated.
func userFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(contextKeyUserID).(string)
	return userID
}

// bearerToken parses one Authorization header value.
// Params: raw header value.
// Returns: token or format error.
func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("empty bearer token")
	}
	return token, nil
}
