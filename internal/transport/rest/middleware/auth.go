package middleware

import (
	"context"
	"net/http"
	"strings"

	"assessd/internal/service"
)

type contextKey string

const (
	RecruiterIDKey contextKey = "recruiterId"
	SubjectRefKey  contextKey = "subjectRef"
)

// AuthMiddleware provides JWT authentication middleware
type AuthMiddleware struct {
	authSvc *service.AuthService
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(authSvc *service.AuthService) *AuthMiddleware {
	return &AuthMiddleware{authSvc: authSvc}
}

// RequireRecruiter validates a recruiter JWT from the Authorization header
func (m *AuthMiddleware) RequireRecruiter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			http.Error(w, `{"error":"missing authorization header"}`, http.StatusUnauthorized)
			return
		}

		claims, err := m.authSvc.ValidateRecruiterToken(token)
		if err != nil {
			http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), RecruiterIDKey, claims.RecruiterID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireCandidate validates a candidate JWT and puts the subject it was
// issued for into the request context.
func (m *AuthMiddleware) RequireCandidate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			http.Error(w, `{"error":"missing authorization header"}`, http.StatusUnauthorized)
			return
		}

		claims, err := m.authSvc.ValidateCandidateToken(token)
		if err != nil {
			http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), SubjectRefKey, claims.SubjectRef)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRecruiterID extracts the recruiter ID from context
func GetRecruiterID(ctx context.Context) string {
	if v, ok := ctx.Value(RecruiterIDKey).(string); ok {
		return v
	}
	return ""
}

// GetSubjectRef extracts the candidate subject from context
func GetSubjectRef(ctx context.Context) string {
	if v, ok := ctx.Value(SubjectRefKey).(string); ok {
		return v
	}
	return ""
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
