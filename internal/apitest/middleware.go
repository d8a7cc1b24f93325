package apitest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"kaspas-storefront/internal/domain"
	"kaspas-storefront/pkg/jwt"
	"kaspas-storefront/pkg/response"
)

type contextKey string

const userIDKey contextKey = "userID"

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// cors answers preflights and allows credentialed requests from the
// configured origins.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		for _, allowed := range s.origins {
			if allowed == "*" || allowed == origin {
				if origin != "" {
					w.Header().Set("Access-Control-Allow-Origin", origin)
				}
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				break
			}
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		s.mu.Lock()
		s.hits[r.URL.Path]++
		s.mu.Unlock()

		next.ServeHTTP(rw, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration", time.Since(start),
			"request_id", r.Header.Get("X-Request-ID"),
		)
	})
}

// requireAuth rejects requests without a valid, unrevoked access token.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := s.authenticate(r)
		if !ok || userID == "" {
			s.authFailed(w)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	}
}

// optionalAuth lets guests through but still rejects a bad token.
func (s *Server) optionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := s.authenticate(r)
		if !ok {
			s.authFailed(w)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	}
}

func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		acc := s.accountByID(userID(r))
		if acc == nil || acc.user.Role != domain.RoleAdmin {
			response.Forbidden(w, "Access denied")
			return
		}
		next(w, r)
	})
}

// authenticate returns the caller's user id, "" for an anonymous request,
// and false when a token was presented but is not acceptable.
func (s *Server) authenticate(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", true
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}

	claims, err := jwt.ValidateToken(parts[1], s.secret)
	if err != nil || claims.Kind != "access" {
		return "", false
	}

	s.mu.Lock()
	revoked := s.revoked[parts[1]]
	s.mu.Unlock()
	if revoked {
		return "", false
	}
	return claims.UserID, true
}

func (s *Server) authFailed(w http.ResponseWriter) {
	s.mu.Lock()
	mode := s.mode
	s.mu.Unlock()

	if mode == FailWithMessage {
		response.Raw(w, http.StatusOK, response.Response{Message: "Invalid Access Token"})
		return
	}
	response.Unauthorized(w, "Unauthorized request")
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}
