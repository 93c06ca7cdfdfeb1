package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"legalnexus/api/internal/auth"
	"legalnexus/api/internal/rbac"
)

// Session is the authenticated caller, taken from the bearer token.
type Session struct {
	UserID string
	FirmID string
	Level  rbac.Level
}

type sessionKey struct{}

type requestIDKey struct{}

func sessionFrom(ctx context.Context) (Session, bool) {
	session, ok := ctx.Value(sessionKey{}).(Session)
	return session, ok
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// requestContext assigns the request id and the response headers shared by
// every route, and answers CORS preflight requests.
func (s *HTTPServer) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, requestID))

		setCORSHeaders(w.Header(), s.corsOrigin)
		w.Header().Set("X-Request-ID", requestID)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(writer, r)

		event := s.log.Info()
		if writer.status >= http.StatusInternalServerError {
			event = s.log.Warn()
		}
		event.
			Str("request_id", requestIDFrom(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", writer.status).
			Dur("duration", time.Since(started)).
			Msg("request")
	})
}

func (s *HTTPServer) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return
		}
		claims, err := auth.ParseToken(s.jwtSecret, token)
		if err != nil {
			if !errors.Is(err, auth.ErrExpiredToken) && !errors.Is(err, auth.ErrInvalidToken) {
				s.log.Error().Err(err).Str("request_id", requestIDFrom(r.Context())).Msg("token verification failed")
			}
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return
		}
		session := Session{
			UserID: claims.Subject,
			FirmID: claims.FirmID,
			Level:  rbac.Normalize(claims.RoleLevel),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, session)))
	})
}

// allowed writes a 403 and reports false when the session's role cannot
// perform action.
func (s *HTTPServer) allowed(w http.ResponseWriter, r *http.Request, session Session, action rbac.Action) bool {
	if rbac.Can(session.Level, action) {
		return true
	}
	s.log.Info().
		Str("request_id", requestIDFrom(r.Context())).
		Str("user_id", session.UserID).
		Str("role", session.Level.String()).
		Str("action", string(action)).
		Msg("forbidden")
	writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	return false
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
}
