package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/ravigill3969/image-converter/backend/apperr"
	"github.com/ravigill3969/image-converter/backend/models"
	"github.com/ravigill3969/image-converter/backend/utils"
	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	SessionContextKey contextKey = "session"
	APIKeyContextKey  contextKey = "apiKey"
)

type SessionTracker interface {
	StartSession(ctx context.Context) (*models.UserSession, string, error)
	ResolveUserIdentity(ctx context.Context, token string) (*models.UserSession, error)
	Touch(ctx context.Context, sess *models.UserSession) (*models.UserSession, string, error)
}

type CookieOptions struct {
	Name   string
	Secure bool
}

// SessionAuth resolves the session cookie into a UserSession. Every
// resolved request slides the session and reissues the cookie.
type SessionAuth struct {
	tracker SessionTracker
	cookie  CookieOptions
	log     logrus.FieldLogger
}

func NewSessionAuth(tracker SessionTracker, cookie CookieOptions, log logrus.FieldLogger) *SessionAuth {
	return &SessionAuth{
		tracker: tracker,
		cookie:  cookie,
		log:     log.WithField("component", "session_auth"),
	}
}

// Require rejects requests without a live session.
func (s *SessionAuth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.resolve(r)
		if err != nil {
			utils.RespondAppError(w, s.log, err)
			return
		}
		s.serve(w, r, next, sess)
	})
}

// Ensure starts a new anonymous session when the request has none.
func (s *SessionAuth) Ensure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.resolve(r)
		if err == nil {
			s.serve(w, r, next, sess)
			return
		}
		if !errors.Is(err, apperr.Unauthenticated) {
			utils.RespondAppError(w, s.log, err)
			return
		}

		sess, token, err := s.tracker.StartSession(r.Context())
		if err != nil {
			utils.RespondAppError(w, s.log, err)
			return
		}
		s.setCookie(w, token, sess)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), SessionContextKey, sess)))
	})
}

func (s *SessionAuth) resolve(r *http.Request) (*models.UserSession, error) {
	cookie, err := r.Cookie(s.cookie.Name)
	if err != nil {
		return nil, apperr.NewUnauthenticated("Session required")
	}
	return s.tracker.ResolveUserIdentity(r.Context(), cookie.Value)
}

func (s *SessionAuth) serve(w http.ResponseWriter, r *http.Request, next http.Handler, sess *models.UserSession) {
	refreshed, token, err := s.tracker.Touch(r.Context(), sess)
	if err != nil {
		utils.RespondAppError(w, s.log, err)
		return
	}
	s.setCookie(w, token, refreshed)
	next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), SessionContextKey, refreshed)))
}

func (s *SessionAuth) setCookie(w http.ResponseWriter, token string, sess *models.UserSession) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie.Name,
		Value:    token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func SessionFromContext(ctx context.Context) (*models.UserSession, bool) {
	sess, ok := ctx.Value(SessionContextKey).(*models.UserSession)
	return sess, ok && sess != nil
}
