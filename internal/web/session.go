package web

import (
	"context"
	"net/http"
	"sync"

	"github.com/JonMunkholm/PreChart2DB/internal/core"
	"github.com/JonMunkholm/PreChart2DB/internal/logging"
	"github.com/JonMunkholm/PreChart2DB/internal/web/templates"
)

type sessionKey struct{}

// sessionMiddleware attaches the caller's core.Session to the request,
// creating one and setting the cookie when the cookie is missing or stale.
// It also adds the session ID and client metadata to the context for logs.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(s.cfg.Session.CookieName); err == nil {
			id = c.Value
		}

		sess, created := s.service.Sessions().GetOrCreate(id)
		if created {
			http.SetCookie(w, &http.Cookie{
				Name:     s.cfg.Session.CookieName,
				Value:    sess.ID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
				Secure:   r.TLS != nil,
			})
		}

		ctx := context.WithValue(r.Context(), sessionKey{}, sess)
		ctx = logging.WithSession(ctx, sess.ID)
		ctx = core.ContextWithRequestInfo(ctx, core.RequestInfo{
			IPAddress: r.RemoteAddr,
			UserAgent: r.UserAgent(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionFrom returns the session attached by sessionMiddleware.
func sessionFrom(r *http.Request) *core.Session {
	sess, _ := r.Context().Value(sessionKey{}).(*core.Session)
	return sess
}

// flashStore holds one pending notice per session for post/redirect/get.
type flashStore struct {
	mu      sync.Mutex
	flashes map[string]*templates.Flash
}

func newFlashStore() *flashStore {
	return &flashStore{flashes: make(map[string]*templates.Flash)}
}

func (f *flashStore) set(sessionID string, flash *templates.Flash) {
	f.mu.Lock()
	f.flashes[sessionID] = flash
	f.mu.Unlock()
}

// pop returns and clears the pending notice.
func (f *flashStore) pop(sessionID string) *templates.Flash {
	f.mu.Lock()
	defer f.mu.Unlock()
	flash := f.flashes[sessionID]
	delete(f.flashes, sessionID)
	return flash
}

// sweep drops notices of sessions that no longer exist.
func (f *flashStore) sweep(sessions *core.SessionStore) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id := range f.flashes {
		if !sessions.Exists(id) {
			delete(f.flashes, id)
		}
	}
}
