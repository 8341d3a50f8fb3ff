// Package session is the cookie-backed identity for the HTML views.
//
// The signed-in user's id lives in a gorilla/sessions cookie under the key
// "curr_user". Middleware copies it into the request context with
// auth.WithUserID, so HTML handlers and JSON handlers read the caller the
// same way: auth.UserIDFromContext.
package session

import (
	"encoding/gob"
	"log/slog"
	"net/http"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"

	"github.com/sakif/warbler/internal/auth"
)

const (
	// Name is the cookie name.
	Name = "warbler"

	// UserKey is the session value holding the signed-in user's id.
	UserKey = "curr_user"

	// LoginPath is where RequireUser sends anonymous callers.
	LoginPath = "/"
)

// Flash is a one-shot message shown on the next rendered page.
// Category is a Bootstrap alert style: "success", "danger", "info".
type Flash struct {
	Category string
	Message  string
}

func init() {
	// the cookie codec gob-encodes session values
	gob.Register(Flash{})
}

// Manager reads and writes the session cookie.
type Manager struct {
	store  sessions.Store
	logger *slog.Logger
}

// Options control the cookie's attributes.
type Options struct {
	// Secret signs the cookie. Empty means a random key, so sessions do not
	// survive a restart.
	Secret string
	// Secure marks the cookie HTTPS-only.
	Secure bool
	// MaxAge in seconds; 0 means 7 days.
	MaxAge int
}

func NewManager(opts Options, logger *slog.Logger) *Manager {
	key := []byte(opts.Secret)
	if len(key) == 0 {
		logger.Warn("no session secret configured, generating a random one")
		key = securecookie.GenerateRandomKey(64)
	}

	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = 7 * 24 * 60 * 60
	}

	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}

	return &Manager{store: store, logger: logger}
}

// get never fails: a cookie that does not decode (expired key, garbage)
// yields a fresh empty session, which is the same as being signed out.
func (m *Manager) get(r *http.Request) *sessions.Session {
	s, err := m.store.Get(r, Name)
	if err != nil {
		m.logger.Debug("discarding unreadable session cookie", slog.String("error", err.Error()))
	}
	return s
}

// Login stores userID in the session.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, userID string) error {
	s := m.get(r)
	s.Values[UserKey] = userID
	return s.Save(r, w)
}

// Logout removes the user id. Pending flashes are kept so a "logged out"
// message still shows.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) error {
	s := m.get(r)
	delete(s.Values, UserKey)
	return s.Save(r, w)
}

// UserID returns the signed-in user's id straight from the cookie.
func (m *Manager) UserID(r *http.Request) (string, bool) {
	id, ok := m.get(r).Values[UserKey].(string)
	return id, ok && id != ""
}

// AddFlash queues a message for the next page.
func (m *Manager) AddFlash(w http.ResponseWriter, r *http.Request, category, message string) error {
	s := m.get(r)
	s.AddFlash(Flash{Category: category, Message: message})
	return s.Save(r, w)
}

// Flashes pops every queued message. The popped state is written back only
// when there was something to pop.
func (m *Manager) Flashes(w http.ResponseWriter, r *http.Request) []Flash {
	s := m.get(r)
	raw := s.Flashes()
	if len(raw) == 0 {
		return nil
	}
	if err := s.Save(r, w); err != nil {
		m.logger.Error("saving session after reading flashes", slog.String("error", err.Error()))
	}

	out := make([]Flash, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(Flash); ok {
			out = append(out, f)
		}
	}
	return out
}

// Middleware puts the session's user id, if any, into the request context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := m.UserID(r); ok {
			r = r.WithContext(auth.WithUserID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUser lets signed-in callers through. Anyone else gets the
// "Access unauthorized." flash and a redirect to LoginPath.
// It must run after Middleware.
func (m *Manager) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.UserIDFromContext(r.Context()); !ok {
			if err := m.AddFlash(w, r, "danger", auth.UnauthorizedMessage); err != nil {
				m.logger.Error("saving unauthorized flash", slog.String("error", err.Error()))
			}
			http.Redirect(w, r, LoginPath, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
