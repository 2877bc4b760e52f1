// Package session resolves HTTP requests to identities via a signed,
// encrypted cookie. The realtime core treats whatever it returns as
// already validated.
package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"

	"github.com/huddle-chat/huddle/internal/domain"
)

const cookieName = "huddle_session"

// ErrNoSession is returned when the request carries no usable session.
var ErrNoSession = errors.New("session: not authenticated")

// Manager encodes identities into cookies and back.
type Manager struct {
	codec *securecookie.SecureCookie
	ttl   time.Duration
}

// NewManager creates a manager. hashKey authenticates the cookie,
// blockKey encrypts it; both must be stable across restarts for
// sessions to survive.
func NewManager(hashKey, blockKey []byte, ttl time.Duration) *Manager {
	codec := securecookie.New(hashKey, blockKey)
	codec.MaxAge(int(ttl / time.Second))
	return &Manager{codec: codec, ttl: ttl}
}

// Issue writes a session cookie for the identity.
func (m *Manager) Issue(w http.ResponseWriter, ident domain.Identity) error {
	encoded, err := m.codec.Encode(cookieName, ident)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    encoded,
		Path:     "/",
		MaxAge:   int(m.ttl / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Resolve returns the identity carried by the request's session
// cookie, or ErrNoSession when the cookie is absent or invalid.
func (m *Manager) Resolve(r *http.Request) (domain.Identity, error) {
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return domain.Identity{}, ErrNoSession
	}
	var ident domain.Identity
	if err := m.codec.Decode(cookieName, cookie.Value, &ident); err != nil {
		return domain.Identity{}, ErrNoSession
	}
	if ident.UserID == "" {
		return domain.Identity{}, ErrNoSession
	}
	return ident, nil
}

// Clear expires the session cookie.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
