package auth

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/rpupo63/portfolio-backend/errs"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	SessionName = "portfolio_session"

	sessionIDKey       = "sid"
	authenticatedKey   = "authenticated"
	authenticatedAtKey = "authenticated_at"
)

// Gate decides whether a request carries an authenticated admin session.
type Gate struct {
	store    sessions.Store
	adminKey string
	maxAge   time.Duration
	logger   zerolog.Logger
}

func NewGate(store sessions.Store, adminKey string, maxAge time.Duration) *Gate {
	return &Gate{
		store:    store,
		adminKey: adminKey,
		maxAge:   maxAge,
		logger:   log.With().Str("component", "authGate").Logger(),
	}
}

// Configured reports whether an admin key is set. Without one every login fails.
func (g *Gate) Configured() bool {
	return g.adminKey != ""
}

func (g *Gate) session(r *http.Request) *sessions.Session {
	session, err := g.store.Get(r, SessionName)
	if err != nil {
		// The store still returns a usable new session.
		g.logger.Debug().Err(err).Msg("Discarding unreadable session cookie")
	}
	return session
}

// IsAuthenticated reports whether the session was marked authenticated by a
// successful login that has not expired.
func (g *Gate) IsAuthenticated(r *http.Request) bool {
	session := g.session(r)
	authenticated, _ := session.Values[authenticatedKey].(bool)
	if !authenticated {
		return false
	}
	if g.maxAge <= 0 {
		return true
	}
	raw, _ := session.Values[authenticatedAtKey].(string)
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return false
	}
	return time.Since(at) < g.maxAge
}

// Login marks the session authenticated when key matches the admin key exactly.
func (g *Gate) Login(w http.ResponseWriter, r *http.Request, key string) error {
	if !g.Configured() {
		return errs.NewAdminNotConfiguredError()
	}
	if subtle.ConstantTimeCompare([]byte(key), []byte(g.adminKey)) != 1 {
		return errs.NewInvalidAdminKeyError()
	}

	session := g.session(r)
	if sid, _ := session.Values[sessionIDKey].(string); sid == "" {
		session.Values[sessionIDKey] = uuid.NewString()
	}
	session.Values[authenticatedKey] = true
	session.Values[authenticatedAtKey] = time.Now().UTC().Format(time.RFC3339)
	if err := session.Save(r, w); err != nil {
		return errs.NewStorageError("save session", err)
	}
	return nil
}

// Logout destroys the session.
func (g *Gate) Logout(w http.ResponseWriter, r *http.Request) error {
	session := g.session(r)
	delete(session.Values, authenticatedKey)
	delete(session.Values, authenticatedAtKey)
	delete(session.Values, sessionIDKey)
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		return errs.NewStorageError("destroy session", err)
	}
	return nil
}

// SessionID returns the stable id of the request's session, or "" when it has none.
func (g *Gate) SessionID(r *http.Request) string {
	sid, _ := g.session(r).Values[sessionIDKey].(string)
	return sid
}

// EnsureSessionID returns the session id, creating and saving a session when needed.
func (g *Gate) EnsureSessionID(w http.ResponseWriter, r *http.Request) (string, error) {
	session := g.session(r)
	if sid, _ := session.Values[sessionIDKey].(string); sid != "" {
		return sid, nil
	}
	sid := uuid.NewString()
	session.Values[sessionIDKey] = sid
	if err := session.Save(r, w); err != nil {
		return "", errs.NewStorageError("save session", err)
	}
	return sid, nil
}

// NewCookieStore builds the default cookie session store. Pass a hash key and a
// block key (see Keys.SessionKeyPairs) to have the cookie signed and encrypted.
func NewCookieStore(maxAge time.Duration, secure bool, keyPairs ...[]byte) *sessions.CookieStore {
	store := sessions.NewCookieStore(keyPairs...)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	store.MaxAge(store.Options.MaxAge)
	return store
}
