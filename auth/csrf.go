package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rpupo63/portfolio-backend/errs"
)

const (
	CSRFCookieName = "portfolio.x-csrf-token"
	CSRFHeaderName = "X-CSRF-Token"

	defaultCSRFTTL = 24 * time.Hour
)

var errForeignSession = errors.New("token was issued for another session")

type csrfClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// CSRFGuard issues and verifies double-submit tokens bound to a session id.
// The token lives in an HttpOnly cookie and must be echoed in the X-CSRF-Token header.
type CSRFGuard struct {
	secret   []byte
	ttl      time.Duration
	secure   bool
	sameSite http.SameSite
}

type CSRFOption func(*CSRFGuard)

func WithTokenTTL(ttl time.Duration) CSRFOption {
	return func(g *CSRFGuard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithSecureCookie marks the token cookie Secure and SameSite=None for cross-site HTTPS deployments.
func WithSecureCookie(secure bool) CSRFOption {
	return func(g *CSRFGuard) {
		g.secure = secure
		if secure {
			g.sameSite = http.SameSiteNoneMode
		} else {
			g.sameSite = http.SameSiteLaxMode
		}
	}
}

func NewCSRFGuard(secret []byte, opts ...CSRFOption) *CSRFGuard {
	g := &CSRFGuard{
		secret:   secret,
		ttl:      defaultCSRFTTL,
		sameSite: http.SameSiteLaxMode,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Issue returns a token for the session, reusing the request's cookie token
// while it is still valid for that session.
func (g *CSRFGuard) Issue(w http.ResponseWriter, r *http.Request, sessionID string) (string, error) {
	if cookie, err := r.Cookie(CSRFCookieName); err == nil {
		if g.validFor(cookie.Value, sessionID) == nil {
			return cookie.Value, nil
		}
	}

	now := time.Now()
	claims := csrfClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("sign csrf token: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(g.ttl.Seconds()),
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: g.sameSite,
	})
	return token, nil
}

// Verify checks that the header token equals the cookie token and was issued for this session.
func (g *CSRFGuard) Verify(r *http.Request, sessionID string) error {
	header := strings.TrimSpace(r.Header.Get(CSRFHeaderName))
	if header == "" {
		return errs.NewCsrfRejectedError("missing csrf token header")
	}
	cookie, err := r.Cookie(CSRFCookieName)
	if err != nil || cookie.Value == "" {
		return errs.NewCsrfRejectedError("missing csrf cookie")
	}
	if subtle.ConstantTimeCompare([]byte(header), []byte(cookie.Value)) != 1 {
		return errs.NewCsrfRejectedError("csrf token mismatch")
	}
	if err := g.validFor(header, sessionID); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return errs.NewCsrfRejectedError("csrf token expired")
		}
		return errs.NewCsrfRejectedError("invalid csrf token")
	}
	return nil
}

func (g *CSRFGuard) validFor(token, sessionID string) error {
	if sessionID == "" {
		return errors.New("no session")
	}
	var claims csrfClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return g.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(claims.SessionID), []byte(sessionID)) != 1 {
		return errForeignSession
	}
	return nil
}
