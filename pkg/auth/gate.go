package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/sirupsen/logrus"

	"cdnbox/pkg/config"
)

const (
	sessionName = "cdn_session"
	// Fixed 24 hour session lifetime from creation, not sliding.
	sessionMaxAge = 24 * 60 * 60
)

// Gate is the cookie-based session gate in front of mutating and
// folder-enumeration routes. A single static admin identity is the only
// account; there is no user store. The cookie carries only an opaque
// session id; the authoritative session state lives in an in-process
// registry, so logout and expiry revoke a session even when the client
// keeps the old cookie.
type Gate struct {
	store    *sessions.CookieStore
	registry *sessionRegistry
	username string
	password string
	verifier *TurnstileVerifier
	logger   *logrus.Logger
}

// sessionRegistry holds the live session ids and their expiry.
type sessionRegistry struct {
	mu      sync.Mutex
	ttl     time.Duration
	expires map[string]time.Time
	now     func() time.Time
}

func newSessionRegistry(ttl time.Duration) *sessionRegistry {
	return &sessionRegistry{
		ttl:     ttl,
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

// create registers a fresh session id. Expired entries are pruned on
// the way in so the map stays bounded by the number of live sessions.
func (r *sessionRegistry) create() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	id := hex.EncodeToString(buf)

	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for k, exp := range r.expires {
		if now.After(exp) {
			delete(r.expires, k)
		}
	}
	r.expires[id] = now.Add(r.ttl)
	return id, nil
}

func (r *sessionRegistry) valid(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	exp, ok := r.expires[id]
	return ok && r.now().Before(exp)
}

func (r *sessionRegistry) revoke(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.expires, id)
}

// NewGate builds the session gate from the auth configuration. When no
// session secret is configured a random one is generated, which resets
// all sessions on restart.
func NewGate(cfg config.AuthConfig, logger *logrus.Logger) *Gate {
	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			logger.Fatalf("Failed to generate session secret: %v", err)
		}
		logger.Warn("auth.session_secret not set, using a random key; sessions reset on restart")
	}

	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   gin.Mode() == gin.ReleaseMode,
		SameSite: http.SameSiteLaxMode,
	}
	// Align the securecookie codec validity with the cookie lifetime;
	// without this the codec accepts payloads for its 30 day default.
	store.MaxAge(sessionMaxAge)

	var verifier *TurnstileVerifier
	if cfg.TurnstileSecret != "" {
		verifier = NewTurnstileVerifier(cfg.TurnstileSecret, cfg.TurnstileURL, logger)
	}

	return &Gate{
		store:    store,
		registry: newSessionRegistry(time.Duration(sessionMaxAge) * time.Second),
		username: cfg.Username,
		password: cfg.Password,
		verifier: verifier,
		logger:   logger,
	}
}

// IsAuthenticated reports whether the request carries a session id
// that is still live in the registry.
func (g *Gate) IsAuthenticated(c *gin.Context) bool {
	session, err := g.store.Get(c.Request, sessionName)
	if err != nil {
		return false
	}
	id, ok := session.Values["sid"].(string)
	return ok && g.registry.valid(id)
}

// Login verifies the optional bot challenge and the admin credentials,
// then marks the session authenticated. The returned error is generic
// on purpose: callers must never tell the client which check failed.
func (g *Gate) Login(c *gin.Context, username, password, challengeToken string) error {
	if g.verifier != nil {
		if !g.verifier.Verify(c.Request.Context(), challengeToken, c.ClientIP()) {
			return ErrInvalidCredentials
		}
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(g.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(g.password)) == 1
	if g.username == "" || !userOK || !passOK {
		return ErrInvalidCredentials
	}

	id, err := g.registry.create()
	if err != nil {
		return err
	}
	session, _ := g.store.Get(c.Request, sessionName)
	session.Values["sid"] = id
	session.Values["username"] = username
	if err := session.Save(c.Request, c.Writer); err != nil {
		g.registry.revoke(id)
		return err
	}
	g.logger.WithField("username", username).Info("Admin login")
	return nil
}

// Logout revokes the session id in the registry and expires the
// cookie. A replayed pre-logout cookie no longer authenticates.
func (g *Gate) Logout(c *gin.Context) {
	session, _ := g.store.Get(c.Request, sessionName)
	if id, ok := session.Values["sid"].(string); ok {
		g.registry.revoke(id)
	}
	delete(session.Values, "sid")
	delete(session.Values, "username")
	session.Options.MaxAge = -1
	if err := session.Save(c.Request, c.Writer); err != nil {
		g.logger.WithError(err).Warn("Failed to clear session")
	}
}

// RequireAuth aborts with a 401 JSON error when the session is not
// authenticated. No default-allow.
func (g *Gate) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.IsAuthenticated(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Next()
	}
}
