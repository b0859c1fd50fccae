package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	sessionCookie = "__session"

	signInPath         = "/sign-in"
	defaultLandingPath = "/dashboard"
	adminLandingPath   = "/admin/dashboard"
	adminPrefix        = "/admin"
)

// GuardConfig controls the process-wide request gate.
type GuardConfig struct {
	// PublicPaths bypass identity resolution entirely.
	PublicPaths map[string]bool
	Logger      *logrus.Logger
}

// Guard resolves the caller's identity on every request, redirects
// unauthenticated page traffic to sign-in, answers API traffic with 401,
// and applies the role-based path rules. Stateless, re-evaluated per request.
func Guard(verifier *Verifier, cfg GuardConfig) gin.HandlerFunc {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if cfg.PublicPaths[path] {
			c.Next()
			return
		}

		token, ok := sessionToken(c)
		if !ok {
			rejectUnauthenticated(c, path)
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			logger.WithError(err).WithField("path", path).Warn("session token rejected")
			rejectUnauthenticated(c, path)
			return
		}

		// Role travels inside the verified token, so the per-request
		// provider round-trip is unnecessary.
		if strings.HasPrefix(path, adminPrefix) && claims.Role != "admin" {
			c.Redirect(http.StatusSeeOther, defaultLandingPath)
			c.Abort()
			return
		}
		if claims.Role == "admin" && path == defaultLandingPath {
			c.Redirect(http.StatusSeeOther, adminLandingPath)
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(WithClaims(c.Request.Context(), claims))
		c.Next()
	}
}

// sessionToken pulls the raw token from the Authorization header, falling
// back to the provider's session cookie.
func sessionToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			token := strings.TrimSpace(parts[1])
			if token != "" {
				return token, true
			}
		}
		return "", false
	}
	if cookie, err := c.Cookie(sessionCookie); err == nil && cookie != "" {
		return cookie, true
	}
	return "", false
}

func rejectUnauthenticated(c *gin.Context, path string) {
	if strings.HasPrefix(path, "/api/") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Redirect(http.StatusSeeOther, signInPath)
	c.Abort()
}
