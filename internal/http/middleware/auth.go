package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
	"go.uber.org/zap"

	"github.com/fernlabs/authgate/internal/domain"
	"github.com/fernlabs/authgate/internal/jwt"
	"github.com/fernlabs/authgate/internal/service"
)

const identityKey = "authIdentity"

// Identity is the request-scoped authenticated principal. It is built fresh
// for every request that presents a valid token and never shared across
// requests.
type Identity struct {
	Account domain.Account
	Claims  *gojwt.Claims
}

// Auth establishes identity from a bearer token. It never rejects a request
// itself: a missing or invalid token just leaves the request unauthenticated,
// and RequireIdentity decides whether that matters for the route.
type Auth struct {
	Codec    *jwt.Codec
	Accounts *service.AccountService
	Logger   *zap.Logger
}

// Authenticate extracts and verifies the bearer token, resolves the account
// behind its subject, and attaches the identity to the request.
func (m *Auth) Authenticate(c *gin.Context) {
	token, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok {
		c.Next()
		return
	}

	claims, err := m.Codec.VerifyAndDecode(token)
	if err != nil {
		m.log().Warn("bearer token rejected", zap.Error(err), zap.String("path", c.Request.URL.Path))
		c.Next()
		return
	}

	if _, exists := GetIdentity(c); exists {
		c.Next()
		return
	}

	account, err := m.Accounts.FindByUsername(c.Request.Context(), claims.Subject)
	if err != nil {
		m.log().Warn("token subject has no account", zap.String("subject", claims.Subject), zap.Error(err))
		c.Next()
		return
	}

	// Re-check the subject against the resolved account before trusting it.
	if account.Username != claims.Subject || account.Disabled() {
		m.log().Warn("token subject mismatch or disabled account", zap.String("subject", claims.Subject))
		c.Next()
		return
	}

	c.Set(identityKey, Identity{Account: account, Claims: claims})
	c.Next()
}

func (m *Auth) log() *zap.Logger {
	if m != nil && m.Logger != nil {
		return m.Logger
	}
	return zap.L()
}

// RequireIdentity is the authorization step for protected routes: it aborts
// with 401 when the gate did not establish an identity.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetIdentity(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Next()
	}
}

// GetIdentity returns the authenticated identity for this request, if any.
func GetIdentity(c *gin.Context) (Identity, bool) {
	value, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	identity, ok := value.(Identity)
	return identity, ok
}

func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
