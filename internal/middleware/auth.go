package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"procurement/internal/service"
	"procurement/internal/workflow"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Context keys set by Authenticate.
const (
	ContextUserID      = "userID"
	ContextUserRole    = "userRole"
	ContextPermissions = "permissions"
)

const tokenCookie = "access_token"

// PermissionLoader returns the permission codes granted to a role.
type PermissionLoader func(ctx context.Context, role string) ([]string, error)

// Authenticator validates session tokens and resolves role permissions.
// Permissions are cached per role until the TTL runs out or the cache is cleared.
type Authenticator struct {
	secret        []byte
	load          PermissionLoader
	cache         *expirable.LRU[string, workflow.PermissionSet]
	secureCookies bool
}

func NewAuthenticator(secret []byte, load PermissionLoader, cacheSize int, cacheTTL time.Duration, secureCookies bool) *Authenticator {
	if cacheSize <= 0 {
		cacheSize = 128
	}
	return &Authenticator{
		secret:        secret,
		load:          load,
		cache:         expirable.NewLRU[string, workflow.PermissionSet](cacheSize, nil, cacheTTL),
		secureCookies: secureCookies,
	}
}

// Authenticate requires a valid token from the access_token cookie or a
// bearer Authorization header, and stores the caller in the gin context.
func (a *Authenticator) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, cookieErr := c.Cookie(tokenCookie)
		if cookieErr != nil || tokenString == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
				return
			}
			scheme, tok, ok := strings.Cut(authHeader, " ")
			if !ok || scheme != "Bearer" || tok == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid authorization format. Expected 'Bearer <token>'"))
				return
			}
			tokenString = tok
		}

		claims, err := service.ParseToken(a.secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token"))
			return
		}

		perms, err := a.Permissions(c.Request.Context(), claims.Role)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to verify permissions"))
			return
		}

		c.Set(ContextUserID, claims.Subject)
		c.Set(ContextUserRole, claims.Role)
		c.Set(ContextPermissions, perms)
		c.Next()
	}
}

// RequirePermission aborts with 403 unless the caller holds every code.
// It must run after Authenticate.
func (a *Authenticator) RequirePermission(codes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		perms := Permissions(c)
		for _, code := range codes {
			if !perms.Has(code) {
				c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: missing permission '"+code+"'"))
				return
			}
		}
		c.Next()
	}
}

// Permissions returns the cached permission set of role, loading it on a miss.
func (a *Authenticator) Permissions(ctx context.Context, role string) (workflow.PermissionSet, error) {
	if perms, ok := a.cache.Get(role); ok {
		return perms, nil
	}
	codes, err := a.load(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("failed to load permissions for role '%s': %w", role, err)
	}
	perms := workflow.NewPermissionSet(codes...)
	a.cache.Add(role, perms)
	return perms, nil
}

// ClearPermissionCache drops the cached permissions of role, or of every role when empty.
func (a *Authenticator) ClearPermissionCache(role string) {
	if role == "" {
		a.cache.Purge()
		return
	}
	a.cache.Remove(role)
}

// SetTokenCookie stores the session token in an HttpOnly cookie.
func (a *Authenticator) SetTokenCookie(c *gin.Context, token string, ttl time.Duration) {
	a.setCookie(c, token, int(ttl.Seconds()))
}

func (a *Authenticator) ClearTokenCookie(c *gin.Context) {
	a.setCookie(c, "", -1)
}

func (a *Authenticator) setCookie(c *gin.Context, value string, maxAge int) {
	// Cross-origin deployments need SameSite=None, which browsers only accept with Secure.
	sameSite := http.SameSiteLaxMode
	if a.secureCookies {
		sameSite = http.SameSiteNoneMode
	}
	c.SetSameSite(sameSite)
	c.SetCookie(tokenCookie, value, maxAge, "/", "", a.secureCookies, true)
}

// UserID is the authenticated caller's id, empty before Authenticate runs.
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

func Permissions(c *gin.Context) workflow.PermissionSet {
	if v, ok := c.Get(ContextPermissions); ok {
		if perms, ok := v.(workflow.PermissionSet); ok {
			return perms
		}
	}
	return workflow.PermissionSet{}
}
