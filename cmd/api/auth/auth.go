package auth

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	app "github.com/mark3748/helpdesk-sla/cmd/api/app"
)

// RoleAdmin passes every role check.
const RoleAdmin = "admin"

// User is the caller as described by the bearer token.
type User struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

// HasRole reports whether u holds any of roles, or is an admin.
func (u User) HasRole(roles ...string) bool {
	if slices.Contains(u.Roles, RoleAdmin) {
		return true
	}
	for _, r := range roles {
		if slices.Contains(u.Roles, r) {
			return true
		}
	}
	return false
}

var testUser = User{ID: "test-user", Email: "test@example.com", Name: "Test User", Roles: []string{"agent"}}

// Middleware validates the bearer token and stores the User on the context.
// TestBypassAuth installs a fixed agent instead.
func Middleware(a *app.App) gin.HandlerFunc {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"RS256", "ES256", "HS256"})}
	if a.Cfg.OIDCIssuer != "" {
		opts = append(opts, jwt.WithIssuer(a.Cfg.OIDCIssuer))
	}
	parser := jwt.NewParser(opts...)
	groupClaim := a.Cfg.OIDCGroupClaim
	if groupClaim == "" {
		groupClaim = "groups"
	}
	return func(c *gin.Context) {
		if a.Cfg.TestBypassAuth {
			setUser(c, testUser)
			c.Next()
			return
		}
		if a.Keyf == nil {
			app.AbortError(c, http.StatusInternalServerError, "auth_not_configured", "jwks not configured", nil)
			return
		}
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || raw == "" {
			app.AbortError(c, http.StatusUnauthorized, "unauthenticated", "missing bearer token", nil)
			return
		}
		claims := jwt.MapClaims{}
		token, err := parser.ParseWithClaims(raw, claims, a.Keyf)
		if err != nil || !token.Valid {
			log.Ctx(c.Request.Context()).Debug().Err(err).Msg("reject token")
			app.AbortError(c, http.StatusUnauthorized, "unauthenticated", "invalid token", nil)
			return
		}
		u := User{
			ID:    stringClaim(claims, "sub"),
			Email: stringClaim(claims, "email"),
			Name:  stringClaim(claims, "name"),
			Roles: rolesClaim(claims[groupClaim]),
		}
		if u.Name == "" {
			u.Name = stringClaim(claims, "preferred_username")
		}
		setUser(c, u)
		c.Next()
	}
}

func setUser(c *gin.Context, u User) {
	c.Set("user", u)
	c.Set("user_id", u.ID)
}

func stringClaim(c jwt.MapClaims, key string) string {
	s, _ := c[key].(string)
	return s
}

// rolesClaim accepts a list or a single string; other shapes yield no roles.
func rolesClaim(v any) []string {
	switch g := v.(type) {
	case []any:
		out := make([]string, 0, len(g))
		for _, r := range g {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return g
	case string:
		return []string{g}
	}
	return nil
}

// CurrentUser returns the User set by Middleware.
func CurrentUser(c *gin.Context) (User, bool) {
	v, ok := c.Get("user")
	if !ok {
		return User{}, false
	}
	u, ok := v.(User)
	return u, ok
}

// Me returns the authenticated user.
func Me(c *gin.Context) {
	u, ok := CurrentUser(c)
	if !ok {
		app.AbortError(c, http.StatusUnauthorized, "unauthenticated", "unauthenticated", nil)
		return
	}
	c.JSON(http.StatusOK, u)
}

// RequireRole lets the request through when the user holds one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := CurrentUser(c)
		if !ok {
			app.AbortError(c, http.StatusUnauthorized, "unauthenticated", "unauthenticated", nil)
			return
		}
		if !u.HasRole(roles...) {
			app.AbortError(c, http.StatusForbidden, "forbidden", "missing role "+strings.Join(roles, "|"), nil)
			return
		}
		c.Next()
	}
}
