package auth_test

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"

	apppkg "github.com/mark3748/helpdesk-sla/cmd/api/app"
	authpkg "github.com/mark3748/helpdesk-sla/cmd/api/auth"
)

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name  string
		roles []string
		want  int
	}{
		{"agent allowed", []string{"agent"}, http.StatusOK},
		{"admin always allowed", []string{"admin"}, http.StatusOK},
		{"requester refused", []string{"requester"}, http.StatusForbidden},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/reports", func(c *gin.Context) {
				c.Set("user", authpkg.User{ID: "u", Roles: tt.roles})
				c.Next()
			}, authpkg.RequireRole("agent"), func(c *gin.Context) { c.Status(http.StatusOK) })
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports", nil))
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	keyf := func(t *jwt.Token) (any, error) { return []byte("secret"), nil }
	a := apppkg.NewApp(apppkg.Config{Env: "test"}, nil, keyf, nil, nil)
	a.R.GET("/me", authpkg.Middleware(a), authpkg.Me)
	rr := httptest.NewRecorder()
	a.R.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/me", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"code":"unauthenticated"`) {
		t.Fatalf("expected error envelope, got %s", rr.Body.String())
	}
}

func TestKeyfuncFromSet(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	pub, err := jwk.FromRaw(priv.Public())
	if err != nil {
		t.Fatal(err)
	}
	_ = pub.Set(jwk.KeyIDKey, "k1")
	set := jwk.NewSet()
	_ = set.AddKey(pub)
	keyf := authpkg.KeyfuncFromSet(func() jwk.Set { return set })

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{"sub": "abc"})
	tok.Header["kid"] = "k1"
	signed, err := tok.SignedString(priv)
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := jwt.Parse(signed, keyf)
	if err != nil || !parsed.Valid {
		t.Fatalf("parse: %v", err)
	}
	// unknown kid falls back to the first key
	tok.Header["kid"] = "other"
	signed, _ = tok.SignedString(priv)
	if _, err := jwt.Parse(signed, keyf); err != nil {
		t.Fatalf("fallback parse: %v", err)
	}
	empty := authpkg.KeyfuncFromSet(func() jwk.Set { return jwk.NewSet() })
	if _, err := jwt.Parse(signed, empty); err == nil {
		t.Fatalf("expected failure with an empty set")
	}
}
