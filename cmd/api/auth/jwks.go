package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/rs/zerolog/log"
)

// JWKSKeyfunc fetches the key set at url and returns a jwt.Keyfunc over it.
// When refresh is positive the set is re-fetched on that period until ctx ends;
// failed refreshes keep the previous set.
func JWKSKeyfunc(ctx context.Context, url string, refresh time.Duration) (jwt.Keyfunc, error) {
	httpClient := &http.Client{Timeout: 10 * time.Second}
	set, err := jwk.Fetch(ctx, url, jwk.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	var cur atomic.Value
	cur.Store(set)
	if refresh > 0 {
		go func() {
			ticker := time.NewTicker(refresh)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					newSet, err := jwk.Fetch(ctx, url, jwk.WithHTTPClient(httpClient))
					if err != nil {
						log.Warn().Err(err).Str("jwks_url", url).Msg("refresh jwks")
						continue
					}
					cur.Store(newSet)
				}
			}
		}()
	}
	return KeyfuncFromSet(func() jwk.Set { return cur.Load().(jwk.Set) }), nil
}

// KeyfuncFromSet resolves token keys by kid, falling back to the first key.
func KeyfuncFromSet(get func() jwk.Set) jwt.Keyfunc {
	return func(t *jwt.Token) (interface{}, error) {
		set := get()
		kid, _ := t.Header["kid"].(string)
		if kid != "" {
			if key, ok := set.LookupKeyID(kid); ok {
				var pub any
				if err := key.Raw(&pub); err != nil {
					return nil, err
				}
				return pub, nil
			}
		}
		if set.Len() > 0 {
			if key, ok := set.Key(0); ok {
				var pub any
				if err := key.Raw(&pub); err != nil {
					return nil, err
				}
				return pub, nil
			}
		}
		return nil, fmt.Errorf("no jwk for kid: %s", kid)
	}
}
