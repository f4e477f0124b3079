package access

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/renova-api/pkg/errors"
	"github.com/jwalitptl/renova-api/pkg/httputil"
)

const (
	// CookieName holds the signed credential
	CookieName = "credential"

	contextKey = "access_context"
)

// Middleware resolves the credential cookie and stores the result for
// FromGin. Resolution failures end the request.
func Middleware(resolver *Resolver, req Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(CookieName)

		ac, err := resolver.Resolve(c.Request.Context(), token, req)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}

		c.Set(contextKey, ac)
		c.Next()
	}
}

// FromGin returns the context stored by Middleware.
func FromGin(c *gin.Context) (*Context, error) {
	v, ok := c.Get(contextKey)
	if !ok {
		return nil, errors.Internal(ErrNoCredential)
	}
	ac, ok := v.(*Context)
	if !ok {
		return nil, errors.Internal(ErrNoCredential)
	}
	return ac, nil
}

// SetCookie stores token in the credential cookie.
func SetCookie(c *gin.Context, token string, ttl time.Duration, secure bool) {
	maxAge := 0
	if ttl > 0 {
		maxAge = int(ttl.Seconds())
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(CookieName, token, maxAge, "/", "", secure, true)
}

func ClearCookie(c *gin.Context, secure bool) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(CookieName, "", -1, "/", "", secure, true)
}
