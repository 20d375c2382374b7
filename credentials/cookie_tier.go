package credentials

import (
	"net/http"
	"net/url"
	"time"
)

// Cookie lifetimes per the backend contract: the access token cookie is
// short-lived, the refresh token cookie long-lived. Both are scoped to the
// whole site and sent on top-level navigations only.
const (
	AccessCookieName  = "token"
	RefreshCookieName = "refreshToken"

	AccessCookieTTL  = 15 * time.Minute
	RefreshCookieTTL = 7 * 24 * time.Hour
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// CookieTier stores credential values as cookies in an http.CookieJar so
// same-origin requests carry them to the backend. It is the secondary tier
// behind Store's mirroring.
type CookieTier struct {
	jar     http.CookieJar
	baseURL *url.URL
}

var _ Tier = (*CookieTier)(nil)

// NewCookieTier wraps jar, scoping all cookies to the origin of baseURL.
func NewCookieTier(jar http.CookieJar, baseURL *url.URL) *CookieTier {
	origin := &url.URL{Scheme: baseURL.Scheme, Host: baseURL.Host, Path: "/"}
	return &CookieTier{jar: jar, baseURL: origin}
}

func (c *CookieTier) Get(key string) string {
	for _, cookie := range c.jar.Cookies(c.baseURL) {
		if cookie.Name == key {
			return cookie.Value
		}
	}
	return ""
}

func (c *CookieTier) Set(key, value string) {
	ttl := AccessCookieTTL
	if key == RefreshCookieName {
		ttl = RefreshCookieTTL
	}
	c.jar.SetCookies(c.baseURL, []*http.Cookie{{
		Name:     key,
		Value:    value,
		Path:     "/",
		Expires:  NowTimeFunc().Add(ttl),
		MaxAge:   int(ttl / time.Second),
		SameSite: http.SameSiteLaxMode,
	}})
}

func (c *CookieTier) Clear(key string) {
	c.jar.SetCookies(c.baseURL, []*http.Cookie{{
		Name:    key,
		Value:   "",
		Path:    "/",
		Expires: time.Unix(0, 0),
		MaxAge:  -1,
	}})
}
