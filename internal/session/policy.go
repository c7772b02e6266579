package session

import (
	"net/http"
	"time"
)

const (
	// CookieName is the name of the session cookie
	CookieName = "auth-token"
	// CookiePath scopes the cookie to the whole origin
	CookiePath = "/"
	// Lifetime is how long an issued session stays valid
	Lifetime = 30 * 24 * time.Hour
)

// EnvironmentFacts are the deployment facts cookie attributes are derived from.
// They are established once at startup and injected wherever cookies are written.
type EnvironmentFacts struct {
	Production  bool
	CrossSite   bool
	ForceSecure bool
	Domain      string
}

// CookieAttributes is the derived attribute set applied to every session cookie
type CookieAttributes struct {
	Name     string
	HTTPOnly bool
	Secure   bool
	SameSite http.SameSite
	MaxAge   int
	Path     string
	Domain   string
}

// DeriveCookieAttributes computes cookie attributes from env. It is a pure function.
//
// SameSite=None is only honoured by browsers on Secure cookies, so a cross-site
// deployment forces Secure regardless of classification. An explicit domain is
// only set in production on a same-site deployment; edge-fronted deployments may
// refuse a cookie whose domain does not match the edge host.
func DeriveCookieAttributes(env EnvironmentFacts) CookieAttributes {
	attrs := CookieAttributes{
		Name:     CookieName,
		HTTPOnly: true,
		Secure:   env.Production || env.ForceSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(Lifetime / time.Second),
		Path:     CookiePath,
	}

	if env.CrossSite {
		attrs.SameSite = http.SameSiteNoneMode
		attrs.Secure = true
	}

	if env.Production && !env.CrossSite && env.Domain != "" {
		attrs.Domain = env.Domain
	}

	return attrs
}

// cookie builds a fresh cookie carrying value with these attributes
func (a CookieAttributes) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     a.Name,
		Value:    value,
		Path:     a.Path,
		Domain:   a.Domain,
		MaxAge:   maxAge,
		Secure:   a.Secure,
		HttpOnly: a.HTTPOnly,
		SameSite: a.SameSite,
	}
}

// SameSiteString returns the attribute value as it appears on the wire
func (a CookieAttributes) SameSiteString() string {
	switch a.SameSite {
	case http.SameSiteNoneMode:
		return "None"
	case http.SameSiteStrictMode:
		return "Strict"
	default:
		return "Lax"
	}
}
