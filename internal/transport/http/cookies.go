package http

import (
	"net/http"
	"time"
)

const (
	sessionCookie = "auth_token"
	codeCookie    = "verification_code"
)

type cookieJar struct {
	secure  bool
	codeTTL time.Duration
}

func (c cookieJar) setSession(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c cookieJar) setCode(w http.ResponseWriter, code string) {
	http.SetCookie(w, &http.Cookie{
		Name:     codeCookie,
		Value:    code,
		Path:     "/",
		Expires:  time.Now().Add(c.codeTTL),
		MaxAge:   int(c.codeTTL.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (c cookieJar) clear(w http.ResponseWriter, name string) {
	sameSite := http.SameSiteLaxMode
	if name == codeCookie {
		sameSite = http.SameSiteStrictMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: sameSite,
	})
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
