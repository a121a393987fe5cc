package bili

import (
	"net/url"
	"strings"
)

// Cookie names carried over from a web QR login, in the order they are joined.
var loginCookieNames = []string{"bili_jct", "SESSDATA", "DedeUserID", "DedeUserID__ckMd5", "sid"}

// ParseCookies splits a "k=v; k2=v2" header value into a map.
func ParseCookies(raw string) map[string]string {
	cookies := make(map[string]string)
	for _, part := range strings.Split(raw, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name == "" {
			continue
		}
		cookies[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return cookies
}

// CookieValue returns one named value from a cookie header.
func CookieValue(raw, name string) string {
	return ParseCookies(raw)[name]
}

// CookiesFromLoginURL rebuilds the session cookie header from the redirect
// URL returned by a confirmed QR login. It returns "" when any of
// DedeUserID, SESSDATA or bili_jct is missing.
func CookiesFromLoginURL(loginURL string) string {
	_, rawQuery, ok := strings.Cut(loginURL, "?")
	if !ok {
		return ""
	}

	params, err := url.ParseQuery(rawQuery)
	if err != nil {
		return ""
	}

	for _, required := range []string{"DedeUserID", "SESSDATA", "bili_jct"} {
		if params.Get(required) == "" {
			return ""
		}
	}

	var parts []string
	for _, name := range loginCookieNames {
		if value := params.Get(name); value != "" {
			parts = append(parts, name+"="+value)
		}
	}
	return strings.Join(parts, "; ")
}
