package httpserver

import (
	"net/http"
	"net/url"
)

// newCheckOrigin returns the Origin policy for upgrade requests. An empty
// appURL allows every origin. Otherwise requests without an Origin header
// (non-browser clients) and from the app's own origin are allowed, plus
// localhost when isDevelopment is set.
func newCheckOrigin(appURL string, isDevelopment bool) func(r *http.Request) bool {
	if appURL == "" {
		return func(*http.Request) bool { return true }
	}
	appOrigin := extractOrigin(appURL)

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || origin == appOrigin {
			return true
		}
		return isDevelopment && isLocalhostOrigin(origin)
	}
}

func extractOrigin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func isLocalhostOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
