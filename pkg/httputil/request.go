package httputil

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

// DecodeJSON decodes the request body as JSON into the provided value.
// Returns an error if decoding fails.
func DecodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// QueryParam returns the value of a query parameter, or defaultValue if not
// present.
func QueryParam(r *http.Request, key, defaultValue string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return defaultValue
}

// QueryParamInt returns the integer value of a query parameter, or
// defaultValue if not present or invalid.
func QueryParamInt(r *http.Request, key string, defaultValue int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

// ClientIP extracts the originating client address, preferring the first
// X-Forwarded-For hop when the request came through a proxy.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.Index(forwarded, ","); idx >= 0 {
			forwarded = forwarded[:idx]
		}
		return strings.TrimSpace(forwarded)
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx >= 0 {
		host = host[:idx]
	}
	if host == "" {
		return "unknown"
	}
	return host
}

// BaseURL reconstructs the externally visible base URL of the service from
// forwarding headers, for deriving next-step links in responses.
func BaseURL(r *http.Request) string {
	proto := r.Header.Get("X-Forwarded-Proto")
	if proto == "" {
		proto = "https"
	}
	return proto + "://" + r.Host
}
