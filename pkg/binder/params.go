package binder

import (
	"net/http"
	"net/textproto"
)

// Path binds `path` tagged fields using extractor, typically chi.URLParam.
func Path(extractor func(r *http.Request, name string) string) func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		return bindFields(v, "path", func(name string) []string {
			if s := extractor(r, name); s != "" {
				return []string{s}
			}
			return nil
		}, ErrFailedToParsePath)
	}
}

// Query binds `query` tagged fields from the URL query string.
func Query() func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		q := r.URL.Query()
		return bindFields(v, "query", func(name string) []string { return q[name] }, ErrFailedToParseQuery)
	}
}

// Header binds `header` tagged fields. Header names are canonicalized.
//
//	type ChargeRequest struct {
//	    IdempotencyKey string `header:"Idempotency-Key"`
//	}
func Header() func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		return bindFields(v, "header", func(name string) []string {
			return r.Header[textproto.CanonicalMIMEHeaderKey(name)]
		}, ErrFailedToParseHeader)
	}
}
