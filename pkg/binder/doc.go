// Package binder populates request structs from an *http.Request.
//
// Each binder handles one source and one struct tag: JSON reads the body,
// Path reads `path` tags through a router extractor, Query reads `query` tags
// and Header reads `header` tags. Binders are meant to be chained through
// handler.WithBinders; a binder that has nothing to read returns
// ErrBinderNotApplicable and the handler moves on.
package binder
