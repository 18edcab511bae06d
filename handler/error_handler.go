package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/billable/pkg/binder"
	"github.com/dmitrymomot/billable/pkg/logger"
)

// ErrorClassifier maps a domain error to an HTTPError. It returns false for
// errors it does not recognise.
type ErrorClassifier func(err error) (HTTPError, bool)

// BindingErrors classifies binder failures as 415 or 400.
func BindingErrors(err error) (HTTPError, bool) {
	switch {
	case errors.Is(err, binder.ErrUnsupportedMediaType):
		return HTTPError{Code: http.StatusUnsupportedMediaType, Key: ErrUnsupportedMedia.Key, Message: err.Error()}, true
	case errors.Is(err, binder.ErrFailedToParseJSON),
		errors.Is(err, binder.ErrFailedToParseQuery),
		errors.Is(err, binder.ErrFailedToParsePath),
		errors.Is(err, binder.ErrFailedToParseHeader):
		return HTTPError{Code: http.StatusBadRequest, Key: ErrBadRequest.Key, Message: err.Error()}, true
	}
	return HTTPError{}, false
}

// NewErrorHandler returns an ErrorHandler that classifies err, logs it with
// the chi request id and renders a JSON error envelope. Client errors log at
// warn level, everything else at error.
func NewErrorHandler(log *slog.Logger, classifiers ...ErrorClassifier) ErrorHandler[Context] {
	if log == nil {
		log = slog.Default()
	}
	classifiers = append([]ErrorClassifier{BindingErrors}, classifiers...)

	return func(ctx Context, err error) {
		resolved := err
		var httpErr HTTPError
		var valErr ValidationError
		if !errors.As(err, &httpErr) && !errors.As(err, &valErr) {
			for _, classify := range classifiers {
				if he, ok := classify(err); ok {
					resolved = he
					break
				}
			}
		}

		resp := JSONError(resolved).(*jsonResponse)
		level := slog.LevelError
		if resp.status < http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		r := ctx.Request()
		log.LogAttrs(r.Context(), level, "request error",
			logger.RequestID(middleware.GetReqID(r.Context())),
			logger.Error(err),
			slog.Int("status_code", resp.status),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Component("error_handler"),
		)
		if renderErr := resp.Render(ctx.ResponseWriter(), r); renderErr != nil {
			log.ErrorContext(r.Context(), "failed to render error response", logger.Error(renderErr))
		}
	}
}
