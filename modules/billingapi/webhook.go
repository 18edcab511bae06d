package billingapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrymomot/billable/handler"
	"github.com/dmitrymomot/billable/pkg/logger"
)

// maxWebhookSize bounds processor payloads.
const maxWebhookSize = 1 << 20

// webhook verifies the payload, routes it by event kind and replies 200 with
// the disposition. Bad signatures get 400, processing failures 503 so the
// processor redelivers.
func (m *Module) webhook(w http.ResponseWriter, r *http.Request) {
	ctx := handler.NewContext(w, r)

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookSize+1))
	if err != nil {
		m.errs(ctx, errors.Join(handler.ErrBadRequest, err))
		return
	}
	if len(payload) > maxWebhookSize {
		m.errs(ctx, handler.HTTPError{
			Code:    http.StatusRequestEntityTooLarge,
			Key:     "payload_too_large",
			Message: "Webhook payload is too large.",
		})
		return
	}

	ev, err := m.webhooks.ParseWebhook(ctx, payload, r.Header.Get(m.webhooks.SignatureHeader()))
	if err != nil {
		m.errs(ctx, err)
		return
	}

	disposition, err := m.svc.HandleEvent(ctx, ev)
	if err != nil {
		m.errs(ctx, fmt.Errorf("handle %s: %w", ev.Type, err))
		return
	}

	m.log.InfoContext(r.Context(), "webhook processed",
		logger.EventType(ev.Type),
		logger.CustomerID(ev.CustomerID),
		logger.Disposition(string(disposition)),
	)
	_ = handler.JSON(webhookResponse{
		EventID:     ev.ID,
		Kind:        ev.Kind.String(),
		Disposition: disposition,
	}).Render(w, r)
}

