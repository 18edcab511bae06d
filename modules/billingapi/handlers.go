package billingapi

import (
	"net/http"

	"github.com/dmitrymomot/billable/handler"
	"github.com/dmitrymomot/billable/pkg/billing"
)

func (m *Module) status(ctx handler.Context, req ownerRequest) handler.Response {
	st, err := m.svc.Status(ctx, req.OwnerID)
	if err != nil {
		return m.fail(ctx, err)
	}
	return handler.JSON(st)
}

func (m *Module) subscribe(ctx handler.Context, req subscribeRequest) handler.Response {
	if err := req.validate(); err != nil {
		return m.fail(ctx, err)
	}
	owner, err := m.owner(ctx, req.OwnerID)
	if err != nil {
		return m.fail(ctx, err)
	}
	if req.Email != "" {
		owner.Email = req.Email
	}

	ok, err := m.svc.Subscribe(billing.WithIdempotencyKey(ctx, req.IdempotencyKey), owner, req.Plan, req.Token, req.options())
	if err != nil {
		return m.fail(ctx, err)
	}
	return m.result(ctx, owner.ID, ok)
}

func (m *Module) swap(ctx handler.Context, req swapRequest) handler.Response {
	if req.Plan == "" {
		return m.fail(ctx, handler.ValidationError{"plan": {"is required"}})
	}
	owner, err := m.owner(ctx, req.OwnerID)
	if err != nil {
		return m.fail(ctx, err)
	}
	ok, err := m.svc.Swap(ctx, owner, req.Plan)
	if err != nil {
		return m.fail(ctx, err)
	}
	return m.result(ctx, owner.ID, ok)
}

func (m *Module) cancel(ctx handler.Context, req cancelRequest) handler.Response {
	owner, err := m.owner(ctx, req.OwnerID)
	if err != nil {
		return m.fail(ctx, err)
	}
	ok, err := m.svc.Cancel(ctx, owner, req.Now)
	if err != nil {
		return m.fail(ctx, err)
	}
	return m.result(ctx, owner.ID, ok)
}

func (m *Module) resume(ctx handler.Context, req ownerRequest) handler.Response {
	owner, err := m.owner(ctx, req.OwnerID)
	if err != nil {
		return m.fail(ctx, err)
	}
	if err := m.svc.Resume(ctx, owner); err != nil {
		return m.fail(ctx, err)
	}
	return m.result(ctx, owner.ID, true)
}

func (m *Module) createCustomer(ctx handler.Context, req customerRequest) handler.Response {
	owner, err := m.owner(ctx, req.OwnerID)
	if err != nil {
		return m.fail(ctx, err)
	}
	if req.Email != "" {
		owner.Email = req.Email
	}
	id, err := m.svc.CreateCustomer(ctx, owner, req.Token)
	if err != nil {
		return m.fail(ctx, err)
	}
	return handler.JSON(customerResponse{CustomerID: id}, handler.WithJSONStatus(http.StatusCreated))
}

func (m *Module) card(ctx handler.Context, req cardRequest) handler.Response {
	if req.Token == "" {
		return m.fail(ctx, handler.ValidationError{"token": {"is required"}})
	}
	owner, err := m.owner(ctx, req.OwnerID)
	if err != nil {
		return m.fail(ctx, err)
	}
	ok, err := m.svc.Card(ctx, owner, req.Token)
	if err != nil {
		return m.fail(ctx, err)
	}
	return handler.JSON(resultResponse{OK: ok})
}

func (m *Module) charge(ctx handler.Context, req chargeRequest) handler.Response {
	if err := req.validate(); err != nil {
		return m.fail(ctx, err)
	}
	owner, err := m.owner(ctx, req.OwnerID)
	if err != nil {
		return m.fail(ctx, err)
	}
	ok, err := m.svc.Charge(billing.WithIdempotencyKey(ctx, req.IdempotencyKey), owner, req.Amount, req.options())
	if err != nil {
		return m.fail(ctx, err)
	}
	return handler.JSON(resultResponse{OK: ok})
}
