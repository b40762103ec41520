package handler

import (
	"inkwell/internal/models"
	"inkwell/internal/services"

	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/hiendaovinh/toolkit/pkg/httpx-echo"
	"github.com/labstack/echo/v4"
	"github.com/samber/do"
)

type groupEvent struct {
	container *do.Injector
}

// Enqueue accepts a platform event for async badge evaluation. The caller
// gets the queued event back immediately; evaluation happens in the engine's
// drain loop.
func (gr *groupEvent) Enqueue(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := ResolveValidUser(ctx, gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	var body struct {
		Type    models.EventType `json:"type"`
		Payload map[string]any   `json:"payload"`
	}
	if err := c.Bind(&body); err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Invalid))
	}

	serviceEvaluation, err := do.Invoke[*services.ServiceEvaluation](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	event, err := serviceEvaluation.Enqueue(ctx, body.Type, user.ID, body.Payload)
	return httpx.RestAbort(c, event, err)
}

func (gr *groupEvent) QueueStats(c echo.Context) error {
	ctx := c.Request().Context()

	serviceEvaluation, err := do.Invoke[*services.ServiceEvaluation](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	length, err := serviceEvaluation.QueueLen(ctx)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	return httpx.RestAbort(c, map[string]any{"queued": length}, nil)
}
