package handler

import (
	"inkwell/internal/services"

	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/hiendaovinh/toolkit/pkg/httpx-echo"
	"github.com/labstack/echo/v4"
	"github.com/samber/do"
)

type groupEligibility struct {
	container *do.Injector
}

func (gr *groupEligibility) Check(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := ResolveValidUser(ctx, gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	badgeID, err := badgeIDParam(c)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	serviceBadge, err := do.Invoke[*services.ServiceBadge](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	serviceEligibility, err := do.Invoke[*services.ServiceEligibility](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	badge, err := serviceBadge.GetBadge(ctx, badgeID)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	eligible, err := serviceEligibility.IsEligible(ctx, user, badge)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	return httpx.RestAbort(c, map[string]any{
		"badge_id": badge.ID,
		"eligible": eligible,
	}, nil)
}

func (gr *groupEligibility) Progress(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := ResolveValidUser(ctx, gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	badgeID, err := badgeIDParam(c)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	serviceBadge, err := do.Invoke[*services.ServiceBadge](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	serviceEligibility, err := do.Invoke[*services.ServiceEligibility](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	badge, err := serviceBadge.GetBadge(ctx, badgeID)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	rows, confidence, err := serviceEligibility.Progress(ctx, user, badge)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	return httpx.RestAbort(c, map[string]any{
		"badge_id":     badge.ID,
		"requirements": rows,
		"confidence":   confidence,
	}, nil)
}
