package handler

import (
	"strconv"

	"inkwell/internal/models"
	"inkwell/internal/services"

	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/hiendaovinh/toolkit/pkg/httpx-echo"
	"github.com/labstack/echo/v4"
	"github.com/samber/do"
)

type groupBadge struct {
	container *do.Injector
}

func badgeIDParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, errorx.Wrap(err, errorx.Invalid)
	}
	return id, nil
}

func (gr *groupBadge) List(c echo.Context) error {
	ctx := c.Request().Context()

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	serviceBadge, err := do.Invoke[*services.ServiceBadge](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	badges, err := serviceBadge.ListBadges(ctx, limit, offset)
	return httpx.RestAbort(c, badges, err)
}

func (gr *groupBadge) ListActive(c echo.Context) error {
	ctx := c.Request().Context()

	serviceBadge, err := do.Invoke[*services.ServiceBadge](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	badges, err := serviceBadge.ListActiveBadges(ctx)
	return httpx.RestAbort(c, badges, err)
}

func (gr *groupBadge) Show(c echo.Context) error {
	ctx := c.Request().Context()

	badgeID, err := badgeIDParam(c)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	serviceBadge, err := do.Invoke[*services.ServiceBadge](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	badge, err := serviceBadge.GetBadge(ctx, badgeID)
	return httpx.RestAbort(c, badge, err)
}

func (gr *groupBadge) ShowByKey(c echo.Context) error {
	ctx := c.Request().Context()

	serviceBadge, err := do.Invoke[*services.ServiceBadge](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	badge, err := serviceBadge.GetBadgeByKey(ctx, c.Param("key"))
	return httpx.RestAbort(c, badge, err)
}

func (gr *groupBadge) Create(c echo.Context) error {
	ctx := c.Request().Context()

	var badge models.Badge
	if err := c.Bind(&badge); err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Invalid))
	}

	serviceBadge, err := do.Invoke[*services.ServiceBadge](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	created, err := serviceBadge.CreateBadge(ctx, &badge)
	return httpx.RestAbort(c, created, err)
}

func (gr *groupBadge) Update(c echo.Context) error {
	ctx := c.Request().Context()

	badgeID, err := badgeIDParam(c)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	var badge models.Badge
	if err := c.Bind(&badge); err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Invalid))
	}
	badge.ID = badgeID

	serviceBadge, err := do.Invoke[*services.ServiceBadge](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	updated, err := serviceBadge.UpdateBadge(ctx, &badge)
	return httpx.RestAbort(c, updated, err)
}

func (gr *groupBadge) Deprecate(c echo.Context) error {
	ctx := c.Request().Context()

	badgeID, err := badgeIDParam(c)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	serviceBadge, err := do.Invoke[*services.ServiceBadge](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	badge, err := serviceBadge.DeprecateBadge(ctx, badgeID)
	return httpx.RestAbort(c, badge, err)
}
