package handler

import (
	"errors"
	"strconv"

	"inkwell/internal/services"

	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/hiendaovinh/toolkit/pkg/httpx-echo"
	"github.com/labstack/echo/v4"
	"github.com/samber/do"
)

type groupClaim struct {
	container *do.Injector
}

func (gr *groupClaim) Initiate(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := ResolveValidUser(ctx, gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	badgeID, err := badgeIDParam(c)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	serviceClaim, err := do.Invoke[*services.ServiceClaim](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	claim, err := serviceClaim.InitiateClaim(ctx, badgeID, user, clientSecurity(c), resolveActor(ctx))
	return httpx.RestAbort(c, claim, err)
}

func (gr *groupClaim) Show(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := ResolveValidUser(ctx, gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	serviceClaim, err := do.Invoke[*services.ServiceClaim](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	claim, err := serviceClaim.GetClaim(ctx, c.Param("id"))
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	if claim.UserID != user.ID {
		return httpx.RestAbort(c, nil, errorx.Wrap(errors.New("unauthorized"), errorx.Authn))
	}

	return httpx.RestAbort(c, claim, nil)
}

func (gr *groupClaim) Cancel(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := ResolveValidUser(ctx, gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	serviceClaim, err := do.Invoke[*services.ServiceClaim](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	claim, err := serviceClaim.Cancel(ctx, c.Param("id"), user.ID)
	return httpx.RestAbort(c, claim, err)
}

func (gr *groupClaim) Appeal(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := ResolveValidUser(ctx, gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Invalid))
	}

	serviceClaim, err := do.Invoke[*services.ServiceClaim](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	claim, err := serviceClaim.SubmitAppeal(ctx, c.Param("id"), user.ID, body.Reason)
	return httpx.RestAbort(c, claim, err)
}

func (gr *groupClaim) ListForReview(c echo.Context) error {
	ctx := c.Request().Context()

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	serviceClaim, err := do.Invoke[*services.ServiceClaim](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	claims, err := serviceClaim.ListClaimsForReview(ctx, limit, offset)
	return httpx.RestAbort(c, claims, err)
}

func (gr *groupClaim) Approve(c echo.Context) error {
	return gr.review(c, true)
}

func (gr *groupClaim) Reject(c echo.Context) error {
	return gr.review(c, false)
}

func (gr *groupClaim) review(c echo.Context, approve bool) error {
	ctx := c.Request().Context()

	var body struct {
		Notes string `json:"notes"`
	}
	if err := c.Bind(&body); err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Invalid))
	}

	serviceClaim, err := do.Invoke[*services.ServiceClaim](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	claim, err := serviceClaim.Review(ctx, c.Param("id"), approve, resolveActor(ctx), body.Notes)
	return httpx.RestAbort(c, claim, err)
}

func (gr *groupClaim) ResolveAppeal(c echo.Context) error {
	ctx := c.Request().Context()

	var body struct {
		Outcome string `json:"outcome"`
	}
	if err := c.Bind(&body); err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Invalid))
	}

	serviceClaim, err := do.Invoke[*services.ServiceClaim](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	claim, err := serviceClaim.ResolveAppeal(ctx, c.Param("id"), resolveActor(ctx), body.Outcome)
	return httpx.RestAbort(c, claim, err)
}
