package handler

import (
	"context"
	"errors"
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/services"

	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/hiendaovinh/toolkit/pkg/httpx-echo"
	"github.com/labstack/echo/v4"
	"github.com/samber/do"
)

type ctxKey string

var ctxKeyAuthUser ctxKey = "AUTH_USER"
var ctxKeyAuthAdmin ctxKey = "AUTH_ADMIN"

// Authn resolves the bearer token into an authenticated identity. It does
// NOT terminate unauthenticated requests; handlers that need a user resolve
// it through ResolveValidUser.
func Authn(verifier interface {
	Validate(token string) (*services.CustomClaims, error)
},
) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if header == "" {
				return next(c)
			}

			parts := strings.Split(header, "Bearer")
			if len(parts) != 2 {
				return next(c)
			}

			token := strings.TrimSpace(parts[1])
			if len(token) == 0 {
				return next(c)
			}

			claims, err := verifier.Validate(token)
			if err != nil {
				// although it's a client error, we don't want to leak details
				//nolint:errcheck
				httpx.Abort(c, errorx.Wrap(errors.New("invalid access token"), errorx.Authn), -1)
				return nil
			}

			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, ctxKeyAuthUser, &models.UserFromAuth{
				ID:       claims.ID,
				Username: claims.Username,
			})
			ctx = context.WithValue(ctx, ctxKeyAuthAdmin, claims.Admin)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func ResolveValidUser(ctx context.Context, container *do.Injector) (*models.User, error) {
	userAuth, ok := ctx.Value(ctxKeyAuthUser).(*models.UserFromAuth)
	if !ok {
		return nil, errorx.Wrap(errors.New("missing session"), errorx.Authn)
	}

	serviceUser, err := do.Invoke[*services.ServiceUser](container)
	if err != nil {
		return nil, err
	}

	return serviceUser.FindOrCreateUser(ctx, userAuth)
}

// RequireAdmin terminates requests whose token does not carry the admin
// claim. Review and badge administration routes sit behind it.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			admin, ok := c.Request().Context().Value(ctxKeyAuthAdmin).(bool)
			if !ok || !admin {
				//nolint:errcheck
				httpx.Abort(c, errorx.Wrap(errors.New("unauthorized"), errorx.Authn), -1)
				return nil
			}
			return next(c)
		}
	}
}

// resolveActor names the authenticated identity for audit entries.
func resolveActor(ctx context.Context) string {
	userAuth, ok := ctx.Value(ctxKeyAuthUser).(*models.UserFromAuth)
	if !ok {
		return "anonymous"
	}
	return "user:" + userAuth.Username
}

// clientSecurity captures the request metadata the fraud scorer consumes.
// Missing headers stay empty; the scorer treats absence as its own signal.
func clientSecurity(c echo.Context) models.ClaimSecurity {
	return models.ClaimSecurity{
		IP:                c.RealIP(),
		UserAgent:         c.Request().UserAgent(),
		DeviceFingerprint: c.Request().Header.Get("X-Device-Fingerprint"),
		Country:           c.Request().Header.Get("X-Country"),
		SessionID:         c.Request().Header.Get("X-Session-Id"),
	}
}
