package handler

import (
	"net/http"

	"inkwell/internal/services"

	"github.com/hiendaovinh/toolkit/pkg/httpx-echo"
	"github.com/labstack/echo-contrib/pprof"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/samber/do"
)

type Config struct {
	Container *do.Injector
	Mode      string
	Origins   []string
}

func New(cfg *Config) (http.Handler, error) {
	r := echo.New()
	r.Pre(middleware.RemoveTrailingSlash())
	if cfg.Mode == "debug" {
		r.Debug = true
		pprof.Register(r)
	}

	r.JSONSerializer = httpx.SegmentJSONSerializer{}
	r.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339}\t${method}\t${uri}\t${status}\t${latency_human}\n",
	}))
	r.Use(middleware.Recover())

	r.GET("", func(c echo.Context) error {
		return c.String(http.StatusOK, "🏅")
	})

	routesAPIv1 := r.Group("/api/v1")
	{
		authentication, err := do.Invoke[*services.Authentication](cfg.Container)
		if err != nil {
			return nil, err
		}
		cors := middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     cfg.Origins,
			AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
			AllowCredentials: true,
			MaxAge:           60 * 60,
		})

		routesAPIv1.Use(cors)
		routesAPIv1.Use(Authn(authentication)) // Authn will NOT terminate unauthenticated requests.
		routesAPIv1.GET("", Hello)

		b := groupBadge{cfg.Container}
		routesAPIv1.GET("/badges", b.List)
		routesAPIv1.GET("/badges/active", b.ListActive)
		routesAPIv1.GET("/badge/:id", b.Show)
		routesAPIv1.GET("/badge/key/:key", b.ShowByKey)

		e := groupEligibility{cfg.Container}
		routesAPIv1.GET("/badge/:id/eligibility", e.Check)
		routesAPIv1.GET("/badge/:id/progress", e.Progress)

		cl := groupClaim{cfg.Container}
		routesAPIv1.POST("/badge/:id/claim", cl.Initiate)
		routesAPIv1.GET("/claim/:id", cl.Show)
		routesAPIv1.POST("/claim/:id/cancel", cl.Cancel)
		routesAPIv1.POST("/claim/:id/appeal", cl.Appeal)

		u := groupUser{cfg.Container}
		routesAPIv1.GET("/user/me", u.Me)
		routesAPIv1.GET("/user/me/claims", u.Claims)
		routesAPIv1.GET("/user/me/badges/eligible", u.EligibleBadges)

		ev := groupEvent{cfg.Container}
		routesAPIv1.POST("/events", ev.Enqueue)

		routesAPIv1Admin := routesAPIv1.Group("/admin")
		{
			routesAPIv1Admin.Use(RequireAdmin())

			routesAPIv1Admin.POST("/badge", b.Create)
			routesAPIv1Admin.PUT("/badge/:id", b.Update)
			routesAPIv1Admin.POST("/badge/:id/deprecate", b.Deprecate)

			routesAPIv1Admin.GET("/claims/review", cl.ListForReview)
			routesAPIv1Admin.POST("/claim/:id/approve", cl.Approve)
			routesAPIv1Admin.POST("/claim/:id/reject", cl.Reject)
			routesAPIv1Admin.POST("/claim/:id/appeal/resolve", cl.ResolveAppeal)

			routesAPIv1Admin.GET("/queue/stats", ev.QueueStats)
		}
	}

	return r, nil
}

func Hello(c echo.Context) error {
	return httpx.RestAbort(c, "hello world", nil)
}
