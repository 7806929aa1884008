package http

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"golang.org/x/time/rate"
)

const (
	postRateRPS   = 1.0 / 3.0 // one new confession every 3 seconds
	postRateBurst = 1
	pruneInterval = 10 * time.Minute
)

type RouteOptions struct {
	CORSOrigin string
	BoardToken string
	Metrics    bool
}

// SetupRoutes configures all application routes and middleware. Background
// work started here stops with ctx.
func SetupRoutes(ctx context.Context, router *gin.Engine, env *Env, opts RouteOptions) {
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(SecurityHeadersMiddleware())

	if opts.CORSOrigin == "" {
		opts.CORSOrigin = "*"
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{opts.CORSOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Board-Token"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: opts.CORSOrigin != "*",
	}))

	if opts.Metrics {
		p := ginprometheus.NewPrometheus("blurtbox")
		p.ReqCntURLLabelMappingFn = func(c *gin.Context) string {
			url := c.Request.URL.Path
			for _, param := range c.Params {
				url = strings.Replace(url, param.Value, fmt.Sprintf(":%s", param.Key), 1)
			}
			return url
		}
		p.Use(router)
	}

	limiter := NewIPRateLimiter(rate.Limit(postRateRPS), postRateBurst)
	go limiter.PruneEvery(ctx, pruneInterval)

	router.GET("/health", env.Health)
	router.GET("/about", env.About)

	api := router.Group("/api")
	{
		api.GET("/view", env.GetView)
		api.GET("/top", env.GetTop)
		api.GET("/posts/:id", env.GetPost)
		api.GET("/toasts", env.GetToasts)
		api.GET("/categories", env.GetCategories)
	}

	write := api.Group("", BoardTokenMiddleware(opts.BoardToken))
	{
		write.POST("/confessions", RateLimitMiddleware(limiter), env.CreateConfession)
		write.POST("/confessions/:id/vote", env.Vote)
		write.POST("/confessions/:id/report", env.Report)
		write.POST("/confessions/:id/comments", env.SubmitComment)
		write.POST("/confessions/:id/comments/:index/replies", env.SubmitReply)
		write.PUT("/confessions/:id/drafts", env.PutDraft)
		write.DELETE("/posts/:id", env.ClosePost)

		write.PUT("/filter", env.PutFilter)
		write.POST("/filter/:category", env.ToggleCategory)
		write.DELETE("/filter", env.ClearFilter)
		write.POST("/view/more", env.LoadMore)
		write.PUT("/tab", env.PutTab)
		write.POST("/compose/toggle", env.ToggleCompose)
		write.DELETE("/toasts/:id", env.DismissToast)
	}
}
