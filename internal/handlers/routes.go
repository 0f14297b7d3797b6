package handlers

import (
	"github.com/arbmuseum/arb/backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

// RouteOptions carries the per-group middleware built in main.
// Nil limiters are skipped.
type RouteOptions struct {
	AuthLimit   gin.HandlerFunc
	UploadLimit gin.HandlerFunc
	ViewLimit   gin.HandlerFunc
}

// RegisterRoutes mounts every API route on r
func (h *Handlers) RegisterRoutes(r *gin.Engine, opts RouteOptions) {
	r.GET("/health", h.Health)

	requireAuth := middleware.RequireAuth(h.auth)
	requireAdmin := middleware.RequireAdmin()

	api := r.Group("/api/v1")
	{
		// Museum visit tracking (anonymous)
		api.POST("/session/start", h.StartSession)
		api.POST("/view", chain(opts.ViewLimit, h.RecordView)...)
		api.POST("/user/email", h.SubmitEmail)
		api.GET("/progress", h.GetProgress)
		api.GET("/promo", h.GetPromo)
		api.GET("/stats", h.GetStats)

		admin := api.Group("/admin")
		{
			admin.Use(requireAuth, requireAdmin)
			admin.POST("/promo/:code/consume", h.ConsumePromo)
			admin.GET("/alerts", h.ListAlerts)
			admin.POST("/users/:id/rescore", h.RescoreUser)
		}

		// AR accounts
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", chain(opts.AuthLimit, h.Register)...)
			authGroup.POST("/login", chain(opts.AuthLimit, h.Login)...)
			authGroup.GET("/me", requireAuth, h.Me)
			authGroup.POST("/promote/:id", requireAuth, requireAdmin, h.PromoteAdmin)
		}

		videos := api.Group("/videos")
		{
			videos.Use(requireAuth)
			videos.POST("/upload", chain(opts.UploadLimit, h.UploadVideo)...)
		}

		logs := api.Group("/logs")
		{
			logs.Use(requireAuth)
			logs.POST("", h.SubmitLog)
			logs.GET("", requireAdmin, h.ListLogs)
		}
	}
}

func chain(handlers ...gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(handlers))
	for _, hf := range handlers {
		if hf != nil {
			out = append(out, hf)
		}
	}
	return out
}
