package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wall_go/internal/middleware"
)

// SetupRoutes регистрирует операторские маршруты. Всё под /api требует токен.
func SetupRoutes(r *gin.Engine, h *Handler, token string) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api", middleware.AuthRequired(token))
	api.POST("/command", h.Command)
	api.GET("/submissions", h.Submissions)
	api.GET("/submissions/:id", h.Submission)
	api.POST("/groups/:group/flush", h.Flush)
	api.POST("/groups/:group/clear", h.Clear)
	api.GET("/groups/:group/blacklist", h.Blacklist)
	api.DELETE("/blacklist/:sender", h.Unblock)
	api.POST("/config/reload", h.Reload)
}

// NewRouter собирает gin.Engine с восстановлением после паники и логом запросов.
func NewRouter(h *Handler, token string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(h.log))
	SetupRoutes(r, h, token)
	return r
}
