package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/liushuo92/support-bot/internal/chat"
	"github.com/liushuo92/support-bot/internal/common"
	"github.com/liushuo92/support-bot/internal/config"
	"github.com/liushuo92/support-bot/internal/httpapi/handlers"
	"github.com/liushuo92/support-bot/internal/httpapi/middleware"
)

func NewRouter(svc *chat.Service, cfg config.Config) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	h := handlers.NewHandler(svc, cfg)

	r.GET("/ping", h.Ping)

	// session lifecycle
	r.POST("/session/new", h.CreateSession)
	r.GET("/session/:session_id", h.GetSession)
	r.DELETE("/session/:session_id", h.CloseSession)

	// chat
	r.POST("/chat", h.Chat)
	r.GET("/chat/history/:session_id", h.ChatHistory)

	return r
}
