package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/liushuo92/support-bot/internal/chat"
	"github.com/liushuo92/support-bot/internal/common"
	"github.com/liushuo92/support-bot/internal/config"
)

type Handler struct {
	Cfg     config.Config
	ChatSvc *chat.Service
}

func NewHandler(svc *chat.Service, cfg config.Config) *Handler {
	return &Handler{Cfg: cfg, ChatSvc: svc}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"message": "pong"})
}
