package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/liushuo92/support-bot/internal/chat"
	"github.com/liushuo92/support-bot/internal/common"
)

func sessionPayload(sess *chat.Session, messageCount int64) gin.H {
	return gin.H{
		"session_id":    sess.SessionID,
		"created_at":    sess.CreatedAt,
		"is_active":     sess.IsActive,
		"escalated":     sess.Escalated,
		"message_count": messageCount,
	}
}

func (h *Handler) CreateSession(c *gin.Context) {
	sess, err := h.ChatSvc.CreateSession(c.Request.Context())
	if err != nil {
		logrus.WithError(err).Error("create session failed")
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to create session")
		return
	}
	common.OK(c, sessionPayload(sess, 0))
}

func (h *Handler) GetSession(c *gin.Context) {
	sessionID := c.Param("session_id")

	sess, count, err := h.ChatSvc.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "session not found")
			return
		}
		logrus.WithError(err).WithField("session_id", sessionID).Error("get session failed")
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	common.OK(c, sessionPayload(sess, count))
}

func (h *Handler) CloseSession(c *gin.Context) {
	sessionID := c.Param("session_id")

	if err := h.ChatSvc.CloseSession(c.Request.Context(), sessionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "session not found")
			return
		}
		logrus.WithError(err).WithField("session_id", sessionID).Error("close session failed")
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	common.OK(c, gin.H{
		"session_id": sessionID,
		"message":    "Session closed successfully",
	})
}
