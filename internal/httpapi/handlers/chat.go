package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/liushuo92/support-bot/internal/chat"
	"github.com/liushuo92/support-bot/internal/common"
	"github.com/liushuo92/support-bot/internal/httpapi/middleware"
)

type chatReq struct {
	SessionID string `json:"session_id" binding:"required"`
	Message   string `json:"message" binding:"required"`
}

func (h *Handler) Chat(c *gin.Context) {
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	res, err := h.ChatSvc.SendMessage(c.Request.Context(), req.SessionID, req.Message)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "session not found")
			return
		}
		if errors.Is(err, chat.ErrSessionClosed) {
			common.Fail(c, http.StatusBadRequest, 40002, "session is closed")
			return
		}
		// unexpected internal fault: full detail for operators, a short
		// sanitized message for the caller
		logrus.WithError(err).WithFields(logrus.Fields{
			"session_id": req.SessionID,
			"request_id": c.GetString(middleware.RequestIDKey),
		}).Error("chat pipeline failed")
		common.Fail(c, http.StatusInternalServerError, 50001, "an error occurred while processing your message")
		return
	}

	var escalationInfo any
	if res.Ticket != nil {
		escalationInfo = res.Ticket
	} else if res.Escalated {
		escalationInfo = gin.H{"status": "not_escalated"}
	}

	common.OK(c, gin.H{
		"session_id":      res.SessionID,
		"response":        res.Response,
		"faq_matched":     res.FAQMatched,
		"confidence":      res.Confidence,
		"escalated":       res.Escalated,
		"escalation_info": escalationInfo,
	})
}

func (h *Handler) ChatHistory(c *gin.Context) {
	sessionID := c.Param("session_id")

	msgs, err := h.ChatSvc.History(c.Request.Context(), sessionID)
	if err != nil {
		logrus.WithError(err).WithField("session_id", sessionID).Error("list history failed")
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list messages")
		return
	}

	out := make([]gin.H, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, gin.H{
			"role":        m.Role,
			"content":     m.Content,
			"timestamp":   m.CreatedAt,
			"faq_matched": m.FAQMatched,
		})
	}

	common.OK(c, gin.H{
		"session_id": sessionID,
		"messages":   out,
	})
}
