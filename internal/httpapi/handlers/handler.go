package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/mood-chat/internal/chat"
	"github.com/suPer8Hu/mood-chat/internal/httpapi/middleware"
	"github.com/suPer8Hu/mood-chat/internal/logger"
)

// JobPublisher hands queued analysis jobs to the worker.
type JobPublisher interface {
	PublishJob(ctx context.Context, jobID, sessionID string) error
}

type Handler struct {
	ChatSvc   *chat.Service
	Publisher JobPublisher
	Log       *logger.Logger
}

// NewHandler builds the HTTP handlers. pub may be nil when async analysis is off.
func NewHandler(svc *chat.Service, pub JobPublisher, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{ChatSvc: svc, Publisher: pub, Log: log}
}

func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

func sessionIDFromContext(c *gin.Context) (string, bool) {
	sid := c.GetString(middleware.SessionIDKey)
	return sid, sid != ""
}
