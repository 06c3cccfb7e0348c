package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/mood-chat/internal/chat"
	"github.com/suPer8Hu/mood-chat/internal/common"
	"gorm.io/gorm"
)

const maxIdempotencyKeyLen = 128

func (h *Handler) SubmitJob(c *gin.Context) {
	sid, okk := sessionIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "no session")
		return
	}
	if !h.ChatSvc.AsyncEnabled() || h.Publisher == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "async analysis is not configured")
		return
	}

	var req analyzeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	var idempoKey *string
	if k := strings.TrimSpace(c.GetHeader("Idempotency-Key")); k != "" {
		if len(k) > maxIdempotencyKeyLen {
			common.Fail(c, http.StatusBadRequest, 10003, "idempotency key too long")
			return
		}
		idempoKey = &k
	}

	job, created, err := h.ChatSvc.SubmitJob(c.Request.Context(), sid, req.Statement, idempoKey)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyInput):
			common.Fail(c, http.StatusBadRequest, 10002, "statement is required")
		case errors.Is(err, chat.ErrAsyncDisabled):
			common.Fail(c, http.StatusServiceUnavailable, 50301, "async analysis is not configured")
		default:
			h.Log.Error("submit job failed", "session_id", sid, "err", err)
			common.Fail(c, http.StatusInternalServerError, 50005, "failed to create job")
		}
		return
	}

	// a replayed key already published its job
	if created {
		if err := h.Publisher.PublishJob(c.Request.Context(), job.ID, sid); err != nil {
			h.Log.Error("publish job failed", "job_id", job.ID, "err", err)
			if err := h.ChatSvc.AbandonJob(c.Request.Context(), job.ID); err != nil {
				h.Log.Error("abandon job failed", "job_id", job.ID, "err", err)
			}
			common.Fail(c, http.StatusInternalServerError, 50006, "failed to enqueue job")
			return
		}
	}

	common.OK(c, gin.H{
		"job_id": job.ID,
		"status": job.Status,
	})
}

func (h *Handler) GetJob(c *gin.Context) {
	sid, okk := sessionIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "no session")
		return
	}

	job, err := h.ChatSvc.GetJob(c.Request.Context(), sid, c.Param("job_id"))
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			common.Fail(c, http.StatusNotFound, 40004, "job not found")
		case errors.Is(err, chat.ErrAsyncDisabled):
			common.Fail(c, http.StatusServiceUnavailable, 50301, "async analysis is not configured")
		default:
			h.Log.Error("get job failed", "job_id", c.Param("job_id"), "err", err)
			common.Fail(c, http.StatusInternalServerError, 50007, "failed to load job")
		}
		return
	}

	common.OK(c, gin.H{
		"job_id":     job.ID,
		"status":     job.Status,
		"label":      job.Label,
		"reply":      job.Reply,
		"follow_up":  job.FollowUp,
		"error":      job.Error,
		"created_at": job.CreatedAt,
		"updated_at": job.UpdatedAt,
	})
}
