package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/mood-chat/internal/chat"
	"github.com/suPer8Hu/mood-chat/internal/classifier"
	"github.com/suPer8Hu/mood-chat/internal/common"
)

type analyzeReq struct {
	Statement string `json:"statement"`
}

func (h *Handler) AnalyzeJSON(c *gin.Context) {
	sid, okk := sessionIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "no session")
		return
	}

	var req analyzeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	turn, err := h.ChatSvc.Analyze(c.Request.Context(), sid, req.Statement)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyInput):
			common.Fail(c, http.StatusBadRequest, 10002, "statement is required")
		case errors.Is(err, classifier.ErrClassification):
			common.Fail(c, http.StatusBadGateway, 50201, err.Error())
		default:
			h.Log.Error("analyze failed", "session_id", sid, "err", err)
			common.Fail(c, http.StatusInternalServerError, 50002, "failed to analyze")
		}
		return
	}

	common.OK(c, turn)
}

func (h *Handler) GetTranscript(c *gin.Context) {
	sid, okk := sessionIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "no session")
		return
	}

	entries, err := h.ChatSvc.Transcript(c.Request.Context(), sid)
	if err != nil {
		h.Log.Error("load transcript failed", "session_id", sid, "err", err)
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to load transcript")
		return
	}

	common.OK(c, gin.H{"entries": entries})
}

func (h *Handler) ClearTranscript(c *gin.Context) {
	sid, okk := sessionIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "no session")
		return
	}

	if err := h.ChatSvc.ClearTranscript(c.Request.Context(), sid); err != nil {
		h.Log.Error("clear transcript failed", "session_id", sid, "err", err)
		common.Fail(c, http.StatusInternalServerError, 50004, "failed to clear transcript")
		return
	}

	common.OK(c, gin.H{"cleared": true})
}
