package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/mood-chat/internal/chat"
	"github.com/suPer8Hu/mood-chat/internal/classifier"
)

const (
	pageTemplate = "index.html"
	emptyWarning = "Please share how you're feeling before analyzing."
)

type pageData struct {
	Turn       *chat.Turn
	Error      string
	Warning    string
	Transcript []chat.Entry
}

// Index shows the page, with the outcome of the last form post if any.
func (h *Handler) Index(c *gin.Context) {
	f := popFlash(c)
	h.renderPage(c, http.StatusOK, pageData{Turn: f.Turn, Error: f.Error, Warning: f.Warning})
}

// Analyze handles the page form and redirects back to the page, so a reload
// does not submit the statement again. Inference failures are shown inline
// and the statement stays in the transcript without a reply.
func (h *Handler) Analyze(c *gin.Context) {
	sid, okk := sessionIDFromContext(c)
	if !okk {
		h.renderPage(c, http.StatusUnauthorized, pageData{Error: "Your session could not be established."})
		return
	}

	var f flash
	turn, err := h.ChatSvc.Analyze(c.Request.Context(), sid, c.PostForm("statement"))
	switch {
	case err == nil:
		f.Turn = turn
	case errors.Is(err, chat.ErrEmptyInput):
		f.Warning = emptyWarning
	case errors.Is(err, classifier.ErrClassification):
		f.Error = "Something went wrong during analysis: " + err.Error()
	default:
		h.Log.Error("analyze failed", "session_id", sid, "err", err)
		f.Error = "Something went wrong while saving your conversation."
	}

	setFlash(c, f)
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) Clear(c *gin.Context) {
	sid, okk := sessionIDFromContext(c)
	if okk {
		if err := h.ChatSvc.ClearTranscript(c.Request.Context(), sid); err != nil {
			h.Log.Error("clear transcript failed", "session_id", sid, "err", err)
			setFlash(c, flash{Error: "Could not clear the chat."})
		}
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) renderPage(c *gin.Context, status int, data pageData) {
	if sid, okk := sessionIDFromContext(c); okk {
		entries, err := h.ChatSvc.Transcript(c.Request.Context(), sid)
		if err != nil {
			h.Log.Error("load transcript failed", "session_id", sid, "err", err)
			if data.Error == "" {
				data.Error = "Could not load the conversation."
			}
		}
		data.Transcript = entries
	}
	c.HTML(status, pageTemplate, data)
}
