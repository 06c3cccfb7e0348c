package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/mood-chat/internal/chat"
)

const (
	flashCookieName = "mood_flash"
	flashMaxAge     = 60
	// long statements are cut in the flash; the transcript keeps them whole
	flashMaxRunes = 400
)

// flash carries the outcome of a form post across the redirect to GET /.
type flash struct {
	Turn    *chat.Turn `json:"turn,omitempty"`
	Error   string     `json:"error,omitempty"`
	Warning string     `json:"warning,omitempty"`
}

func setFlash(c *gin.Context, f flash) {
	if f.Turn != nil {
		t := *f.Turn
		t.Input = truncateRunes(t.Input, flashMaxRunes)
		f.Turn = &t
	}
	f.Error = truncateRunes(f.Error, flashMaxRunes)

	b, err := json.Marshal(f)
	if err != nil {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookieName, base64.RawURLEncoding.EncodeToString(b), flashMaxAge, "/", "", c.Request.TLS != nil, true)
}

// popFlash reads and clears the flash. A missing or garbled cookie yields
// an empty flash.
func popFlash(c *gin.Context) flash {
	raw, err := c.Cookie(flashCookieName)
	if err != nil || raw == "" {
		return flash{}
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookieName, "", -1, "/", "", c.Request.TLS != nil, true)

	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return flash{}
	}
	var f flash
	if err := json.Unmarshal(b, &f); err != nil {
		return flash{}
	}
	if f.Turn != nil && !f.Turn.Label.Valid() {
		f.Turn = nil
	}
	return f
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
