package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/mood-chat/internal/auth"
	"github.com/suPer8Hu/mood-chat/internal/common"
)

const (
	SessionIDKey      = "session_id"
	SessionCookieName = "mood_session"
)

// Session resolves the caller's transcript session from a signed cookie. A
// missing, expired or tampered cookie starts a new empty session.
func Session(secret string, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, err := c.Cookie(SessionCookieName); err == nil && raw != "" {
			if sid, err := auth.ParseSessionJWT(raw, secret); err == nil && common.IsULID(sid) {
				c.Set(SessionIDKey, sid)
				c.Next()
				return
			}
		}

		sid, err := common.NewULID()
		if err != nil {
			common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
			c.Abort()
			return
		}
		token, err := auth.SignSessionJWT(sid, secret, ttl)
		if err != nil {
			common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
			c.Abort()
			return
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(SessionCookieName, token, int(ttl.Seconds()), "/", "", c.Request.TLS != nil, true)
		c.Set(SessionIDKey, sid)
		c.Next()
	}
}
