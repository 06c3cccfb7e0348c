package httpapi

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/mood-chat/internal/common"
	"github.com/suPer8Hu/mood-chat/internal/config"
	"github.com/suPer8Hu/mood-chat/internal/httpapi/handlers"
	"github.com/suPer8Hu/mood-chat/internal/httpapi/middleware"
	"github.com/suPer8Hu/mood-chat/internal/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

// SessionTTL bounds how long a browser keeps its transcript session.
const SessionTTL = 30 * 24 * time.Hour

func NewRouter(h *handlers.Handler, cfg config.Config, log *logger.Logger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.Recovery(log))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(log))

	// preflight requests match no route, so CORS has to sit on the engine
	if len(cfg.CORSAllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSAllowOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowHeaders:     []string{"Content-Type", "Idempotency-Key", "X-Request-Id"},
			ExposeHeaders:    []string{"X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.SetHTMLTemplate(template.Must(template.ParseFS(templateFS, "templates/*.html")))

	r.GET("/ping", h.Ping)

	// everything else is tied to a transcript session
	sess := r.Group("/")
	sess.Use(middleware.Session(cfg.JWTSecret, SessionTTL))

	sess.GET("/", h.Index)
	sess.POST("/analyze", h.Analyze)
	sess.POST("/clear", h.Clear)

	api := sess.Group("/api")
	api.POST("/analyze", h.AnalyzeJSON)
	api.GET("/transcript", h.GetTranscript)
	api.DELETE("/transcript", h.ClearTranscript)
	api.POST("/jobs", h.SubmitJob)
	api.GET("/jobs/:job_id", h.GetJob)

	return r
}
