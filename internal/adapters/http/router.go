package http

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/dkeye/liveshow/internal/adapters/signal"
	"github.com/dkeye/liveshow/internal/config"
	"github.com/dkeye/liveshow/internal/core"
	"github.com/dkeye/liveshow/internal/domain"
	"github.com/dkeye/liveshow/internal/logging"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	sessionName = "liveshow"
	keyLanguage = "language"
	keyPseudo   = "pseudo"
)

// RoomLister is the read side of the room registry.
type RoomLister interface {
	List() []core.RoomInfo
}

type preferencesRequest struct {
	Language string `json:"language" binding:"omitempty,max=35"`
	Pseudo   string `json:"pseudo" binding:"omitempty,max=128"`
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPut, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", logging.HeaderRequestID},
		ExposeHeaders: []string{logging.HeaderRequestID},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

// preferences reads what PUT /api/preferences stored in the cookie session.
func preferences(c *gin.Context) core.Preferences {
	s := sessions.Default(c)
	var p core.Preferences
	if v, ok := s.Get(keyLanguage).(string); ok {
		p.Language = v
	}
	if v, ok := s.Get(keyPseudo).(string); ok {
		p.Pseudo = v
	}
	return p
}

func SetupRouter(ctx context.Context, cfg *config.Config, ctl *signal.SignalWSController, rooms RoomLister, langs *domain.Languages) *gin.Engine {
	switch cfg.Mode {
	case gin.ReleaseMode, gin.DebugMode, gin.TestMode:
		gin.SetMode(cfg.Mode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.GinLogger())
	r.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int((30 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	ok := func(c *gin.Context) { c.String(http.StatusOK, "OK") }
	r.GET("/", ok)
	r.GET("/healthz", ok)

	ws := func(c *gin.Context) { ctl.HandleSignal(ctx, c, preferences(c)) }
	r.GET("/socket.io", ws)
	r.GET("/socket.io/", ws)

	api := r.Group("/api")
	api.GET("/ws/signal", ws)

	iceServers := cfg.ICEServers()
	api.GET("/ice-servers", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"iceServers": iceServers})
	})

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": rooms.List()})
	})

	api.GET("/languages", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"base": langs.Base(), "supported": langs.List()})
	})

	api.GET("/preferences", func(c *gin.Context) {
		p := preferences(c)
		c.JSON(http.StatusOK, gin.H{keyLanguage: langs.OrBase(p.Language), keyPseudo: p.Pseudo})
	})

	api.PUT("/preferences", func(c *gin.Context) {
		var req preferencesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, domain.NewErrorMessage(domain.ErrCodeBadRequest, err.Error()))
			return
		}
		s := sessions.Default(c)
		if req.Language != "" {
			lang, ok := langs.Supported(req.Language)
			if !ok {
				c.JSON(http.StatusBadRequest, domain.NewErrorMessage(domain.ErrCodeUnsupportedLanguage, req.Language))
				return
			}
			s.Set(keyLanguage, lang)
		}
		if req.Pseudo != "" {
			s.Set(keyPseudo, domain.NormalizeDisplayName(req.Pseudo))
		}
		if err := s.Save(); err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("save preferences")
			c.Status(http.StatusInternalServerError)
			return
		}
		p := preferences(c)
		c.JSON(http.StatusOK, gin.H{keyLanguage: langs.OrBase(p.Language), keyPseudo: p.Pseudo})
	})

	log.Info().Str("module", "adapters.http").Strs("origins", cfg.AllowedOrigins).Msg("router setup")
	return r
}
