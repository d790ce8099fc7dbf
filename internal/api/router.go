package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erazemk/krma/internal/feeding"
	"github.com/erazemk/krma/internal/logger"
	"github.com/erazemk/krma/internal/metrics"
	"github.com/erazemk/krma/internal/model"
)

// Deps are the collaborators of the HTTP surface.
type Deps struct {
	Service     *feeding.Service
	JWTSecret   string
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
	CORSOrigins []string
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	log := logger.Named(d.Logger, "api")
	db := d.Service.DB()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(LoggingMiddleware(log))
	r.Use(cors.New(corsConfig(d.CORSOrigins)))

	r.GET("/healthz", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			jsonError(c, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	authH := &AuthHandler{DB: db, Log: log}
	feedTypes := &FeedTypesHandler{DB: db, Svc: d.Service, Log: log}
	stock := &StockHandler{DB: db, Svc: d.Service, Log: log}
	recipes := &RecipesHandler{DB: db, Log: log}
	schedules := &SchedulesHandler{DB: db, Svc: d.Service, Log: log}
	consumption := &ConsumptionHandler{DB: db, Svc: d.Service, Log: log}
	advice := &AdviceHandler{Svc: d.Service, Log: log}
	pens := &PensHandler{DB: db, Log: log}

	v1 := r.Group("/api/v1")
	v1.Use(AuthMiddleware(d.JWTSecret, db))
	manager := RequireRole(model.RoleManager)

	v1.GET("/auth/me", authH.Me)
	v1.POST("/auth/logout", authH.Logout)

	// Reads are open to every role, writes need manager or above.
	v1.GET("/feed-types", feedTypes.List)
	v1.POST("/feed-types", manager, feedTypes.Create)
	v1.GET("/feed-types/:id", feedTypes.Get)
	v1.PUT("/feed-types/:id", manager, feedTypes.Update)
	v1.DELETE("/feed-types/:id", manager, feedTypes.Delete)

	v1.GET("/stock", stock.Totals)
	v1.GET("/stock/expiring", stock.Expiring)
	v1.GET("/stock/lots", stock.ListLots)
	v1.POST("/stock/lots", manager, stock.AddLot)
	v1.GET("/stock/lots/:id", stock.GetLot)
	v1.PUT("/stock/lots/:id", manager, stock.EditLot)
	v1.DELETE("/stock/lots/:id", manager, stock.DeleteLot)

	v1.GET("/recipes", recipes.List)
	v1.POST("/recipes", manager, recipes.Create)
	v1.GET("/recipes/:id", recipes.Get)
	v1.PUT("/recipes/:id", manager, recipes.Update)
	v1.DELETE("/recipes/:id", manager, recipes.Delete)
	v1.POST("/recipes/:id/usable", manager, recipes.MarkUsable)
	v1.POST("/recipes/:id/split", recipes.Split)

	v1.GET("/schedules", schedules.List)
	v1.POST("/schedules", manager, schedules.Create)
	v1.POST("/schedules/generate", manager, schedules.Generate)
	v1.GET("/schedules/:id", schedules.Get)
	v1.PUT("/schedules/:id", manager, schedules.Update)
	v1.DELETE("/schedules/:id", manager, schedules.Delete)
	v1.POST("/schedules/:id/toggle", manager, schedules.Toggle)

	v1.GET("/consumption", consumption.List)
	v1.POST("/consumption", manager, consumption.Execute)
	v1.GET("/consumption/:date", consumption.Get)
	v1.DELETE("/consumption/:date", manager, consumption.Undo)

	v1.GET("/reorder", advice.Reorder)
	v1.POST("/dosage/recommend", advice.Recommend)

	v1.GET("/pens", pens.List)
	v1.GET("/pens/:id", pens.Get)

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", requestIDHeader},
		ExposeHeaders: []string{"Content-Length", requestIDHeader},
		MaxAge:        12 * time.Hour,
	}

	var allowed []string
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
		allowed = append(allowed, o)
	}
	if len(allowed) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = allowed
	return cfg
}
