package api

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

const swaggerFile = "appointments.swagger.json"

type RouterConfig struct {
	JWTSecret  string
	SwaggerDir string
	Log        zerolog.Logger
}

// NewRouter mounts every handler under /api and the swagger UI under /docs.
func NewRouter(cfg RouterConfig, appointments *AppointmentHandler, doctors *DoctorHandler, admin *AdminHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(cfg.Log))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "status": "ok"})
	})

	auth := AuthMiddleware(cfg.JWTSecret)
	group := router.Group("/api")
	appointments.Register(group, auth)
	doctors.Register(group, auth)
	admin.Register(group, auth)

	if cfg.SwaggerDir != "" {
		router.StaticFile("/swagger/"+swaggerFile, filepath.Join(cfg.SwaggerDir, swaggerFile))
		router.GET("/docs/*any", gin.WrapH(httpSwagger.Handler(httpSwagger.URL("/swagger/"+swaggerFile))))
	}
	return router
}
