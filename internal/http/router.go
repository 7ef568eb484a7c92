package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/fernlabs/authgate/internal/config"
	"github.com/fernlabs/authgate/internal/http/handler"
	"github.com/fernlabs/authgate/internal/http/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, authHandler *handler.AuthHandler, auth *middleware.Auth, rateLimiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	// Identity is established for every request; individual routes decide
	// whether it is required.
	r.Use(auth.Authenticate)

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refreshToken", authHandler.Refresh)
		authGroup.POST("/logout", middleware.RequireIdentity(), authHandler.Logout)
	}

	users := r.Group("/users", middleware.RequireIdentity())
	{
		users.GET("/me", authHandler.Me)
	}

	secured := r.Group("/secured", middleware.RequireIdentity())
	{
		secured.GET("/hello", authHandler.SecuredHello)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
