package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/attendance/internal/config"
	"github.com/geocoder89/attendance/internal/domain/user"
	"github.com/geocoder89/attendance/internal/http/handlers"
	"github.com/geocoder89/attendance/internal/http/middlewares"
	"github.com/geocoder89/attendance/internal/observability"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodyBytes = 1 << 20

// Deps is everything the router needs; cmd/api and the integration tests
// build it with NewDeps.
type Deps struct {
	Log     *slog.Logger
	Prom    *observability.Prom
	Metrics http.Handler
	// Ping backs /readyz; nil for the memory store.
	Ping func(ctx context.Context) error

	Tokens     middlewares.TokenVerifier
	Auth       handlers.Authenticator
	Employees  handlers.EmployeeDirectory
	Attendance handlers.AttendanceTracker
	Stats      handlers.TeamStatsReader
}

func NewRouter(cfg config.Config, d Deps) *gin.Engine {
	if cfg.Env != "dev" && gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("attendance-api"))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Log))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	r.Use(middlewares.RequireJSON())

	// health, metrics, docs
	h := handlers.NewHealthHandler(d.Ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}
	r.GET("/docs", handlers.SwaggerUI)
	r.GET("/docs/openapi.yaml", handlers.OpenAPISpec)

	authMW := middlewares.NewAuthMiddleware(d.Tokens)
	loginLimiter := middlewares.NewRateLimiter(cfg.LoginRateLimit, time.Minute)
	apiLimiter := middlewares.NewRateLimiter(300, time.Minute)

	authH := handlers.NewAuthHandler(d.Auth, d.Log)
	employeesH := handlers.NewEmployeesHandler(d.Employees, d.Log)
	attendanceH := handlers.NewAttendanceHandler(d.Attendance, d.Log)
	statsH := handlers.NewStatsHandler(d.Stats, d.Log)

	api := r.Group("/api")
	api.POST("/auth/login", loginLimiter.RateLimiterMiddleware(middlewares.KeyByIP), authH.Login)

	authed := api.Group("", authMW.RequireAuth(), apiLimiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP))
	if cfg.EnforcePasswordChange {
		authed.Use(authMW.RequirePasswordChanged("/api/auth/me", "/api/auth/change-password"))
	}

	authed.POST("/auth/change-password", authH.ChangePassword)
	authed.GET("/auth/me", authH.Me)

	authed.GET("/employees", employeesH.List)
	authed.GET("/attendance", attendanceH.History)
	authed.POST("/attendance/check-in", attendanceH.CheckIn)
	authed.POST("/attendance/check-out", attendanceH.CheckOut)

	// managers only
	manager := authed.Group("", authMW.RequireCapability(user.CapManageTeam))
	manager.POST("/employees", employeesH.Create)
	manager.DELETE("/employees/:id", employeesH.Delete)
	manager.GET("/attendance/all", attendanceH.ListAll)
	manager.PATCH("/attendance/:id", attendanceH.Amend)
	manager.POST("/attendance/manual", attendanceH.MarkDay)
	manager.GET("/stats/team", statsH.Team)

	return r
}
