package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"rollcall/internal/attendance"
	"rollcall/internal/auth"
	"rollcall/internal/config"
	"rollcall/internal/course"
	"rollcall/internal/httpmiddleware"
	"rollcall/internal/user"
)

// Deps are the collaborators of the HTTP API. DB and Redis may be nil when
// the in-memory backends are used.
type Deps struct {
	Config     config.App
	Users      *user.Service
	Courses    *course.Service
	Attendance *attendance.Service
	Revoker    auth.Revoker
	DB         HealthChecker
	Redis      HealthChecker
	Log        *zap.Logger
}

// NewRouter wires middleware and routes.
func NewRouter(d Deps) *gin.Engine {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{
		cfg:        d.Config,
		users:      d.Users,
		courses:    d.Courses,
		attendance: d.Attendance,
		revoker:    d.Revoker,
		db:         d.DB,
		redis:      d.Redis,
		log:        log,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestID())
	r.Use(httpmiddleware.Logger(log))
	r.Use(httpmiddleware.Metrics())
	r.Use(corsMiddleware(d.Config.CORSOrigins))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(d.Config.RateLimitPerMin, d.Config.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.healthz)

	r.POST("/token", h.token)
	r.POST("/register", h.register)
	if d.Config.SeedEnabled {
		r.POST("/setup-test-users", h.setupTestUsers)
	}

	authed := r.Group("/", auth.Bearer(d.Config.JWTSigningKey, d.Config.JWTIssuer, d.Revoker, log))
	teacher := auth.RequireRole(auth.RoleTeacher)
	student := auth.RequireRole(auth.RoleStudent)

	authed.POST("/logout", h.logout)
	authed.POST("/create-user", teacher, h.createUser)

	authed.GET("/courses", h.listCourses)
	authed.POST("/courses", teacher, h.createCourse)
	authed.POST("/courses/:course_id/students", teacher, h.addStudents)

	authed.POST("/attendance/start", teacher, h.startAttendance)
	authed.POST("/attendance/end", teacher, h.endAttendance)
	authed.POST("/attendance/submit", student, h.submitAttendance)
	authed.GET("/attendance/history/:course_id", h.history)

	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}
