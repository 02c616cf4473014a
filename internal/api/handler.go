package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rollcall/internal/apperr"
	"rollcall/internal/attendance"
	"rollcall/internal/auth"
	"rollcall/internal/config"
	"rollcall/internal/course"
	"rollcall/internal/user"
)

// HealthChecker reports whether a backing service is reachable.
type HealthChecker interface {
	Healthy(ctx context.Context) bool
}

// Handler serves the HTTP API.
type Handler struct {
	cfg        config.App
	users      *user.Service
	courses    *course.Service
	attendance *attendance.Service
	revoker    auth.Revoker
	db         HealthChecker
	redis      HealthChecker
	log        *zap.Logger
}

func (h *Handler) token(c *gin.Context) {
	email := c.PostForm("username")
	password := c.PostForm("password")
	if email == "" || password == "" {
		h.writeError(c, apperr.Validation("username and password are required"))
		return
	}
	u, err := h.users.Authenticate(c.Request.Context(), email, password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	tok, err := auth.Issue(auth.Identity{
		UserID: u.ID,
		Email:  u.Email,
		Name:   u.FullName,
		Role:   string(u.Role),
	}, h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.AccessTTL)
	if err != nil {
		h.writeError(c, fmt.Errorf("issue token: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": tok.AccessToken, "token_type": "bearer"})
}

func (h *Handler) logout(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	if h.revoker != nil && claims.ExpiresAt != nil {
		if err := h.revoker.Revoke(c.Request.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
			h.writeError(c, fmt.Errorf("revoke token: %w", err))
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

func (r registerRequest) input() user.RegisterInput {
	return user.RegisterInput{
		Email:    r.Email,
		Password: r.Password,
		FullName: r.FullName,
		Role:     user.Role(strings.ToLower(strings.TrimSpace(r.Role))),
	}
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := bindJSON(c, &req); err != nil {
		h.writeError(c, err)
		return
	}
	if _, err := h.users.Register(c.Request.Context(), req.input()); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully"})
}

func (h *Handler) createUser(c *gin.Context) {
	var req registerRequest
	if err := bindJSON(c, &req); err != nil {
		h.writeError(c, err)
		return
	}
	id, _ := auth.IdentityFrom(c)
	u, err := h.users.CreateUser(c.Request.Context(), id, req.input())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "User created successfully", "user": u})
}

func (h *Handler) setupTestUsers(c *gin.Context) {
	n, err := h.users.SeedDemo(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Test users ready (%d created)", n)})
}

func (h *Handler) listCourses(c *gin.Context) {
	id, _ := auth.IdentityFrom(c)
	views, err := h.courses.ListForUser(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) createCourse(c *gin.Context) {
	var in course.CreateInput
	if err := bindJSON(c, &in); err != nil {
		h.writeError(c, err)
		return
	}
	id, _ := auth.IdentityFrom(c)
	created, err := h.courses.Create(c.Request.Context(), id, in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Course created successfully", "course": created})
}

func (h *Handler) addStudents(c *gin.Context) {
	var req struct {
		StudentEmails []string `json:"student_emails"`
	}
	if err := bindJSON(c, &req); err != nil {
		h.writeError(c, err)
		return
	}
	id, _ := auth.IdentityFrom(c)
	added, err := h.courses.AddStudents(c.Request.Context(), c.Param("course_id"), id, req.StudentEmails)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Added %d student(s) to the course", len(added)),
		"added":   added,
	})
}

type courseRequest struct {
	CourseID string `json:"course_id" binding:"required"`
}

func (h *Handler) startAttendance(c *gin.Context) {
	var req courseRequest
	if err := bindJSON(c, &req); err != nil {
		h.writeError(c, err)
		return
	}
	id, _ := auth.IdentityFrom(c)
	sess, err := h.attendance.StartSession(c.Request.Context(), req.CourseID, id.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Attendance started", "code": sess.Code})
}

func (h *Handler) endAttendance(c *gin.Context) {
	var req courseRequest
	if err := bindJSON(c, &req); err != nil {
		h.writeError(c, err)
		return
	}
	id, _ := auth.IdentityFrom(c)
	rec, err := h.attendance.EndSession(c.Request.Context(), req.CourseID, id.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  fmt.Sprintf("Attendance ended with %d submission(s)", len(rec.Students)),
		"_id":      rec.SessionID,
		"students": rec.Students,
	})
}

func (h *Handler) submitAttendance(c *gin.Context) {
	var req struct {
		CourseID string `json:"course_id" binding:"required"`
		Code     string `json:"code" binding:"required"`
	}
	if err := bindJSON(c, &req); err != nil {
		h.writeError(c, err)
		return
	}
	id, _ := auth.IdentityFrom(c)
	st := attendance.Student{ID: id.UserID, Email: id.Email, FullName: id.Name}
	if _, err := h.attendance.SubmitAttendance(c.Request.Context(), req.CourseID, st, req.Code); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Attendance submitted successfully"})
}

func (h *Handler) history(c *gin.Context) {
	ctx := c.Request.Context()
	id, _ := auth.IdentityFrom(c)
	crs, err := h.courses.CanView(ctx, c.Param("course_id"), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if id.IsTeacher() {
		records, err := h.attendance.GetHistory(ctx, crs.ID)
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, records)
		return
	}
	records, err := h.attendance.StudentHistory(ctx, crs.ID, id.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) healthz(c *gin.Context) {
	ctx := c.Request.Context()
	db, redis := healthStatus(ctx, h.db), healthStatus(ctx, h.redis)
	status, code := "ok", http.StatusOK
	if db == "down" || redis == "down" {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "db": db, "redis": redis})
}

func healthStatus(ctx context.Context, hc HealthChecker) string {
	switch {
	case hc == nil:
		return "disabled"
	case hc.Healthy(ctx):
		return "ok"
	default:
		return "down"
	}
}
