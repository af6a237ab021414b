package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/geocoder89/attendance/internal/actorctx"
	"github.com/geocoder89/attendance/internal/domain/user"
	"github.com/geocoder89/attendance/internal/http/middlewares"
	"github.com/geocoder89/attendance/internal/service"
	"github.com/gin-gonic/gin"
)

type EmployeeDirectory interface {
	Create(ctx context.Context, actor actorctx.Actor, req service.CreateEmployeeRequest) (user.User, error)
	Delete(ctx context.Context, actor actorctx.Actor, id string) error
	List(ctx context.Context, filter user.ListFilter) ([]user.User, error)
}

type EmployeesHandler struct {
	employees EmployeeDirectory
	log       *slog.Logger
}

func NewEmployeesHandler(employees EmployeeDirectory, log *slog.Logger) *EmployeesHandler {
	return &EmployeesHandler{employees: employees, log: log}
}

// List answers GET /employees?role=employee|manager.
func (h *EmployeesHandler) List(ctx *gin.Context) {
	var filter user.ListFilter

	if raw := strings.TrimSpace(ctx.Query("role")); raw != "" {
		role, err := user.ParseRole(raw)
		if err != nil {
			RespondBadRequest(ctx, "Invalid role", gin.H{"role": "must be one of employee, manager"})
			return
		}
		filter.Role = &role
	}

	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	users, err := h.employees.List(cctx, filter)
	if err != nil {
		respondServiceError(ctx, h.log, err, "Could not list employees")
		return
	}

	ctx.JSON(http.StatusOK, users)
}

func (h *EmployeesHandler) Create(ctx *gin.Context) {
	actor, ok := middlewares.ActorFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	var req service.CreateEmployeeRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx, 5*time.Second)
	defer cancel()

	u, err := h.employees.Create(cctx, actor, req)
	if err != nil {
		respondServiceError(ctx, h.log, err, "Could not create employee")
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message": "Employee created successfully",
		"user":    u,
	})
}

func (h *EmployeesHandler) Delete(ctx *gin.Context) {
	actor, ok := middlewares.ActorFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	id := strings.TrimSpace(ctx.Param("id"))
	if id == "" {
		RespondBadRequest(ctx, "Employee id is required", nil)
		return
	}

	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	if err := h.employees.Delete(cctx, actor, id); err != nil {
		respondServiceError(ctx, h.log, err, "Could not delete employee")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Employee deleted successfully"})
}
