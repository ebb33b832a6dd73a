package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/arnavshah/dispatch-api-go/pkg/apperr"
	"github.com/arnavshah/dispatch-api-go/pkg/auth"
	"github.com/arnavshah/dispatch-api-go/pkg/service"
	"github.com/gin-gonic/gin"
)

// Version is reported by the index route
const Version = "1.0.0"

const anonymousActor = "anonymous"

// Handler contains dependencies for the route handlers
type Handler struct {
	Svc    *service.Service
	Tokens *auth.Tokens
	Logger *slog.Logger
	// RequireToken rejects mutating requests without a valid bearer token
	RequireToken bool
}

// NewRouter builds the gin engine with every dispatch route registered
func NewRouter(h *Handler) *gin.Engine {
	if h.Logger == nil {
		h.Logger = slog.Default()
	}
	r := gin.New()
	r.Use(gin.Recovery(), h.RequestLogger(), h.ActorMiddleware())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Resource & Volunteer Dispatch API",
			"version": Version,
		})
	})

	api := r.Group("/api")
	{
		api.GET("/resources", h.ListResources)
		api.POST("/resources", h.RegisterResource)
		api.POST("/resources/csv", h.ImportResourcesCSV)
		api.GET("/resources/:id", h.GetResource)
		api.PUT("/resources/:id/status", h.UpdateResourceStatus)

		api.GET("/volunteers", h.ListVolunteers)
		api.POST("/volunteers", h.RegisterVolunteer)
		api.GET("/volunteers/:id", h.GetVolunteer)
		api.PUT("/volunteers/:id/availability", h.SetVolunteerAvailability)

		api.GET("/requests/resources", h.ListResourceRequests)
		api.POST("/requests/resources", h.SubmitResourceRequest)
		api.GET("/requests/volunteers", h.ListVolunteerRequests)
		api.POST("/requests/volunteers", h.SubmitVolunteerRequest)
		api.POST("/requests/sos", h.SubmitSOSReport)
		api.POST("/requests/validate", h.ValidateRequest)
		api.GET("/requests/:id", h.GetRequest)
		api.GET("/requests/:id/recommendations", h.GetRecommendations)
		api.POST("/requests/:id/approve", h.ApproveRequest)
		api.POST("/requests/:id/reject", h.RejectRequest)
		api.POST("/requests/:id/cancel", h.CancelRequest)

		api.POST("/recommendations/refresh", h.RefreshAll)
		api.GET("/signals", h.GetSignals)
		api.PUT("/signals", h.SetSignals)

		api.GET("/allocations", h.ListAllocations)
		api.POST("/allocations", h.CommitAllocation)
		api.GET("/allocations/:id", h.GetAllocation)
		api.POST("/allocations/:id/return", h.ReturnAllocation)
		api.POST("/allocations/:id/lost", h.MarkAllocationLost)

		api.GET("/assignments", h.ListAssignments)
		api.POST("/assignments", h.CommitAssignment)
		api.GET("/assignments/:id", h.GetAssignment)
		api.POST("/assignments/:id/checkin", h.CheckIn)
		api.POST("/assignments/:id/complete", h.CompleteAssignment)
		api.POST("/assignments/:id/cancel", h.CancelAssignment)

		api.GET("/statistics/resources", h.ResourceStatistics)
		api.GET("/statistics/volunteers", h.VolunteerStatistics)
		api.GET("/statistics/activity", h.GetActivity)
		api.GET("/events", h.ListEvents)
	}
	return r
}

// ActorMiddleware attributes each request to an operator. A bearer token
// wins over the X-Actor header; an invalid token is rejected outright.
func (h *Handler) ActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := anonymousActor
		verified := false

		token := c.GetHeader("Authorization")
		if token != "" {
			// Strip "Bearer " if present
			if len(token) > 7 && strings.EqualFold(token[:7], "Bearer ") {
				token = token[7:]
			}
			if !h.Tokens.Enabled() {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Token authentication is not configured"})
				c.Abort()
				return
			}
			claims, err := h.Tokens.VerifyToken(token)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
				c.Abort()
				return
			}
			actor = claims.Actor
			verified = true
		} else if a := strings.TrimSpace(c.GetHeader("X-Actor")); a != "" {
			actor = a
		}

		if h.RequireToken && !verified && c.Request.Method != http.MethodGet {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		c.Set("actor", actor)
		c.Next()
	}
}

// RequestLogger logs one structured line per request
func (h *Handler) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		h.Logger.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"actor", c.GetString("actor"),
		)
	}
}

func actorOf(c *gin.Context) string {
	if a := c.GetString("actor"); a != "" {
		return a
	}
	return anonymousActor
}

// statusFor maps an error kind onto an HTTP status
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict, apperr.KindState:
		return http.StatusConflict
	case apperr.KindInsufficient:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	body := gin.H{"error": err.Error(), "kind": kind}

	var v *apperr.ValidationError
	if errors.As(err, &v) {
		body["field"] = v.Field
	}
	if status == http.StatusInternalServerError {
		h.Logger.Error("request failed", "path", c.FullPath(), "kind", kind, "error", err)
	}
	c.JSON(status, body)
}

// bindJSON binds the body into dst and reports malformed input as a
// validation error
func (h *Handler) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.respondError(c, apperr.Validation("body", err.Error()))
		return false
	}
	return true
}
