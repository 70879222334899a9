package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	dashboarddomain "github.com/smallbiznis/teleload/internal/dashboard/domain"
)

const (
	defaultActivityLimit = 20
	maxActivityLimit     = 100
	defaultUsersLimit    = 50
	maxUsersLimit        = 500
)

func (s *Server) GetStats(c *gin.Context) {
	stats, err := s.dashboard.Stats(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) ListActivity(c *gin.Context) {
	limit, err := parseOptionalInt(c.Query("limit"), defaultActivityLimit)
	if err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "limit must be a number"))
		return
	}

	rows, err := s.dashboard.Activity(c.Request.Context(), clampLimit(limit, defaultActivityLimit, maxActivityLimit))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) ListUsers(c *gin.Context) {
	limit, err := parseOptionalInt(c.Query("limit"), defaultUsersLimit)
	if err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "limit must be a number"))
		return
	}

	users, err := s.dashboard.Users(c.Request.Context(), clampLimit(limit, defaultUsersLimit, maxUsersLimit))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// setProBody keeps isPro optional at decode time so a missing field is
// rejected instead of read as a revoke.
type setProBody struct {
	IsPro        *bool `json:"isPro"`
	DurationDays *int  `json:"durationDays"`
}

func (s *Server) SetUserPro(c *gin.Context) {
	telegramID := strings.TrimSpace(c.Param("telegramId"))
	if _, err := strconv.ParseInt(telegramID, 10, 64); err != nil {
		AbortWithError(c, newValidationError("telegramId", "invalid_telegram_id", "telegram id must be numeric"))
		return
	}

	var body setProBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if body.IsPro == nil {
		AbortWithError(c, newValidationError("isPro", "is_pro_required", "isPro is required"))
		return
	}
	if body.DurationDays != nil && *body.DurationDays <= 0 {
		AbortWithError(c, newValidationError("durationDays", "invalid_duration", "durationDays must be positive"))
		return
	}

	view, err := s.dashboard.SetPro(c.Request.Context(), telegramID, dashboarddomain.SetProRequest{
		IsPro:        *body.IsPro,
		DurationDays: body.DurationDays,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) DownloadUsageReport(c *gin.Context) {
	report, err := s.dashboard.UsageReport(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+report.FileName+`"`)
	c.Data(http.StatusOK, "application/pdf", report.Content)
}
