// Package handler provides HTTP handlers for issue endpoints.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/festy23/code_janitor/internal/issue/model"
	"github.com/festy23/code_janitor/internal/issue/service"
)

// Handler handles HTTP requests for issue endpoints.
type Handler struct {
	service service.Service
	logger  *zap.SugaredLogger
}

// New creates a new issue handler instance.
func New(svc service.Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// ListIssues handles GET /api/issues request.
func (h *Handler) ListIssues(c *gin.Context) {
	var query model.ListIssuesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		errorResponse(c, "INVALID_REQUEST", "page must be >= 1 and page_size between 1 and 100", http.StatusBadRequest)
		return
	}

	resp, err := h.service.ListIssues(c.Request.Context(), query)
	if err != nil {
		if errors.Is(err, model.ErrInvalidStatus) {
			errorResponse(c, "INVALID_REQUEST", "Invalid status: "+query.Status, http.StatusBadRequest)
			return
		}
		h.logger.Errorw("error listing issues", "error", err)
		errorResponse(c, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetIssue handles GET /api/issues/:id request.
func (h *Handler) GetIssue(c *gin.Context) {
	id, ok := issueID(c)
	if !ok {
		return
	}

	issue, err := h.service.GetIssue(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, model.ErrIssueNotFound) {
			errorResponse(c, "NOT_FOUND", "issue not found", http.StatusNotFound)
			return
		}
		h.logger.Errorw("error getting issue", "issue_id", id, "error", err)
		errorResponse(c, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, issue)
}

// DeleteIssue handles DELETE /api/issues/:id request.
func (h *Handler) DeleteIssue(c *gin.Context) {
	id, ok := issueID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteIssue(c.Request.Context(), id); err != nil {
		if errors.Is(err, model.ErrIssueNotFound) {
			errorResponse(c, "NOT_FOUND", "issue not found", http.StatusNotFound)
			return
		}
		h.logger.Errorw("error deleting issue", "issue_id", id, "error", err)
		errorResponse(c, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}

	c.Status(http.StatusNoContent)
}

// RecentEvents handles GET /api/events/recent request.
func (h *Handler) RecentEvents(c *gin.Context) {
	var query model.RecentEventsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		errorResponse(c, "INVALID_REQUEST", "limit must be between 1 and 200", http.StatusBadRequest)
		return
	}

	events, err := h.service.RecentEvents(c.Request.Context(), query.Limit)
	if err != nil {
		h.logger.Errorw("error listing recent events", "error", err)
		errorResponse(c, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, events)
}

func issueID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		errorResponse(c, "INVALID_REQUEST", "issue id must be a UUID", http.StatusBadRequest)
		return "", false
	}
	return id, true
}
