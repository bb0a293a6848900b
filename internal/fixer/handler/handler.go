// Package handler provides HTTP handlers for fix orchestration endpoints.
package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	fixModel "github.com/festy23/code_janitor/internal/fixer/model"
	"github.com/festy23/code_janitor/internal/fixer/service"
	issueModel "github.com/festy23/code_janitor/internal/issue/model"
)

// Handler handles HTTP requests for fix orchestration endpoints.
type Handler struct {
	service service.Service
	logger  *zap.SugaredLogger
}

// New creates a new fixer handler instance.
func New(svc service.Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// TriggerFix handles POST /api/issues/:id/trigger-fix request.
// A fix that fails or is rejected still answers 200 with success=false.
func (h *Handler) TriggerFix(c *gin.Context) {
	id, ok := issueID(c)
	if !ok {
		return
	}

	result, err := h.service.AttemptFix(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, issueModel.ErrIssueNotFound) {
			errorResponse(c, "NOT_FOUND", "issue not found", http.StatusNotFound)
			return
		}
		h.logger.Errorw("error attempting fix", "issue_id", id, "error", err)
		errorResponse(c, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, result)
}

// RecordCIResult handles POST /api/issues/:id/ci request.
func (h *Handler) RecordCIResult(c *gin.Context) {
	id, ok := issueID(c)
	if !ok {
		return
	}

	var req issueModel.RecordCIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, "INVALID_REQUEST", "passed is required", http.StatusBadRequest)
		return
	}

	issue, err := h.service.RecordCIResult(c.Request.Context(), id, *req.Passed, req.Details)
	if err != nil {
		switch {
		case errors.Is(err, issueModel.ErrIssueNotFound):
			errorResponse(c, "NOT_FOUND", "issue not found", http.StatusNotFound)
		case errors.Is(err, issueModel.ErrIllegalTransition), errors.Is(err, issueModel.ErrStatusConflict):
			errorResponse(c, "ILLEGAL_TRANSITION", err.Error(), http.StatusConflict)
		default:
			h.logger.Errorw("error recording CI result", "issue_id", id, "error", err)
			errorResponse(c, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		}
		return
	}

	c.JSON(http.StatusOK, issue)
}

// Sync handles POST /api/sync request.
func (h *Handler) Sync(c *gin.Context) {
	created, err := h.service.SyncIssues(c.Request.Context())
	if err != nil {
		h.logger.Errorw("error syncing issues", "error", err)
		errorResponse(c, "SYNC_FAILED", fmt.Sprintf("Failed to sync issues: %v", err), http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, fixModel.SyncResponse{
		Success:   true,
		Message:   fmt.Sprintf("Synced %d new issues from SonarQube", created),
		NewIssues: created,
	})
}

// Reconcile handles POST /api/reconcile request.
func (h *Handler) Reconcile(c *gin.Context) {
	merged, err := h.service.ReconcilePullRequests(c.Request.Context())
	if err != nil {
		h.logger.Errorw("error reconciling pull requests", "error", err)
		errorResponse(c, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, fixModel.ReconcileResponse{
		Success: true,
		Message: fmt.Sprintf("Updated %d PR merge statuses", merged),
		Merged:  merged,
	})
}

// Scan handles POST /api/scan request. The body is optional; without it the
// configured repository is scanned.
func (h *Handler) Scan(c *gin.Context) {
	var req fixModel.ScanRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			errorResponse(c, "INVALID_REQUEST", "invalid request body", http.StatusBadRequest)
			return
		}
	}

	result, err := h.service.Scan(c.Request.Context(), req.RepoOwner, req.RepoName)
	if err != nil {
		switch {
		case errors.Is(err, fixModel.ErrInvalidScanRequest):
			errorResponse(c, "INVALID_REQUEST", err.Error(), http.StatusBadRequest)
		case errors.Is(err, fixModel.ErrScannerDisabled):
			errorResponse(c, "SCANNER_DISABLED", err.Error(), http.StatusServiceUnavailable)
		default:
			h.logger.Errorw("error running scan", "error", err)
			errorResponse(c, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

func issueID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		errorResponse(c, "INVALID_REQUEST", "issue id must be a UUID", http.StatusBadRequest)
		return "", false
	}
	return id, true
}
