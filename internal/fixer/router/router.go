// Package router provides fixer module routes registration.
package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/festy23/code_janitor/internal/fixer/handler"
	"github.com/festy23/code_janitor/internal/fixer/service"
)

// RegisterRoutes registers fixer module routes. The service is shared with
// the scheduler, so it is built by the caller.
func RegisterRoutes(r gin.IRouter, svc service.Service, logger *zap.SugaredLogger) {
	h := handler.New(svc, logger)

	r.POST("/issues/:id/trigger-fix", h.TriggerFix)
	r.POST("/issues/:id/ci", h.RecordCIResult)
	r.POST("/sync", h.Sync)
	r.POST("/reconcile", h.Reconcile)
	r.POST("/scan", h.Scan)
}
