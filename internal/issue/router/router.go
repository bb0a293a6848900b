// Package router provides issue module routes registration.
package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/festy23/code_janitor/internal/issue/handler"
	"github.com/festy23/code_janitor/internal/issue/repository"
	"github.com/festy23/code_janitor/internal/issue/service"
)

// RegisterRoutes registers issue module routes.
func RegisterRoutes(r gin.IRouter, db *gorm.DB, logger *zap.SugaredLogger) {
	repo := repository.New(db, logger)
	svc := service.New(repo, logger)
	h := handler.New(svc, logger)

	r.GET("/issues", h.ListIssues)
	r.GET("/issues/:id", h.GetIssue)
	r.DELETE("/issues/:id", h.DeleteIssue)
	r.GET("/events/recent", h.RecentEvents)
}
