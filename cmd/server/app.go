package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	appConfig "github.com/festy23/code_janitor/internal/config"
	dbConfig "github.com/festy23/code_janitor/internal/database/config"
	"github.com/festy23/code_janitor/internal/database/database"
	"github.com/festy23/code_janitor/internal/database/migrate"
	fixService "github.com/festy23/code_janitor/internal/fixer/service"
	issueModel "github.com/festy23/code_janitor/internal/issue/model"
	issueRepository "github.com/festy23/code_janitor/internal/issue/repository"
	"github.com/festy23/code_janitor/internal/patchgen"
	"github.com/festy23/code_janitor/internal/scanner"
	"github.com/festy23/code_janitor/internal/scm"
	"github.com/festy23/code_janitor/internal/sonarqube"
	"github.com/festy23/code_janitor/internal/telemetry"
	"github.com/festy23/code_janitor/pkg/logger"
)

// app holds the process-wide collaborators shared by every command.
type app struct {
	cfg     appConfig.Config
	logger  *zap.SugaredLogger
	db      *gorm.DB
	metrics *telemetry.Metrics
	fixer   fixService.Service
}

// bootstrap loads configuration, opens the database and applies migrations.
// withIntegrations additionally validates credentials and builds the fix orchestrator.
func bootstrap(ctx context.Context, withIntegrations bool) (*app, error) {
	cfg := appConfig.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if withIntegrations {
		if err := cfg.ValidateIntegrations(); err != nil {
			return nil, err
		}
	}

	log, err := logger.NewWithConfig(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	dbCfg := dbConfig.LoadConfigFromEnv()
	db, err := database.NewWithConfig(dbCfg)
	if err != nil {
		_ = log.Sync()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := migrate.Run(db, dbCfg.Driver, &issueModel.Issue{}, &issueModel.Event{}); err != nil {
		_ = database.Close(db)
		_ = log.Sync()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	a := &app{
		cfg:     cfg,
		logger:  log,
		db:      db,
		metrics: telemetry.New(),
	}
	if withIntegrations {
		if err := a.buildFixer(ctx); err != nil {
			a.close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) buildFixer(ctx context.Context) error {
	github, err := scm.New(ctx, a.cfg.GitHub, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create github client: %w", err)
	}

	a.fixer = fixService.New(fixService.Deps{
		Repo:      issueRepository.New(a.db, a.logger),
		Analyzer:  sonarqube.New(a.cfg.SonarQube, a.logger),
		SCM:       github,
		Generator: patchgen.New(a.cfg.OpenAI, a.logger),
		Scanner:   scanner.New(a.cfg.Scanner, a.cfg.GitHub, a.cfg.SonarQube, a.logger),
		Metrics:   a.metrics,
		Logger:    a.logger,
	}, fixService.OptionsFromConfig(&a.cfg))
	return nil
}

func (a *app) close() {
	if err := database.Close(a.db); err != nil {
		a.logger.Warnw("failed to close database", "error", err)
	}
	_ = a.logger.Sync()
}
