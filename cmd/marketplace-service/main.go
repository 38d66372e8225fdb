package main

import (
	"fmt"
	"os"

	"github.com/nurpe/marketplace-api/internal/auth"
	"github.com/nurpe/marketplace-api/internal/config"
	"github.com/nurpe/marketplace-api/internal/db"
	"github.com/nurpe/marketplace-api/internal/excel"
	httphandler "github.com/nurpe/marketplace-api/internal/http"
	"github.com/nurpe/marketplace-api/internal/http/middleware"
	"github.com/nurpe/marketplace-api/internal/logger"
	"github.com/nurpe/marketplace-api/internal/metrics"
	"github.com/nurpe/marketplace-api/internal/pdf"
	"github.com/nurpe/marketplace-api/internal/repository"
	"github.com/nurpe/marketplace-api/internal/service"
	"github.com/nurpe/marketplace-api/internal/txn"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	store := repository.NewStore(database, cfg.DB.LockTimeout)
	profileRepo := repository.NewProfileRepository(database)
	contractRepo := repository.NewContractRepository(database)
	jobRepo := repository.NewJobRepository(database)
	reportRepo := repository.NewReportRepository(database)

	m := metrics.New()
	policy := txn.Policy{
		MaxAttempts: cfg.Tx.MaxAttempts,
		BaseDelay:   cfg.Tx.BaseDelay,
		Jitter:      cfg.Tx.Jitter,
	}

	handler := httphandler.NewHandler(httphandler.Services{
		Contracts: service.NewContractService(contractRepo),
		Jobs:      service.NewJobService(jobRepo, pdf.NewGenerator()),
		Payments:  service.NewPaymentService(store, policy, m, log),
		Balances:  service.NewBalanceService(store, policy, cfg.Balances, m, log),
		Reports:   service.NewReportService(reportRepo, excel.NewGenerator(), cfg.Reports),
	}, log)

	router := httphandler.NewRouter(httphandler.RouterDeps{
		Handler:            handler,
		IdentityMiddleware: middleware.Identity(auth.NewResolver(profileRepo), log),
		RequestMiddleware:  middleware.RequestLogger(log, m),
		Metrics:            m.Handler(),
		Health:             store,
	}, cfg)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting marketplace service")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
