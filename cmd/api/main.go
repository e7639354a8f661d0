package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mms-goldcore/internal/accounts"
	"mms-goldcore/internal/auth"
	"mms-goldcore/internal/config"
	"mms-goldcore/internal/db"
	"mms-goldcore/internal/httpserver"
	"mms-goldcore/internal/investments"
	"mms-goldcore/internal/ledger"
	"mms-goldcore/internal/marketdata"
	"mms-goldcore/internal/positions"
	"mms-goldcore/internal/pricefeed"
	"mms-goldcore/internal/referrals"
	"mms-goldcore/internal/scheduler"
	"mms-goldcore/internal/store"

	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	ctx := context.Background()
	var st store.Store
	if cfg.UseMemory {
		st = store.NewMemoryStore()
		logger.Warn("running on the in-memory store; nothing persists")
	} else {
		pool, err := db.NewPool(ctx, cfg.DBDSN)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		pg := store.NewPostgresStore(pool)
		if err := pg.InitSchema(ctx); err != nil {
			logger.Fatal("schema", zap.Error(err))
		}
		st = pg
	}

	feed := pricefeed.NewSimulated(pricefeed.DefaultBasePrices(), cfg.HalfSpread)

	ledgerSvc := ledger.NewService(st)
	referralSvc := referrals.NewService(st)
	positionSvc := positions.NewService(st, feed, referralSvc)
	investmentSvc := investments.NewService(st)
	accountSvc := accounts.NewService(st, ledgerSvc, referralSvc)
	authSvc := auth.NewService(st, cfg.JWTIssuer, []byte(cfg.JWTSecret), cfg.JWTTTL)

	sched, err := scheduler.New(positionSvc, investmentSvc, referralSvc)
	if err != nil {
		logger.Fatal("scheduler", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		logger.Fatal("scheduler start", zap.Error(err))
	}

	bus := marketdata.NewBus()
	publisherCtx, cancelPublisher := context.WithCancel(ctx)
	go marketdata.NewPublisher(bus, feed, cfg.QuoteInterval).Run(publisherCtx)

	router := httpserver.NewRouter(httpserver.RouterDeps{
		AuthHandler:        auth.NewHandler(authSvc),
		AccountsHandler:    accounts.NewHandler(accountSvc, ledgerSvc),
		PositionsHandler:   positions.NewHandler(positionSvc),
		InvestmentsHandler: investments.NewHandler(investmentSvc),
		ReferralsHandler:   referrals.NewHandler(referralSvc),
		MarketHandler:      marketdata.NewHandler(feed, marketdata.NewWSHandler(bus, cfg.WSOrigin)),
		AuthService:        authSvc,
		InternalToken:      cfg.InternalToken,
		CORSOrigin:         cfg.WSOrigin,
	})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	logger.Info("server listening", zap.String("addr", cfg.HTTPAddr))
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		cancelPublisher()
		if err := sched.Stop(); err != nil {
			logger.Error("scheduler stop", zap.Error(err))
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server", zap.Error(err))
	}
}
