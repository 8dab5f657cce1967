package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kravdesk/kravdesk-backend/internal/data/db"
	"github.com/kravdesk/kravdesk-backend/internal/data/repos"
	"github.com/kravdesk/kravdesk-backend/internal/handlers"
	"github.com/kravdesk/kravdesk-backend/internal/platform/envutil"
	"github.com/kravdesk/kravdesk-backend/internal/platform/logger"
	"github.com/kravdesk/kravdesk-backend/internal/platform/openai"
	"github.com/kravdesk/kravdesk-backend/internal/realtime/bus"
	"github.com/kravdesk/kravdesk-backend/internal/server"
	"github.com/kravdesk/kravdesk-backend/internal/services"
	"github.com/kravdesk/kravdesk-backend/internal/sse"
)

func main() {
	log, err := logger.New(envutil.String("APP_ENV", "dev"))
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	gdb, err := db.Open()
	if err != nil {
		log.Fatal("database init failed", "error", err.Error())
	}

	requirementRepo := repos.NewRequirementRepo(gdb, log)
	mappingRepo := repos.NewCategoryMappingRepo(gdb, log)
	importRunRepo := repos.NewImportRunRepo(gdb, log)

	aiClient, err := openai.NewClient(log)
	if err != nil {
		log.Warn("reasoning client unavailable, AI paths degrade to heuristics", "error", err.Error())
		aiClient = nil
	}

	hub := sse.NewSSEHub(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sseBus bus.Bus
	if envutil.String("REDIS_ADDR", "") != "" {
		sseBus, err = bus.NewRedisBus(log)
		if err != nil {
			log.Warn("redis bus unavailable, progress stays in-process", "error", err.Error())
		} else {
			defer sseBus.Close()
			if err := sseBus.StartForwarder(ctx, hub.Broadcast); err != nil {
				log.Warn("redis forwarder failed to start", "error", err.Error())
			}
		}
	}

	notifier := services.NewProgressNotifier(hub, sseBus, log)

	importService, err := services.NewImportService(gdb, log, requirementRepo, mappingRepo, importRunRepo, aiClient, notifier)
	if err != nil {
		log.Fatal("import service init failed", "error", err.Error())
	}
	groupingService, err := services.NewGroupingService(gdb, log, requirementRepo, mappingRepo, aiClient, notifier)
	if err != nil {
		log.Fatal("grouping service init failed", "error", err.Error())
	}

	router := server.NewRouter(server.RouterConfig{
		ImportHandler:      handlers.NewImportHandler(importService),
		GroupingHandler:    handlers.NewGroupingHandler(groupingService),
		RequirementHandler: handlers.NewRequirementHandler(requirementRepo),
		SSEHandler:         handlers.NewSSEHandler(hub),
	})

	addr := ":" + envutil.String("PORT", "8080")
	srv := &http.Server{Addr: addr, Handler: router}

	go func() {
		log.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", "error", err.Error())
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err.Error())
	}
}
