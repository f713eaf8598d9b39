package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"teammate/server/seedwork/application/middleware"
	"teammate/server/seedwork/infrastructure/container"

	"github.com/gin-gonic/gin"
)

func main() {
	c, err := container.NewContainer()
	if err != nil {
		log.Fatalf("failed to initialize container: %v", err)
	}

	if c.Config.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.Logger(), middleware.CORS(), middleware.ErrorHandler())

	router.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/")
	c.AnalysisRoutes.SetupRoutes(api)
	c.CoordinationRoutes.SetupRoutes(api)
	c.FileSessionRoutes.SetupRoutes(api)
	c.SubmissionRoutes.SetupRoutes(api)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c.StartPeriodicCleanup(ctx)

	srv := &http.Server{
		Addr:    ":" + c.Config.Server.Port,
		Handler: router,
	}

	go func() {
		log.Printf("listening on :%s (env=%s, broker=%s)", c.Config.Server.Port, c.Config.Server.Env, c.Config.Broker.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	c.Close()
}
