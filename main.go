package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/sync/errgroup"

	"quote-wizard/internal/config"
	"quote-wizard/internal/engine"
	"quote-wizard/internal/handler"
	"quote-wizard/internal/logger"
	"quote-wizard/internal/metrics"
	"quote-wizard/internal/quoteclient"
	"quote-wizard/internal/schemaregistry"
	"quote-wizard/internal/session"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("QUOTEWIZARD_CONFIG"))
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg, err := schemaregistry.New()
	if err != nil {
		log.Fatal("load schemas", "error", err)
	}
	if cfg.Schemas.Dir != "" {
		if err := reg.LoadDir(cfg.Schemas.Dir); err != nil {
			log.Fatal("load schema dir", "dir", cfg.Schemas.Dir, "error", err)
		}
	}

	client, err := quoteclient.New(cfg.Recommender.URL, cfg.Recommender.Timeout, log)
	if err != nil {
		log.Fatal("recommendation client", "url", cfg.Recommender.URL, "error", err)
	}

	var store session.Store = session.NewMemoryStore(cfg.Session.TTL)
	if cfg.Redis.Addr != "" {
		rs, err := session.NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Session.TTL)
		if err != nil {
			log.Fatal("redis session store", "addr", cfg.Redis.Addr, "error", err)
		}
		defer rs.Close()
		store = rs
	}

	m := metrics.New()
	eng := engine.New(reg, client, store, m, log)
	h := handler.New(eng, reg, client, m, cfg.RateLimit.RPS, cfg.RateLimit.Burst, log)

	srv := &fasthttp.Server{
		Handler:      h.Handle,
		Name:         "quote-wizard",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("quote wizard starting", "addr", cfg.Server.Addr(), "recommender", cfg.Recommender.URL)
		return srv.ListenAndServe(cfg.Server.Addr())
	})
	g.Go(func() error {
		return eng.RunEvictor(gctx, time.Minute, cfg.Session.TTL)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		return srv.ShutdownWithContext(context.Background())
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
