package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"vendosync/db"
	"vendosync/db/migrations"
	"vendosync/internal/auth"
	"vendosync/internal/config"
	"vendosync/internal/events"
	"vendosync/internal/handlers"
	"vendosync/internal/logger"
	"vendosync/internal/metrics"
	"vendosync/internal/notify"
	"vendosync/internal/photos"
	"vendosync/internal/procurement"
	"vendosync/internal/reputation"
	"vendosync/internal/rfq"
	"vendosync/internal/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Cannot load config: %v", err)
	}

	zlog, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Environment: cfg.Env,
		ServiceName: "vendosync",
	})
	if err != nil {
		log.Fatalf("Cannot build logger: %v", err)
	}
	defer zlog.Sync()
	zap.ReplaceGlobals(zlog)

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("Server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbConn, err := db.Connect(ctx, cfg.Postgres.Conn)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	if err := migrations.Run(dbConn.DB); err != nil {
		return err
	}
	store := db.NewStorage(dbConn)

	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: cfg.Redis.DialTimeout,
		ReadTimeout: cfg.Redis.ReadTimeout,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return err
	}

	photoStore, err := photos.NewMinioStore(ctx, photos.Config{
		Endpoint:  cfg.Minio.Endpoint,
		AccessKey: cfg.Minio.AccessKey,
		SecretKey: cfg.Minio.SecretKey,
		Bucket:    cfg.Minio.Bucket,
		UseSSL:    cfg.Minio.UseSSL,
	}, zlog)
	if err != nil {
		return err
	}

	var mailer notify.Mailer
	if cfg.Mail.Suppress {
		mailer = notify.NewLogMailer(zlog)
	} else {
		mailer = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
			UseSSL:   cfg.Mail.UseSSL,
		})
	}

	m := metrics.New("vendosync")
	publisher := events.NewRedisPublisher(rdb)
	tokens := token.NewIssuer(cfg.Token.Secret, token.PurposeRFQ, cfg.Token.RFQTTL)

	rfqs := rfq.NewService(store, tokens, mailer, publisher, cfg.Server.PublicURL, zlog).WithMetrics(m)
	procurements := procurement.NewService(store, publisher, zlog)

	queue := reputation.NewQueue(rdb)
	worker := reputation.NewWorker(
		queue,
		reputation.NewHTTPSource(cfg.Reputation.SourceURL, cfg.Reputation.JobTimeout),
		store,
		publisher,
		reputation.WorkerConfig{
			ReviewLimit: cfg.Reputation.ReviewLimit,
			JobTimeout:  cfg.Reputation.JobTimeout,
			PollTimeout: cfg.Reputation.PollTimeout,
		},
		zlog,
	).WithMetrics(m)

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := worker.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			zlog.Error("Reputation worker failed", zap.Error(err))
		}
	}()
	defer func() {
		cancelWorker()
		wg.Wait()
	}()

	authenticator := auth.NewAuthenticator(cfg.Identity.Secret)
	hub := events.NewHub(rdb, authenticator, cfg.Server.AllowedOrigins)

	h := handlers.NewHandler(store, rfqs, procurements, photoStore, queue, publisher)
	router := handlers.NewRouter(h, auth.NewGuard(authenticator), http.HandlerFunc(hub.ServeWS), m, zlog)

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		zlog.Info("Starting server", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	zlog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
