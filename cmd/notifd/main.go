package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/friendpicks/notifsync/internal/config"
	appHTTP "github.com/friendpicks/notifsync/internal/handler/http"
	"github.com/friendpicks/notifsync/internal/pkg/jwt"
	"github.com/friendpicks/notifsync/internal/pkg/sse"
	"github.com/friendpicks/notifsync/internal/repository/rest"
	"github.com/friendpicks/notifsync/internal/repository/socket"
	notifService "github.com/friendpicks/notifsync/internal/service/notification"
	"github.com/go-chi/httplog/v3"
	"github.com/spf13/pflag"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

var (
	printLocalToken = pflag.Bool("print-local-token", false, "print a local API token signed with LOCAL_API_SECRET and exit")
	localTokenTTL   = pflag.Duration("local-token-ttl", 24*time.Hour, "lifetime of the token printed by --print-local-token")
)

func main() {
	pflag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Error loading config: ", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.App.LogLevel)); err != nil {
		log.Fatal("Invalid LOG_LEVEL: ", err)
	}

	logFormat := httplog.SchemaECS.Concise(cfg.App.Env != "production")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "notifd"),
		slog.String("env", cfg.App.Env),
	)

	JWTService := jwt.NewJWTService(cfg.App.LocalAPISecret)

	userID := cfg.Session.UserID
	if userID == "" {
		userID, err = JWTService.UserIDFromAccessToken(cfg.Session.AccessToken)
		if err != nil {
			log.Fatal("Cannot determine session user from ACCESS_TOKEN: ", err)
		}
	}

	if *printLocalToken {
		token, err := JWTService.GenerateLocalToken(userID, *localTokenTTL)
		if err != nil {
			log.Fatal("Cannot issue local API token: ", err)
		}
		fmt.Println(token)
		return
	}

	tokens := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.Session.AccessToken,
		TokenType:   "Bearer",
	})

	gateway := rest.NewNotificationGateway(cfg.Gateway.BaseURL, cfg.Gateway.Timeout, tokens, logger)
	push := socket.NewPushChannel(socket.Config{
		URL:          cfg.Push.URL,
		PingInterval: cfg.Push.PingInterval,
		ReconnectMin: cfg.Push.ReconnectMin,
		ReconnectMax: cfg.Push.ReconnectMax,
	}, tokens, userID, logger)

	hub := sse.NewHub()
	store := notifService.NewStore(hub)
	session := notifService.NewSession(gateway, push, store, logger, notifService.Config{
		EventName:      cfg.Push.Event,
		FetchTimeout:   cfg.Gateway.Timeout,
		ResyncOnJoin:   cfg.Session.ResyncOnJoin,
		ResyncInterval: cfg.Session.ResyncInterval,
	})

	notificationHandler := appHTTP.NewNotificationHandler(session)
	router := appHTTP.NewRouter(appHTTP.RouterOptions{
		Logger:         logger,
		LogLevel:       level,
		AllowedOrigins: cfg.App.AllowedOrigins,
	}, JWTService, notificationHandler)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := session.Start(ctx); err != nil {
		log.Fatal("Failed to start notification session: ", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return push.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("local API listening", slog.String("addr", server.Addr), slog.String("user_id", userID))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		// Logout semantics: drop the subscription and clear local state
		session.Stop()
		hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("notifd exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}
