package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"github.com/ovaphlow/pitchfork/service-todo-go/internal/apierror"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/audit"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/migrations"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/todo"
	todorepo "github.com/ovaphlow/pitchfork/service-todo-go/internal/todo/repo"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-todo-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-todo-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-todo-go/pkg/utilities"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file; environment variables override it")
	flag.Parse()

	// best-effort: if no .env exists, continue with the real environment
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	lg, err := utilities.Init(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Infow("starting service-todo-go", "env", cfg.Env, "addr", cfg.HTTP.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sqlDB, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer sqlDB.Close()

	if cfg.Database.Migrate {
		if err := database.Migrate(ctx, sqlDB, migrations.FS); err != nil {
			sugar.Fatalf("db migrate: %v", err)
		}
	}

	db := sqlx.NewDb(sqlDB, "postgres")

	dispatcher := audit.NewDispatcher(audit.NewPostgresSink(db), sugar, audit.Options{})
	errs := apierror.NewWriter(sugar, dispatcher)

	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	opts := user.Options{ResetTTL: cfg.Auth.ResetTTL(), Delivery: user.Delivery(cfg.Auth.ResetDelivery), Logger: sugar}
	if cfg.Auth.ResetDelivery == config.DeliveryLog {
		opts.Notifier = user.NewLogNotifier(sugar, cfg.ResetLink())
	} else {
		sugar.Warn("RESET_DELIVERY=echo: reset tokens are returned in HTTP responses; do not use in production")
	}
	users, err := user.NewUserService(userrepo.NewUserRepo(db), user.BcryptHasher{Cost: cfg.Auth.BcryptCost}, tokens, opts)
	if err != nil {
		sugar.Fatalf("user service: %v", err)
	}
	todos := todo.NewTodoService(todorepo.NewTodoRepo(db))

	handler := router.RegisterRoutes(router.Deps{
		Logger:    sugar,
		Errors:    errs,
		Guard:     auth.NewGuard(tokens, errs),
		Users:     user.NewHandler(users, errs, sugar),
		Todos:     todo.NewHandler(todos, errs, sugar),
		ClientURL: cfg.HTTP.ClientURL,
	})

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()
	sugar.Info("service is running; press Ctrl+C to stop")

	<-ctx.Done()
	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}
	if err := dispatcher.Close(doneCtx); err != nil {
		sugar.Warnf("audit drain incomplete: %v", err)
	}

	sugar.Info("goodbye")
}
