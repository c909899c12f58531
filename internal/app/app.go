package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/quickvoicy/quickvoicy/internal/api"
	"github.com/quickvoicy/quickvoicy/internal/bot"
	"github.com/quickvoicy/quickvoicy/internal/config"
	"github.com/quickvoicy/quickvoicy/internal/monitor"
	"github.com/quickvoicy/quickvoicy/internal/notify"
	"github.com/quickvoicy/quickvoicy/internal/pdf"
	"github.com/quickvoicy/quickvoicy/internal/pg"
	"github.com/quickvoicy/quickvoicy/internal/repo"
	"github.com/quickvoicy/quickvoicy/internal/service"
	"github.com/quickvoicy/quickvoicy/internal/wallet"
	"github.com/quickvoicy/quickvoicy/pkg/logger"
)

type ApplicationI interface {
	Start(ctx context.Context) error
	Wait(ctx context.Context, cancel context.CancelFunc) error
}

type Application struct {
	cfg     *config.Config
	api     *api.Handlers
	srv     *service.Services
	repo    *repo.Repositories
	monitor *monitor.Service

	errCh chan error
	wg    sync.WaitGroup
	ready bool
}

func New() *Application {
	return &Application{
		errCh: make(chan error),
	}
}

func (a *Application) Start(ctx context.Context) error {
	cfg := config.New()

	err := logger.InitLogger(cfg)
	if err != nil {
		return fmt.Errorf("can't init logger: %w", err)
	}

	if cfg.TelegramToken == "" && cfg.DiscordToken == "" {
		return errors.New("at least one of TELEGRAM_BOT_TOKEN or DISCORD_BOT_TOKEN is required")
	}

	pool, err := getPgxpool(ctx, cfg)
	if err != nil {
		zap.L().Error("build pgx pool failed: ", zap.Error(err))
		return fmt.Errorf("can't build pgx pool: %w", err)
	}
	if err := pg.RunMigrations(pool); err != nil {
		zap.L().Error("migrations failed: ", zap.Error(err))
		return fmt.Errorf("can't run migrations: %w", err)
	}

	conn := pg.New(pool)
	dialer := wallet.NewNWCDialer()

	a.cfg = cfg
	a.repo = repo.New(conn, pg.NewTXManager(conn))
	a.srv = service.New(a.repo, dialer)
	a.api = api.New(a.srv.UserService, a.srv.InvoiceService)

	gen, err := pdf.New(cfg.PDFDir)
	if err != nil {
		return fmt.Errorf("can't init pdf generator: %w", err)
	}

	senders, err := a.startBots(ctx, gen)
	if err != nil {
		return err
	}
	dispatcher := notify.NewDispatcher(senders...)
	a.monitor = monitor.New(cfg, a.repo.InvoiceRepo, a.repo.UserRepo, dialer, dispatcher)

	if err = a.startHTTPServer(ctx); err != nil {
		return fmt.Errorf("can't start http server: %w", err)
	}

	a.monitor.Start(ctx)

	a.ready = true
	zap.L().Info("all systems started successfully")
	return nil
}

func getPgxpool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	cfgpool, err := pgxpool.ParseConfig(cfg.Database)
	if err != nil {
		return nil, err
	}
	dbpool, err := pgxpool.NewWithConfig(ctx, cfgpool)
	if err != nil {
		return nil, err
	}
	if err = dbpool.Ping(ctx); err != nil {
		return nil, err
	}
	return dbpool, nil
}

func (a *Application) startBots(ctx context.Context, gen *pdf.Generator) ([]notify.Sender, error) {
	var senders []notify.Sender

	if a.cfg.TelegramToken != "" {
		tg, err := bot.NewTelegram(a.cfg.TelegramToken, a.srv.UserService, a.srv.InvoiceService, gen)
		if err != nil {
			return nil, fmt.Errorf("can't start telegram bot: %w", err)
		}
		senders = append(senders, tg)

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			tg.Run(ctx)
		}()
	}

	if a.cfg.DiscordToken != "" {
		dc, err := bot.NewDiscord(a.cfg.DiscordToken, a.srv.UserService, a.srv.InvoiceService, gen)
		if err != nil {
			return nil, fmt.Errorf("can't start discord bot: %w", err)
		}
		senders = append(senders, dc)

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := dc.Run(ctx); err != nil {
				a.errCh <- fmt.Errorf("discord bot exited with error: %w", err)
			}
		}()
	}

	return senders, nil
}

func (a *Application) startHTTPServer(ctx context.Context) error {
	router := chi.NewRouter()
	a.api.InitRoutes(router)
	server := http.Server{
		Addr:    a.cfg.Address,
		Handler: router,
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		<-ctx.Done()

		sCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(sCtx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		zap.L().Info("starting http server on port", zap.String("port", a.cfg.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.errCh <- fmt.Errorf("http server exited with error: %w", err)
		}
	}()

	return nil
}

func (a *Application) Wait(ctx context.Context, cancel context.CancelFunc) error {
	var appErr error

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()

		for err := range a.errCh {
			cancel()
			zap.L().Error(err.Error())
			appErr = err
		}
	}()

	<-ctx.Done()
	a.wg.Wait()
	close(a.errCh)
	wg.Wait()

	return appErr
}
