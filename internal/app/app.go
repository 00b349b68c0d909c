package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/db"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/platform/logger"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/realtime/bus"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/services"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Services Services

	signals  bus.Bus
	redisBus *bus.RedisBus
	cancel   context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg := LoadConfig()

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	var signals bus.Bus
	var redisBus *bus.RedisBus
	if cfg.RedisBus {
		redisBus, err = bus.NewRedisBus(log)
		if err != nil {
			log.Sync()
			return nil, fmt.Errorf("init redis bus: %w", err)
		}
		signals = redisBus
	} else {
		signals = bus.NewInProcessBus(log)
	}

	reposet := wireRepos(theDB, log)
	serviceset := wireServices(cfg, reposet, signals, log)
	handlerset := wireHandlers(log, serviceset)
	router := wireRouter(handlerset)

	return &App{
		Log:      log,
		DB:       theDB,
		Router:   router,
		Cfg:      cfg,
		Repos:    reposet,
		Services: serviceset,
		signals:  signals,
		redisBus: redisBus,
	}, nil
}

// Start wires the scheduler and baseline rebuild subscriptions onto the
// signal bus and launches background work.
func (a *App) Start() error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if err := a.Services.Scheduler.Start(a.signals); err != nil {
		return err
	}

	// A finished content extraction gets its baseline built without an
	// explicit API call.
	a.signals.Subscribe(bus.SignalContentExtractionCompleted, func(ctx context.Context, sig bus.Signal) {
		if _, err := a.Services.Baseline.BuildBaseline(ctx, services.BuildBaselineInput{ContentID: sig.ContentID}); err != nil {
			a.Log.Warn("baseline build from extraction signal failed", "error", err, "content_id", sig.ContentID)
		}
	})

	if a.redisBus != nil {
		if err := a.redisBus.StartForwarder(ctx); err != nil {
			return fmt.Errorf("start redis bus forwarder: %w", err)
		}
	}
	return nil
}

func (a *App) Run() error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("HTTP server listening", "addr", a.Cfg.HTTPAddr)
	return a.Router.Run(a.Cfg.HTTPAddr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Services.Scheduler != nil {
		a.Services.Scheduler.Stop()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
