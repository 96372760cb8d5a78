// Package main is the entry point for the QuantZ virtual trading backend.
// It wires the ledger and cache databases, the price oracle with its
// provider chain, the trading and portfolio services, notifications,
// alerts, the background job scheduler and the HTTP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantcoin/quantz/internal/clientdata"
	"github.com/quantcoin/quantz/internal/clients/alphavantage"
	"github.com/quantcoin/quantz/internal/clients/finnhub"
	"github.com/quantcoin/quantz/internal/clients/yahoo"
	"github.com/quantcoin/quantz/internal/config"
	"github.com/quantcoin/quantz/internal/database"
	"github.com/quantcoin/quantz/internal/modules/alerts"
	alerthandlers "github.com/quantcoin/quantz/internal/modules/alerts/handlers"
	"github.com/quantcoin/quantz/internal/modules/notifications"
	notificationhandlers "github.com/quantcoin/quantz/internal/modules/notifications/handlers"
	"github.com/quantcoin/quantz/internal/modules/portfolio"
	portfoliohandlers "github.com/quantcoin/quantz/internal/modules/portfolio/handlers"
	"github.com/quantcoin/quantz/internal/modules/trading"
	tradinghandlers "github.com/quantcoin/quantz/internal/modules/trading/handlers"
	"github.com/quantcoin/quantz/internal/pricing"
	"github.com/quantcoin/quantz/internal/reliability"
	"github.com/quantcoin/quantz/internal/scheduler"
	"github.com/quantcoin/quantz/internal/server"
	"github.com/quantcoin/quantz/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No logger yet; bare stderr is the best we can do
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting QuantZ")

	// Databases: the ledger holds everything users own, the cache holds
	// disposable market data
	ledgerDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "ledger.db"),
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger database")
	}
	defer ledgerDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	cacheRepo := clientdata.NewRepository(cacheDB.Conn())
	if err := cacheRepo.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize cache schema")
	}
	if err := trading.InitSchema(ledgerDB.Conn()); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize ledger schema")
	}

	// Market data clients and the price resolution chain
	yahooClient := yahoo.NewClient(log)
	oracle := pricing.NewOracle(buildProviders(cfg, yahooClient, log), cacheRepo, log)

	// Notifications
	notificationRepo := notifications.NewRepository(ledgerDB.Conn(), log)
	if err := notificationRepo.InitSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize notifications schema")
	}
	hub := notifications.NewHub(log)
	notificationService := notifications.NewService(notificationRepo, hub, log)

	// Trading
	walletRepo := trading.NewWalletRepository(ledgerDB.Conn(), log)
	holdingRepo := trading.NewHoldingRepository(ledgerDB.Conn(), log)
	transactionRepo := trading.NewTransactionRepository(ledgerDB.Conn(), log)
	tradingService := trading.NewService(
		ledgerDB.Conn(),
		walletRepo,
		holdingRepo,
		transactionRepo,
		oracle,
		&tradingNotifier{svc: notificationService},
		cfg.StartingBalance,
		log,
	)

	// Portfolio
	snapshotRepo := portfolio.NewSnapshotRepository(ledgerDB.Conn(), log)
	if err := snapshotRepo.InitSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize snapshots schema")
	}
	portfolioService := portfolio.NewService(
		tradingService,
		holdingRepo,
		oracle,
		yahooClient,
		cacheRepo,
		snapshotRepo,
		log,
	)

	// Alerts
	alertRepo := alerts.NewRepository(ledgerDB.Conn(), log)
	if err := alertRepo.InitSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize alerts schema")
	}
	alertService := alerts.NewService(alertRepo, oracle, yahooClient, cacheRepo, notificationService, log)

	// Background jobs
	sched := scheduler.New(log)
	databases := map[string]*database.DB{
		"ledger": ledgerDB,
		"cache":  cacheDB,
	}
	systemHandlers := server.NewSystemHandlers(log, databases, sched)

	if err := registerJobs(sched, registerJobsConfig{
		cfg:       cfg,
		holdings:  holdingRepo,
		wallets:   walletRepo,
		oracle:    oracle,
		portfolio: portfolioService,
		alerts:    alertService,
		cache:     cacheRepo,
		databases: databases,
		system:    systemHandlers,
		log:       log,
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to register jobs")
	}
	sched.Start()
	defer sched.Stop()

	// HTTP server
	srv := server.New(server.Config{
		Port:          cfg.Port,
		Log:           log,
		DevMode:       cfg.DevMode,
		Oracle:        oracle,
		Trading:       tradinghandlers.NewHandler(tradingService, log),
		Portfolio:     portfoliohandlers.NewHandler(portfolioService, log),
		Notifications: notificationhandlers.NewHandler(notificationService, hub, log),
		Alerts:        alerthandlers.NewHandler(alertService, log),
		System:        systemHandlers,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("QuantZ started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("QuantZ stopped")
}

// tradingNotifier adapts the notifications service to the trading module's
// notifier, keeping the two packages decoupled.
type tradingNotifier struct {
	svc *notifications.Service
}

func (n *tradingNotifier) Notify(userID, category, title, message string) {
	n.svc.Notify(userID, category, title, message)
}

func (n *tradingNotifier) Recent(userID string, limit int) ([]trading.NotificationEvent, error) {
	res, err := n.svc.List(userID, limit, 0)
	if err != nil {
		return nil, err
	}
	events := make([]trading.NotificationEvent, 0, len(res.Notifications))
	for _, notif := range res.Notifications {
		events = append(events, trading.NotificationEvent{
			ID:        notif.ID,
			Category:  notif.Category,
			Title:     notif.Title,
			Message:   notif.Message,
			CreatedAt: notif.CreatedAt,
		})
	}
	return events, nil
}

// buildProviders assembles the ordered price resolution chain. Credentialed
// sources come first; the keyless Yahoo fallbacks always close the chain so
// the oracle works out of the box.
func buildProviders(cfg *config.Config, yahooClient *yahoo.Client, log zerolog.Logger) []pricing.Provider {
	var providers []pricing.Provider

	if cfg.FinnhubAPIKey != "" {
		finnhubClient := finnhub.NewClient(cfg.FinnhubAPIKey, log)
		providers = append(providers, pricing.Provider{
			Name:    "finnhub",
			Timeout: cfg.FinnhubTimeout,
			Fetch:   finnhubClient.CurrentPrice,
		})
	}

	if cfg.AlphaVantageAPIKey != "" {
		avClient := alphavantage.NewClient(cfg.AlphaVantageAPIKey, log)
		providers = append(providers, pricing.Provider{
			Name:    "alphavantage",
			Timeout: cfg.AlphaVantageTimeout,
			Fetch:   avClient.CurrentPrice,
		})
	}

	providers = append(providers,
		pricing.Provider{
			Name:    "yahoo_quote",
			Timeout: cfg.YahooTimeout,
			Fetch:   yahooClient.CurrentPrice,
		},
		pricing.Provider{
			Name:    "yahoo_daily_close",
			Timeout: cfg.YahooTimeout,
			Fetch: func(ctx context.Context, symbol string) (float64, error) {
				closes, err := yahooClient.DailyCloses(ctx, symbol, "5d")
				if err != nil {
					return 0, err
				}
				for i := len(closes) - 1; i >= 0; i-- {
					if closes[i].Close > 0 {
						return closes[i].Close, nil
					}
				}
				return 0, pricing.ErrNoPrice
			},
		},
		pricing.Provider{
			Name:    "yahoo_chart",
			Timeout: cfg.YahooTimeout,
			Fetch:   yahooClient.ChartPrice,
		},
	)

	return providers
}

type registerJobsConfig struct {
	cfg       *config.Config
	holdings  *trading.HoldingRepository
	wallets   *trading.WalletRepository
	oracle    *pricing.Oracle
	portfolio *portfolio.Service
	alerts    *alerts.Service
	cache     *clientdata.Repository
	databases map[string]*database.DB
	system    *server.SystemHandlers
	log       zerolog.Logger
}

// registerJobs wires all background jobs into the scheduler
func registerJobs(sched *scheduler.Scheduler, jc registerJobsConfig) error {
	priceRefresh := scheduler.NewPriceRefreshJob(jc.holdings, jc.oracle, jc.log)

	// Frequent refreshes during trading hours plus passes at open and close
	for _, schedule := range []string{
		"*/5 9-18 * * 1-5",
		"30 9 * * 1-5",
		"0 16 * * 1-5",
	} {
		if err := sched.AddJob(schedule, priceRefresh); err != nil {
			return err
		}
	}

	if err := sched.AddJob("* * * * *", scheduler.NewAlertSweepJob(jc.alerts, jc.log)); err != nil {
		return err
	}

	if err := sched.AddJob("@hourly", scheduler.NewCacheCleanupJob(jc.cache, jc.log)); err != nil {
		return err
	}

	if err := sched.AddJob("5 0 * * *", scheduler.NewSnapshotJob(jc.wallets, jc.portfolio, jc.log)); err != nil {
		return err
	}

	maintenance := reliability.NewMaintenanceService(jc.databases, jc.log)
	if err := sched.AddJob("0 2 * * *", scheduler.NewMaintenanceJob(maintenance)); err != nil {
		return err
	}

	if jc.cfg.Backup != nil && jc.cfg.Backup.Enabled {
		s3Client, err := reliability.NewS3Client(context.Background(), reliability.S3Config{
			Endpoint:        jc.cfg.Backup.Endpoint,
			Region:          jc.cfg.Backup.Region,
			AccessKeyID:     jc.cfg.Backup.AccessKeyID,
			SecretAccessKey: jc.cfg.Backup.SecretAccessKey,
			Bucket:          jc.cfg.Backup.Bucket,
		}, jc.log)
		if err != nil {
			return err
		}

		backupService := reliability.NewBackupService(jc.databases, s3Client, jc.cfg.DataDir, jc.log)
		backupJob := scheduler.NewBackupJob(backupService, maintenance, jc.cfg.Backup.RetentionDays, jc.log)
		if err := sched.AddJob("30 2 * * *", backupJob); err != nil {
			return err
		}
		jc.system.SetBackup(backupService, backupJob)

		jc.log.Info().Str("bucket", jc.cfg.Backup.Bucket).Msg("Nightly backups enabled")
	} else {
		jc.log.Info().Msg("Backups disabled, no bucket configured")
	}

	return nil
}
