package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/promohive/rewards/internal/config"
	"github.com/promohive/rewards/internal/events"
	"github.com/promohive/rewards/internal/http_api"
	"github.com/promohive/rewards/internal/models"
	"github.com/promohive/rewards/internal/notificator"
	"github.com/promohive/rewards/internal/promohive"
	"github.com/promohive/rewards/internal/rates"
	"github.com/promohive/rewards/internal/repository"
	"github.com/promohive/rewards/internal/rules"
	"github.com/promohive/rewards/pkg/logger"
)

func main() {
	if err := newCLI().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// newCLI declares the global flags and the commands.
func newCLI() *cli.App {
	return &cli.App{
		Name:  "promohive",
		Usage: "PromoHive wallet and rewards ledger",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "postgres-user", Aliases: []string{"u"}, Usage: "Postgres user"},
			&cli.StringFlag{Name: "postgres-password", Aliases: []string{"p"}, Usage: "Postgres password"},
			&cli.StringFlag{Name: "postgres-host", Aliases: []string{"t"}, Usage: "Postgres host"},
			&cli.IntFlag{Name: "postgres-port", Aliases: []string{"P"}, Usage: "Postgres port"},
			&cli.StringFlag{Name: "postgres-db", Aliases: []string{"d"}, Usage: "Postgres database name"},
			&cli.IntFlag{Name: "api-port", Aliases: []string{"a"}, Usage: "HTTP API port"},
			&cli.StringFlag{Name: "events-backend", Aliases: []string{"e"}, Usage: "Domain events backend (none, redis, kafka)"},
			&cli.StringFlag{Name: "settings-file", Aliases: []string{"s"}, Usage: "YAML file with setting defaults"},
			&cli.StringFlag{Name: "instance-id", Aliases: []string{"i"}, Usage: "Instance id used for app locks"},
			&cli.BoolFlag{Name: "development", Aliases: []string{"D"}, Usage: "Development mode"},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and the accrual scheduler",
				Action: serve,
			},
			{
				Name:   "accrue",
				Usage:  "Run the referral accrual job once",
				Action: accrue,
			},
			{
				Name:   "migrate",
				Usage:  "Create or update the database schema",
				Action: migrate,
			},
			{
				Name:  "reconcile",
				Usage: "Replay a user's ledger against the stored wallet",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "user", Usage: "User id", Required: true},
				},
				Action: reconcile,
			},
		},
	}
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %v", err)
	}

	// Override with flags if set
	if c.IsSet("postgres-user") {
		cfg.PostgresUser = c.String("postgres-user")
	}
	if c.IsSet("postgres-password") {
		cfg.PostgresPassword = c.String("postgres-password")
	}
	if c.IsSet("postgres-host") {
		cfg.PostgresHost = c.String("postgres-host")
	}
	if c.IsSet("postgres-port") {
		cfg.PostgresPort = c.Int("postgres-port")
	}
	if c.IsSet("postgres-db") {
		cfg.PostgresDB = c.String("postgres-db")
	}
	if c.IsSet("api-port") {
		cfg.APIPort = c.Int("api-port")
	}
	if c.IsSet("events-backend") {
		cfg.EventsBackend = c.String("events-backend")
	}
	if c.IsSet("settings-file") {
		cfg.SettingsFile = c.String("settings-file")
	}
	if c.IsSet("instance-id") {
		cfg.InstanceID = c.String("instance-id")
	}
	if c.IsSet("development") {
		cfg.Development = c.Bool("development")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %v", err)
	}
	return cfg, nil
}

// app holds the wired components shared by all commands.
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	db        models.Repository
	publisher models.EventPublisher
	notifier  *notificator.Notificator
	rates     *rates.RateService
	telegram  *notificator.TelegramNotificator
	promohive *promohive.PromoHive
}

func setup(c *cli.Context) (*app, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Development)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %v", err)
	}

	// Initialize database
	db, err := repository.NewPostgresDB(cfg.PostgresDSN(), log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	publisher, err := events.NewPublisher(cfg, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize event publisher: %v", err)
	}

	a := &app{cfg: cfg, log: log, db: db, publisher: publisher}

	// Initialize notification channels; both are optional
	var telegramSender, emailSender notificator.Sender
	if cfg.TelegramBotToken != "" {
		a.telegram, err = notificator.NewTelegramNotificator(log, cfg.TelegramBotToken, db)
		if err != nil {
			a.close()
			return nil, err
		}
		telegramSender = a.telegram
	}
	if cfg.SMTPHost != "" {
		emailSender = notificator.NewEmailNotificator(log, cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPSender)
	}
	a.notifier = notificator.NewNotificator(log, db, publisher, telegramSender, emailSender)

	a.rates = rates.NewRateService(log, cfg, rules.NewEngine(db).ConversionRate)
	a.promohive = promohive.NewPromoHive(db, a.notifier, a.rates, log, cfg)

	if cfg.SettingsFile != "" {
		if err := a.promohive.SeedSettings(cfg.SettingsFile); err != nil {
			a.close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) close() {
	if a.notifier != nil {
		a.notifier.Wait()
	}
	if err := a.publisher.Close(); err != nil {
		a.log.Error("Failed to close event publisher", "error", err)
	}
	if err := a.db.Close(); err != nil {
		a.log.Error("Failed to close database", "error", err)
	}
	a.log.Sync()
}

func serve(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.telegram != nil {
		a.telegram.Start(ctx)
	}
	a.rates.StartPeriodicUpdate()
	defer a.rates.Stop()

	apiServer := http_api.NewHTTPServer(a.promohive, a.cfg, a.log)
	go apiServer.Start()

	// Start the application; returns on signal
	a.promohive.Start(ctx)

	if err := apiServer.Shutdown(); err != nil {
		a.log.Error("Failed to shut down HTTP server", "error", err)
	}
	return nil
}

func accrue(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.close()

	summary, err := a.promohive.RunAccrual(c.Context)
	if errors.Is(err, models.ErrAccrualRunning) {
		a.log.Warn("Referral accrual already running elsewhere, nothing to do")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("scanned=%d credited=%d skipped=%d failed=%d total=%d\n",
		summary.Scanned, summary.Credited, summary.Skipped, summary.Failed, summary.Total)
	return nil
}

func migrate(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log, err := logger.NewLogger(cfg.Development)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %v", err)
	}
	// connecting runs the migration
	db, err := repository.NewPostgresDB(cfg.PostgresDSN(), log)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %v", err)
	}
	log.Info("Database schema is up to date")
	return db.Close()
}

func reconcile(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.close()

	userID := c.Int64("user")
	totals, err := a.promohive.Reconcile(userID)
	fmt.Printf("user=%d balance=%d pending=%d earned=%d withdrawn=%d\n",
		userID, totals.Balance, totals.PendingBalance, totals.TotalEarned, totals.TotalWithdrawn)
	if errors.Is(err, models.ErrLedgerMismatch) {
		return cli.Exit(err.Error(), 2)
	}
	return err
}
