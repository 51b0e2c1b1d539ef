package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/fleetpay/ledgerd/internal/config"
	"github.com/fleetpay/ledgerd/internal/http_api"
	"github.com/fleetpay/ledgerd/internal/ledgerd"
	"github.com/fleetpay/ledgerd/internal/mailbox"
	"github.com/fleetpay/ledgerd/internal/metrics"
	"github.com/fleetpay/ledgerd/internal/models"
	"github.com/fleetpay/ledgerd/internal/notificator"
	"github.com/fleetpay/ledgerd/internal/repository"
	"github.com/fleetpay/ledgerd/pkg/logger"
)

func main() {
	dryRun := &cli.BoolFlag{Name: "dry-run", Aliases: []string{"n"}, Usage: "Compute and log everything, commit and send nothing"}

	app := &cli.App{
		Name:  "ledgerd",
		Usage: "Payment reconciliation and billing engine",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "postgres-user", Aliases: []string{"u"}, Usage: "Postgres user"},
			&cli.StringFlag{Name: "postgres-password", Aliases: []string{"p"}, Usage: "Postgres password"},
			&cli.StringFlag{Name: "postgres-host", Aliases: []string{"t"}, Usage: "Postgres host"},
			&cli.IntFlag{Name: "postgres-port", Aliases: []string{"P"}, Usage: "Postgres port"},
			&cli.StringFlag{Name: "postgres-db", Aliases: []string{"d"}, Usage: "Postgres database name"},
			&cli.StringFlag{Name: "notify-channel", Usage: "Reminder channel: sms, telegram, email or log"},
			&cli.StringFlag{Name: "timezone", Usage: "Billing timezone"},
			&cli.BoolFlag{Name: "development", Aliases: []string{"D"}, Usage: "Development mode"},
		},
		Commands: []*cli.Command{
			{
				Name:  "ingest",
				Usage: "Ingest payment notifications from a mailbox directory",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Usage: "Directory of .eml files (defaults to MAILBOX_DIR)"},
					&cli.IntFlag{Name: "workers", Usage: "Messages processed in parallel"},
					dryRun,
				},
				Action: ingestCmd,
			},
			{
				Name:   "bill",
				Usage:  "Run one billing cycle",
				Flags:  []cli.Flag{dryRun},
				Action: billCmd,
			},
			{
				Name:  "serve",
				Usage: "Serve the operator API and run the scheduled jobs",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "port", Usage: "API port"},
					&cli.BoolFlag{Name: "no-schedule", Usage: "Serve the API without scheduled jobs"},
				},
				Action: serveCmd,
			},
			{
				Name:   "migrate",
				Usage:  "Create or update the database schema",
				Action: migrateCmd,
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

// env holds what every command needs.
type env struct {
	cfg     *config.Config
	log     *logger.Logger
	db      *repository.PostgresDB
	metrics *metrics.Metrics
}

func setup(c *cli.Context) (*env, error) {
	// Load configuration from environment variables
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
	if c.IsSet("notify-channel") {
		cfg.NotifyChannel = c.String("notify-channel")
	}
	if c.IsSet("timezone") {
		cfg.BillingTimezone = c.String("timezone")
	}
	if c.IsSet("development") {
		cfg.Development = c.Bool("development")
	}
	if c.IsSet("dir") {
		cfg.MailboxDir = c.String("dir")
	}
	if c.IsSet("workers") {
		cfg.IngestWorkers = c.Int("workers")
	}
	if c.IsSet("port") {
		cfg.APIPort = c.Int("port")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Development)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %v", err)
	}

	// Initialize database
	db, err := repository.NewPostgresDB(cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresHost, cfg.PostgresPort, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	return &env{cfg: cfg, log: log, db: db, metrics: metrics.New()}, nil
}

func (e *env) close() {
	if err := e.db.Close(); err != nil {
		e.log.Warnw("Failed to close database", "error", err)
	}
	_ = e.log.Sync()
}

func (e *env) app(source models.MessageSource) (*ledgerd.App, *notificator.Notificator, error) {
	gateway, err := notificator.NewGateway(e.cfg, e.log)
	if err != nil {
		return nil, nil, err
	}
	app, err := ledgerd.NewApp(e.cfg, e.db, gateway, source, e.metrics, e.log)
	if err != nil {
		return nil, nil, err
	}
	return app, gateway, nil
}

func ingestCmd(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()

	app, _, err := e.app(nil)
	if err != nil {
		return err
	}
	summary, err := app.RunIngest(c.Context, mailbox.NewDir(e.log, e.cfg.MailboxDir), c.Bool("dry-run"))
	if err != nil {
		return err
	}
	return printJSON(summary)
}

func billCmd(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()

	app, _, err := e.app(nil)
	if err != nil {
		return err
	}
	result, err := app.RunBilling(c.Context, c.Bool("dry-run"))
	if err != nil {
		return err
	}
	return printJSON(result)
}

func serveCmd(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, gateway, err := e.app(mailbox.NewDir(e.log, e.cfg.MailboxDir))
	if err != nil {
		return err
	}
	if tg, ok := gateway.Gateway().(*notificator.TelegramNotificator); ok {
		go tg.Start(ctx)
	}
	if !c.Bool("no-schedule") {
		if err := app.Start(ctx); err != nil {
			return err
		}
		defer app.Stop()
	}

	apiServer := http_api.NewHTTPServer(app, e.cfg.APIPort, e.cfg.APIToken, e.metrics, e.log)
	errs := make(chan error, 1)
	go func() { errs <- apiServer.Start() }()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		return apiServer.Shutdown()
	}
}

func migrateCmd(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()

	if err := e.db.Migrate(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	e.log.Info("Schema is up to date")
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
