package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/mailvault/mailvault/config"
	"github.com/mailvault/mailvault/internal/database"
	"github.com/mailvault/mailvault/internal/enum"
	"github.com/mailvault/mailvault/internal/logger"
	"github.com/mailvault/mailvault/internal/repository"
	"github.com/mailvault/mailvault/server"
	"github.com/mailvault/mailvault/services"
)

func main() {
	app := &cli.App{
		Name:  "mailvault",
		Usage: "multi-mailbox manager with durable account backup",
		Commands: []*cli.Command{
			{
				Name:   "server",
				Usage:  "Start the application server",
				Action: runServer,
			},
			{
				Name:   "migrate",
				Usage:  "Run database migrations",
				Action: runMigrate,
			},
			{
				Name:  "batch",
				Usage: "Fetch a listing page for every registered account and print it",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "view", Value: "all", Usage: "folder view: inbox, junk or all"},
					&cli.IntFlag{Name: "page", Value: 1},
					&cli.IntFlag{Name: "page-size", Value: 20},
				},
				Action: runBatch,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setup() (*config.Config, *gorm.DB, error) {
	cfg, err := config.InitConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("config initialization failed: %w", err)
	}

	db, err := database.NewConnection(&database.DatabaseConfig{
		DBName:          cfg.DatabaseConfig.DBName,
		Host:            cfg.DatabaseConfig.Host,
		Port:            cfg.DatabaseConfig.Port,
		User:            cfg.DatabaseConfig.User,
		Password:        cfg.DatabaseConfig.Password,
		MaxConn:         cfg.DatabaseConfig.MaxConn,
		MaxIdleConn:     cfg.DatabaseConfig.MaxIdleConn,
		ConnMaxLifetime: cfg.DatabaseConfig.ConnMaxLifetime,
		LogLevel:        cfg.DatabaseConfig.LogLevel,
		SSLMode:         cfg.DatabaseConfig.SSLMode,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("database initialization failed: %w", err)
	}

	return cfg, db, nil
}

func runServer(c *cli.Context) error {
	cfg, db, err := setup()
	if err != nil {
		return err
	}

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("MailVault starting up...")

	srv, err := server.NewServer(cfg, db)
	if err != nil {
		return fmt.Errorf("server setup failed: %w", err)
	}

	if err := srv.Run(); err != nil {
		return fmt.Errorf("server startup failed: %w", err)
	}

	log.Println("Shutdown complete")
	return nil
}

func runMigrate(c *cli.Context) error {
	cfg, db, err := setup()
	if err != nil {
		return err
	}

	if err := repository.MigrateDB(cfg.DatabaseConfig, db); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}

	log.Println("Database migration completed successfully")
	return nil
}

func runBatch(c *cli.Context) error {
	cfg, db, err := setup()
	if err != nil {
		return err
	}

	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	repos := repository.InitRepositories(db)
	svcs, err := services.InitServices(cfg, appLogger, repos)
	if err != nil {
		return err
	}
	defer svcs.ConnectionPool.CloseAll()

	ctx := context.Background()
	accounts, err := repos.AccountRepository.List(ctx)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		return fmt.Errorf("no accounts registered")
	}

	emails := make([]string, 0, len(accounts))
	for _, a := range accounts {
		emails = append(emails, a.Email)
	}

	results := svcs.EmailService.FetchMany(ctx,
		emails,
		enum.GetFolderView(c.String("view")),
		c.Int("page"),
		c.Int("page-size"),
	)

	out, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
