// Command migrate creates the eventchat tables and reports their row counts
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/eventhub/eventchat/api/models"
	"github.com/eventhub/eventchat/auth/db"
	"github.com/eventhub/eventchat/internal/config"
	"github.com/eventhub/eventchat/internal/slogging"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to configuration file")
		checkOnly  = flag.Bool("check", false, "Only report table status, do not migrate")
	)
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := slogging.Initialize(slogging.Config{
		Level:            cfg.GetLogLevel(),
		IsDev:            true,
		AlsoLogToConsole: true,
		Output:           os.Stderr,
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	gdb, err := db.NewGormDB(gormConfig(cfg))
	if err != nil {
		log.Fatalf("Failed to connect to %s database: %v", cfg.Database.Type, err)
	}
	defer func() {
		if err := gdb.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	if !*checkOnly {
		log.Printf("Migrating %d models on %s", len(models.AllModels()), cfg.Database.Type)
		if err := gdb.AutoMigrate(models.AllModels()...); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migration completed successfully")
	}

	if !report(gdb) {
		os.Exit(1)
	}
}

func gormConfig(cfg *config.Config) db.GormConfig {
	return db.GormConfig{
		Type:             db.DatabaseType(cfg.Database.Type),
		PostgresHost:     cfg.Database.Postgres.Host,
		PostgresPort:     cfg.Database.Postgres.Port,
		PostgresUser:     cfg.Database.Postgres.User,
		PostgresPassword: cfg.Database.Postgres.Password,
		PostgresDatabase: cfg.Database.Postgres.Database,
		PostgresSSLMode:  cfg.Database.Postgres.SSLMode,
		SQLitePath:       cfg.Database.SQLite.Path,
	}
}

// report prints one line per model table and returns false if any is missing
func report(gdb *db.GormDB) bool {
	migrator := gdb.DB().Migrator()
	ok := true

	fmt.Println("Checking tables:")
	for _, model := range models.AllModels() {
		stmt := gdb.DB().Model(model).Statement
		if err := stmt.Parse(model); err != nil {
			fmt.Printf("  x cannot parse %T: %v\n", model, err)
			ok = false
			continue
		}
		table := stmt.Schema.Table
		if !migrator.HasTable(model) {
			fmt.Printf("  x table '%s' does not exist\n", table)
			ok = false
			continue
		}
		var count int64
		if err := gdb.DB().Model(model).Count(&count).Error; err != nil {
			fmt.Printf("  x table '%s' exists but cannot be counted: %v\n", table, err)
			ok = false
			continue
		}
		fmt.Printf("  ok table '%s' (rows: %d)\n", table, count)
	}
	return ok
}
