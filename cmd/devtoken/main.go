// Command devtoken mints a bearer token for a local user, for poking at /ws by hand
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/eventhub/eventchat/api"
	"github.com/eventhub/eventchat/auth"
	"github.com/eventhub/eventchat/auth/db"
	"github.com/eventhub/eventchat/internal/config"
	"github.com/eventhub/eventchat/internal/slogging"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to configuration file")
		userID     = flag.String("user", "", "User id to put in the token")
		ttl        = flag.Duration("ttl", 0, "Token lifetime (defaults to auth.jwt.expiration_seconds)")
	)
	flag.Parse()

	if *userID == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := slogging.Initialize(slogging.Config{Level: slogging.LogLevelWarn, Output: os.Stderr}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	gdb, err := db.NewGormDB(db.GormConfig{
		Type:             db.DatabaseType(cfg.Database.Type),
		PostgresHost:     cfg.Database.Postgres.Host,
		PostgresPort:     cfg.Database.Postgres.Port,
		PostgresUser:     cfg.Database.Postgres.User,
		PostgresPassword: cfg.Database.Postgres.Password,
		PostgresDatabase: cfg.Database.Postgres.Database,
		PostgresSSLMode:  cfg.Database.Postgres.SSLMode,
		SQLitePath:       cfg.Database.SQLite.Path,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = gdb.Close() }()

	verifier, err := auth.NewJWTVerifier(auth.JWTConfig{
		Secret:        cfg.Auth.JWT.Secret,
		SigningMethod: cfg.Auth.JWT.SigningMethod,
	}, api.NewGormUserStore(gdb.DB()), nil)
	if err != nil {
		log.Fatalf("Failed to create verifier: %v", err)
	}

	lifetime := *ttl
	if lifetime <= 0 {
		lifetime = cfg.GetJWTDuration()
	}
	token, err := verifier.IssueToken(*userID, lifetime)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	// verify round trip so a typo in -user fails here rather than on the socket
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	identity, err := verifier.VerifyIdentity(ctx, token)
	if err != nil {
		log.Fatalf("Token for %q does not verify: %v", *userID, err)
	}

	fmt.Fprintf(os.Stderr, "token for %s (%s), valid %s\n", identity.Name, identity.ID, lifetime)
	fmt.Println(token)
}
