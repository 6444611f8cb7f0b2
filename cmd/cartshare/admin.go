package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aliuyar1234/cartshare/internal/db"
	"github.com/aliuyar1234/cartshare/internal/identity"
	"github.com/aliuyar1234/cartshare/internal/invitations"
	"github.com/aliuyar1234/cartshare/internal/store/pgstore"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func runAdmin(args []string) int {
	if len(args) == 0 {
		printAdminUsage()
		return 2
	}

	_ = godotenv.Load()

	switch args[0] {
	case "migrate":
		return runMigrate(args[1:])
	case "expire-invitations":
		return runExpireInvitations(args[1:])
	case "issue-token":
		return runIssueToken(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown admin command: %s\n", args[0])
		printAdminUsage()
		return 2
	}
}

func printAdminUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  cartshare admin migrate [--db-dsn <dsn>]")
	fmt.Fprintln(os.Stderr, "  cartshare admin expire-invitations [--db-dsn <dsn>]")
	fmt.Fprintln(os.Stderr, "  cartshare admin issue-token --email user@example.com [--name <name>] [--user-id <uuid>] [--ttl 24h]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Notes:")
	fmt.Fprintln(os.Stderr, "  - --db-dsn defaults to CS_DB_DSN.")
	fmt.Fprintln(os.Stderr, "  - issue-token signs with CS_JWT_SECRET and is meant for local testing.")
}

func dsnFlag(fs *flag.FlagSet) *string {
	return fs.String("db-dsn", "", "Postgres DSN (defaults to CS_DB_DSN)")
}

func resolveDSN(dsn string) (string, bool) {
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("CS_DB_DSN"))
	}
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "--db-dsn is required (or set CS_DB_DSN)")
		return "", false
	}
	return dsn, true
}

func parseFlags(fs *flag.FlagSet, args []string) (int, bool) {
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0, false
		}
		return 2, false
	}
	return 0, true
}

func runMigrate(args []string) int {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	dbDSN := dsnFlag(fs)
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	dsn, ok := resolveDSN(*dbDSN)
	if !ok {
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.Connect(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	applied, err := db.RunMigrations(ctx, pool)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		return 1
	}

	if len(applied) == 0 {
		fmt.Fprintln(os.Stdout, "Schema is up to date.")
		return 0
	}
	for _, version := range applied {
		fmt.Fprintf(os.Stdout, "Applied %s\n", version)
	}
	return 0
}

func runExpireInvitations(args []string) int {
	fs := flag.NewFlagSet("expire-invitations", flag.ContinueOnError)
	dbDSN := dsnFlag(fs)
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	dsn, ok := resolveDSN(*dbDSN)
	if !ok {
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := db.Connect(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	st, err := pgstore.New(ctx, pool)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open store: %v\n", err)
		return 1
	}
	defer st.Close()

	svc := invitations.NewService(st, nil, nil, nil, 0)
	n, err := svc.ExpireStale(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to expire invitations: %v\n", err)
		return 1
	}

	fmt.Fprintf(os.Stdout, "Expired %d invitation(s).\n", n)
	return 0
}

func runIssueToken(args []string) int {
	fs := flag.NewFlagSet("issue-token", flag.ContinueOnError)

	var email, name, userID string
	var ttl time.Duration
	fs.StringVar(&email, "email", "", "User email")
	fs.StringVar(&name, "name", "", "Display name (defaults to the email's local part)")
	fs.StringVar(&userID, "user-id", "", "User ID (random if empty)")
	fs.DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")

	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	email = strings.TrimSpace(email)
	if email == "" {
		fmt.Fprintln(os.Stderr, "--email is required")
		return 2
	}
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	id := uuid.New()
	if userID != "" {
		parsed, err := uuid.Parse(userID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid --user-id: %v\n", err)
			return 2
		}
		id = parsed
	}

	secret := os.Getenv("CS_JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "CS_JWT_SECRET is required")
		return 2
	}

	token, err := identity.IssueToken(identity.User{ID: id, Email: email, DisplayName: name}, secret, ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to issue token: %v\n", err)
		return 1
	}

	fmt.Fprintln(os.Stdout, token)
	return 0
}
