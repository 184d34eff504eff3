// adminctl bootstraps and manages admin identities from the command line.
// Admin accounts are never created over HTTP.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/term"

	"regelrecht.org/internal/audit"
	"regelrecht.org/internal/auth"
)

func main() {
	log.SetFlags(0)
	var (
		dsn         = flag.String("dsn", os.Getenv("RR_PG_DSN"), "PostgreSQL DSN")
		username    = flag.String("username", "", "Admin username")
		email       = flag.String("email", "", "Admin email")
		displayName = flag.String("display-name", "", "Display name")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or RR_PG_DSN")
	}
	if flag.Arg(0) != "create-admin" {
		log.Fatal("usage: adminctl -username <name> -email <addr> create-admin")
	}
	if *username == "" || *email == "" {
		log.Fatal("both -username and -email are required")
	}

	password, err := readPassword()
	if err != nil {
		log.Fatalf("read password: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	svc := auth.NewService(auth.NewPGStore(db), nil, audit.NewPG(db))
	user, err := svc.CreateAdminUser(ctx, *username, *email, password, *displayName)
	if err != nil {
		log.Fatalf("create admin: %v", err)
	}
	fmt.Printf("created admin %s (%s)\n", user.Username, user.ID)
}

func readPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	if len(raw) < 12 {
		return "", fmt.Errorf("password must be at least 12 characters")
	}
	return string(raw), nil
}
