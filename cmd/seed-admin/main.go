// Command seed-admin creates a verified administrator account using the
// server's configuration (.env, HORTUS_* variables, -c config file, flags).
//
// Usage:
//
//	seed-admin -email admin@example.com [-username admin] [-name "Ada Admin"] [-roles ROLE_ADMIN]
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/realforestry/hortus-auth/internal/flagx"
	"github.com/realforestry/hortus-auth/internal/seed"
	"github.com/realforestry/hortus-auth/internal/server"
	"github.com/realforestry/hortus-auth/internal/server/config"
)

func main() {
	var opts seed.Options

	fs := flag.NewFlagSet("seed-admin", flag.ExitOnError)
	fs.StringVar(&opts.Email, "email", "", "admin email (prompted when empty)")
	fs.StringVar(&opts.Username, "username", "", "optional username")
	fs.StringVar(&opts.FullName, "name", "", "full name")
	fs.StringVar(&opts.Roles, "roles", seed.AdminRole, "comma separated roles")
	_ = fs.Parse(flagx.FilterArgs(os.Args[1:], []string{"-email", "-username", "-name", "-roles"}))

	ctx := context.Background()
	app, err := server.NewApp(ctx, config.LoadConfig())
	if err != nil {
		log.Fatalf("%v", err)
	}

	_, err = seed.Admin(ctx, app.Accounts(), opts, os.Stdin, os.Stdout)
	_ = app.Close()
	if err != nil {
		log.Fatalf("seed failed: %v", err)
	}
}
