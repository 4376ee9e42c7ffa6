package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/spatialdeez/microstore/internal/app"
	"github.com/spatialdeez/microstore/internal/config"
	"github.com/spatialdeez/microstore/internal/logger"
	"github.com/spatialdeez/microstore/internal/services"
)

func main() {
	addUserCmd := flag.NewFlagSet("add-user", flag.ExitOnError)
	username := addUserCmd.String("username", "", "Username for the new user")
	password := addUserCmd.String("password", "", "Password for the new user")
	admin := addUserCmd.Bool("admin", false, "Grant admin privileges")

	if len(os.Args) < 2 || os.Args[1] != "add-user" {
		fmt.Println("expected 'add-user' subcommand")
		os.Exit(1)
	}
	_ = addUserCmd.Parse(os.Args[2:])
	if *username == "" || *password == "" {
		fmt.Println("username and password are required")
		addUserCmd.PrintDefaults()
		os.Exit(1)
	}

	if err := addUser(*username, *password, *admin); err != nil {
		fmt.Fprintln(os.Stderr, "add-user:", err)
		os.Exit(1)
	}
	fmt.Printf("User '%s' created successfully.\n", *username)
}

func addUser(username, password string, admin bool) error {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(logger.New(cfg.Env, cfg.LogLevel))

	ctx := context.Background()
	store, closeStore, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	_, err = services.NewUserService(store, cfg).Seed(ctx, services.UserInput{
		Username: username,
		Password: password,
		Admin:    admin,
	})
	return err
}
