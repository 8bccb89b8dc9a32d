package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/formgate/formgate/internal/app"
	"github.com/formgate/formgate/internal/config"
	"github.com/spf13/pflag"
)

type command func(ctx context.Context, args []string) error

func commands() map[string]command {
	return map[string]command{
		"serve":   serveCommand,
		"migrate": migrateCommand,
		"api-key": apiKeyCommand,
		"form":    formCommand,
		"user":    userCommand,
	}
}

func newFlagSet(name string, cfg *config.AppConfig) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flagSet.StringVar(&cfg.ConfigPath, "config", "", "path to the YAML config file (default: "+config.DefaultConfigPath+")")
	return flagSet
}

func serveCommand(ctx context.Context, args []string) error {
	var cfg config.AppConfig
	flagSet := newFlagSet("serve", &cfg)
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	return app.RunServer(ctx, cfg)
}

func migrateCommand(ctx context.Context, args []string) error {
	var cfg config.AppConfig
	flagSet := newFlagSet("migrate", &cfg)
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if err := app.Migrate(ctx, cfg); err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, "migrations applied")
	return nil
}

func apiKeyCommand(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("api-key: expected create or revoke")
	}
	switch args[0] {
	case "create":
		return apiKeyCreate(ctx, args[1:])
	case "revoke":
		return apiKeyRevoke(ctx, args[1:])
	default:
		return fmt.Errorf("api-key: unknown subcommand %q", args[0])
	}
}

func apiKeyCreate(ctx context.Context, args []string) error {
	var cfg config.AppConfig
	var params app.CreateAPIKeyParams
	flagSet := newFlagSet("api-key create", &cfg)
	flagSet.StringVar(&params.FormID, "form", "", "form id the key is bound to (required)")
	flagSet.StringVar(&params.Name, "name", "", "display name for the key")
	flagSet.DurationVar(&params.ExpiresIn, "expires-in", 0, "key lifetime, e.g. 720h (default: never)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if params.FormID == "" {
		return errors.New("api-key create: --form is required")
	}

	key, err := app.CreateAPIKey(ctx, cfg, params)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "api key: %s\nform:    %s\nname:    %s\n", key.APIKey, key.FormID, key.Name)
	if key.ExpiresAt != nil {
		fmt.Fprintf(os.Stdout, "expires: %s\n", key.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

func apiKeyRevoke(ctx context.Context, args []string) error {
	var cfg config.AppConfig
	var token string
	flagSet := newFlagSet("api-key revoke", &cfg)
	flagSet.StringVar(&token, "key", "", "API key to revoke (required)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if token == "" {
		return errors.New("api-key revoke: --key is required")
	}
	if err := app.RevokeAPIKey(ctx, cfg, token); err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, "api key revoked")
	return nil
}

func formCommand(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] != "password" {
		return errors.New("form: expected password")
	}
	var cfg config.AppConfig
	var formID, password string
	var clear bool
	flagSet := newFlagSet("form password", &cfg)
	flagSet.StringVar(&formID, "form", "", "form id (required)")
	flagSet.StringVar(&password, "password", "", "new submission password")
	flagSet.BoolVar(&clear, "clear", false, "turn password protection off")
	if err := flagSet.Parse(args[1:]); err != nil {
		return err
	}
	if formID == "" {
		return errors.New("form password: --form is required")
	}
	if password == "" && !clear {
		return errors.New("form password: --password or --clear is required")
	}
	if clear {
		password = ""
	}
	if err := app.SetFormPassword(ctx, cfg, formID, password); err != nil {
		return err
	}
	if clear {
		fmt.Fprintln(os.Stdout, "password protection disabled")
	} else {
		fmt.Fprintln(os.Stdout, "password protection enabled")
	}
	return nil
}

func userCommand(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] != "token" {
		return errors.New("user: expected token")
	}
	var cfg config.AppConfig
	var userID uint64
	var expiresIn time.Duration
	flagSet := newFlagSet("user token", &cfg)
	flagSet.Uint64Var(&userID, "user", 0, "user id (required)")
	flagSet.DurationVar(&expiresIn, "expires-in", 24*time.Hour, "token lifetime")
	if err := flagSet.Parse(args[1:]); err != nil {
		return err
	}
	if userID == 0 {
		return errors.New("user token: --user is required")
	}
	token, err := app.IssueUserToken(ctx, cfg, userID, expiresIn)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, token)
	return nil
}
