package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestRunRejectsUnknownCommand(t *testing.T) {
	err := run([]string{"frobnicate"})
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("err = %v", err)
	}
}

func TestAPIKeyCreateRequiresForm(t *testing.T) {
	err := apiKeyCommand(context.Background(), []string{"create", "--name", "crm"})
	if err == nil || !strings.Contains(err.Error(), "--form is required") {
		t.Fatalf("err = %v", err)
	}
}

func TestAPIKeyRevokeRequiresKey(t *testing.T) {
	err := apiKeyCommand(context.Background(), []string{"revoke"})
	if err == nil || !strings.Contains(err.Error(), "--key is required") {
		t.Fatalf("err = %v", err)
	}
}

func TestFormPasswordRequiresFlags(t *testing.T) {
	if err := formCommand(context.Background(), []string{"password", "--password", "x"}); err == nil || !strings.Contains(err.Error(), "--form is required") {
		t.Fatalf("err = %v", err)
	}
	if err := formCommand(context.Background(), []string{"password", "--form", "contact"}); err == nil || !strings.Contains(err.Error(), "--password or --clear") {
		t.Fatalf("err = %v", err)
	}
	if err := formCommand(context.Background(), nil); err == nil {
		t.Fatalf("expected subcommand error")
	}
}

func TestUserTokenRequiresUser(t *testing.T) {
	err := userCommand(context.Background(), []string{"token"})
	if err == nil || !strings.Contains(err.Error(), "--user is required") {
		t.Fatalf("err = %v", err)
	}
}

func TestHelpFlagReturnsErrHelp(t *testing.T) {
	err := migrateCommand(context.Background(), []string{"--help"})
	if !errors.Is(err, pflag.ErrHelp) {
		t.Fatalf("err = %v", err)
	}
}
