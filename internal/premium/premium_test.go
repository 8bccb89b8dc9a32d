package premium

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/formgate/formgate/internal/db"
	"github.com/formgate/formgate/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestDBCheckerHasPremium(t *testing.T) {
	dsn := fmt.Sprintf("file:premium_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	future := time.Now().Add(24 * time.Hour).UTC()
	past := time.Now().Add(-24 * time.Hour).UTC()
	users := []models.User{
		{Email: "paid@example.com", PremiumUntil: &future},
		{Email: "lapsed@example.com", PremiumUntil: &past},
		{Email: "free@example.com"},
		{Email: "banned@example.com", PremiumUntil: &future, Disabled: true},
	}
	for i := range users {
		if errCreate := conn.Create(&users[i]).Error; errCreate != nil {
			t.Fatalf("create user: %v", errCreate)
		}
	}

	checker := NewDBChecker(conn)
	want := []bool{true, false, false, false}
	for i, u := range users {
		got, err := checker.HasPremium(context.Background(), u.ID)
		if err != nil {
			t.Fatalf("HasPremium(%s): %v", u.Email, err)
		}
		if got != want[i] {
			t.Fatalf("HasPremium(%s) = %v, want %v", u.Email, got, want[i])
		}
	}

	if got, err := checker.HasPremium(context.Background(), 9999); err != nil || got {
		t.Fatalf("unknown user = %v, %v", got, err)
	}
}
