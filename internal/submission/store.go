// Package submission persists accepted form submissions.
package submission

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/formgate/formgate/internal/identity"
	"github.com/formgate/formgate/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Store writes and counts submissions. Rows are insert-only.
type Store struct {
	db *gorm.DB
}

// NewStore constructs a Store.
func NewStore(conn *gorm.DB) *Store {
	return &Store{db: conn}
}

// SubmitForm inserts one submission row in a single statement.
func (s *Store) SubmitForm(ctx context.Context, formID string, data map[string]any, ip string) (*models.Submission, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("submission: store not configured")
	}
	if data == nil {
		data = map[string]any{}
	}
	raw, errMarshal := json.Marshal(data)
	if errMarshal != nil {
		return nil, fmt.Errorf("submission: encode data: %w", errMarshal)
	}
	if strings.TrimSpace(ip) == "" {
		ip = identity.UnknownIP
	}
	row := &models.Submission{
		ID:             uuid.NewString(),
		FormID:         formID,
		SubmissionData: datatypes.JSON(raw),
		IPAddress:      ip,
	}
	if errCreate := s.db.WithContext(ctx).Create(row).Error; errCreate != nil {
		return nil, fmt.Errorf("submission: insert: %w", errCreate)
	}
	return row, nil
}

// CountFormSubmissions returns the number of stored submissions for formID.
func (s *Store) CountFormSubmissions(ctx context.Context, formID string) (int64, error) {
	var count int64
	if errCount := s.db.WithContext(ctx).Model(&models.Submission{}).Where("form_id = ?", formID).Count(&count).Error; errCount != nil {
		return 0, fmt.Errorf("submission: count: %w", errCount)
	}
	return count, nil
}
