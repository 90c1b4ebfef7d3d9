package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/symposic/symposic/internal/models"
)

// marshalInterview serializes an interview transcript to its stored JSON
// document form. FinishedAt lives in its own column, not the document.
func marshalInterview(iv models.Interview) (string, error) {
	doc := iv
	doc.FinishedAt = nil
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal interview document: %w", err)
	}
	return string(data), nil
}

// unmarshalInterview rebuilds an interview from its stored document and the
// finished_at column.
func unmarshalInterview(document string, finishedAt sql.NullTime) (*models.Interview, error) {
	var iv models.Interview
	if err := json.Unmarshal([]byte(document), &iv); err != nil {
		return nil, fmt.Errorf("failed to unmarshal interview document: %w", err)
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		iv.FinishedAt = &t
	}
	return &iv, nil
}

// nullableTime converts an optional timestamp for a nullable column.
func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
