package postgres

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"
)

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// fromJSON decodes a nullable jsonb column; NULL leaves v untouched.
func fromJSON(raw sql.NullString, v any) error {
	if !raw.Valid || strings.TrimSpace(raw.String) == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw.String), v)
}

type rowScanner interface {
	Scan(dest ...any) error
}
