package mysql

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Connect opens a pool and pings it. parseTime makes DATETIME columns scan into
// time.Time; clientFoundRows makes RowsAffected count matched rows, which the
// conditional updates rely on.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	dsn = withParam(dsn, "parseTime", "true")
	dsn = withParam(dsn, "clientFoundRows", "true")
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	// test ping
	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		return nil, err
	}
	return db, nil
}

func withParam(dsn, key, value string) string {
	if strings.Contains(dsn, key+"=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + key + "=" + value
}
