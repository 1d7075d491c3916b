package health

import (
	"context"
	"database/sql"
	"time"

	"docanalysis-backend/internal/shared/storage/db"
)

const pingTimeout = 2 * time.Second

// Status is the payload returned by the health endpoint.
type Status struct {
	OK        bool     `json:"ok"`
	DataStore string   `json:"dataStore"`
	Database  string   `json:"database,omitempty"`
	Pool      *db.Pool `json:"pool,omitempty"`
}

// Service encapsulates health-related checks.
type Service struct {
	DB        *sql.DB
	DataStore string
}

// NewService constructs a new health service. db may be nil when records are
// not kept in Postgres.
func NewService(sqlDB *sql.DB, dataStore string) *Service {
	return &Service{DB: sqlDB, DataStore: dataStore}
}

// Status reports whether the service can reach its database.
func (s *Service) Status(ctx context.Context) Status {
	st := Status{OK: true, DataStore: s.DataStore}
	if s.DB == nil {
		return st
	}
	err := db.Ping(ctx, s.DB, pingTimeout)
	pool := db.PoolStats(s.DB)
	st.Pool = &pool
	if err != nil {
		st.OK = false
		st.Database = "unreachable"
		return st
	}
	st.Database = "ok"
	return st
}
