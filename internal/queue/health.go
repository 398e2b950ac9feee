package queue

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"
)

var requiredTables = []string{"stories", "scenes", "title_options", "thumbnail_options", "jobs"}

// CheckHealth returns diagnostic information about the store.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{
		Driver:   s.dialect.name,
		Location: redactDSN(s.location),
	}
	if s.db == nil {
		return health, errors.New("queue database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping queue database: %w", err)
	}
	health.DatabaseReadable = true

	for _, table := range requiredTables {
		var count int
		if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(1) FROM "+table).Scan(&count); err != nil {
			health.MissingTables = append(health.MissingTables, table)
			continue
		}
		if table == "jobs" {
			health.TotalJobs = count
		}
	}

	provider, err := s.migrationProvider()
	if err != nil {
		health.Error = err.Error()
		return health, err
	}
	version, err := provider.GetDBVersion(connCtx)
	if err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("schema version: %w", err)
	}
	health.SchemaVersion = version
	if len(health.MissingTables) > 0 {
		health.Error = fmt.Sprintf("missing tables: %v", health.MissingTables)
	}
	return health, nil
}

// redactDSN hides the password of URL-style connection strings.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
