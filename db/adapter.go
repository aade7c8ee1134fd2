// Package db opens the relational store: MySQL in production, SQLite for
// local runs and tests.
package db

import (
	"fmt"

	"github.com/brewbuds/server/config"
	dbmysql "github.com/brewbuds/server/db/mysql"
	dbsqlite "github.com/brewbuds/server/db/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	ModeSQLite = "sqlite"
	ModeMySQL  = "mysql"
)

// Open connects according to cfg.Mode. Statements are logged through log.
func Open(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	ql := newQueryLogger(log, cfg.SlowQuery, cfg.LogQueries)
	switch cfg.Mode {
	case ModeSQLite, "":
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("db: sqlite mode requires database.sqlite_path")
		}
		return dbsqlite.Open(cfg.SQLitePath, ql)
	case ModeMySQL:
		if cfg.MySQLDSN == "" {
			return nil, fmt.Errorf("db: mysql mode requires database.mysql_dsn")
		}
		return dbmysql.Open(dbmysql.Options{
			DSN:     cfg.MySQLDSN,
			MaxOpen: cfg.MySQLMaxOpen,
			MaxIdle: cfg.MySQLMaxIdle,
			MaxLife: cfg.MySQLMaxLife,
		}, ql)
	default:
		return nil, fmt.Errorf("db: unknown mode %q", cfg.Mode)
	}
}
