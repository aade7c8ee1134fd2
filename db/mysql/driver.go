package mysql

import (
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Options struct {
	DSN     string
	MaxOpen int
	MaxIdle int
	MaxLife time.Duration
}

// withDefaults adds parseTime and utf8mb4 when the DSN leaves them out;
// timestamps and emoji in posts depend on both.
func withDefaults(dsn string) string {
	params := map[string]string{"parseTime": "True", "charset": "utf8mb4", "loc": "UTC"}
	sep := "?"
	if i := strings.IndexByte(dsn, '?'); i >= 0 {
		for _, kv := range strings.Split(dsn[i+1:], "&") {
			delete(params, strings.SplitN(kv, "=", 2)[0])
		}
		sep = "&"
	}
	for _, k := range []string{"parseTime", "charset", "loc"} {
		if v, ok := params[k]; ok {
			dsn += sep + k + "=" + v
			sep = "&"
		}
	}
	return dsn
}

// Open connects with a bounded pool. SkipDefaultTransaction is on because
// every multi-statement write already runs in an explicit transaction.
func Open(opts Options, log logger.Interface) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:               withDefaults(opts.DSN),
		DefaultStringSize: 255,
	}), &gorm.Config{
		Logger:                 log,
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if opts.MaxOpen > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpen)
	}
	if opts.MaxIdle > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdle)
	}
	sqlDB.SetConnMaxLifetime(opts.MaxLife)
	return db, nil
}
