package database

import (
	"fmt"
	"time"

	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect opens the configured database, stores it in DB and verifies it with a ping.
// Returns an error instead of calling log.Fatal so the caller can
// shut down gracefully.
func Connect() error {
	db, err := Open(config.DatabaseDriver(), config.DatabaseDSN())
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("database: get sql.DB: %w", err)
	}
	if config.DatabaseDriver() == "sqlite" {
		// SQLite serialises writers; one connection avoids SQLITE_BUSY under concurrent checkouts.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
		sqlDB.SetConnMaxIdleTime(2 * time.Minute)
	}

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database: ping: %w", err)
	}

	DB = db
	return nil
}

// Open builds a *gorm.DB for driver/dsn with query metrics attached.
// Foreign keys are not emitted by migrations: order history must survive product deletes.
func Open(driver, dsn string) (*gorm.DB, error) {
	dialector, err := buildDialector(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("database: build dialector: %w", err)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent), // use pkg/logger, not GORM's own
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("database: open: %w", err)
	}

	if err := instrument(db); err != nil {
		return nil, fmt.Errorf("database: register metrics callbacks: %w", err)
	}
	return db, nil
}

// Ping reports whether DB is connected and reachable.
func Ping() error {
	if DB == nil {
		return fmt.Errorf("database: not connected")
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func buildDialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "sqlite":
		return sqlite.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	case "sqlserver":
		return sqlserver.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q (supported: sqlite, postgres, mysql, sqlserver)", driver)
	}
}

const startKey = "metrics:start"

// instrument records every create/query/update/delete in metrics.DBQueryDuration.
func instrument(db *gorm.DB) error {
	before := func(tx *gorm.DB) { tx.InstanceSet(startKey, time.Now()) }
	after := func(op string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			if v, ok := tx.InstanceGet(startKey); ok {
				if start, ok := v.(time.Time); ok {
					metrics.ObserveDBQuery(op, start)
				}
			}
		}
	}

	cb := db.Callback()
	steps := []struct {
		op       string
		register func(name string, before, after func(*gorm.DB)) error
	}{
		{"insert", func(name string, b, a func(*gorm.DB)) error {
			if err := cb.Create().Before("gorm:create").Register(name+":before", b); err != nil {
				return err
			}
			return cb.Create().After("gorm:create").Register(name+":after", a)
		}},
		{"select", func(name string, b, a func(*gorm.DB)) error {
			if err := cb.Query().Before("gorm:query").Register(name+":before", b); err != nil {
				return err
			}
			return cb.Query().After("gorm:query").Register(name+":after", a)
		}},
		{"update", func(name string, b, a func(*gorm.DB)) error {
			if err := cb.Update().Before("gorm:update").Register(name+":before", b); err != nil {
				return err
			}
			return cb.Update().After("gorm:update").Register(name+":after", a)
		}},
		{"delete", func(name string, b, a func(*gorm.DB)) error {
			if err := cb.Delete().Before("gorm:delete").Register(name+":before", b); err != nil {
				return err
			}
			return cb.Delete().After("gorm:delete").Register(name+":after", a)
		}},
	}

	for _, s := range steps {
		if err := s.register("metrics:"+s.op, before, after(s.op)); err != nil {
			return err
		}
	}
	return nil
}
