package db

import (
	"fmt"
	"strings"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Dialector picks the driver from the DSN shape: MySQL DSNs carry "@tcp(",
// everything else is treated as a SQLite path or URI.
func Dialector(dsn string) gorm.Dialector {
	if strings.Contains(dsn, "@tcp(") || strings.HasPrefix(dsn, "mysql://") {
		return mysql.Open(strings.TrimPrefix(dsn, "mysql://"))
	}
	return gormsqlite.Open(dsn)
}

// Connect opens the database and migrates the given models.
func Connect(dsn string, models ...any) (*gorm.DB, error) {
	gdb, err := gorm.Open(Dialector(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if len(models) > 0 {
		if err := gdb.AutoMigrate(models...); err != nil {
			return nil, fmt.Errorf("automigrate: %w", err)
		}
	}
	return gdb, nil
}
