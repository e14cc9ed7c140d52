package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	_ "modernc.org/sqlite" // registers the cgo-free "sqlite" database/sql driver
)

// modernSQLiteDriverName is the driver modernc.org/sqlite registers itself
// under. gorm's sqlite dialector normally pairs with mattn/go-sqlite3 (cgo)
// under "sqlite3"; overriding DriverName lets it drive the pure-Go one
// instead, which is what every non-production run (tests, local dev) uses.
const modernSQLiteDriverName = "sqlite"

// Open connects to dsn and migrates every model in AllModels. A dsn with a
// "postgres://" prefix opens the postgres driver. Anything else is treated
// as a sqlite file path (or ":memory:"): it is driven by the pure-Go
// modernc.org/sqlite so the module stays cgo-free outside of production
// postgres deployments, while still going through gorm's sqlite dialector
// for schema/query compatibility. Driver selection and AutoMigrate
// sequencing are grounded on the teacher's internal/database/database.go
// New(dbPath) constructor.
func Open(dsn string) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	var (
		db  *gorm.DB
		err error
	)

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dsn), gormCfg)
	} else {
		if dir := filepath.Dir(dsn); dir != "." && dir != "" && dsn != ":memory:" {
			if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
				return nil, fmt.Errorf("store: create sqlite dir: %w", mkErr)
			}
		}
		conn, openErr := sql.Open(modernSQLiteDriverName, dsn)
		if openErr != nil {
			return nil, fmt.Errorf("store: open sqlite: %w", openErr)
		}
		db, err = gorm.Open(sqlite.Dialector{DriverName: modernSQLiteDriverName, Conn: conn}, gormCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	if err := db.AutoMigrate(AllModels()...); err != nil {
		return nil, fmt.Errorf("store: automigrate: %w", err)
	}

	return db, nil
}
