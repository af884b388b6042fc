package services

import (
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/inkwell-backend/internal/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("failed to init logger: %v", err)
	}
	return log
}

// openTestDB opens a file-backed sqlite database. _txlock=immediate makes
// every transaction take the write lock at BEGIN, so concurrent transactions
// serialize instead of deadlocking on lock upgrades.
func openTestDB(t *testing.T, ddl ...string) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_txlock=immediate&_busy_timeout=10000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	for _, stmt := range ddl {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("failed to apply schema: %v", err)
		}
	}
	return db
}

const usageRecordDDL = `CREATE TABLE usage_record (
	id text PRIMARY KEY,
	created_at datetime,
	updated_at datetime,
	deleted_at datetime,
	user_id text NOT NULL,
	service text NOT NULL,
	action text NOT NULL,
	count integer NOT NULL DEFAULT 0,
	reset_at datetime NOT NULL,
	UNIQUE (user_id, service, action)
)`

const usageLogDDL = `CREATE TABLE usage_log (
	id text PRIMARY KEY,
	created_at datetime,
	updated_at datetime,
	deleted_at datetime,
	provider text NOT NULL,
	model text NOT NULL,
	input_tokens integer NOT NULL DEFAULT 0,
	output_tokens integer NOT NULL DEFAULT 0,
	total_tokens integer NOT NULL DEFAULT 0,
	estimated_cost real NOT NULL DEFAULT 0,
	user_id text,
	endpoint text,
	week text,
	month text
)`
