package db

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vitalcart/storefront-backend/pkg/config"
	"github.com/vitalcart/storefront-backend/pkg/logger"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			if err := tx.Create(&testModel{Name: "panicked"}).Error; err != nil {
				return err
			}
			panic("boom")
		})
	}()

	var count int64
	if err := db.Model(&testModel{}).Where("name = ?", "panicked").Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected panic to roll back, got %d rows", count)
	}
}

func TestQueryWriterForwardsToLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "db-test", Output: buf})
	w := queryWriter{ctx: logg.WithField(context.Background(), "component", "gorm"), logg: logg}

	w.Printf("SLOW SQL >= %v [%s]", "500ms", "SELECT 1")

	if !strings.Contains(buf.String(), "SLOW SQL >= 500ms [SELECT 1]") || !strings.Contains(buf.String(), `"component":"gorm"`) {
		t.Fatalf("unexpected log entry %s", buf.String())
	}
	if queryLogger(context.Background(), config.DBConfig{}, nil) != gormlogger.Discard {
		t.Fatal("nil logger should discard gorm output")
	}
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

type uniqueModel struct {
	ID    int
	Email string `gorm:"uniqueIndex"`
}

func TestIsUniqueViolation(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:unique_test?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&uniqueModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}

	if err := conn.Create(&uniqueModel{Email: "a@example.com"}).Error; err != nil {
		t.Fatalf("first insert: %v", err)
	}
	dupErr := conn.Create(&uniqueModel{Email: "a@example.com"}).Error
	if !IsUniqueViolation(dupErr, "") {
		t.Fatalf("expected unique violation, got %v", dupErr)
	}
	if IsUniqueViolation(errors.New("boom"), "") {
		t.Fatal("plain error should not be a unique violation")
	}
	if !IsNotFound(conn.Where("email = ?", "missing").First(&uniqueModel{}).Error) {
		t.Fatal("expected record not found")
	}
	if IsUniqueViolation(nil, "") {
		t.Fatal("nil error should not match")
	}
	_ = Wrap(conn)
}
