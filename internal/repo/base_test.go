package repo

import (
	"context"
	"testing"

	"github.com/vitalcart/storefront-backend/internal/repo/repotest"
)

func TestNewBaseStoresConnection(t *testing.T) {
	db := repotest.NewDB(t)
	base := NewBase(db)

	if base.db != db {
		t.Fatalf("expected base db to match provided connection")
	}
}

func TestBaseDB_BindsContext(t *testing.T) {
	db := repotest.NewDB(t)
	base := NewBase(db)

	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	withCtx := base.DB(ctx)
	if withCtx == nil || withCtx.Statement == nil {
		t.Fatalf("expected statement created after WithContext")
	}
	if withCtx.Statement.Context != ctx {
		t.Fatalf("expected context to flow through, got %v", withCtx.Statement.Context)
	}

	if withoutCtx := base.DB(nil); withoutCtx != db {
		t.Fatalf("expected nil context to return raw connection")
	}
}

func TestBaseConnPrefersTransaction(t *testing.T) {
	db := repotest.NewDB(t)
	base := NewBase(db)
	ctx := context.Background()

	tx := db.Begin()
	defer tx.Rollback()

	if got := base.Conn(ctx, tx); got.Statement.ConnPool != tx.Statement.ConnPool {
		t.Fatalf("expected transaction connection to be used")
	}
	if got := base.Conn(ctx, nil); got.Statement.ConnPool != db.Statement.ConnPool {
		t.Fatalf("expected base connection without transaction")
	}
}
