package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"timelock-backend/internal/models"
)

func openSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "timelock.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestSQLite_CorruptValuesAreInternalErrors(t *testing.T) {
	ctx := context.Background()
	store := openSQLite(t)
	created := time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)

	for _, id := range []string{"u1", "u2"} {
		if err := store.Users().Create(ctx, &models.User{ID: id, Code: "CODE" + id, CreatedAt: created}); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}
	p := &models.Partnership{ID: "p1", UserAID: "u1", UserBID: "u2", Status: models.StatusPending, CreatedAt: created}
	if err := store.Partnerships().Create(ctx, p); err != nil {
		t.Fatalf("create partnership: %v", err)
	}
	msg := &models.Message{ID: "m1", SenderID: "u1", ReceiverID: "u2", Content: "x", UnlockDate: models.DateOf(created), CreatedAt: created}
	if err := store.Messages().Create(ctx, msg); err != nil {
		t.Fatalf("create message: %v", err)
	}

	for _, stmt := range []string{
		`UPDATE users SET created_at = 'yesterday' WHERE id = 'u1'`,
		`UPDATE partnerships SET relationship_date = '2024-13-40' WHERE id = 'p1'`,
		`UPDATE messages SET unlock_date = 'soon' WHERE id = 'm1'`,
	} {
		if _, err := store.db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("corrupt row: %v", err)
		}
	}

	checks := []struct {
		name string
		err  error
	}{
		{name: "user", err: func() error { _, err := store.Users().GetByID(ctx, "u1"); return err }()},
		{name: "partnership", err: func() error { _, err := store.Partnerships().GetByID(ctx, "p1"); return err }()},
		{name: "message", err: func() error { _, err := store.Messages().GetByID(ctx, "m1"); return err }()},
		{name: "message list", err: func() error { _, err := store.Messages().ListByUser(ctx, "u2"); return err }()},
		{name: "message dates", err: func() error { _, err := store.Messages().ListUnlockDates(ctx, "u1", "u2"); return err }()},
	}
	for _, c := range checks {
		if c.err == nil {
			t.Fatalf("%s: decoded a corrupt row", c.name)
		}
		if kind := models.KindOf(c.err); kind != models.KindInternal {
			t.Fatalf("%s: kind = %v, want internal (%v)", c.name, kind, c.err)
		}
		if !errors.Is(c.err, errCorruptValue) {
			t.Fatalf("%s: err = %v", c.name, c.err)
		}
	}
}
