package mongo

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/bookwise/session-client/internal/core/domain"
)

func TestToDomain_DecodesStoredDocument(t *testing.T) {
	raw, err := bson.Marshal(bson.M{
		"_id":          "u1",
		"email":        "a@b.c",
		"role":         "admin",
		"display_name": "Ada",
		"preferences":  bson.M{"theme": "dark"},
		"created_at":   int64(1700000000),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var mp mongoProfile
	if err := bson.Unmarshal(raw, &mp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	p := toDomain(mp)
	if p.SubjectID != "u1" || p.Role != "admin" || p.DisplayName != "Ada" {
		t.Fatalf("unexpected profile: %+v", p)
	}
	if p.Preferences["theme"] != "dark" {
		t.Fatalf("preferences lost: %+v", p.Preferences)
	}
	if !p.CreatedAt.Equal(time.Unix(1700000000, 0)) || p.CreatedAt.Location() != time.UTC {
		t.Fatalf("unexpected created_at: %v", p.CreatedAt)
	}
	if !p.UpdatedAt.IsZero() {
		t.Fatalf("missing updated_at should stay zero, got %v", p.UpdatedAt)
	}
}

// Runs against a live server when SESSION_TEST_MONGO_URI is set.
func TestProfileRepository_Live(t *testing.T) {
	uri := os.Getenv("SESSION_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("SESSION_TEST_MONGO_URI not set")
	}
	ctx := context.Background()

	db, err := Open(ctx, Config{URI: uri, Database: "session_test_" + ulid.Make().String()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() {
		_ = db.Drop(context.Background())
		_ = Close(db, 5*time.Second)
	}()

	repo := NewProfileRepository(db)
	if err := repo.EnsureIndexes(ctx); err != nil {
		t.Fatalf("indexes: %v", err)
	}

	if _, err := repo.GetProfile(ctx, "u1"); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}

	first, err := repo.CreateProfile(ctx, &domain.Profile{SubjectID: "u1", Role: "reader", DisplayName: "first", Locale: "en"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.DisplayName != "first" || first.Locale != "en" || first.CreatedAt.IsZero() {
		t.Fatalf("unexpected created profile: %+v", first)
	}

	second, err := repo.CreateProfile(ctx, &domain.Profile{SubjectID: "u1", Role: "admin", DisplayName: "second"})
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if second.DisplayName != "first" || second.Role != "reader" {
		t.Fatalf("create overwrote existing profile: %+v", second)
	}

	got, err := repo.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DisplayName != "first" {
		t.Fatalf("unexpected stored profile: %+v", got)
	}
}
