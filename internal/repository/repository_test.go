package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vybekart-ssh/Vybekart-Backend/internal/errs"
	"github.com/vybekart-ssh/Vybekart-Backend/internal/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(&model.Category{}, &model.Product{}, &model.LiveSession{}, &model.SessionProduct{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, owner, name string) string {
	t.Helper()
	p := model.Product{ID: uuid.NewString(), OwnerID: owner, Name: name, Price: 1000}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p.ID
}

func newSession(owner string, started time.Time, productIDs ...string) *model.LiveSession {
	ent := &model.LiveSession{
		ID:         uuid.NewString(),
		OwnerID:    owner,
		Title:      "Evening drop",
		Visibility: string(model.VisibilityPublic),
		IsLive:     true,
		StartedAt:  started,
	}
	for i, pid := range productIDs {
		ent.Products = append(ent.Products, model.SessionProduct{ID: uuid.NewString(), ProductID: pid, SortOrder: i})
	}
	return ent
}

func TestCreateAndGet(t *testing.T) {
	db := openTestDB(t)
	repo := NewSessionRepository(db)
	ctx := context.Background()
	owner := uuid.NewString()
	p1 := seedProduct(t, db, owner, "Mug")
	p2 := seedProduct(t, db, owner, "Plate")

	ent := newSession(owner, time.Now().UTC(), p2, p1)
	if err := repo.Create(ctx, ent); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := repo.Get(ctx, ent.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(got.Products))
	}
	if got.Products[0].ProductID != p2 || got.Products[0].Product == nil || got.Products[0].Product.Name != "Plate" {
		t.Fatalf("unexpected first product: %+v", got.Products[0])
	}
	if got.RoomName != nil || got.RoomEndpoint != nil {
		t.Fatal("expected room identifiers unset on create")
	}
}

func TestGetUnknown(t *testing.T) {
	repo := NewSessionRepository(openTestDB(t))
	if _, err := repo.Get(context.Background(), uuid.NewString()); !errors.Is(err, errs.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSetRoomWritesBoth(t *testing.T) {
	db := openTestDB(t)
	repo := NewSessionRepository(db)
	ctx := context.Background()
	ent := newSession(uuid.NewString(), time.Now().UTC())
	if err := repo.Create(ctx, ent); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.SetRoom(ctx, ent.ID, ent.ID, "http://lk:7880"); err != nil {
		t.Fatalf("set room: %v", err)
	}
	got, _ := repo.Get(ctx, ent.ID)
	if got.RoomName == nil || *got.RoomName != ent.ID || got.RoomEndpoint == nil || *got.RoomEndpoint != "http://lk:7880" {
		t.Fatalf("unexpected room identifiers: %v %v", got.RoomName, got.RoomEndpoint)
	}
	if err := repo.SetRoom(ctx, uuid.NewString(), "x", "y"); !errors.Is(err, errs.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMarkStoppedOnlyOnce(t *testing.T) {
	db := openTestDB(t)
	repo := NewSessionRepository(db)
	ctx := context.Background()
	ent := newSession(uuid.NewString(), time.Now().UTC())
	if err := repo.Create(ctx, ent); err != nil {
		t.Fatalf("create: %v", err)
	}
	ended := time.Now().UTC()
	ok, err := repo.MarkStopped(ctx, ent.ID, ended)
	if err != nil || !ok {
		t.Fatalf("first stop = %v, %v", ok, err)
	}
	ok, err = repo.MarkStopped(ctx, ent.ID, ended.Add(time.Minute))
	if err != nil || ok {
		t.Fatalf("second stop = %v, %v; want false", ok, err)
	}
	got, _ := repo.Get(ctx, ent.ID)
	if got.IsLive || got.EndedAt == nil || !got.EndedAt.Equal(ended) {
		t.Fatalf("unexpected stopped state: live=%v ended=%v", got.IsLive, got.EndedAt)
	}
}

func TestListActive(t *testing.T) {
	db := openTestDB(t)
	repo := NewSessionRepository(db)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)
	var ids []string
	for i := 0; i < 3; i++ {
		ent := newSession(uuid.NewString(), base.Add(time.Duration(i)*time.Minute))
		if err := repo.Create(ctx, ent); err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, ent.ID)
	}
	if _, err := repo.MarkStopped(ctx, ids[1], time.Now().UTC()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	list, total, err := repo.ListActive(ctx, 0, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(list) != 2 {
		t.Fatalf("expected 2 live sessions, got total=%d len=%d", total, len(list))
	}
	if list[0].ID != ids[2] || list[1].ID != ids[0] {
		t.Fatalf("expected newest first, got %s, %s", list[0].ID, list[1].ID)
	}

	page, total, err := repo.ListActive(ctx, 1, 1)
	if err != nil || total != 2 || len(page) != 1 || page[0].ID != ids[0] {
		t.Fatalf("unexpected second page: %v total=%d err=%v", page, total, err)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	db := openTestDB(t)
	repo := NewSessionRepository(db)
	ctx := context.Background()
	owner := uuid.NewString()
	ent := newSession(owner, time.Now().UTC(), seedProduct(t, db, owner, "Mug"))
	if err := repo.Create(ctx, ent); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Update(ctx, ent.ID, map[string]interface{}{"title": "Renamed"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := repo.Get(ctx, ent.ID)
	if got.Title != "Renamed" {
		t.Fatalf("expected renamed title, got %q", got.Title)
	}

	if err := repo.Delete(ctx, ent.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, ent.ID); !errors.Is(err, errs.ErrSessionNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	var n int64
	db.Model(&model.SessionProduct{}).Where("session_id = ?", ent.ID).Count(&n)
	if n != 0 {
		t.Fatalf("expected pinned products removed, %d left", n)
	}
}

func TestCatalog(t *testing.T) {
	db := openTestDB(t)
	cat := NewCatalogRepository(db)
	ctx := context.Background()
	owner := uuid.NewString()
	mine := seedProduct(t, db, owner, "Mug")
	other := seedProduct(t, db, uuid.NewString(), "Vase")

	owned, err := cat.OwnedProductIDs(ctx, owner, []string{mine, other, uuid.NewString()})
	if err != nil {
		t.Fatalf("owned: %v", err)
	}
	if len(owned) != 1 || owned[0] != mine {
		t.Fatalf("unexpected owned ids: %v", owned)
	}

	c := model.Category{ID: uuid.NewString(), Name: "Home", Slug: "home"}
	if err := db.Create(&c).Error; err != nil {
		t.Fatalf("seed category: %v", err)
	}
	if ok, err := cat.CategoryExists(ctx, c.ID); err != nil || !ok {
		t.Fatalf("expected category to exist: %v %v", ok, err)
	}
	if ok, _ := cat.CategoryExists(ctx, uuid.NewString()); ok {
		t.Fatal("expected unknown category to be missing")
	}
}
