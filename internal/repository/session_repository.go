package repository

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/vybekart-ssh/Vybekart-Backend/internal/errs"
	"github.com/vybekart-ssh/Vybekart-Backend/internal/model"
	"gorm.io/gorm"
)

// SessionRepository persists live sessions and their pinned products.
type SessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository creates a session repository.
func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts the session together with its pinned products.
func (r *SessionRepository) Create(ctx context.Context, ent *model.LiveSession) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		products := ent.Products
		ent.Products = nil
		if err := tx.Create(ent).Error; err != nil {
			return err
		}
		ent.Products = products
		if len(products) == 0 {
			return nil
		}
		for i := range products {
			products[i].SessionID = ent.ID
		}
		return tx.Omit("Product").Create(&products).Error
	})
}

// Get returns a session with its pinned products in display order.
func (r *SessionRepository) Get(ctx context.Context, id string) (*model.LiveSession, error) {
	var ent model.LiveSession
	err := r.db.WithContext(ctx).
		Preload("Products.Product").
		Where("id = ?", id).
		First(&ent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrSessionNotFound
		}
		return nil, err
	}
	sortProducts(&ent)
	return &ent, nil
}

// ListActive returns one page of live sessions, newest first, and the total number of live sessions.
func (r *SessionRepository) ListActive(ctx context.Context, offset, limit int) ([]model.LiveSession, int64, error) {
	db := r.db.WithContext(ctx)
	var total int64
	if err := db.Model(&model.LiveSession{}).Where("is_live = ?", true).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []model.LiveSession
	err := db.Preload("Products.Product").
		Where("is_live = ?", true).
		Order("started_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, 0, err
	}
	for i := range list {
		sortProducts(&list[i])
	}
	return list, total, nil
}

// SetRoom records the external room identifiers; both are written in one statement.
func (r *SessionRepository) SetRoom(ctx context.Context, id, roomName, endpoint string) error {
	res := r.db.WithContext(ctx).Model(&model.LiveSession{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"room_name":     roomName,
			"room_endpoint": endpoint,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.ErrSessionNotFound
	}
	return nil
}

// Update applies column updates to a session.
func (r *SessionRepository) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&model.LiveSession{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.ErrSessionNotFound
	}
	return nil
}

// MarkStopped ends a live session. It reports false when the session was not live,
// so two concurrent stops cannot both succeed.
func (r *SessionRepository) MarkStopped(ctx context.Context, id string, endedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.LiveSession{}).
		Where("id = ? AND is_live = ?", id, true).
		Updates(map[string]interface{}{
			"is_live":  false,
			"ended_at": endedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Delete removes a session and its pinned products.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&model.SessionProduct{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.LiveSession{}).Error
	})
}

func sortProducts(ent *model.LiveSession) {
	slices.SortFunc(ent.Products, func(a, b model.SessionProduct) int {
		return a.SortOrder - b.SortOrder
	})
}
