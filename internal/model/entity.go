package model

import "time"

// LiveSession: сущность live-commerce трансляции (GORM).
// RoomName and RoomEndpoint are written together; EndedAt is never cleared once set.
type LiveSession struct {
	ID           string     `gorm:"type:uuid;primaryKey"`
	OwnerID      string     `gorm:"type:text;not null;index"`
	Title        string     `gorm:"size:200;not null"`
	Description  string     `gorm:"type:text"`
	CategoryID   *string    `gorm:"type:text;column:category_id"`
	Visibility   string     `gorm:"size:20;not null"`
	IsLive       bool       `gorm:"not null;index"`
	StartedAt    time.Time  `gorm:"column:started_at;not null"`
	EndedAt      *time.Time `gorm:"column:ended_at"`
	RoomName     *string    `gorm:"size:128;column:room_name"`
	RoomEndpoint *string    `gorm:"size:512;column:room_endpoint"`
	CreatedAt    time.Time  `gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime"`

	Products []SessionProduct `gorm:"foreignKey:SessionID"`
}

func (LiveSession) TableName() string { return "live_sessions" }

// SessionProduct: закреплённый за трансляцией товар (GORM), порядок по SortOrder.
type SessionProduct struct {
	ID        string   `gorm:"type:uuid;primaryKey"`
	SessionID string   `gorm:"type:uuid;not null;index"`
	ProductID string   `gorm:"type:text;not null"`
	SortOrder int      `gorm:"not null"`
	Product   *Product `gorm:"foreignKey:ProductID"`
}

func (SessionProduct) TableName() string { return "live_session_products" }

// Product is the catalog row a session may pin. Owned by the seller's user id.
type Product struct {
	ID      string `gorm:"type:text;primaryKey"`
	OwnerID string `gorm:"type:text;not null;index"`
	Name    string `gorm:"size:200;not null"`
	Price   int64  `gorm:"not null"`
}

func (Product) TableName() string { return "products" }

// Category is a catalog category a session may be filed under.
type Category struct {
	ID   string `gorm:"type:text;primaryKey"`
	Name string `gorm:"size:120;not null"`
	Slug string `gorm:"size:120;not null;uniqueIndex"`
}

func (Category) TableName() string { return "categories" }
