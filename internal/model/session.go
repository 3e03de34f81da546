package model

import "time"

// Visibility controls who may discover a session.
type Visibility string

const (
	VisibilityPublic        Visibility = "PUBLIC"
	VisibilityFollowersOnly Visibility = "FOLLOWERS_ONLY"
)

// ParseVisibility maps an optional request value to a Visibility. Empty means PUBLIC.
func ParseVisibility(v string) (Visibility, bool) {
	switch Visibility(v) {
	case "", VisibilityPublic:
		return VisibilityPublic, true
	case VisibilityFollowersOnly:
		return VisibilityFollowersOnly, true
	default:
		return "", false
	}
}

// SessionStatus is the observable lifecycle phase of a session.
type SessionStatus string

const (
	SessionStatusLive    SessionStatus = "live"
	SessionStatusStopped SessionStatus = "stopped"
)

// Session is the API view of a live session (not GORM entity).
type Session struct {
	ID             string          `json:"id"`
	OwnerID        string          `json:"ownerId"`
	Title          string          `json:"title"`
	Description    string          `json:"description,omitempty"`
	CategoryID     *string         `json:"categoryId,omitempty"`
	Visibility     Visibility      `json:"visibility"`
	Status         SessionStatus   `json:"status"`
	IsLive         bool            `json:"isLive"`
	StartedAt      time.Time       `json:"startedAt"`
	EndedAt        *time.Time      `json:"endedAt,omitempty"`
	RoomName       *string         `json:"roomName,omitempty"`
	RoomEndpoint   *string         `json:"livekitUrl,omitempty"`
	PinnedProducts []PinnedProduct `json:"products"`
}

// PinnedProduct is a product reference attached to a session, in display order.
type PinnedProduct struct {
	ProductID string `json:"productId"`
	Name      string `json:"name,omitempty"`
	SortOrder int    `json:"sortOrder"`
}

// CreateSessionRequest is the request body for POST /streams.
type CreateSessionRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	CategoryID  *string  `json:"categoryId"`
	Visibility  string   `json:"visibility"`
	ProductIDs  []string `json:"productIds"`
}

// CreateSessionResponse is the response for POST /streams: the session plus the publisher credential.
type CreateSessionResponse struct {
	*Session
	Token      string `json:"token"`
	GatewayURL string `json:"gatewayUrl"`
}

// UpdateSessionRequest is the request body for PATCH /streams/:id. Nil fields are left unchanged.
type UpdateSessionRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	CategoryID  *string `json:"categoryId"`
	Visibility  *string `json:"visibility"`
}

// JoinTokenRequest is the request body for POST /streams/:id/token.
type JoinTokenRequest struct {
	Identity string `json:"identity"`
}

// JoinTokenResponse carries a role-scoped credential for an authenticated caller.
type JoinTokenResponse struct {
	Token      string `json:"token"`
	LivekitURL string `json:"livekitUrl"`
	MediaURL   string `json:"mediaUrl"`
	RoomName   string `json:"roomName"`
}

// ViewerTokenResponse carries a subscriber-only credential for an anonymous viewer.
type ViewerTokenResponse struct {
	Token    string `json:"token"`
	WSURL    string `json:"wsUrl"`
	RoomName string `json:"roomName"`
}

// PageMeta describes a page of results.
type PageMeta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

// SessionPage is the response for GET /streams/active.
type SessionPage struct {
	Data []*Session `json:"data"`
	Meta PageMeta   `json:"meta"`
}

// ToSession converts the entity into its API view.
func ToSession(ent *LiveSession) *Session {
	sess := &Session{
		ID:             ent.ID,
		OwnerID:        ent.OwnerID,
		Title:          ent.Title,
		Description:    ent.Description,
		CategoryID:     ent.CategoryID,
		Visibility:     Visibility(ent.Visibility),
		Status:         SessionStatusStopped,
		IsLive:         ent.IsLive,
		StartedAt:      ent.StartedAt,
		EndedAt:        ent.EndedAt,
		RoomName:       ent.RoomName,
		RoomEndpoint:   ent.RoomEndpoint,
		PinnedProducts: make([]PinnedProduct, 0, len(ent.Products)),
	}
	if ent.IsLive {
		sess.Status = SessionStatusLive
	}
	for _, p := range ent.Products {
		pp := PinnedProduct{ProductID: p.ProductID, SortOrder: p.SortOrder}
		if p.Product != nil {
			pp.Name = p.Product.Name
		}
		sess.PinnedProducts = append(sess.PinnedProducts, pp)
	}
	return sess
}
