package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/vybekart-ssh/Vybekart-Backend/internal/errs"
	"github.com/vybekart-ssh/Vybekart-Backend/internal/model"
	"github.com/vybekart-ssh/Vybekart-Backend/internal/roomprovider"
	"go.uber.org/zap"
)

const (
	maxTitleLen  = 200
	defaultLimit = 20
	maxLimit     = 100

	cleanupTimeout = 10 * time.Second
)

// SessionStore persists live sessions.
type SessionStore interface {
	Create(ctx context.Context, ent *model.LiveSession) error
	Get(ctx context.Context, id string) (*model.LiveSession, error)
	ListActive(ctx context.Context, offset, limit int) ([]model.LiveSession, int64, error)
	SetRoom(ctx context.Context, id, roomName, endpoint string) error
	Update(ctx context.Context, id string, fields map[string]interface{}) error
	MarkStopped(ctx context.Context, id string, endedAt time.Time) (bool, error)
	Delete(ctx context.Context, id string) error
}

// Catalog answers ownership and existence questions about records a session refers to.
type Catalog interface {
	OwnedProductIDs(ctx context.Context, ownerID string, ids []string) ([]string, error)
	CategoryExists(ctx context.Context, id string) (bool, error)
}

// RoomProvider is the external media service (implemented by roomprovider.Client).
type RoomProvider interface {
	Configured() bool
	CreateRoom(ctx context.Context, name, metadata string) error
	DeleteRoom(ctx context.Context, name string) error
	MintToken(room, identity string, grant roomprovider.Grant, ttl time.Duration) (string, error)
	URL() (string, error)
	WebSocketURL() (string, error)
	MediaURL() (string, error)
}

// SessionNotifier is told when a session ends so connected clients can be informed.
type SessionNotifier interface {
	EndSession(sessionID string)
}

// SessionServicer: интерфейс для handlers (D: зависимость от абстракции).
type SessionServicer interface {
	Create(ctx context.Context, ownerID string, req *model.CreateSessionRequest) (*model.CreateSessionResponse, error)
	Get(ctx context.Context, id string) (*model.Session, error)
	ListActive(ctx context.Context, page, limit int) (*model.SessionPage, error)
	Update(ctx context.Context, id, callerID string, req *model.UpdateSessionRequest) (*model.Session, error)
	Stop(ctx context.Context, id, callerID string) (*model.Session, error)
	Remove(ctx context.Context, id, callerID string) error
	IssueJoinToken(ctx context.Context, id, requesterID, identity string) (*model.JoinTokenResponse, error)
	IssueViewerToken(ctx context.Context, id, identity string) (*model.ViewerTokenResponse, error)
}

var _ SessionServicer = (*SessionService)(nil)

// SessionService drives the live session lifecycle: it keeps the persisted row and
// the external room consistent and issues role-scoped credentials.
type SessionService struct {
	store    SessionStore
	catalog  Catalog
	rooms    RoomProvider
	notifier SessionNotifier
	ws       *WSConfig
	log      *zap.Logger
	now      func() time.Time
}

// NewSessionService creates a session service. notifier may be nil.
func NewSessionService(store SessionStore, catalog Catalog, rooms RoomProvider, notifier SessionNotifier, ws *WSConfig, log *zap.Logger) *SessionService {
	return &SessionService{
		store:    store,
		catalog:  catalog,
		rooms:    rooms,
		notifier: notifier,
		ws:       ws,
		log:      log,
		now:      time.Now,
	}
}

type roomMetadata struct {
	Title      string   `json:"title"`
	OwnerID    string   `json:"ownerId"`
	ProductIDs []string `json:"productIds"`
}

// Create validates the request, reserves the session row, creates the external room and
// returns the session with a publisher credential. Any failure after the row is written
// deletes it again.
func (s *SessionService) Create(ctx context.Context, ownerID string, req *model.CreateSessionRequest) (*model.CreateSessionResponse, error) {
	if !s.rooms.Configured() {
		return nil, fmt.Errorf("create session: %w", errs.ErrConfiguration)
	}
	title := strings.TrimSpace(req.Title)
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	visibility, ok := model.ParseVisibility(req.Visibility)
	if !ok {
		return nil, fmt.Errorf("%w: unknown visibility %q", errs.ErrValidation, req.Visibility)
	}
	productIDs := dedupe(req.ProductIDs)
	if err := s.checkProducts(ctx, ownerID, productIDs); err != nil {
		return nil, err
	}
	categoryID, err := s.checkCategory(ctx, req.CategoryID)
	if err != nil {
		return nil, err
	}

	ent := &model.LiveSession{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Title:       title,
		Description: req.Description,
		CategoryID:  categoryID,
		Visibility:  string(visibility),
		IsLive:      true,
		StartedAt:   s.now().UTC(),
	}
	for i, pid := range productIDs {
		ent.Products = append(ent.Products, model.SessionProduct{
			ID:        uuid.New().String(),
			ProductID: pid,
			SortOrder: i,
		})
	}
	meta, err := json.Marshal(roomMetadata{Title: title, OwnerID: ownerID, ProductIDs: productIDs})
	if err != nil {
		return nil, fmt.Errorf("room metadata: %w", err)
	}
	if err := s.store.Create(ctx, ent); err != nil {
		return nil, err
	}

	roomName := ent.ID
	if err := s.rooms.CreateRoom(ctx, roomName, string(meta)); err != nil {
		s.rollback(ctx, ent.ID, "")
		if roomprovider.IsUnreachable(err) {
			return nil, fmt.Errorf("%w: %v", errs.ErrUpstreamUnavailable, err)
		}
		return nil, creationFailed(err)
	}

	endpoint, err := s.rooms.URL()
	if err != nil {
		s.rollback(ctx, ent.ID, roomName)
		return nil, creationFailed(err)
	}
	token, err := s.rooms.MintToken(roomName, "seller-"+ownerID, roomprovider.PublisherGrant, 0)
	if err != nil {
		s.rollback(ctx, ent.ID, roomName)
		return nil, creationFailed(err)
	}
	if err := s.store.SetRoom(ctx, ent.ID, roomName, endpoint); err != nil {
		s.rollback(ctx, ent.ID, roomName)
		return nil, creationFailed(err)
	}

	saved, err := s.store.Get(ctx, ent.ID)
	if err != nil {
		return nil, err
	}
	s.log.Info("session created",
		zap.String("session_id", ent.ID),
		zap.String("owner_id", ownerID),
		zap.Int("products", len(productIDs)))
	return &model.CreateSessionResponse{
		Session:    model.ToSession(saved),
		Token:      token,
		GatewayURL: s.ws.GatewayURL(),
	}, nil
}

// rollback removes a row whose room could not be brought up, and the room when one was made.
// It runs to completion even when the caller's context is already done.
func (s *SessionService) rollback(ctx context.Context, sessionID, roomName string) {
	ctx, cancel := detach(ctx)
	defer cancel()
	if roomName != "" {
		if err := s.rooms.DeleteRoom(ctx, roomName); err != nil {
			s.log.Warn("rollback: delete room failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	if err := s.store.Delete(ctx, sessionID); err != nil {
		s.log.Error("rollback: delete session failed", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	s.log.Warn("session creation rolled back", zap.String("session_id", sessionID))
}

// detach keeps the values of ctx but drops its cancellation, bounded by cleanupTimeout.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
}

func creationFailed(err error) error {
	if errors.Is(err, errs.ErrConfiguration) {
		return err
	}
	return fmt.Errorf("%w: %v", errs.ErrCreationFailed, err)
}

func validateTitle(title string) error {
	if title == "" {
		return fmt.Errorf("%w: title is required", errs.ErrValidation)
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return fmt.Errorf("%w: title exceeds %d characters", errs.ErrValidation, maxTitleLen)
	}
	return nil
}

func (s *SessionService) checkProducts(ctx context.Context, ownerID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	owned, err := s.catalog.OwnedProductIDs(ctx, ownerID, ids)
	if err != nil {
		return err
	}
	found := make(map[string]struct{}, len(owned))
	for _, id := range owned {
		found[id] = struct{}{}
	}
	var invalid []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("%w: products not found or not owned by you: %s", errs.ErrValidation, strings.Join(invalid, ", "))
	}
	return nil
}

// checkCategory returns the category id to store; an empty id means none.
func (s *SessionService) checkCategory(ctx context.Context, id *string) (*string, error) {
	if id == nil || *id == "" {
		return nil, nil
	}
	ok, err := s.catalog.CategoryExists(ctx, *id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: category not found: %s", errs.ErrValidation, *id)
	}
	c := *id
	return &c, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// load fetches a session row. Session ids are UUIDs; anything else cannot exist.
func (s *SessionService) load(ctx context.Context, id string) (*model.LiveSession, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errs.ErrSessionNotFound
	}
	return s.store.Get(ctx, id)
}

// Get returns a session by ID.
func (s *SessionService) Get(ctx context.Context, id string) (*model.Session, error) {
	ent, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return model.ToSession(ent), nil
}

// ListActive returns a page of live sessions, newest first.
func (s *SessionService) ListActive(ctx context.Context, page, limit int) (*model.SessionPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	list, total, err := s.store.ListActive(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	out := &model.SessionPage{Data: make([]*model.Session, 0, len(list))}
	for i := range list {
		out.Data = append(out.Data, model.ToSession(&list[i]))
	}
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	out.Meta = model.PageMeta{
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
	return out, nil
}

// owned loads the session and checks callerID owns it before anything else happens.
func (s *SessionService) owned(ctx context.Context, id, callerID string) (*model.LiveSession, error) {
	ent, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if ent.OwnerID != callerID {
		return nil, fmt.Errorf("%w: you can only modify your own streams", errs.ErrPermission)
	}
	return ent, nil
}

// Update changes the mutable fields of a session. Owner only.
func (s *SessionService) Update(ctx context.Context, id, callerID string, req *model.UpdateSessionRequest) (*model.Session, error) {
	if _, err := s.owned(ctx, id, callerID); err != nil {
		return nil, err
	}
	fields := make(map[string]interface{})
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if err := validateTitle(title); err != nil {
			return nil, err
		}
		fields["title"] = title
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.CategoryID != nil {
		categoryID, err := s.checkCategory(ctx, req.CategoryID)
		if err != nil {
			return nil, err
		}
		fields["category_id"] = categoryID
	}
	if req.Visibility != nil {
		v, ok := model.ParseVisibility(*req.Visibility)
		if !ok {
			return nil, fmt.Errorf("%w: unknown visibility %q", errs.ErrValidation, *req.Visibility)
		}
		fields["visibility"] = string(v)
	}
	if err := s.store.Update(ctx, id, fields); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Stop ends a live session: best-effort room deletion, then isLive=false and endedAt=now.
// Room identifiers are kept on the row.
func (s *SessionService) Stop(ctx context.Context, id, callerID string) (*model.Session, error) {
	ent, err := s.owned(ctx, id, callerID)
	if err != nil {
		return nil, err
	}
	if !ent.IsLive {
		return nil, errs.ErrSessionNotLive
	}
	s.deleteRoom(ctx, ent)

	// The room may already be gone: the row has to follow even if the caller left.
	ctx, cancel := detach(ctx)
	defer cancel()
	stopped, err := s.store.MarkStopped(ctx, id, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if !stopped {
		return nil, errs.ErrSessionNotLive
	}
	s.notifyEnded(id)
	s.log.Info("session stopped", zap.String("session_id", id))
	return s.Get(ctx, id)
}

// Remove deletes a session regardless of its live state. Owner only.
func (s *SessionService) Remove(ctx context.Context, id, callerID string) error {
	ent, err := s.owned(ctx, id, callerID)
	if err != nil {
		return err
	}
	s.deleteRoom(ctx, ent)
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.notifyEnded(id)
	s.log.Info("session removed", zap.String("session_id", id))
	return nil
}

func (s *SessionService) deleteRoom(ctx context.Context, ent *model.LiveSession) {
	if ent.RoomName == nil {
		return
	}
	if err := s.rooms.DeleteRoom(ctx, *ent.RoomName); err != nil {
		s.log.Warn("delete room failed",
			zap.String("session_id", ent.ID),
			zap.String("room", *ent.RoomName),
			zap.Error(err))
	}
}

func (s *SessionService) notifyEnded(id string) {
	if s.notifier != nil {
		s.notifier.EndSession(id)
	}
}

func roomOf(ent *model.LiveSession) (string, error) {
	if ent.RoomName == nil || ent.RoomEndpoint == nil || *ent.RoomName == "" || *ent.RoomEndpoint == "" {
		return "", errs.ErrRoomNotConfigured
	}
	return *ent.RoomName, nil
}

// IssueJoinToken mints a credential for an authenticated caller: publisher for the owner,
// subscriber for everyone else.
func (s *SessionService) IssueJoinToken(ctx context.Context, id, requesterID, identity string) (*model.JoinTokenResponse, error) {
	ent, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	room, err := roomOf(ent)
	if err != nil {
		return nil, err
	}
	grant, fallback := roomprovider.SubscriberGrant, "viewer-"+requesterID
	if ent.OwnerID == requesterID {
		grant, fallback = roomprovider.PublisherGrant, "seller-"+requesterID
	}
	if identity == "" {
		identity = fallback
	}
	token, err := s.rooms.MintToken(room, identity, grant, 0)
	if err != nil {
		return nil, err
	}
	media, err := s.rooms.MediaURL()
	if err != nil {
		return nil, err
	}
	return &model.JoinTokenResponse{
		Token:      token,
		LivekitURL: *ent.RoomEndpoint,
		MediaURL:   media,
		RoomName:   room,
	}, nil
}

// IssueViewerToken mints a subscriber-only credential without an authenticated caller.
func (s *SessionService) IssueViewerToken(ctx context.Context, id, identity string) (*model.ViewerTokenResponse, error) {
	ent, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	room, err := roomOf(ent)
	if err != nil {
		return nil, err
	}
	if identity == "" {
		identity = "viewer-" + uuid.New().String()[:8]
	}
	token, err := s.rooms.MintToken(room, identity, roomprovider.SubscriberGrant, 0)
	if err != nil {
		return nil, err
	}
	wsURL, err := s.rooms.WebSocketURL()
	if err != nil {
		return nil, err
	}
	return &model.ViewerTokenResponse{Token: token, WSURL: wsURL, RoomName: room}, nil
}
