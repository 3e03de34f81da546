package service

import (
	"context"

	"github.com/vybekart-ssh/Vybekart-Backend/internal/model"
)

// PinAuthorizer decides whether a connection may pin a product in a session.
type PinAuthorizer interface {
	CanPin(ctx context.Context, p *Peer, sessionID string) bool
}

// AllowAllPins lets any connected participant pin.
type AllowAllPins struct{}

func (AllowAllPins) CanPin(context.Context, *Peer, string) bool { return true }

type sessionGetter interface {
	Get(ctx context.Context, id string) (*model.LiveSession, error)
}

// OwnerOnlyPins lets only the session owner pin. Anonymous connections never can.
type OwnerOnlyPins struct {
	sessions sessionGetter
}

func NewOwnerOnlyPins(sessions sessionGetter) *OwnerOnlyPins {
	return &OwnerOnlyPins{sessions: sessions}
}

func (o *OwnerOnlyPins) CanPin(ctx context.Context, p *Peer, sessionID string) bool {
	if p.UserID == "" {
		return false
	}
	ent, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return false
	}
	return ent.OwnerID == p.UserID
}
