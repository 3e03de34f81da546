// Package roomprovider adapts the external real-time media service (LiveKit):
// room create/delete, signed access credentials and endpoint derivation.
package roomprovider

import (
	"context"
	"time"

	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"go.uber.org/zap"
)

// Grant is the capability pair carried by an access credential.
type Grant struct {
	CanPublish   bool
	CanSubscribe bool
}

var (
	PublisherGrant  = Grant{CanPublish: true, CanSubscribe: true}
	SubscriberGrant = Grant{CanPublish: false, CanSubscribe: true}
)

// Options configures the client. URL, APIKey and APISecret must all be set for
// the client to be usable.
type Options struct {
	URL             string
	APIKey          string
	APISecret       string
	TokenTTL        time.Duration
	EmptyTimeout    time.Duration
	MaxParticipants uint32
	SignalPort      string
	MediaPort       string
}

func (o Options) configured() bool {
	return o.URL != "" && o.APIKey != "" && o.APISecret != ""
}

// roomService is the slice of the LiveKit room API the client needs.
type roomService interface {
	CreateRoom(ctx context.Context, req *livekit.CreateRoomRequest) (*livekit.Room, error)
	DeleteRoom(ctx context.Context, req *livekit.DeleteRoomRequest) (*livekit.DeleteRoomResponse, error)
}

type sdkRoomService struct {
	c *lksdk.RoomServiceClient
}

func (s sdkRoomService) CreateRoom(ctx context.Context, req *livekit.CreateRoomRequest) (*livekit.Room, error) {
	return s.c.CreateRoom(ctx, req)
}

func (s sdkRoomService) DeleteRoom(ctx context.Context, req *livekit.DeleteRoomRequest) (*livekit.DeleteRoomResponse, error) {
	return s.c.DeleteRoom(ctx, req)
}

// Client talks to the room provider. The zero configuration is valid: every
// operation then fails with errs.ErrConfiguration before any network attempt.
type Client struct {
	opts  Options
	rooms roomService
	log   *zap.Logger
}

// NewClient creates a client; the SDK client is only built when credentials are present.
func NewClient(opts Options, log *zap.Logger) *Client {
	c := &Client{opts: opts, log: log}
	if opts.configured() {
		c.rooms = sdkRoomService{c: lksdk.NewRoomServiceClient(opts.URL, opts.APIKey, opts.APISecret)}
	}
	return c
}

// Configured reports whether endpoint and credentials are present.
func (c *Client) Configured() bool {
	return c.opts.configured() && c.rooms != nil
}

// CreateRoom creates the room for a session; metadata is opaque to the provider.
func (c *Client) CreateRoom(ctx context.Context, name, metadata string) error {
	if !c.Configured() {
		return notConfigured("create room")
	}
	_, err := c.rooms.CreateRoom(ctx, &livekit.CreateRoomRequest{
		Name:            name,
		EmptyTimeout:    uint32(c.opts.EmptyTimeout / time.Second),
		MaxParticipants: c.opts.MaxParticipants,
		Metadata:        metadata,
	})
	if err != nil {
		return wrap("create room", err)
	}
	c.log.Info("room created", zap.String("room", name))
	return nil
}

// DeleteRoom deletes a room. A room that is already gone is not an error.
func (c *Client) DeleteRoom(ctx context.Context, name string) error {
	if !c.Configured() {
		return notConfigured("delete room")
	}
	_, err := c.rooms.DeleteRoom(ctx, &livekit.DeleteRoomRequest{Room: name})
	if err == nil {
		c.log.Info("room deleted", zap.String("room", name))
		return nil
	}
	perr := wrap("delete room", err)
	if KindOf(perr) == KindNotFound {
		c.log.Debug("room already gone", zap.String("room", name))
		return nil
	}
	return perr
}

// MintToken signs an access credential for identity in room. ttl <= 0 uses the configured default.
func (c *Client) MintToken(room, identity string, grant Grant, ttl time.Duration) (string, error) {
	if !c.Configured() {
		return "", notConfigured("mint token")
	}
	if ttl <= 0 {
		ttl = c.opts.TokenTTL
	}
	vg := &auth.VideoGrant{RoomJoin: true, Room: room}
	vg.SetCanPublish(grant.CanPublish)
	vg.SetCanSubscribe(grant.CanSubscribe)

	at := auth.NewAccessToken(c.opts.APIKey, c.opts.APISecret)
	at.SetIdentity(identity).
		SetValidFor(ttl).
		SetVideoGrant(vg)
	jwt, err := at.ToJWT()
	if err != nil {
		return "", &Error{Op: "mint token", Kind: KindOther, Err: err}
	}
	return jwt, nil
}

// URL returns the configured http(s) signaling base.
func (c *Client) URL() (string, error) {
	if !c.Configured() {
		return "", notConfigured("url")
	}
	return c.opts.URL, nil
}

// WebSocketURL returns the ws(s) equivalent of the signaling base for browser clients.
func (c *Client) WebSocketURL() (string, error) {
	if !c.Configured() {
		return "", notConfigured("websocket url")
	}
	return websocketURL(c.opts.URL), nil
}

// MediaURL returns the media-plane endpoint (signaling port swapped for the media port).
func (c *Client) MediaURL() (string, error) {
	if !c.Configured() {
		return "", notConfigured("media url")
	}
	return mediaURL(c.opts.URL, c.opts.SignalPort, c.opts.MediaPort), nil
}
