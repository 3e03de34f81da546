package roomprovider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/livekit/protocol/livekit"
	"github.com/twitchtv/twirp"
	"github.com/vybekart-ssh/Vybekart-Backend/internal/errs"
	"go.uber.org/zap"
)

type mockRoomService struct {
	createReqs []*livekit.CreateRoomRequest
	deleteReqs []*livekit.DeleteRoomRequest
	createErr  error
	deleteErr  error
}

func (m *mockRoomService) CreateRoom(_ context.Context, req *livekit.CreateRoomRequest) (*livekit.Room, error) {
	m.createReqs = append(m.createReqs, req)
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &livekit.Room{Name: req.Name}, nil
}

func (m *mockRoomService) DeleteRoom(_ context.Context, req *livekit.DeleteRoomRequest) (*livekit.DeleteRoomResponse, error) {
	m.deleteReqs = append(m.deleteReqs, req)
	if m.deleteErr != nil {
		return nil, m.deleteErr
	}
	return &livekit.DeleteRoomResponse{}, nil
}

func testOptions() Options {
	return Options{
		URL:             "http://localhost:7880",
		APIKey:          "devkey",
		APISecret:       "devsecret-devsecret-devsecret-01",
		TokenTTL:        6 * time.Hour,
		EmptyTimeout:    10 * time.Minute,
		MaxParticipants: 500,
		SignalPort:      "7880",
		MediaPort:       "7881",
	}
}

func newTestClient(rs roomService) *Client {
	return &Client{opts: testOptions(), rooms: rs, log: zap.NewNop()}
}

func connRefused() error {
	return &url.Error{
		Op:  "Post",
		URL: "http://localhost:7880/twirp/livekit.RoomService/CreateRoom",
		Err: &net.OpError{Op: "dial", Net: "tcp", Err: &os.SyscallError{Syscall: "connect", Err: syscall.ECONNREFUSED}},
	}
}

func TestUnconfiguredClientFailsFast(t *testing.T) {
	c := NewClient(Options{URL: "http://localhost:7880"}, zap.NewNop())
	if c.Configured() {
		t.Fatal("expected client without credentials to be unconfigured")
	}
	ctx := context.Background()
	checks := map[string]error{
		"create": c.CreateRoom(ctx, "room", ""),
		"delete": c.DeleteRoom(ctx, "room"),
	}
	_, err := c.MintToken("room", "id", PublisherGrant, 0)
	checks["mint"] = err
	_, err = c.WebSocketURL()
	checks["ws"] = err
	_, err = c.MediaURL()
	checks["media"] = err
	for name, err := range checks {
		if !errors.Is(err, errs.ErrConfiguration) {
			t.Fatalf("%s: expected configuration error, got %v", name, err)
		}
	}
}

func TestCreateRoomSendsRoomSettings(t *testing.T) {
	rs := &mockRoomService{}
	c := newTestClient(rs)
	if err := c.CreateRoom(context.Background(), "session-1", `{"title":"t"}`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rs.createReqs) != 1 {
		t.Fatalf("expected 1 create call, got %d", len(rs.createReqs))
	}
	req := rs.createReqs[0]
	if req.Name != "session-1" || req.Metadata != `{"title":"t"}` {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.EmptyTimeout != 600 || req.MaxParticipants != 500 {
		t.Fatalf("unexpected room limits: timeout=%d max=%d", req.EmptyTimeout, req.MaxParticipants)
	}
}

func TestCreateRoomClassifiesFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "connection refused", err: connRefused(), want: KindUnreachable},
		{name: "wrapped by twirp", err: twirp.InternalErrorWith(connRefused()), want: KindUnreachable},
		{name: "dns", err: &net.DNSError{Err: "no such host", Name: "livekit.invalid", IsNotFound: true}, want: KindUnreachable},
		{name: "twirp unavailable", err: twirp.NewError(twirp.Unavailable, "down"), want: KindUnreachable},
		{name: "deadline", err: context.DeadlineExceeded, want: KindUnreachable},
		{name: "twirp internal", err: twirp.NewError(twirp.Internal, "boom"), want: KindOther},
		{name: "permission", err: twirp.NewError(twirp.PermissionDenied, "bad key"), want: KindOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(&mockRoomService{createErr: tt.err})
			err := c.CreateRoom(context.Background(), "room", "")
			if err == nil {
				t.Fatal("expected error")
			}
			if got := KindOf(err); got != tt.want {
				t.Fatalf("expected %s, got %s (%v)", tt.want, got, err)
			}
		})
	}
}

func TestDeleteRoomToleratesAlreadyGone(t *testing.T) {
	rs := &mockRoomService{deleteErr: twirp.NewError(twirp.NotFound, "room not found")}
	c := newTestClient(rs)
	if err := c.DeleteRoom(context.Background(), "gone"); err != nil {
		t.Fatalf("expected nil for missing room, got %v", err)
	}
	if len(rs.deleteReqs) != 1 || rs.deleteReqs[0].Room != "gone" {
		t.Fatalf("unexpected delete calls: %+v", rs.deleteReqs)
	}
}

func TestDeleteRoomReportsOtherFailures(t *testing.T) {
	c := newTestClient(&mockRoomService{deleteErr: connRefused()})
	err := c.DeleteRoom(context.Background(), "room")
	if !IsUnreachable(err) {
		t.Fatalf("expected unreachable error, got %v", err)
	}
}

type tokenClaims struct {
	Sub   string `json:"sub"`
	Exp   int64  `json:"exp"`
	Video struct {
		RoomJoin     bool   `json:"roomJoin"`
		Room         string `json:"room"`
		CanPublish   *bool  `json:"canPublish"`
		CanSubscribe *bool  `json:"canSubscribe"`
	} `json:"video"`
}

func decodeClaims(t *testing.T, jwt string) tokenClaims {
	t.Helper()
	parts := strings.Split(jwt, ".")
	if len(parts) != 3 {
		t.Fatalf("expected 3 jwt parts, got %d", len(parts))
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	var c tokenClaims
	if err := json.Unmarshal(raw, &c); err != nil {
		t.Fatalf("unmarshal claims: %v", err)
	}
	return c
}

func TestMintTokenEncodesGrant(t *testing.T) {
	c := newTestClient(&mockRoomService{})
	tests := []struct {
		name  string
		grant Grant
	}{
		{name: "publisher", grant: PublisherGrant},
		{name: "subscriber", grant: SubscriberGrant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jwt, err := c.MintToken("session-1", "seller-u1", tt.grant, time.Hour)
			if err != nil {
				t.Fatalf("mint: %v", err)
			}
			claims := decodeClaims(t, jwt)
			if claims.Sub != "seller-u1" {
				t.Fatalf("unexpected identity %q", claims.Sub)
			}
			if !claims.Video.RoomJoin || claims.Video.Room != "session-1" {
				t.Fatalf("unexpected video grant: %+v", claims.Video)
			}
			if claims.Video.CanPublish == nil || *claims.Video.CanPublish != tt.grant.CanPublish {
				t.Fatalf("unexpected canPublish: %v", claims.Video.CanPublish)
			}
			if claims.Video.CanSubscribe == nil || *claims.Video.CanSubscribe != tt.grant.CanSubscribe {
				t.Fatalf("unexpected canSubscribe: %v", claims.Video.CanSubscribe)
			}
			ttl := time.Until(time.Unix(claims.Exp, 0))
			if ttl <= 50*time.Minute || ttl > time.Hour+time.Minute {
				t.Fatalf("unexpected expiry in %s", ttl)
			}
		})
	}
}

func TestURLDerivation(t *testing.T) {
	tests := []struct {
		base      string
		wantWS    string
		wantMedia string
	}{
		{base: "http://localhost:7880", wantWS: "ws://localhost:7880", wantMedia: "http://localhost:7881"},
		{base: "https://live.example.com", wantWS: "wss://live.example.com", wantMedia: "https://live.example.com"},
		{base: "https://live.example.com:7880/rtc", wantWS: "wss://live.example.com:7880/rtc", wantMedia: "https://live.example.com:7881/rtc"},
		{base: "wss://already.example.com", wantWS: "wss://already.example.com", wantMedia: "wss://already.example.com"},
	}
	for _, tt := range tests {
		opts := testOptions()
		opts.URL = tt.base
		c := &Client{opts: opts, rooms: &mockRoomService{}, log: zap.NewNop()}
		ws, err := c.WebSocketURL()
		if err != nil || ws != tt.wantWS {
			t.Fatalf("%s: websocket url = %q, %v; want %q", tt.base, ws, err, tt.wantWS)
		}
		media, err := c.MediaURL()
		if err != nil || media != tt.wantMedia {
			t.Fatalf("%s: media url = %q, %v; want %q", tt.base, media, err, tt.wantMedia)
		}
		base, err := c.URL()
		if err != nil || base != tt.base {
			t.Fatalf("%s: url = %q, %v", tt.base, base, err)
		}
	}
}
