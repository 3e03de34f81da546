package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/vybekart-ssh/Vybekart-Backend/internal/handler"
	"github.com/vybekart-ssh/Vybekart-Backend/internal/model"
	"github.com/vybekart-ssh/Vybekart-Backend/internal/presence"
	"github.com/vybekart-ssh/Vybekart-Backend/internal/repository"
	"github.com/vybekart-ssh/Vybekart-Backend/internal/roomprovider"
	"github.com/vybekart-ssh/Vybekart-Backend/internal/service"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type stubRooms struct {
	mu      sync.Mutex
	created []string
	deleted []string
}

func (s *stubRooms) Configured() bool { return true }

func (s *stubRooms) CreateRoom(_ context.Context, name, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, name)
	return nil
}

func (s *stubRooms) DeleteRoom(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, name)
	return nil
}

func (s *stubRooms) MintToken(room, identity string, grant roomprovider.Grant, _ time.Duration) (string, error) {
	role := "sub"
	if grant.CanPublish {
		role = "pub"
	}
	return role + ":" + room + ":" + identity, nil
}

func (s *stubRooms) URL() (string, error)          { return "http://lk.test:7880", nil }
func (s *stubRooms) WebSocketURL() (string, error) { return "ws://lk.test:7880", nil }
func (s *stubRooms) MediaURL() (string, error)     { return "http://lk.test:7881", nil }

func newTestServer(t *testing.T) (*httptest.Server, *stubRooms) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(&model.Category{}, &model.Product{}, &model.LiveSession{}, &model.SessionProduct{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.Create(&model.Product{ID: "p1", OwnerID: "seller-s", Name: "Glazed mug", Price: 2400}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	log := zap.NewNop()
	rooms := &stubRooms{}
	sessions := repository.NewSessionRepository(db)
	hub := service.NewStreamHub(presence.NewTracker(presence.NewMemoryStore()), service.HubOptions{}, log)
	svc := service.NewSessionService(sessions, repository.NewCatalogRepository(db), rooms, hub, &service.WSConfig{}, log)

	r := New(
		handler.NewSessionHandler(svc, log),
		handler.NewStreamWSHandler(hub, log),
		handler.NewHealthHandler(nil),
		handler.NewIPRateLimiter(60, 10),
	)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, rooms
}

func call(t *testing.T, srv *httptest.Server, method, path, body, userID, role string) (int, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(handler.HeaderUserID, userID)
		req.Header.Set(handler.HeaderUserRole, role)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func readEvent(t *testing.T, conn *websocket.Conn) (string, map[string]interface{}) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env service.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	var data map[string]interface{}
	_ = json.Unmarshal(env.Data, &data)
	return env.Event, data
}

func TestLiveSessionEndToEnd(t *testing.T) {
	srv, rooms := newTestServer(t)

	code, created := call(t, srv, http.MethodPost, "/streams", `{"title":"Studio sale","productIds":["p1"]}`, "seller-s", "SELLER")
	if code != http.StatusCreated {
		t.Fatalf("create: %d %v", code, created)
	}
	id, _ := created["id"].(string)
	if id == "" || created["token"] != "pub:"+id+":seller-seller-s" || created["gatewayUrl"] != "/ws/streams" {
		t.Fatalf("unexpected create response: %v", created)
	}
	if products, _ := created["products"].([]interface{}); len(products) != 1 {
		t.Fatalf("expected one pinned product, got %v", created["products"])
	}

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/streams"
	viewer, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer viewer.Close()

	join, _ := json.Marshal(map[string]string{"sessionId": id})
	_ = viewer.WriteJSON(service.Envelope{Event: service.EventJoinRoom, Data: join})
	if ev, data := readEvent(t, viewer); ev != service.EventViewerCount || data["count"] != float64(1) {
		t.Fatalf("expected viewer_count 1, got %s %v", ev, data)
	}

	chat, _ := json.Marshal(map[string]string{"sessionId": id, "message": "hi"})
	_ = viewer.WriteJSON(service.Envelope{Event: service.EventChatMessage, Data: chat})
	if ev, data := readEvent(t, viewer); ev != service.EventNewMessage || data["message"] != "hi" || data["senderName"] != "Anonymous" {
		t.Fatalf("expected chat echo, got %s %v", ev, data)
	}

	code, tok := call(t, srv, http.MethodPost, "/streams/"+id+"/token", "", "buyer-b", "BUYER")
	if code != http.StatusOK || tok["token"] != "sub:"+id+":viewer-buyer-b" || tok["mediaUrl"] != "http://lk.test:7881" {
		t.Fatalf("join token: %d %v", code, tok)
	}

	if code, _ := call(t, srv, http.MethodPatch, "/streams/"+id+"/stop", "", "buyer-b", "BUYER"); code != http.StatusForbidden {
		t.Fatalf("stop by non-owner: expected 403, got %d", code)
	}
	code, stopped := call(t, srv, http.MethodPatch, "/streams/"+id+"/stop", "", "seller-s", "SELLER")
	if code != http.StatusOK || stopped["isLive"] != false || stopped["endedAt"] == nil {
		t.Fatalf("stop: %d %v", code, stopped)
	}
	if len(rooms.deleted) != 1 || rooms.deleted[0] != id {
		t.Fatalf("expected room deletion, got %v", rooms.deleted)
	}
	if ev, data := readEvent(t, viewer); ev != service.EventStreamEnded || data["sessionId"] != id {
		t.Fatalf("expected stream_ended, got %s %v", ev, data)
	}

	if code, _ := call(t, srv, http.MethodPatch, "/streams/"+id+"/stop", "", "seller-s", "SELLER"); code != http.StatusBadRequest {
		t.Fatalf("second stop: expected 400, got %d", code)
	}
	code, page := call(t, srv, http.MethodGet, "/streams/active", "", "", "")
	if meta, _ := page["meta"].(map[string]interface{}); code != http.StatusOK || meta["total"] != float64(0) {
		t.Fatalf("active after stop: %d %v", code, page)
	}
}

func TestCreateRejectsForeignProduct(t *testing.T) {
	srv, rooms := newTestServer(t)
	code, body := call(t, srv, http.MethodPost, "/streams", `{"title":"Not mine","productIds":["p1","p2"]}`, "seller-x", "SELLER")
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %v", code, body)
	}
	if msg, _ := body["error"].(string); !strings.Contains(msg, "p1") || !strings.Contains(msg, "p2") {
		t.Fatalf("expected both ids in error, got %q", msg)
	}
	if len(rooms.created) != 0 {
		t.Fatal("room provider must not be called")
	}
	_, page := call(t, srv, http.MethodGet, "/streams/active", "", "", "")
	if meta, _ := page["meta"].(map[string]interface{}); meta["total"] != float64(0) {
		t.Fatalf("expected no sessions, got %v", page)
	}
}

func TestUnknownStream(t *testing.T) {
	srv, _ := newTestServer(t)
	if code, _ := call(t, srv, http.MethodGet, "/streams/00000000-0000-0000-0000-000000000000", "", "", ""); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
	if code, _ := call(t, srv, http.MethodGet, "/streams/nope/viewer-token", "", "", ""); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}
