package observer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"infinitus.ai/internal/observerproto"
	"infinitus.ai/internal/sim/encoding"
	"infinitus.ai/internal/sim/tuning"
	"infinitus.ai/internal/sim/world"
	"infinitus.ai/internal/sim/world/chunk"
	"infinitus.ai/internal/sim/world/cull"
	"infinitus.ai/internal/sim/world/logic/mathx"
	"infinitus.ai/internal/sim/world/voxel"
)

func meshedChunk(t *testing.T, a *chunk.Arena, pos mathx.Vec3i) *chunk.Chunk {
	t.Helper()
	c := a.New(pos)
	c.SetMaterial(mathx.Vec3i{X: 1, Y: 1, Z: 1}, voxel.Stone)
	cull.Chunk(c, nil)
	c.CreateMesh()
	return c
}

func dial(t *testing.T, srv *httptest.Server, sub observerproto.SubscribeMsg) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	return conn
}

func read(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("json: %v", err)
	}
	return m
}

func waitSubscribers(t *testing.T, s *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for s.Subscribers() != n {
		if time.Now().After(deadline) {
			t.Fatalf("subscribers=%d want %d", s.Subscribers(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func newMux(s *Server) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/observer/bootstrap", s.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", s.WSHandler())
	return mux
}

func TestBootstrap(t *testing.T) {
	s := NewServer(nil)
	srv := httptest.NewServer(newMux(s))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/observer/bootstrap")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status before attach=%d", resp.StatusCode)
	}

	tu := tuning.Defaults()
	tu.ChunkSize = 16
	w, err := world.New(world.Config{Seed: 77, Tuning: tu, Renderer: s})
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	defer w.Close()
	s.Attach(w)

	resp, err = http.Get(srv.URL + "/v1/observer/bootstrap")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var boot observerproto.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&boot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if boot.ProtocolVersion != observerproto.Version || boot.WorldParams.ChunkSize != 16 || boot.WorldParams.Seed != 77 {
		t.Fatalf("bootstrap=%+v", boot)
	}
	if len(boot.Palette) != int(voxel.Materials) || boot.Palette[0] != "AIR" {
		t.Fatalf("palette=%v", boot.Palette)
	}
}

func TestWSReplayAndLiveUpdates(t *testing.T) {
	s := NewServer(nil)
	srv := httptest.NewServer(newMux(s))
	defer srv.Close()

	a, _ := chunk.NewArena(8)
	first := meshedChunk(t, a, mathx.Vec3i{X: 2})
	s.AddChunk(first)
	if s.Groups() != 1 || first.RenderGroups() == nil {
		t.Fatalf("render group not created")
	}

	conn := dial(t, srv, observerproto.SubscribeMsg{Type: "SUBSCRIBE", ProtocolVersion: observerproto.Version, Materials: true})
	defer conn.Close()

	m := read(t, conn)
	if m["type"] != "CHUNK_ADD" || m["quads"].(float64) != 6 {
		t.Fatalf("replay=%v", m)
	}
	mats, err := encoding.DecodeRLE(m["materials"].(string), 8*8*8)
	if err != nil || len(mats) != 8*8*8 || mats[first.Index(mathx.Vec3i{X: 1, Y: 1, Z: 1})] != voxel.Stone {
		t.Fatalf("materials len=%d err=%v", len(mats), err)
	}
	waitSubscribers(t, s, 1)

	second := meshedChunk(t, a, mathx.Vec3i{Z: -1})
	s.AddChunk(second)
	m = read(t, conn)
	coord := m["chunk"].([]any)
	if m["type"] != "CHUNK_ADD" || coord[2].(float64) != -1 {
		t.Fatalf("live add=%v", m)
	}

	s.RemoveChunk(first)
	m = read(t, conn)
	if m["type"] != "CHUNK_REMOVE" || m["chunk"].([]any)[0].(float64) != 2 {
		t.Fatalf("remove=%v", m)
	}
	if s.Groups() != 1 || first.RenderGroups() != nil {
		t.Fatalf("render group not released")
	}

	if err := s.WriteFrame(world.FrameLogEntry{Frame: 4, Loaded: 9}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	m = read(t, conn)
	if m["type"] != "FRAME" || m["loaded"].(float64) != 9 {
		t.Fatalf("frame=%v", m)
	}

	conn.Close()
	waitSubscribers(t, s, 0)
}

func TestWSRejectsBadHandshake(t *testing.T) {
	s := NewServer(nil)
	srv := httptest.NewServer(newMux(s))
	defer srv.Close()

	conn := dial(t, srv, observerproto.SubscribeMsg{Type: "SUBSCRIBE", ProtocolVersion: "9.9"})
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read error message: %v", err)
	}
	var e observerproto.ErrorMsg
	if err := json.Unmarshal(b, &e); err != nil || e.Type != "ERROR" || e.Code != observerproto.ErrProtoVersion {
		t.Fatalf("error message=%s err=%v", b, err)
	}
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

func TestServerAsWorldRenderer(t *testing.T) {
	s := NewServer(nil)
	tu := tuning.Defaults()
	tu.ChunkSize = 16
	tu.Threads = 2
	tu.LoadDistance = tuning.Radius{Horizontal: 1, Vertical: 1}
	tu.LoadsPerFrame = 27
	tu.RenderAddRate = 4
	w, err := world.New(world.Config{Seed: 3, Tuning: tu, Renderer: s})
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	s.Attach(w)

	for i := 0; i < 5000 && s.Groups() < 27; i++ {
		w.Update()
		time.Sleep(time.Millisecond)
	}
	if s.Groups() != 27 {
		t.Fatalf("groups=%d want 27", s.Groups())
	}
	w.Close()
	if s.Groups() != 0 {
		t.Fatalf("groups after close=%d", s.Groups())
	}
}
