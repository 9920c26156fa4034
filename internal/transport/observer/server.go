// Package observer streams meshed chunks to websocket viewers. Its Server is
// the world's Renderer: a chunk's render group is its encoded CHUNK_ADD message.
package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"infinitus.ai/internal/observerproto"
	"infinitus.ai/internal/sim/encoding"
	"infinitus.ai/internal/sim/world"
	"infinitus.ai/internal/sim/world/chunk"
	"infinitus.ai/internal/sim/world/voxel"
)

type Server struct {
	log *log.Logger

	world atomic.Pointer[world.World]

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	// FrameEvery sends a FRAME message every n frames (0 disables).
	FrameEvery uint64

	// AllowRemote accepts non-loopback clients.
	AllowRemote bool

	mu     sync.Mutex
	subs   map[string]*subscriber
	groups map[[3]int]*group

	dropped atomic.Uint64
}

// group is the render group of one chunk.
type group struct {
	full []byte // CHUNK_ADD with materials
	lite []byte // CHUNK_ADD without materials
}

type subscriber struct {
	id        string
	out       chan []byte
	materials bool
}

func NewServer(logger *log.Logger) *Server {
	return &Server{
		log:        logger,
		FrameEvery: 1,
		subs:       map[string]*subscriber{},
		groups:     map[[3]int]*group{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Attach sets the world served by the bootstrap endpoint.
func (s *Server) Attach(w *world.World) { s.world.Store(w) }

func key(c *chunk.Chunk) [3]int {
	p := c.Position()
	return [3]int{p.X, p.Y, p.Z}
}

// AddChunk encodes c and fans it out. Called under the world's render lock.
func (s *Server) AddChunk(c *chunk.Chunk) {
	msg := observerproto.ChunkAddMsg{
		Type:            "CHUNK_ADD",
		ProtocolVersion: observerproto.Version,
		Chunk:           key(c),
		Size:            c.Size(),
		Digest:          fmt.Sprintf("%016x", c.Digest()),
	}
	if m := c.Mesh(); m != nil {
		msg.Quads = len(m.Quads)
		msg.Faces = m.CountByFace()
	}
	lite, err := json.Marshal(msg)
	if err != nil {
		s.printf("observer: encode chunk %v: %v", msg.Chunk, err)
		return
	}
	msg.Encoding = observerproto.EncodingRLE
	msg.Materials = encoding.EncodeBytesRLE(c.Bytes())
	full, err := json.Marshal(msg)
	if err != nil {
		s.printf("observer: encode chunk %v: %v", msg.Chunk, err)
		return
	}

	g := &group{full: full, lite: lite}
	c.SetRenderGroups(g)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[msg.Chunk] = g
	for _, sub := range s.subs {
		s.sendLocked(sub, g.pick(sub.materials))
	}
}

// RemoveChunk drops the render group of c. Called under the world's render lock.
func (s *Server) RemoveChunk(c *chunk.Chunk) {
	if c.RenderGroups() == nil {
		return
	}
	c.SetRenderGroups(nil)
	k := key(c)
	b, _ := json.Marshal(observerproto.ChunkRemoveMsg{
		Type:            "CHUNK_REMOVE",
		ProtocolVersion: observerproto.Version,
		Chunk:           k,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.groups, k)
	for _, sub := range s.subs {
		s.sendLocked(sub, b)
	}
}

// WriteFrame broadcasts a FRAME message. It lets the server sit among the world's frame loggers.
func (s *Server) WriteFrame(e world.FrameLogEntry) error {
	if s.FrameEvery == 0 || e.Frame%s.FrameEvery != 0 {
		return nil
	}
	b, err := json.Marshal(observerproto.FrameMsg{
		Type:            "FRAME",
		ProtocolVersion: observerproto.Version,
		Frame:           e.Frame,
		ObserverChunk:   e.ObserverChunk,
		Loaded:          e.Loaded,
		PendingLoad:     e.PendingLoad,
		PendingUnload:   e.PendingUnload,
		Populated:       e.Populated,
		Meshed:          e.Meshed,
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		s.sendLocked(sub, b)
	}
	return nil
}

func (g *group) pick(materials bool) []byte {
	if materials {
		return g.full
	}
	return g.lite
}

// sendLocked never blocks. A subscriber that falls behind loses messages.
func (s *Server) sendLocked(sub *subscriber, b []byte) {
	select {
	case sub.out <- b:
	default:
		s.dropped.Add(1)
	}
}

// Groups reports how many chunks currently have a render group.
func (s *Server) Groups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.groups)
}

func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Server) Dropped() uint64 { return s.dropped.Load() }

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.AllowRemote && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		w := s.world.Load()
		if w == nil {
			rw.Header().Set("Content-Type", "application/json")
			rw.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(rw).Encode(observerproto.NewError(observerproto.ErrNotReady, "world not attached"))
			return
		}

		tune := w.Tuning()
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			Frame:           w.Frame(),
			WorldParams: observerproto.WorldParams{
				FrameRateHz:    tune.FrameRateHz,
				ChunkSize:      w.ChunkSize(),
				Seed:           w.Seed(),
				RenderDistance: [2]int{tune.RenderDistance.Horizontal, tune.RenderDistance.Vertical},
				LoadDistance:   [2]int{tune.LoadDistance.Horizontal, tune.LoadDistance.Vertical},
			},
			Palette: voxel.Palette(),
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.AllowRemote && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, code := parseSubscribe(msg)
		if code != "" {
			b, _ := json.Marshal(observerproto.NewError(code, "expected SUBSCRIBE "+observerproto.Version))
			_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
			_ = conn.WriteMessage(websocket.TextMessage, b)
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, code), time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		out := s.join(sid, sub)
		defer s.leave(sid)
		s.printf("observer %s subscribed max_chunks=%d materials=%v", sid, sub.MaxChunks, sub.Materials)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if upd, code := parseSubscribe(msg); code == "" {
				s.update(sid, upd)
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// join registers a subscriber and queues the current render groups, nearest
// coordinates first, up to MaxChunks.
func (s *Server) join(id string, sub observerproto.SubscribeMsg) chan []byte {
	out := make(chan []byte, sub.MaxChunks+256)

	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([][3]int, 0, len(s.groups))
	for k := range s.groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return dist2(keys[i]) < dist2(keys[j]) })
	if len(keys) > sub.MaxChunks {
		keys = keys[:sub.MaxChunks]
	}
	for _, k := range keys {
		out <- s.groups[k].pick(sub.Materials)
	}
	s.subs[id] = &subscriber{id: id, out: out, materials: sub.Materials}
	return out
}

func (s *Server) update(id string, sub observerproto.SubscribeMsg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur := s.subs[id]; cur != nil {
		cur.materials = sub.Materials
	}
}

func (s *Server) leave(id string) {
	s.mu.Lock()
	delete(s.subs, id)
	s.mu.Unlock()
	s.printf("observer %s left", id)
}

func dist2(k [3]int) int { return k[0]*k[0] + k[1]*k[1] + k[2]*k[2] }

// parseSubscribe returns an error code when msg is not an acceptable SUBSCRIBE.
func parseSubscribe(msg []byte) (observerproto.SubscribeMsg, string) {
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil || sub.Type != "SUBSCRIBE" {
		return sub, observerproto.ErrProtoBadRequest
	}
	if sub.ProtocolVersion != observerproto.Version {
		return sub, observerproto.ErrProtoVersion
	}
	normalizeSubscribe(&sub)
	return sub, ""
}

func normalizeSubscribe(sub *observerproto.SubscribeMsg) {
	if sub.MaxChunks <= 0 {
		sub.MaxChunks = 1024
	}
	if sub.MaxChunks > 16384 {
		sub.MaxChunks = 16384
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) printf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}
