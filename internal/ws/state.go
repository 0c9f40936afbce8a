// Package ws exposes the running simulation over HTTP: a WebSocket stream
// of normal-map frames plus a health endpoint. It implements the
// simulation's output-surface interface so it can be fanned out beside the
// on-screen viewer.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"waveletsim/internal/sim"
)

const writeDeadline = 200 * time.Millisecond

// State tracks connected preview clients and the latest published frame.
type State struct {
	mu        sync.RWMutex
	clients   map[*websocket.Conn]bool
	rgba      []byte
	width     int
	height    int
	frameID   uint64
	startTime time.Time
	stats     sim.Stats
}

func NewState() *State {
	return &State{
		clients:   map[*websocket.Conn]bool{},
		startTime: time.Now(),
	}
}

// Publish encodes the normal field as RGBA bytes and broadcasts it. It
// satisfies sim.Surface.
func (s *State) Publish(n *sim.NormalField) error {
	s.mu.Lock()
	if len(s.rgba) != 4*n.Width*n.Height {
		s.rgba = make([]byte, 4*n.Width*n.Height)
	}
	EncodeNormals(n, s.rgba)
	s.width = n.Width
	s.height = n.Height
	s.frameID++
	frame := append([]byte(nil), s.rgba...)
	id := s.frameID
	s.mu.Unlock()

	s.broadcastFrame(id, n.Width, n.Height, frame)
	return nil
}

// SetStats records the latest frame summary for the health endpoint.
func (s *State) SetStats(stats sim.Stats) {
	s.mu.Lock()
	s.stats = stats
	s.mu.Unlock()
}

// EncodeNormals packs unit normals into RGBA bytes with the usual
// [-1,1] -> [0,255] normal-map mapping.
func EncodeNormals(n *sim.NormalField, dst []byte) {
	for i := 0; i < n.Width*n.Height; i++ {
		dst[4*i] = byte((n.Data[3*i]*0.5 + 0.5) * 255)
		dst[4*i+1] = byte((n.Data[3*i+1]*0.5 + 0.5) * 255)
		dst[4*i+2] = byte((n.Data[3*i+2]*0.5 + 0.5) * 255)
		dst[4*i+3] = 255
	}
}

// HandleFramesWS subscribes a client to the frame stream.
func (s *State) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()
	log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("preview client connected")

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.clients, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// HandleHealth reports frame progress and the last stats snapshot.
func (s *State) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resp := map[string]any{
		"frame_id":     s.frameID,
		"uptime_s":     time.Since(s.startTime).Seconds(),
		"width":        s.width,
		"height":       s.height,
		"sim_frame":    s.stats.Frame,
		"sim_time_s":   s.stats.Elapsed,
		"total_energy": s.stats.TotalEnergy,
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *State) broadcastFrame(id uint64, width, height int, rgba []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.clients) == 0 {
		return
	}
	type frame struct {
		T       int64  `json:"t"`
		FrameID uint64 `json:"frame_id"`
		Width   int    `json:"width"`
		Height  int    `json:"height"`
		RGBA    []byte `json:"rgba"`
	}
	b, _ := json.Marshal(frame{
		T: time.Now().UnixNano(), FrameID: id, Width: width, Height: height, RGBA: rgba,
	})
	for c := range s.clients {
		c.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			log.Debug().Err(err).Msg("write frame")
		}
	}
}
