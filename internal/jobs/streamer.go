package jobs

import (
	"sync"

	"github.com/gorilla/websocket"
)

// ProgressStreamer fans the external tool's progress lines out to websocket
// subscribers watching a job.
type ProgressStreamer struct {
	mu          sync.RWMutex
	subscribers map[string][]*websocket.Conn
}

func NewProgressStreamer() *ProgressStreamer {
	return &ProgressStreamer{subscribers: make(map[string][]*websocket.Conn)}
}

func (ps *ProgressStreamer) Subscribe(jobID string, conn *websocket.Conn) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.subscribers[jobID] = append(ps.subscribers[jobID], conn)
}

func (ps *ProgressStreamer) Unsubscribe(jobID string, conn *websocket.Conn) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	subs := ps.subscribers[jobID]
	for i, s := range subs {
		if s == conn {
			ps.subscribers[jobID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

// Broadcast sends one progress line to every subscriber of the job. Write
// failures are ignored; a dead connection is detached by its own read loop.
func (ps *ProgressStreamer) Broadcast(jobID string, message []byte) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	for _, conn := range ps.subscribers[jobID] {
		_ = conn.WriteMessage(websocket.TextMessage, message)
	}
}

// Close drops every subscriber of a job once it reaches a terminal state.
func (ps *ProgressStreamer) Close(jobID string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	for _, conn := range ps.subscribers[jobID] {
		conn.Close()
	}
	delete(ps.subscribers, jobID)
}
