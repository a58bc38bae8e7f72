package handlers

import (
	"sort"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/apache/bigtop-manager-sub000/internal/domain"
	"github.com/apache/bigtop-manager-sub000/internal/infrastructure/logger"
)

const (
	ProgressMessageUpdate = "progress"
	ProgressMessageClose  = "close"

	subscriberBuffer = 64
)

// ProgressMessage is pushed to every connected browser.
type ProgressMessage struct {
	Type  string                   `json:"type"`
	JobID uint                     `json:"job_id"`
	Entry *domain.JobProgressEntry `json:"entry,omitempty"`
}

type closer struct {
	timer *time.Timer
}

type subscriber struct {
	send chan ProgressMessage
}

// ProgressHub keeps the displayed progress entries and fans them out over
// websockets. It implements ports.Notifier.
type ProgressHub struct {
	mu      sync.Mutex
	subs    map[*subscriber]struct{}
	entries map[uint]domain.JobProgressEntry
	closers map[uint]*closer
	logger  *logger.Logger
}

func NewProgressHub(log *logger.Logger) *ProgressHub {
	if log == nil {
		log = logger.NewNop()
	}
	return &ProgressHub{
		subs:    make(map[*subscriber]struct{}),
		entries: make(map[uint]domain.JobProgressEntry),
		closers: make(map[uint]*closer),
		logger:  log.Named("progress_hub"),
	}
}

func (h *ProgressHub) Publish(entry domain.JobProgressEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// a job that was retried after its close was scheduled stays on screen
	if cl, ok := h.closers[entry.JobID]; ok && entry.Status != domain.JobStatusSuccess {
		cl.timer.Stop()
		delete(h.closers, entry.JobID)
	}
	h.entries[entry.JobID] = entry
	e := entry
	h.broadcastLocked(ProgressMessage{Type: ProgressMessageUpdate, JobID: entry.JobID, Entry: &e})
}

// Close removes the entry for jobID after delay; a non-positive delay closes immediately.
func (h *ProgressHub) Close(jobID uint, delay time.Duration) {
	if delay <= 0 {
		h.closeNow(jobID, nil)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if cl, ok := h.closers[jobID]; ok {
		cl.timer.Stop()
	}
	cl := &closer{}
	cl.timer = time.AfterFunc(delay, func() { h.closeNow(jobID, cl) })
	h.closers[jobID] = cl
}

// closeNow drops the entry. A scheduled close only applies while it is still the current one.
func (h *ProgressHub) closeNow(jobID uint, owner *closer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cl, ok := h.closers[jobID]; ok {
		if owner != nil && cl != owner {
			return
		}
		cl.timer.Stop()
		delete(h.closers, jobID)
	} else if owner != nil {
		return
	}
	if _, ok := h.entries[jobID]; !ok {
		return
	}
	delete(h.entries, jobID)
	h.broadcastLocked(ProgressMessage{Type: ProgressMessageClose, JobID: jobID})
}

// Entries returns the entries currently on display, ordered by job id.
func (h *ProgressHub) Entries() []domain.JobProgressEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entriesLocked()
}

func (h *ProgressHub) entriesLocked() []domain.JobProgressEntry {
	out := make([]domain.JobProgressEntry, 0, len(h.entries))
	for _, e := range h.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobID < out[j].JobID })
	return out
}

func (h *ProgressHub) broadcastLocked(msg ProgressMessage) {
	for sub := range h.subs {
		select {
		case sub.send <- msg:
		default:
			h.logger.Warnw("progress_hub_subscriber_lagging", "job_id", msg.JobID, "type", msg.Type)
		}
	}
}

func (h *ProgressHub) subscribe() *subscriber {
	sub := &subscriber{send: make(chan ProgressMessage, subscriberBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range h.entriesLocked() {
		e := e
		select {
		case sub.send <- ProgressMessage{Type: ProgressMessageUpdate, JobID: e.JobID, Entry: &e}:
		default:
		}
	}
	h.subs[sub] = struct{}{}
	return sub
}

func (h *ProgressHub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

// Handle streams progress messages to one websocket client until it disconnects.
func (h *ProgressHub) Handle(c *websocket.Conn) {
	sub := h.subscribe()
	defer h.unsubscribe(sub)
	h.logger.Infow("progress_hub_client_connected", "remote", c.RemoteAddr().String())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			h.logger.Infow("progress_hub_client_disconnected")
			return
		case msg := <-sub.send:
			if err := c.WriteJSON(msg); err != nil {
				h.logger.Warnw("progress_hub_write_failed", "error", err)
				return
			}
		}
	}
}
