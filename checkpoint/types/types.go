package types

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Entry describes one source file that was fully decompressed.
type Entry struct {
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	ModTime     time.Time `json:"mod_time"`
	Output      string    `json:"output,omitempty"`
	Members     int       `json:"members"`
	Written     int64     `json:"written"`
	CompletedAt time.Time `json:"completed_at"`
}

// Checkpoint contains checkpoint info
type Checkpoint struct {
	StartedAt   time.Time         `json:"started_at"`
	LastUpdated time.Time         `json:"last_updated"`
	Completed   map[string]*Entry `json:"completed"`

	mu sync.Mutex
}

func New() *Checkpoint {
	now := time.Now().UTC()

	return &Checkpoint{
		StartedAt:   now,
		LastUpdated: now,
		Completed:   make(map[string]*Entry),
	}
}

func Unmarshal(data []byte) (*Checkpoint, error) {
	cp := &Checkpoint{}

	if err := json.Unmarshal(data, cp); err != nil {
		return nil, errors.Wrap(err, "unable to unmarshal checkpoint")
	}

	if cp.Completed == nil {
		cp.Completed = make(map[string]*Entry)
	}

	return cp, nil
}

func (cp *Checkpoint) Marshal() ([]byte, error) {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "unable to marshal checkpoint")
	}

	return data, nil
}

// IsDone reports whether path was completed while it had the given size and
// modification time. A source that changed since is not done.
func (cp *Checkpoint) IsDone(path string, size int64, modTime time.Time) bool {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	e, ok := cp.Completed[path]
	if !ok {
		return false
	}

	return e.Size == size && e.ModTime.Equal(modTime)
}

func (cp *Checkpoint) MarkDone(e *Entry) {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	if e.CompletedAt.IsZero() {
		e.CompletedAt = time.Now().UTC()
	}

	cp.Completed[e.Path] = e
	cp.LastUpdated = e.CompletedAt
}

func (cp *Checkpoint) Len() int {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	return len(cp.Completed)
}
