// Package session tracks per-viewer block preview state: the active
// file, the selected screen size, and the asynchronously rendered code
// preview. One session belongs to one viewer for the lifetime of one
// preview page; sessions are never shared across viewers.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blockdeck/blockdeck/internal/events"
	"github.com/blockdeck/blockdeck/internal/logging"
	"github.com/blockdeck/blockdeck/internal/metrics"
	"github.com/blockdeck/blockdeck/internal/registry"
)

// ScreenSize is the preview viewport toggle.
type ScreenSize string

const (
	ScreenMobile  ScreenSize = "mobile"
	ScreenTablet  ScreenSize = "tablet"
	ScreenDesktop ScreenSize = "desktop"
)

// ValidScreenSize reports whether s is one of the three screen sizes.
func ValidScreenSize(s ScreenSize) bool {
	return s == ScreenMobile || s == ScreenTablet || s == ScreenDesktop
}

// PreviewState is the lifecycle of the code panel for the active file.
type PreviewState string

const (
	StateLoading PreviewState = "loading"
	StateReady   PreviewState = "ready"
	StateFailed  PreviewState = "failed"
)

// Preview is the code panel's current contents. HTML is set only in the
// ready state; a loading panel never carries a previous file's output.
type Preview struct {
	File  registry.BlockFile `json:"file"`
	State PreviewState       `json:"state"`
	HTML  string             `json:"html,omitempty"`
	Error string             `json:"error,omitempty"`
}

// Snapshot is a read-only copy of a session handed to the API layer.
type Snapshot struct {
	ID         string             `json:"id"`
	Block      string             `json:"block"`
	ActiveFile registry.BlockFile `json:"active_file"`
	ScreenSize ScreenSize         `json:"screen_size"`
	Preview    Preview            `json:"preview"`
}

type sessionState struct {
	id         string
	block      *registry.Block
	activeFile registry.BlockFile
	screenSize ScreenSize
	preview    Preview
	lastUsed   time.Time

	// generation increments on every file selection; a completed
	// render commits only if its generation is still current. This is
	// the last-selected-wins rule: results for a file that is no
	// longer active are discarded regardless of arrival order.
	generation uint64
}

// Renderer produces highlighted HTML for one block file.
type Renderer interface {
	Render(ctx context.Context, blockName string, file registry.BlockFile) (string, error)
}

// Store owns all live preview sessions. Handler goroutines share it, so
// a mutex guards the map and each mutation; each individual session
// still has a single logical owner (its viewer).
type Store struct {
	mu       sync.Mutex
	sessions map[string]*sessionState

	renderer     Renderer
	broadcaster  *events.Broadcaster
	fetchTimeout time.Duration
}

// NewStore creates a session store. broadcaster may be nil in tests.
func NewStore(renderer Renderer, broadcaster *events.Broadcaster, fetchTimeout time.Duration) *Store {
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}
	return &Store{
		sessions:     make(map[string]*sessionState),
		renderer:     renderer,
		broadcaster:  broadcaster,
		fetchTimeout: fetchTimeout,
	}
}

// Open creates a session for a block with viewer defaults: the block's
// first registered file active, desktop screen size, preview loading.
// The initial render starts immediately.
func (s *Store) Open(b *registry.Block) Snapshot {
	sess := &sessionState{
		id:         uuid.NewString(),
		block:      b,
		activeFile: b.Files[0],
		screenSize: ScreenDesktop,
		lastUsed:   time.Now(),
	}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	gen := s.startFetchLocked(sess)
	snap := snapshotLocked(sess)
	count := len(s.sessions)
	s.mu.Unlock()

	metrics.SetPreviewSessionsActive(int64(count))
	s.render(sess.id, gen, b.Name, b.Files[0])
	return snap
}

// Get returns a snapshot of the session, or ok=false if it does not
// exist (or has expired).
func (s *Store) Get(id string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Snapshot{}, false
	}
	sess.lastUsed = time.Now()
	return snapshotLocked(sess), true
}

// SelectFile replaces the active file unconditionally (the caller is
// responsible for choosing a file that belongs to the block) and
// triggers an asynchronous refetch. Any in-flight render for the
// previous file becomes stale and will be discarded on completion.
func (s *Store) SelectFile(id string, file registry.BlockFile) (Snapshot, bool) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return Snapshot{}, false
	}
	sess.activeFile = file
	sess.lastUsed = time.Now()
	gen := s.startFetchLocked(sess)
	snap := snapshotLocked(sess)
	blockName := sess.block.Name
	s.mu.Unlock()

	s.publish(events.Event{Type: events.EventFileSelected, SessionID: id, Path: file.Path})
	s.render(id, gen, blockName, file)
	return snap, true
}

// SetScreenSize changes the preview viewport. No refetch: the code
// panel is unaffected by screen size.
func (s *Store) SetScreenSize(id string, size ScreenSize) (Snapshot, bool) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return Snapshot{}, false
	}
	sess.screenSize = size
	sess.lastUsed = time.Now()
	snap := snapshotLocked(sess)
	s.mu.Unlock()

	s.publish(events.Event{Type: events.EventScreenSize, SessionID: id, Screen: string(size)})
	return snap, true
}

// Close ends a session. Returns false if it did not exist.
func (s *Store) Close(id string) bool {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	count := len(s.sessions)
	s.mu.Unlock()

	if ok {
		metrics.SetPreviewSessionsActive(int64(count))
		s.publish(events.Event{Type: events.EventSessionEnd, SessionID: id})
	}
	return ok
}

// Sweep removes sessions idle for longer than ttl and returns how many
// were dropped. Run periodically from the server.
func (s *Store) Sweep(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	s.mu.Lock()
	var expired []string
	for id, sess := range s.sessions {
		if sess.lastUsed.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(s.sessions, id)
	}
	count := len(s.sessions)
	s.mu.Unlock()

	if len(expired) > 0 {
		metrics.SetPreviewSessionsActive(int64(count))
	}
	return len(expired)
}

// Count returns the number of live sessions.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// startFetchLocked bumps the generation and resets the preview to
// loading for the current active file. Callers hold s.mu.
func (s *Store) startFetchLocked(sess *sessionState) uint64 {
	sess.generation++
	sess.preview = Preview{File: sess.activeFile, State: StateLoading}
	return sess.generation
}

// render runs the fetch+highlight asynchronously and commits the result
// if the session's generation still matches.
func (s *Store) render(id string, gen uint64, blockName string, file registry.BlockFile) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.fetchTimeout)
		defer cancel()

		html, err := s.renderer.Render(ctx, blockName, file)
		s.commit(id, gen, file, html, err)
	}()
}

func (s *Store) commit(id string, gen uint64, file registry.BlockFile, html string, err error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	if sess.generation != gen {
		s.mu.Unlock()
		metrics.RecordStaleResultDiscarded()
		logging.Debug("discarded stale preview result",
			zap.String("session", id),
			zap.String("path", file.Path))
		return
	}
	if err != nil {
		sess.preview = Preview{File: file, State: StateFailed, Error: "content unavailable"}
	} else {
		sess.preview = Preview{File: file, State: StateReady, HTML: html}
	}
	s.mu.Unlock()

	if err != nil {
		logging.Warn("preview fetch failed",
			zap.String("session", id),
			zap.String("path", file.Path),
			zap.Error(err))
		s.publish(events.Event{Type: events.EventContentError, SessionID: id, Path: file.Path})
		return
	}
	s.publish(events.Event{Type: events.EventContentReady, SessionID: id, Path: file.Path})
}

func (s *Store) publish(e events.Event) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Publish(e)
}

func snapshotLocked(sess *sessionState) Snapshot {
	return Snapshot{
		ID:         sess.id,
		Block:      sess.block.Name,
		ActiveFile: sess.activeFile,
		ScreenSize: sess.screenSize,
		Preview:    sess.preview,
	}
}
