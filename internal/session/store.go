// Package session keeps the files a user has uploaded between requests.
// Everything lives in memory and disappears when a session expires.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/sii-reconciler/internal/analysis"
	"github.com/garyjia/sii-reconciler/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrFileNotFound    = errors.New("file not found in session")
	ErrTooManyFiles    = errors.New("too many files for category")
)

// Config controls session lifetime and size
type Config struct {
	TTL                 time.Duration
	MaxFilesPerCategory int
}

// DefaultConfig keeps idle sessions for two hours, twelve files per ledger
func DefaultConfig() Config {
	return Config{
		TTL:                 2 * time.Hour,
		MaxFilesPerCategory: 12,
	}
}

// Session holds the loaded files of one user, per category and file name
type Session struct {
	ID        string
	CreatedAt time.Time

	mu         sync.RWMutex
	lastAccess time.Time
	files      map[models.Category]map[string]*analysis.FileResult
	order      []fileKey
}

type fileKey struct {
	category models.Category
	name     string
}

// Info is a snapshot of a session for display
type Info struct {
	ID        string                  `json:"id"`
	CreatedAt time.Time               `json:"created_at"`
	ExpiresAt time.Time               `json:"expires_at"`
	Files     []analysis.FileOverview `json:"files"`
}

// Files returns the session's files in upload order. A replaced file keeps
// the position of its first upload.
func (s *Session) Files() []*analysis.FileResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*analysis.FileResult, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.files[k.category][k.name])
	}
	return out
}

// File returns one file by category and name
func (s *Session) File(category models.Category, name string) (*analysis.FileResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[category][name]
	return f, ok
}

// Count returns the number of files loaded for a category
func (s *Session) Count(category models.Category) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files[category])
}

// putFile stores f, replacing any file of the same category and name
func (s *Session) putFile(f *analysis.FileResult, limit int) (replaced bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byName, ok := s.files[f.Category]
	if !ok {
		byName = make(map[string]*analysis.FileResult)
		s.files[f.Category] = byName
	}
	if _, exists := byName[f.Name]; exists {
		byName[f.Name] = f
		return true, nil
	}
	if limit > 0 && len(byName) >= limit {
		return false, fmt.Errorf("%w: %s already has %d", ErrTooManyFiles, f.Category, limit)
	}
	byName[f.Name] = f
	s.order = append(s.order, fileKey{category: f.Category, name: f.Name})
	return false, nil
}

func (s *Session) removeFile(category models.Category, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[category][name]; !ok {
		return fmt.Errorf("%w: %s/%s", ErrFileNotFound, category, name)
	}
	delete(s.files[category], name)
	for i, k := range s.order {
		if k.category == category && k.name == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastAccess = now
	s.mu.Unlock()
}

func (s *Session) expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return now.Sub(s.lastAccess) > ttl
}

func (s *Session) info(ttl time.Duration) Info {
	files := s.Files()
	overviews := make([]analysis.FileOverview, 0, len(files))
	for _, f := range files {
		overviews = append(overviews, f.Overview())
	}

	s.mu.RLock()
	expires := s.lastAccess.Add(ttl)
	s.mu.RUnlock()

	return Info{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		ExpiresAt: expires,
		Files:     overviews,
	}
}

// Store is a concurrency-safe in-memory session registry
type Store struct {
	config   Config
	logger   *zap.Logger
	now      func() time.Time
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates a new session store
func NewStore(config Config, logger *zap.Logger) *Store {
	return &Store{
		config:   config,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create opens a new empty session
func (st *Store) Create() *Session {
	now := st.now()
	s := &Session{
		ID:         uuid.NewString(),
		CreatedAt:  now,
		lastAccess: now,
		files:      make(map[models.Category]map[string]*analysis.FileResult),
	}

	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()

	st.logger.Info("Session created", zap.String("session_id", s.ID))
	return s
}

// Get returns a live session and extends its lifetime
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()

	now := st.now()
	if !ok || s.expired(now, st.config.TTL) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.touch(now)
	return s, nil
}

// Info returns a snapshot of a live session
func (st *Store) Info(id string) (Info, error) {
	s, err := st.Get(id)
	if err != nil {
		return Info{}, err
	}
	return s.info(st.config.TTL), nil
}

// Delete discards a session and its files
func (st *Store) Delete(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(st.sessions, id)
	st.logger.Info("Session deleted", zap.String("session_id", id))
	return nil
}

// PutFile adds a loaded file to a session. Uploading a name that is already
// present in the same category replaces the earlier file.
func (st *Store) PutFile(id string, f *analysis.FileResult) error {
	s, err := st.Get(id)
	if err != nil {
		return err
	}

	replaced, err := s.putFile(f, st.config.MaxFilesPerCategory)
	if err != nil {
		return err
	}

	st.logger.Info("Session file stored",
		zap.String("session_id", id),
		zap.String("category", string(f.Category)),
		zap.String("file", f.Name),
		zap.Bool("replaced", replaced))
	return nil
}

// RemoveFile drops one file from a session
func (st *Store) RemoveFile(id string, category models.Category, name string) error {
	s, err := st.Get(id)
	if err != nil {
		return err
	}
	return s.removeFile(category, name)
}

// Sweep removes every expired session and returns how many were removed
func (st *Store) Sweep() int {
	now := st.now()

	st.mu.Lock()
	defer st.mu.Unlock()

	var expired []string
	for id, s := range st.sessions {
		if s.expired(now, st.config.TTL) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(st.sessions, id)
	}

	if len(expired) > 0 {
		st.logger.Info("Expired sessions removed",
			zap.Int("count", len(expired)),
			zap.Int("remaining", len(st.sessions)))
	}
	return len(expired)
}

// Len returns the number of sessions held, expired or not
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
