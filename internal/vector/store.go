// Package vector provides a file-backed vector store with scoped update transactions
// and brute-force cosine similarity search.
package vector

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/docindex/internal/models"
	"github.com/hyperjump/docindex/internal/storage"
)

// SnapshotFile is the name of the persisted snapshot inside the store folder.
const SnapshotFile = "index.json"

const snapshotVersion = 1

// Stats describes the contents of the store.
type Stats struct {
	ItemCount int   `json:"item_count"`
	IndexSize int64 `json:"index_size"`
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// Store holds items in memory and persists them as a JSON snapshot.
// Mutations inside BeginUpdate/EndUpdate are only persisted by EndUpdate;
// mutations outside an update are persisted immediately.
type Store struct {
	folder string
	logger *zap.Logger

	mu       sync.RWMutex
	data     *models.Snapshot
	byID     map[string]int
	updating bool
}

// NewStore returns a store rooted at folder. Nothing is read until first use.
func NewStore(folder string, opts ...Option) *Store {
	s := &Store{folder: folder, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Folder returns the store folder.
func (s *Store) Folder() string {
	return s.folder
}

func (s *Store) snapshotPath() string {
	return filepath.Join(s.folder, SnapshotFile)
}

// IsCreated reports whether a snapshot exists on disk.
func (s *Store) IsCreated() bool {
	return storage.Exists(s.snapshotPath())
}

// CreateStore writes an empty snapshot. With resetIfExists an existing folder is removed first;
// otherwise an existing store is an error.
func (s *Store) CreateStore(resetIfExists bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.IsCreated() {
		if !resetIfExists {
			return fmt.Errorf("%w: store already exists at %s", models.ErrStorage, s.folder)
		}
		if err := os.RemoveAll(s.folder); err != nil {
			return fmt.Errorf("%w: reset store: %w", models.ErrStorage, err)
		}
	}
	empty := &models.Snapshot{Version: snapshotVersion, Items: []models.Item{}}
	if err := storage.WriteJSON(s.snapshotPath(), empty); err != nil {
		return fmt.Errorf("%w: create store: %w", models.ErrStorage, err)
	}
	s.setData(empty)
	s.updating = false
	s.logger.Debug("vector store created", zap.String("folder", s.folder))
	return nil
}

// DeleteStore removes the store folder and clears in-memory state.
func (s *Store) DeleteStore() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.RemoveAll(s.folder); err != nil {
		return fmt.Errorf("%w: delete store: %w", models.ErrStorage, err)
	}
	s.data = nil
	s.byID = nil
	s.updating = false
	return nil
}

// Load (re)reads the snapshot from disk. A missing snapshot loads as empty.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// Loaded reports whether the snapshot is held in memory.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data != nil
}

func (s *Store) loadLocked() error {
	var snap models.Snapshot
	if err := storage.ReadJSON(s.snapshotPath(), &snap); err != nil {
		if errors.Is(err, storage.ErrMissing) {
			s.setData(&models.Snapshot{Version: snapshotVersion, Items: []models.Item{}})
			return nil
		}
		return fmt.Errorf("%w: load snapshot: %w", models.ErrStorage, err)
	}
	if snap.Items == nil {
		snap.Items = []models.Item{}
	}
	s.setData(&snap)
	return nil
}

func (s *Store) ensureLoadedLocked() error {
	if s.data != nil {
		return nil
	}
	return s.loadLocked()
}

func (s *Store) setData(snap *models.Snapshot) {
	s.data = snap
	s.reindex()
}

func (s *Store) reindex() {
	s.byID = make(map[string]int, len(s.data.Items))
	for i, it := range s.data.Items {
		s.byID[it.ID] = i
	}
}

func (s *Store) saveLocked() error {
	if err := storage.WriteJSON(s.snapshotPath(), s.data); err != nil {
		return fmt.Errorf("%w: save snapshot: %w", models.ErrStorage, err)
	}
	return nil
}

// BeginUpdate starts an update. Calling it while an update is open is a no-op.
func (s *Store) BeginUpdate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updating {
		return nil
	}
	if err := s.ensureLoadedLocked(); err != nil {
		return err
	}
	s.updating = true
	return nil
}

// EndUpdate persists the in-memory snapshot and closes the update.
// The update stays open if the write fails so the caller can cancel it.
func (s *Store) EndUpdate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.updating {
		return nil
	}
	if err := s.ensureLoadedLocked(); err != nil {
		return err
	}
	if err := s.saveLocked(); err != nil {
		return err
	}
	s.updating = false
	return nil
}

// CancelUpdate discards changes made since BeginUpdate. The snapshot is reloaded on next access.
func (s *Store) CancelUpdate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = nil
	s.byID = nil
	s.updating = false
}

// InUpdate reports whether an update is open.
func (s *Store) InUpdate() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updating
}

// InsertItem appends item. An existing id fails with models.ErrDuplicateID.
func (s *Store) InsertItem(item models.Item) (models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(); err != nil {
		return models.Item{}, err
	}
	if _, ok := s.byID[item.ID]; ok {
		return models.Item{}, fmt.Errorf("%w: %s", models.ErrDuplicateID, item.ID)
	}
	stored := item.Clone()
	s.data.Items = append(s.data.Items, stored)
	s.byID[stored.ID] = len(s.data.Items) - 1
	if !s.updating {
		if err := s.saveLocked(); err != nil {
			s.data.Items = s.data.Items[:len(s.data.Items)-1]
			delete(s.byID, stored.ID)
			return models.Item{}, err
		}
	}
	return stored.Clone(), nil
}

// DeleteItem removes the item with id. A missing id is not an error.
func (s *Store) DeleteItem(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(); err != nil {
		return err
	}
	idx, ok := s.byID[id]
	if !ok {
		return nil
	}
	items := make([]models.Item, 0, len(s.data.Items)-1)
	items = append(items, s.data.Items[:idx]...)
	items = append(items, s.data.Items[idx+1:]...)
	prev := s.data.Items
	s.data.Items = items
	s.reindex()
	if !s.updating {
		if err := s.saveLocked(); err != nil {
			s.data.Items = prev
			s.reindex()
			return err
		}
	}
	return nil
}

// DeleteItems removes every item whose metadata matches filter and returns how many were removed.
func (s *Store) DeleteItems(filter models.Metadata) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(); err != nil {
		return 0, err
	}
	kept := make([]models.Item, 0, len(s.data.Items))
	for _, it := range s.data.Items {
		if !it.Metadata.Matches(filter) {
			kept = append(kept, it)
		}
	}
	removed := len(s.data.Items) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	prev := s.data.Items
	s.data.Items = kept
	s.reindex()
	if !s.updating {
		if err := s.saveLocked(); err != nil {
			s.data.Items = prev
			s.reindex()
			return 0, err
		}
	}
	return removed, nil
}

// GetItem returns the item with id.
func (s *Store) GetItem(id string) (models.Item, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(); err != nil {
		return models.Item{}, false, err
	}
	idx, ok := s.byID[id]
	if !ok {
		return models.Item{}, false, nil
	}
	return s.data.Items[idx].Clone(), true, nil
}

// ListItems returns every item in insertion order.
func (s *Store) ListItems() ([]models.Item, error) {
	return s.ListItemsByMetadata(nil)
}

// ListItemsByMetadata returns the items whose metadata contains every filter entry.
func (s *Store) ListItemsByMetadata(filter models.Metadata) ([]models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(); err != nil {
		return nil, err
	}
	out := make([]models.Item, 0, len(s.data.Items))
	for _, it := range s.data.Items {
		if it.Metadata.Matches(filter) {
			out = append(out, it.Clone())
		}
	}
	return out, nil
}

// QueryItems scores every item passing filter by cosine similarity to vec and returns the
// topK best, highest first. Equal scores keep insertion order.
func (s *Store) QueryItems(vec []float32, topK int, filter models.Metadata) ([]models.ChunkHit, error) {
	if topK <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(); err != nil {
		return nil, err
	}
	queryNorm := L2Norm(vec)
	hits := make([]models.ChunkHit, 0, len(s.data.Items))
	for _, it := range s.data.Items {
		if !it.Metadata.Matches(filter) {
			continue
		}
		hits = append(hits, models.ChunkHit{
			Item:  it,
			Score: cosine(vec, queryNorm, it.Vector, L2Norm(it.Vector)),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	for i := range hits {
		hits[i].Item = hits[i].Item.Clone()
	}
	return hits, nil
}

// Stats returns the item count and the serialized size of the items.
func (s *Store) Stats() (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(); err != nil {
		return Stats{}, err
	}
	data, err := json.Marshal(s.data.Items)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: measure items: %w", models.ErrStorage, err)
	}
	return Stats{ItemCount: len(s.data.Items), IndexSize: int64(len(data))}, nil
}
