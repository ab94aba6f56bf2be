package revlog

import (
	"bufio"
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"sprint-history/internal/sprint"

	"github.com/rs/zerolog/log"
)

// Store provides thread-safe storage for work item revisions.
type Store struct {
	mu   sync.RWMutex
	logs map[string][]sprint.Revision // Partitioned by source ID
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{
		logs: make(map[string][]sprint.Revision),
	}
}

type identity struct {
	itemID  int
	ordinal int
}

func identityOf(r sprint.Revision) identity {
	return identity{r.ItemID, r.Ordinal}
}

// Append adds revisions to a source, dropping ones already present and
// keeping the log ordered by item and ordinal.
func (s *Store) Append(sourceID string, revisions []sprint.Revision) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if logData, added := merge(s.logs[sourceID], revisions); added > 0 {
		s.logs[sourceID] = logData
	}
}

// Replace swaps the whole log of a source in one step and returns the
// histories of the new log.
func (s *Store) Replace(sourceID string, revisions []sprint.Revision) []sprint.ItemHistory {
	logData, _ := merge(nil, revisions)

	s.mu.Lock()
	if len(logData) == 0 {
		delete(s.logs, sourceID)
	} else {
		s.logs[sourceID] = logData
	}
	s.mu.Unlock()

	return group(logData)
}

// merge returns logData extended with the revisions it does not hold yet,
// sorted by item and ordinal, and the number of revisions added.
func merge(logData, revisions []sprint.Revision) ([]sprint.Revision, int) {
	existing := make(map[identity]bool, len(logData))
	for _, r := range logData {
		existing[identityOf(r)] = true
	}

	merged := slices.Clone(logData)
	newCount := 0
	for _, r := range revisions {
		id := identityOf(r)
		if existing[id] {
			continue
		}
		existing[id] = true
		merged = append(merged, r)
		newCount++
	}

	if newCount == 0 {
		return logData, 0
	}

	slices.SortStableFunc(merged, func(a, b sprint.Revision) int {
		if c := cmp.Compare(a.ItemID, b.ItemID); c != 0 {
			return c
		}
		return cmp.Compare(a.Ordinal, b.Ordinal)
	})
	return merged, newCount
}

// Histories groups the revisions of a source by work item.
func (s *Store) Histories(sourceID string) []sprint.ItemHistory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return group(s.logs[sourceID])
}

func group(logData []sprint.Revision) []sprint.ItemHistory {
	var histories []sprint.ItemHistory
	for _, r := range logData {
		if n := len(histories); n == 0 || histories[n-1].ItemID != r.ItemID {
			histories = append(histories, sprint.ItemHistory{ItemID: r.ItemID})
		}
		last := &histories[len(histories)-1]
		last.Revisions = append(last.Revisions, r)
	}
	return histories
}

// Count returns the number of revisions stored for a source.
func (s *Store) Count(sourceID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.logs[sourceID])
}

// Clear drops all revisions of a source.
func (s *Store) Clear(sourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.logs, sourceID)
}

func cachePath(cacheDir, sourceID string) string {
	return filepath.Join(cacheDir, fmt.Sprintf("%s.jsonl", sourceID))
}

// CacheAge returns how long ago the cache file of a source was written.
// ok is false when there is no cache file.
func CacheAge(cacheDir, sourceID string) (age time.Duration, ok bool) {
	info, err := os.Stat(cachePath(cacheDir, sourceID))
	if err != nil {
		return 0, false
	}
	return time.Since(info.ModTime()), true
}

// Load reads revisions from a JSONL cache file for the given source.
func (s *Store) Load(cacheDir string, sourceID string) error {
	revisions, err := readCache(cacheDir, sourceID)
	if err != nil {
		return err
	}
	s.Append(sourceID, revisions)
	return nil
}

// readCache decodes the cache file of a source. A missing file yields no
// revisions and no error.
func readCache(cacheDir, sourceID string) ([]sprint.Revision, error) {
	file, err := os.Open(cachePath(cacheDir, sourceID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No cache yet, not an error
		}
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	defer file.Close()

	var revisions []sprint.Revision
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var r sprint.Revision
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			log.Warn().Err(err).Str("source", sourceID).Msg("Skipping invalid JSON line in cache")
			continue
		}
		revisions = append(revisions, r)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading cache: %w", err)
	}

	log.Info().Str("source", sourceID).Int("count", len(revisions)).Msg("Loaded revisions from cache")
	return revisions, nil
}

// Save persists the revisions of a source to a JSONL cache file.
func (s *Store) Save(cacheDir string, sourceID string) error {
	s.mu.RLock()
	logData := slices.Clone(s.logs[sourceID])
	s.mu.RUnlock()

	if len(logData) == 0 {
		return nil
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}

	path := cachePath(cacheDir, sourceID)

	// Concurrent saves of one source each write their own temp file.
	file, err := os.CreateTemp(cacheDir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpPath := file.Name()

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)

	for _, r := range logData {
		if err := encoder.Encode(r); err != nil {
			file.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("failed to encode revision: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush writer: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename cache file: %w", err)
	}

	log.Info().Str("source", sourceID).Int("count", len(logData)).Msg("Revisions saved to cache")
	return nil
}

// DeleteCache removes the cache files of a source.
func DeleteCache(cacheDir, sourceID string) error {
	for _, path := range []string{cachePath(cacheDir, sourceID), iterationPath(cacheDir, sourceID)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
