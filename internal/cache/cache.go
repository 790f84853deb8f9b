package cache

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Key identifies one reviewer response: the same lens asking the same model
// the same prompt gets the same answer back.
type Key struct {
	Lens     string
	Provider string
	Model    string
	Prompt   string
}

// Hash returns the hex SHA-256 of the key material.
func (k Key) Hash() string {
	h := sha256.Sum256([]byte(k.Provider + "\x00" + k.Model + "\x00" + k.Lens + "\x00" + k.Prompt))
	return fmt.Sprintf("%x", h)
}

// Entry is the on-disk form of a cached response.
type Entry struct {
	Lens      string    `json:"lens"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"createdAt"`
}

// Cache stores reviewer responses as JSON files, one directory per lens.
type Cache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// New creates a Cache. A nil Cache is valid and never hits, so callers can
// pass nil when caching is disabled. If dir is empty, the default cache
// directory is used.
func New(enabled bool, dir string, ttlSeconds int) (*Cache, error) {
	if !enabled {
		return nil, nil
	}
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &Cache{
		dir: dir,
		ttl: time.Duration(ttlSeconds) * time.Second,
		now: time.Now,
	}, nil
}

// Lookup returns the cached response for k. Expired entries are removed and
// reported as misses.
func (c *Cache) Lookup(k Key) (string, bool) {
	if c == nil {
		return "", false
	}
	path := c.entryPath(k)
	entry, err := readEntry(path)
	if err != nil {
		return "", false
	}
	if c.expired(entry) {
		_ = os.Remove(path)
		return "", false
	}
	return entry.Response, true
}

// Store saves response under k.
func (c *Cache) Store(k Key, response string) error {
	if c == nil {
		return nil
	}
	path := c.entryPath(k)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	data, err := json.Marshal(Entry{
		Lens:      k.Lens,
		Provider:  k.Provider,
		Model:     k.Model,
		Response:  response,
		CreatedAt: c.now(),
	})
	if err != nil {
		return fmt.Errorf("marshaling cache entry: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Clear removes all cache entries and returns how many were deleted.
func (c *Cache) Clear() (int, error) {
	if c == nil {
		return 0, nil
	}
	removed := 0
	err := c.walk(func(path string, _ Entry) {
		if os.Remove(path) == nil {
			removed++
		}
	})
	return removed, err
}

// Stats describes the cache contents.
type Stats struct {
	Dir        string         `json:"dir"`
	Entries    int            `json:"entries"`
	Expired    int            `json:"expired"`
	TotalBytes int64          `json:"totalBytes"`
	ByLens     map[string]int `json:"byLens"`
}

// GetStats walks the cache directory and summarises it.
func (c *Cache) GetStats() (Stats, error) {
	if c == nil {
		return Stats{}, nil
	}
	stats := Stats{Dir: c.dir, ByLens: map[string]int{}}
	err := c.walk(func(path string, e Entry) {
		stats.Entries++
		stats.ByLens[e.Lens]++
		if info, err := os.Stat(path); err == nil {
			stats.TotalBytes += info.Size()
		}
		if c.expired(e) {
			stats.Expired++
		}
	})
	return stats, err
}

// Dir returns the cache directory path.
func (c *Cache) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

func (c *Cache) expired(e Entry) bool {
	return c.ttl > 0 && c.now().Sub(e.CreatedAt) > c.ttl
}

func (c *Cache) walk(fn func(path string, e Entry)) error {
	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		entry, err := readEntry(path)
		if err != nil {
			// Foreign or corrupt files are left alone.
			return nil
		}
		fn(path, entry)
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading cache directory: %w", err)
	}
	return nil
}

func (c *Cache) entryPath(k Key) string {
	lens := k.Lens
	if lens == "" {
		lens = "default"
	}
	return filepath.Join(c.dir, lens, k.Hash()+".json")
}

func readEntry(path string) (Entry, error) {
	var entry Entry
	data, err := os.ReadFile(path)
	if err != nil {
		return entry, err
	}
	err = json.Unmarshal(data, &entry)
	return entry, err
}

// DefaultDir returns the platform cache directory for tribunal.
func DefaultDir() (string, error) {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "tribunal"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "tribunal"), nil
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, "tribunal", "cache"), nil
		}
		return filepath.Join(home, "AppData", "Local", "tribunal", "cache"), nil
	default:
		return filepath.Join(home, ".cache", "tribunal"), nil
	}
}
