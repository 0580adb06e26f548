// Package modcache persists compiled bytecode.Module values keyed by the
// content hash of their query source and target grammar, so recompiling
// an unchanged query against an unchanged grammar can be skipped entirely.
package modcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/termfx/plotnik/internal/bytecode"
)

// Entry is one cached compiled module. Hash is the cache key; Entrypoints
// is a queryable JSON column so a caller can list what a cached module
// exposes without decoding its bytecode blob.
type Entry struct {
	ID          string         `gorm:"primaryKey;type:varchar(36)"`
	Hash        string         `gorm:"type:varchar(64);uniqueIndex"`
	Grammar     string         `gorm:"type:varchar(100);index"`
	Source      string         `gorm:"type:text"`
	Bytecode    []byte         `gorm:"type:blob;not null"`
	Entrypoints datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt   time.Time      `gorm:"autoCreateTime"`
}

func (Entry) TableName() string { return "modcache_entries" }

// Cache wraps a gorm connection to a SQLite cache database.
type Cache struct {
	db *gorm.DB
}

// Open connects to the SQLite database at path, creating its parent
// directory and the file if needed, and migrates the cache schema. path
// may be ":memory:" for an ephemeral cache.
func Open(path string) (*Cache, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("modcache: create directory: %w", err)
			}
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("modcache: open: %w", err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("modcache: migrate: %w", err)
	}
	return &Cache{db: db}, nil
}

// Key derives the cache key for source compiled against grammarName.
func Key(grammarName, source string) string {
	sum := sha256.Sum256([]byte(grammarName + "\x00" + source))
	return hex.EncodeToString(sum[:])
}

// Lookup returns the cached module for key, if any.
func (c *Cache) Lookup(key string) (*bytecode.Module, bool, error) {
	var e Entry
	err := c.db.Where("hash = ?", key).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("modcache: lookup: %w", err)
	}
	m, err := bytecode.Decode(e.Bytecode)
	if err != nil {
		return nil, false, fmt.Errorf("modcache: decode: %w", err)
	}
	return m, true, nil
}

// Store persists m under key. A second Store call for a key already
// present is a no-op: identical source compiled against an identical
// grammar always produces identical bytecode.
func (c *Cache) Store(key, grammarName, source string, m *bytecode.Module) error {
	var existing Entry
	err := c.db.Where("hash = ?", key).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("modcache: check existing: %w", err)
	}

	encoded, err := m.Encode()
	if err != nil {
		return fmt.Errorf("modcache: encode: %w", err)
	}
	names := make([]string, len(m.Entrypoints))
	for i, ep := range m.Entrypoints {
		names[i] = ep.Name
	}
	epJSON, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("modcache: marshal entrypoints: %w", err)
	}

	entry := Entry{
		ID:          uuid.NewString(),
		Hash:        key,
		Grammar:     grammarName,
		Source:      source,
		Bytecode:    encoded,
		Entrypoints: datatypes.JSON(epJSON),
	}
	if err := c.db.Create(&entry).Error; err != nil {
		return fmt.Errorf("modcache: store: %w", err)
	}
	return nil
}

// Evict removes the cached entry for key, if any.
func (c *Cache) Evict(key string) error {
	if err := c.db.Where("hash = ?", key).Delete(&Entry{}).Error; err != nil {
		return fmt.Errorf("modcache: evict: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (c *Cache) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return fmt.Errorf("modcache: close: %w", err)
	}
	return sqlDB.Close()
}
