package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"smartdiff/internal/ast"
	"smartdiff/internal/errors"
	"smartdiff/internal/logging"
)

// FunctionCache stores the parsed functions of a file, keyed by the
// file's path and its content hash. Reads can run concurrently; writes
// are serialized through a single mutex since SQLite allows only one
// writer at a time.
type FunctionCache struct {
	db      *DB
	logger  *logging.Logger
	encoder *zstd.Encoder
	decoder *zstd.Decoder

	writeMu sync.Mutex
}

// OpenFunctionCache opens the cache database at path and prepares the
// zstd codec for payload compression.
func OpenFunctionCache(path string, logger *logging.Logger) (*FunctionCache, error) {
	db, err := Open(path, logger)
	if err != nil {
		return nil, errors.NewDiffError(errors.CacheUnavailable,
			fmt.Sprintf("cannot open function cache at %s", path), err)
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, errors.NewDiffError(errors.CacheUnavailable, "cannot create zstd encoder", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		db.Close()
		return nil, errors.NewDiffError(errors.CacheUnavailable, "cannot create zstd decoder", err)
	}

	return &FunctionCache{
		db:      db,
		logger:  logger,
		encoder: encoder,
		decoder: decoder,
	}, nil
}

// Close releases the codec and the database connection.
func (c *FunctionCache) Close() error {
	c.encoder.Close()
	c.decoder.Close()
	return c.db.Close()
}

// Get returns the cached functions for a file at a specific content
// hash. The second return value is false on a miss.
func (c *FunctionCache) Get(filePath, contentHash string) ([]*ast.Function, bool, error) {
	var blob []byte
	err := c.db.Conn().QueryRow(`
		SELECT functions FROM function_cache
		WHERE file_path = ? AND content_hash = ?
	`, filePath, contentHash).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup failed: %w", err)
	}

	raw, err := c.decoder.DecodeAll(blob, nil)
	if err != nil {
		// A corrupt entry is treated as a miss so the file gets
		// re-parsed and the entry overwritten.
		c.logger.Warn("discarding corrupt cache entry", map[string]interface{}{
			"file": filePath,
		})
		return nil, false, nil
	}

	var functions []*ast.Function
	if err := json.Unmarshal(raw, &functions); err != nil {
		c.logger.Warn("discarding undecodable cache entry", map[string]interface{}{
			"file": filePath,
		})
		return nil, false, nil
	}
	return functions, true, nil
}

// Put stores the parsed functions for a file, replacing any entry for
// the same path so stale hashes do not accumulate.
func (c *FunctionCache) Put(filePath, contentHash, language string, functions []*ast.Function) error {
	raw, err := json.Marshal(functions)
	if err != nil {
		return fmt.Errorf("cache encode failed: %w", err)
	}
	blob := c.encoder.EncodeAll(raw, nil)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return c.db.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM function_cache WHERE file_path = ?`, filePath); err != nil {
			return err
		}
		_, err := tx.Exec(`
			INSERT INTO function_cache (file_path, content_hash, language, functions, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, filePath, contentHash, language, blob, time.Now().UTC().Format(time.RFC3339))
		return err
	})
}

// Invalidate drops all entries for a file.
func (c *FunctionCache) Invalidate(filePath string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_, err := c.db.Conn().Exec(`DELETE FROM function_cache WHERE file_path = ?`, filePath)
	return err
}

// PruneOlderThan removes entries created before the cutoff and returns
// how many were dropped.
func (c *FunctionCache) PruneOlderThan(cutoff time.Time) (int64, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	res, err := c.db.Conn().Exec(`
		DELETE FROM function_cache WHERE created_at < ?
	`, cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Stats reports the number of cached files and entries.
func (c *FunctionCache) Stats() (files int, entries int, err error) {
	err = c.db.Conn().QueryRow(`
		SELECT COUNT(DISTINCT file_path), COUNT(*) FROM function_cache
	`).Scan(&files, &entries)
	return files, entries, err
}
