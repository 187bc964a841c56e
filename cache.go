package ocrmd

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// Cache persists per-page OCR results in a SQLite database inside the
// working directory, so a second rendering pass or a re-run never repeats an
// OCR computation for unchanged page content. Keys are (content hash of the
// raw sub-page JPEG bytes, requested segmentation mode).
type Cache struct {
	db *sql.DB
}

// OpenCache opens (or creates) the cache database at the given path.
func OpenCache(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open cache database")
	}

	cache := &Cache{db: db}
	if err := cache.initSchema(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to initialize cache schema")
	}
	return cache, nil
}

func (c *Cache) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ocr_cache (
		content_hash TEXT NOT NULL,
		req_psm INTEGER NOT NULL,
		text TEXT,
		avg_conf REAL,
		chars INTEGER,
		used_psm INTEGER,
		lines TEXT,
		engine TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (content_hash, req_psm)
	);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Get looks up a cached result. Read failures and corrupt rows are treated
// as a miss so the page is simply recomputed; the cache is never a reason to
// abort a run.
func (c *Cache) Get(contentHash string, mode int) (*OcrResult, bool) {
	var (
		text      string
		avgConf   float64
		chars     int
		usedPSM   int
		linesJSON sql.NullString
	)
	err := c.db.QueryRow(`
		SELECT text, avg_conf, chars, used_psm, lines
		FROM ocr_cache WHERE content_hash = ? AND req_psm = ?
	`, contentHash, mode).Scan(&text, &avgConf, &chars, &usedPSM, &linesJSON)
	if err != nil {
		return nil, false
	}

	var lines []OcrLine
	if linesJSON.Valid && linesJSON.String != "" {
		if err := json.Unmarshal([]byte(linesJSON.String), &lines); err != nil {
			return nil, false
		}
	}
	return &OcrResult{
		Text:    text,
		AvgConf: avgConf,
		Chars:   chars,
		Mode:    usedPSM,
		Lines:   lines,
	}, true
}

// Put stores a freshly computed result under (contentHash, mode).
func (c *Cache) Put(contentHash string, mode int, engine string, result *OcrResult) error {
	linesJSON, err := json.Marshal(result.Lines)
	if err != nil {
		return errors.Wrap(err, "failed to marshal line layout")
	}
	_, err = c.db.Exec(`
		INSERT OR REPLACE INTO ocr_cache (content_hash, req_psm, text, avg_conf, chars, used_psm, lines, engine)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, contentHash, mode, result.Text, result.AvgConf, result.Chars, result.Mode, string(linesJSON), engine)
	return errors.Wrap(err, "failed to write cache entry")
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// ContentHash returns the hex SHA-256 of the raw image bytes, the stable
// cache key for one sub-page's content.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
