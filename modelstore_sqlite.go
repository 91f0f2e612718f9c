package prefixcode

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	// SQLite driver using pure Go implementation
	_ "modernc.org/sqlite"
)

// SQLiteModelStoreConfig configures the SQLite model store.
type SQLiteModelStoreConfig struct {
	// Path to the SQLite database file
	Path string `yaml:"path"`

	// CacheSize is the SQLite page cache size in KB (default: 2000 = 2MB)
	CacheSize int `yaml:"cache_size,omitempty"`

	// JournalMode sets the SQLite journal mode (WAL, DELETE, TRUNCATE, etc.)
	JournalMode string `yaml:"journal_mode,omitempty"`

	// Synchronous sets the synchronous flag (OFF, NORMAL, FULL, EXTRA)
	Synchronous string `yaml:"synchronous,omitempty"`

	// BusyTimeout is the timeout for acquiring locks in milliseconds
	BusyTimeout int `yaml:"busy_timeout,omitempty"`

	// MaxConnections is the max number of database connections
	MaxConnections int `yaml:"max_connections,omitempty"`
}

// DefaultSQLiteModelStoreConfig returns default configuration.
func DefaultSQLiteModelStoreConfig() SQLiteModelStoreConfig {
	return SQLiteModelStoreConfig{
		Path:           "models.db",
		CacheSize:      2000,
		JournalMode:    "WAL",
		Synchronous:    "NORMAL",
		BusyTimeout:    5000,
		MaxConnections: 10,
	}
}

// SQLiteModelStore implements ModelStore using SQLite.
// This allows model documents to be inspected with standard SQLite tools.
type SQLiteModelStore struct {
	db     *sql.DB
	config SQLiteModelStoreConfig
	mu     sync.RWMutex
	closed bool

	// Prepared statements for common operations
	insertStmt *sql.Stmt
	selectStmt *sql.Stmt
	deleteStmt *sql.Stmt
	existsStmt *sql.Stmt
	listStmt   *sql.Stmt
}

// NewSQLiteModelStore creates a new SQLite-backed model store.
func NewSQLiteModelStore(config SQLiteModelStoreConfig) (*SQLiteModelStore, error) {
	if config.Path == "" {
		config.Path = "models.db"
	}
	if config.CacheSize <= 0 {
		config.CacheSize = 2000
	}
	if config.JournalMode == "" {
		config.JournalMode = "WAL"
	}
	if config.Synchronous == "" {
		config.Synchronous = "NORMAL"
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = 5000
	}
	if config.MaxConnections <= 0 {
		config.MaxConnections = 10
	}

	// Build connection string with pragmas
	dsn := fmt.Sprintf("%s?_cache_size=%d&_journal_mode=%s&_synchronous=%s&_busy_timeout=%d",
		config.Path, config.CacheSize, config.JournalMode, config.Synchronous, config.BusyTimeout)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetMaxIdleConns(config.MaxConnections / 2)

	store := &SQLiteModelStore{
		db:     db,
		config: config,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := store.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	return store, nil
}

// initSchema creates the database schema.
func (s *SQLiteModelStore) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS models (
			name TEXT PRIMARY KEY,
			description TEXT,
			document BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_models_updated ON models(updated_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// prepareStatements prepares common SQL statements for better performance.
func (s *SQLiteModelStore) prepareStatements() error {
	var err error

	s.insertStmt, err = s.db.Prepare(`
		INSERT INTO models (name, description, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			description = excluded.description,
			document = excluded.document,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}

	s.selectStmt, err = s.db.Prepare(`SELECT document FROM models WHERE name = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare select statement: %w", err)
	}

	s.deleteStmt, err = s.db.Prepare(`DELETE FROM models WHERE name = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}

	s.existsStmt, err = s.db.Prepare(`SELECT 1 FROM models WHERE name = ? LIMIT 1`)
	if err != nil {
		return fmt.Errorf("failed to prepare exists statement: %w", err)
	}

	s.listStmt, err = s.db.Prepare(`SELECT name FROM models ORDER BY name`)
	if err != nil {
		return fmt.Errorf("failed to prepare list statement: %w", err)
	}

	return nil
}

func (s *SQLiteModelStore) Get(ctx context.Context, name string) (FrequencyModel, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return FrequencyModel{}, newStoreError("sqlite", "get", name, ErrStoreClosed)
	}
	s.mu.RUnlock()

	var doc []byte
	err := s.selectStmt.QueryRowContext(ctx, name).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return FrequencyModel{}, newStoreError("sqlite", "get", name, ErrModelNotFound)
	}
	if err != nil {
		return FrequencyModel{}, newStoreError("sqlite", "get", name, err)
	}

	model, err := ParseModel(doc)
	if err != nil {
		return FrequencyModel{}, newStoreError("sqlite", "get", name, err)
	}
	return model, nil
}

func (s *SQLiteModelStore) Put(ctx context.Context, model FrequencyModel) error {
	name := model.Metadata.Name
	if err := model.Validate(); err != nil {
		return newStoreError("sqlite", "put", name, err)
	}
	doc, err := MarshalModel(model)
	if err != nil {
		return newStoreError("sqlite", "put", name, err)
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return newStoreError("sqlite", "put", name, ErrStoreClosed)
	}
	s.mu.RUnlock()

	now := time.Now().UnixNano()
	_, err = s.insertStmt.ExecContext(ctx, name, model.Metadata.Description, doc, now, now)
	if err != nil {
		return newStoreError("sqlite", "put", name, err)
	}
	return nil
}

func (s *SQLiteModelStore) Delete(ctx context.Context, name string) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return newStoreError("sqlite", "delete", name, ErrStoreClosed)
	}
	s.mu.RUnlock()

	res, err := s.deleteStmt.ExecContext(ctx, name)
	if err != nil {
		return newStoreError("sqlite", "delete", name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return newStoreError("sqlite", "delete", name, err)
	}
	if affected == 0 {
		return newStoreError("sqlite", "delete", name, ErrModelNotFound)
	}
	return nil
}

func (s *SQLiteModelStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, newStoreError("sqlite", "list", "", ErrStoreClosed)
	}
	s.mu.RUnlock()

	rows, err := s.listStmt.QueryContext(ctx)
	if err != nil {
		return nil, newStoreError("sqlite", "list", "", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, newStoreError("sqlite", "list", "", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, newStoreError("sqlite", "list", "", err)
	}
	return names, nil
}

func (s *SQLiteModelStore) Exists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return false, newStoreError("sqlite", "exists", name, ErrStoreClosed)
	}
	s.mu.RUnlock()

	var exists int
	err := s.existsStmt.QueryRowContext(ctx, name).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, newStoreError("sqlite", "exists", name, err)
	}
	return true, nil
}

func (s *SQLiteModelStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	// Close prepared statements
	if s.insertStmt != nil {
		s.insertStmt.Close()
	}
	if s.selectStmt != nil {
		s.selectStmt.Close()
	}
	if s.deleteStmt != nil {
		s.deleteStmt.Close()
	}
	if s.existsStmt != nil {
		s.existsStmt.Close()
	}
	if s.listStmt != nil {
		s.listStmt.Close()
	}

	return s.db.Close()
}
