package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"modernc.org/sqlite"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

// sqliteConstraintUnique is SQLITE_CONSTRAINT_UNIQUE (19 | 8<<8).
const sqliteConstraintUnique = 2067

const schema = `
CREATE TABLE IF NOT EXISTS items (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	source       TEXT NOT NULL,
	url          TEXT NOT NULL,
	title        TEXT NOT NULL,
	text         TEXT,
	published_at TIMESTAMP,
	metadata     TEXT NOT NULL DEFAULT '{}',
	created_at   TIMESTAMP NOT NULL,
	UNIQUE (url)
);

CREATE TABLE IF NOT EXISTS embeddings (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	item_id    INTEGER NOT NULL REFERENCES items(id),
	dim        INTEGER NOT NULL,
	vector     BLOB NOT NULL,
	created_at TIMESTAMP NOT NULL,
	UNIQUE (item_id)
);

CREATE TABLE IF NOT EXISTS evaluations (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	item_id    INTEGER NOT NULL REFERENCES items(id),
	persona    TEXT NOT NULL,
	decision   TEXT NOT NULL,
	score      INTEGER,
	payload    TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMP NOT NULL,
	UNIQUE (item_id, persona)
);
`

// Store persists items, embeddings, and evaluations in a single SQLite
// database file.
type Store struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.ItemStore = (*Store)(nil)
var _ ports.EmbeddingStore = (*Store)(nil)
var _ ports.EvaluationStore = (*Store)(nil)

// Open creates the database file (and its directory) if needed and applies
// the schema. Schema creation is idempotent.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, sb: sq.StatementBuilder.PlaceholderFormat(sq.Question)}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies connectivity for the doctor command.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Insert stores a new item and fills in its generated id and creation time.
// An already-seen URL is rejected with ports.ErrDuplicateURL, never merged.
func (s *Store) Insert(ctx context.Context, item *domain.Item) error {
	metadata, err := json.Marshal(item.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	var publishedAt any
	if !item.PublishedAt.IsZero() {
		publishedAt = item.PublishedAt.UTC()
	}

	res, err := s.sb.Insert("items").
		Columns("source", "url", "title", "text", "published_at", "metadata", "created_at").
		Values(item.Source, item.URL, item.Title, item.Text, publishedAt, string(metadata), item.CreatedAt).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.ErrDuplicateURL
		}
		return fmt.Errorf("insert item: %w", err)
	}

	item.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("item insert id: %w", err)
	}
	return nil
}

// Recent returns the most recently created items across all sources.
func (s *Store) Recent(ctx context.Context, limit int) ([]domain.Item, error) {
	rows, err := s.sb.Select("id", "source", "url", "title", "text", "published_at", "metadata", "created_at").
		From("items").
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query recent items: %w", err)
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

// Has reports whether an embedding exists for the item.
func (s *Store) Has(ctx context.Context, itemID int64) (bool, error) {
	var count int
	err := s.sb.Select("COUNT(*)").
		From("embeddings").
		Where(sq.Eq{"item_id": itemID}).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check embedding: %w", err)
	}
	return count > 0, nil
}

// InsertEmbedding stores the embedding for an item. The UNIQUE(item_id)
// constraint plus OR IGNORE makes concurrent duplicate inserts harmless.
func (s *Store) InsertEmbedding(ctx context.Context, emb domain.Embedding) error {
	if emb.CreatedAt.IsZero() {
		emb.CreatedAt = time.Now().UTC()
	}

	_, err := s.sb.Insert("embeddings").
		Options("OR IGNORE").
		Columns("item_id", "dim", "vector", "created_at").
		Values(emb.ItemID, emb.Dim, float32sToBytes(emb.Vector), emb.CreatedAt).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("insert embedding: %w", err)
	}
	return nil
}

// All loads every stored embedding, in item-id order.
func (s *Store) All(ctx context.Context) ([]domain.Embedding, error) {
	rows, err := s.sb.Select("item_id", "dim", "vector", "created_at").
		From("embeddings").
		OrderBy("item_id").
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	var embeddings []domain.Embedding
	for rows.Next() {
		var emb domain.Embedding
		var blob []byte
		if err := rows.Scan(&emb.ItemID, &emb.Dim, &blob, &emb.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		emb.Vector = bytesToFloat32s(blob)
		embeddings = append(embeddings, emb)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}
	return embeddings, nil
}

// Exists reports whether an evaluation exists for the (item, persona) pair.
func (s *Store) Exists(ctx context.Context, itemID int64, persona string) (bool, error) {
	var count int
	err := s.sb.Select("COUNT(*)").
		From("evaluations").
		Where(sq.Eq{"item_id": itemID, "persona": persona}).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check evaluation: %w", err)
	}
	return count > 0, nil
}

// InsertEvaluation stores a verdict. UNIQUE(item_id, persona) plus
// OR IGNORE closes the check-then-insert race window.
func (s *Store) InsertEvaluation(ctx context.Context, ev domain.Evaluation) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	var score any
	if ev.Score != nil {
		score = *ev.Score
	}

	_, err = s.sb.Insert("evaluations").
		Options("OR IGNORE").
		Columns("item_id", "persona", "decision", "score", "payload", "created_at").
		Values(ev.ItemID, ev.Persona, ev.Decision, score, string(payload), ev.CreatedAt).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("insert evaluation: %w", err)
	}
	return nil
}

// KeptSince returns kept evaluations for the persona whose items were
// created at or after the cutoff, ordered by score descending (nulls last)
// then recency.
func (s *Store) KeptSince(ctx context.Context, persona string, cutoff time.Time) ([]domain.EvaluatedItem, error) {
	rows, err := s.sb.Select(
		"evaluations.id", "evaluations.item_id", "evaluations.persona",
		"evaluations.decision", "evaluations.score", "evaluations.payload", "evaluations.created_at",
		"items.id", "items.source", "items.url", "items.title", "items.text",
		"items.published_at", "items.metadata", "items.created_at").
		From("evaluations").
		Join("items ON items.id = evaluations.item_id").
		Where(sq.Eq{"evaluations.persona": persona, "evaluations.decision": domain.DecisionKeep}).
		Where(sq.GtOrEq{"items.created_at": cutoff.UTC()}).
		OrderBy("evaluations.score IS NULL", "evaluations.score DESC", "evaluations.created_at DESC").
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query kept evaluations: %w", err)
	}
	defer rows.Close()

	var out []domain.EvaluatedItem
	for rows.Next() {
		var (
			ev          domain.Evaluation
			item        domain.Item
			score       sql.NullInt64
			payloadJSON string
			text        sql.NullString
			publishedAt sql.NullTime
			metaJSON    string
		)
		if err := rows.Scan(
			&ev.ID, &ev.ItemID, &ev.Persona, &ev.Decision, &score, &payloadJSON, &ev.CreatedAt,
			&item.ID, &item.Source, &item.URL, &item.Title, &text,
			&publishedAt, &metaJSON, &item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan kept evaluation: %w", err)
		}

		if score.Valid {
			v := int(score.Int64)
			ev.Score = &v
		}
		if err := json.Unmarshal([]byte(payloadJSON), &ev.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal evaluation payload: %w", err)
		}

		item.Text = text.String
		if publishedAt.Valid {
			item.PublishedAt = publishedAt.Time
		}
		if err := json.Unmarshal([]byte(metaJSON), &item.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal item metadata: %w", err)
		}

		out = append(out, domain.EvaluatedItem{Item: item, Evaluation: ev})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate kept evaluations: %w", err)
	}
	return out, nil
}

func scanItem(rows *sql.Rows) (domain.Item, error) {
	var (
		item        domain.Item
		text        sql.NullString
		publishedAt sql.NullTime
		metaJSON    string
	)
	if err := rows.Scan(&item.ID, &item.Source, &item.URL, &item.Title, &text,
		&publishedAt, &metaJSON, &item.CreatedAt); err != nil {
		return domain.Item{}, fmt.Errorf("scan item: %w", err)
	}

	item.Text = text.String
	if publishedAt.Valid {
		item.PublishedAt = publishedAt.Time
	}
	if err := json.Unmarshal([]byte(metaJSON), &item.Metadata); err != nil {
		return domain.Item{}, fmt.Errorf("unmarshal item metadata: %w", err)
	}
	return item, nil
}

func isUniqueViolation(err error) bool {
	var serr *sqlite.Error
	return errors.As(err, &serr) && serr.Code() == sqliteConstraintUnique
}

func float32sToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToFloat32s(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
