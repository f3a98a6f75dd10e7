package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rpggio/screenmark/internal/domain/recording"
)

// SearchRepository implements recording.SearchRepository for SQLite
type SearchRepository struct {
	db *DB
}

// NewSearchRepository creates a new SearchRepository
func NewSearchRepository(db *DB) *SearchRepository {
	return &SearchRepository{db: db}
}

// Search performs a full-text search over annotation titles, descriptions
// and payload text. Best matches come first.
func (r *SearchRepository) Search(ctx context.Context, userID, query string, opts recording.SearchOptions) ([]recording.SearchResult, error) {
	baseQuery := `
		SELECT
			a.id, a.recording_id, a.timestamp_ms, a.type, a.title,
			snippet(annotations_fts, -1, '[', ']', '...', 12) AS snippet,
			bm25(annotations_fts) AS rank
		FROM annotations_fts
		JOIN annotations a ON a.rowid = annotations_fts.rowid
		JOIN recordings r ON r.id = a.recording_id
		WHERE r.user_id = ? AND annotations_fts MATCH ?
	`

	args := []interface{}{userID, query}
	conditions := []string{}

	if opts.RecordingID != "" {
		conditions = append(conditions, "a.recording_id = ?")
		args = append(args, opts.RecordingID)
	}

	if len(opts.Types) > 0 {
		placeholders := make([]string, len(opts.Types))
		for i, typ := range opts.Types {
			placeholders[i] = "?"
			args = append(args, typ)
		}
		conditions = append(conditions, fmt.Sprintf("a.type IN (%s)", strings.Join(placeholders, ",")))
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	baseQuery += " ORDER BY rank, a.timestamp_ms"

	if opts.Limit > 0 {
		baseQuery += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			baseQuery += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	rows, err := r.db.QueryContext(ctx, baseQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search annotations: %w", err)
	}
	defer rows.Close()

	var results []recording.SearchResult
	for rows.Next() {
		var result recording.SearchResult
		var title sql.NullString
		var snippet sql.NullString
		err := rows.Scan(
			&result.AnnotationID,
			&result.RecordingID,
			&result.TimestampMs,
			&result.Type,
			&title,
			&snippet,
			&result.Rank,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		if title.Valid {
			result.Title = &title.String
		}
		result.Snippet = snippet.String
		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search results: %w", err)
	}

	return results, nil
}
