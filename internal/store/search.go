package store

import (
	"context"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	werrors "github.com/webrecall/webrecall/internal/errors"
)

// SearchVectors runs a KNN query against the vec0 index and joins each hit
// back to its chunk text and content row. Hits whose content row was deleted
// concurrently are dropped by the join. Results are ordered by ascending
// distance, i.e. descending similarity.
//
// The KNN MATCH runs in a subquery because it is the virtual table's only
// guaranteed read surface; the joins happen on its output.
func (e *Engine) SearchVectors(ctx context.Context, queryVec []float32, k int) ([]VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}
	if len(queryVec) != e.dims {
		return nil, werrors.New(werrors.ErrCodeSearchFailed,
			"query vector width does not match index", nil)
	}

	blob, err := sqlite_vec.SerializeFloat32(queryVec)
	if err != nil {
		return nil, werrors.New(werrors.ErrCodeSearchFailed, "serialize query vector", err)
	}

	rows, err := e.db.QueryContext(ctx, `
		SELECT v.rowid, v.distance, c.id, c.url, c.title, c.tags, cc.chunk_index, cc.chunk_text
		FROM (
			SELECT rowid, distance, content_id
			FROM content_vectors
			WHERE embedding MATCH ?
			ORDER BY distance
			LIMIT ?
		) v
		JOIN content_chunks cc ON cc.id = v.rowid
		JOIN crawled_content c ON c.id = v.content_id
		ORDER BY v.distance`,
		blob, k)
	if err != nil {
		return nil, werrors.New(werrors.ErrCodeSearchFailed, "vector query failed", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []VectorHit
	for rows.Next() {
		var h VectorHit
		var distance float64
		if err := rows.Scan(&h.ChunkRowID, &distance, &h.ContentID, &h.URL, &h.Title, &h.Tags, &h.ChunkIndex, &h.ChunkText); err != nil {
			return nil, werrors.New(werrors.ErrCodeSearchFailed, "scan vector hit", err)
		}
		// Vectors are L2-normalized, so cosine similarity falls out of
		// the L2 distance: sim = 1 - d^2/2.
		h.Similarity = 1.0 - distance*distance/2.0
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
