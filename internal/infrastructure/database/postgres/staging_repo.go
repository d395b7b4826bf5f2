package postgres

import (
	"context"
	"database/sql"

	"github.com/silicograph/bridger/internal/domain/element"
	"github.com/silicograph/bridger/internal/domain/entity"
	"github.com/silicograph/bridger/pkg/errors"
)

// StagingStore reads the immutable staging tables.  It implements both the
// entity.RawSource contract for consolidation and the element.Source contract
// for bridging, exposed through accessor methods because the ListAll
// signatures collide on one receiver.
type StagingStore struct {
	db *sql.DB
}

// NewStagingStore wraps an open connection.
func NewStagingStore(conn *Connection) *StagingStore {
	return &StagingStore{db: conn.DB()}
}

// Raw returns the raw-record source view.
func (s *StagingStore) Raw() entity.RawSource { return &rawSource{s.db} }

// Elements returns the structural-element source view.
func (s *StagingStore) Elements() element.Source { return &elementSource{s.db} }

type rawSource struct{ db *sql.DB }

func (r *rawSource) ListRecords(ctx context.Context) ([]*entity.RawRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, type, COALESCE(description, ''), COALESCE(provenance, '')
		FROM raw_records ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreQueryFailed, "raw record query failed")
	}
	defer rows.Close()

	var records []*entity.RawRecord
	for rows.Next() {
		rec := &entity.RawRecord{}
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Type, &rec.Description, &rec.Provenance); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeStoreQueryFailed, "raw record scan failed")
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreQueryFailed, "raw record iteration failed")
	}
	return records, nil
}

func (r *rawSource) ListRelations(ctx context.Context) ([]*entity.RawRelation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, from_record_id, to_record_id, type
		FROM raw_relations ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreQueryFailed, "raw relation query failed")
	}
	defer rows.Close()

	var relations []*entity.RawRelation
	for rows.Next() {
		rel := &entity.RawRelation{}
		if err := rows.Scan(&rel.ID, &rel.FromRecordID, &rel.ToRecordID, &rel.Type); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeStoreQueryFailed, "raw relation scan failed")
		}
		relations = append(relations, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreQueryFailed, "raw relation iteration failed")
	}
	return relations, nil
}

type elementSource struct{ db *sql.DB }

func (e *elementSource) ListByRole(ctx context.Context, role element.Role) ([]*element.StructuralElement, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT id, name, role, COALESCE(parent_id, '')
		FROM elements WHERE role = $1 ORDER BY id`, string(role))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreQueryFailed, "element query failed")
	}
	return scanElements(rows)
}

func (e *elementSource) ListAll(ctx context.Context) ([]*element.StructuralElement, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT id, name, role, COALESCE(parent_id, '')
		FROM elements ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreQueryFailed, "element query failed")
	}
	return scanElements(rows)
}

func scanElements(rows *sql.Rows) ([]*element.StructuralElement, error) {
	defer rows.Close()

	var elements []*element.StructuralElement
	for rows.Next() {
		el := &element.StructuralElement{}
		var role string
		if err := rows.Scan(&el.ID, &el.Name, &role, &el.ParentID); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeStoreQueryFailed, "element scan failed")
		}
		el.Role = element.Role(role)
		elements = append(elements, el)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreQueryFailed, "element iteration failed")
	}
	return elements, nil
}
