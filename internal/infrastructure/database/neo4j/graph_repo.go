package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/silicograph/bridger/internal/domain/bridge"
	"github.com/silicograph/bridger/internal/domain/entity"
	"github.com/silicograph/bridger/internal/infrastructure/monitoring/logging"
	"github.com/silicograph/bridger/pkg/errors"
)

// GraphStore persists the canonical graph in Neo4j.  Entities are (:Entity)
// nodes, canonical relations are [:RELATED] edges between them, and bridges
// are [:RESOLVED_TO] edges from (:Element) stubs to their winning entity.
//
// The typed repository views are exposed through accessor methods because the
// per-domain ReplaceAll/ListAll contracts collide on one receiver.
type GraphStore struct {
	driver *Driver
	log    logging.Logger
}

// NewGraphStore wraps an open driver.
func NewGraphStore(d *Driver, log logging.Logger) *GraphStore {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &GraphStore{driver: d, log: log.Named("graph")}
}

// Entities returns the canonical-entity repository view.
func (g *GraphStore) Entities() entity.Repository { return &graphEntityRepo{g} }

// Relations returns the canonical-relation repository view.
func (g *GraphStore) Relations() entity.RelationRepository { return &graphRelationRepo{g} }

// Bridges returns the bridge repository view.
func (g *GraphStore) Bridges() bridge.Repository { return &graphBridgeRepo{g} }

// EnsureIndexes creates the uniqueness constraints and lookup indexes the
// repositories rely on.  Safe to call on every startup.
func (g *GraphStore) EnsureIndexes(ctx context.Context) error {
	statements := []string{
		"CREATE CONSTRAINT entity_id_unique IF NOT EXISTS FOR (e:Entity) REQUIRE e.id IS UNIQUE",
		"CREATE CONSTRAINT element_id_unique IF NOT EXISTS FOR (el:Element) REQUIRE el.id IS UNIQUE",
		"CREATE INDEX entity_type_idx IF NOT EXISTS FOR (e:Entity) ON (e.type)",
	}
	_, err := g.driver.ExecuteWrite(ctx, func(tx Transaction) (any, error) {
		for _, stmt := range statements {
			if _, err := tx.Run(ctx, stmt, nil); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreQueryFailed, "ensure graph indexes failed")
	}
	return nil
}

type graphEntityRepo struct{ g *GraphStore }

func (r *graphEntityRepo) GetByID(ctx context.Context, id string) (*entity.CanonicalEntity, error) {
	res, err := r.g.driver.ExecuteRead(ctx, func(tx Transaction) (any, error) {
		result, err := tx.Run(ctx,
			"MATCH (e:Entity {id: $id}) RETURN e", map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		if result.Next(ctx) {
			return entityFromRecord(result.Record())
		}
		if err := result.Err(); err != nil {
			return nil, err
		}
		return nil, errors.NotFound("entity not found").WithDetail("id=" + id)
	})
	if err != nil {
		return nil, err
	}
	return res.(*entity.CanonicalEntity), nil
}

func (r *graphEntityRepo) ListAll(ctx context.Context) ([]*entity.CanonicalEntity, error) {
	res, err := r.g.driver.ExecuteRead(ctx, func(tx Transaction) (any, error) {
		result, err := tx.Run(ctx,
			"MATCH (e:Entity) RETURN e ORDER BY e.id", nil)
		if err != nil {
			return nil, err
		}
		return CollectRecords(ctx, result, entityFromRecord)
	})
	if err != nil {
		return nil, err
	}
	return res.([]*entity.CanonicalEntity), nil
}

func (r *graphEntityRepo) ReplaceAll(ctx context.Context, entities []*entity.CanonicalEntity) error {
	rows := make([]map[string]any, 0, len(entities))
	for _, e := range entities {
		if err := e.Validate(); err != nil {
			return err
		}
		rows = append(rows, map[string]any{
			"id":           e.ID,
			"primary_name": e.PrimaryName,
			"aliases":      e.Aliases,
			"type":         e.Type,
			"description":  e.Description,
			"provenance":   e.Provenance,
		})
	}

	_, err := r.g.driver.ExecuteWrite(ctx, func(tx Transaction) (any, error) {
		if _, err := tx.Run(ctx, "MATCH (e:Entity) DETACH DELETE e", nil); err != nil {
			return nil, err
		}
		_, err := tx.Run(ctx, `
			UNWIND $rows AS row
			CREATE (e:Entity {
				id: row.id, primary_name: row.primary_name, aliases: row.aliases,
				type: row.type, description: row.description, provenance: row.provenance
			})`, map[string]any{"rows": rows})
		return nil, err
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreQueryFailed, "entity replace failed")
	}
	r.g.log.Info("replaced canonical entities", logging.Int("count", len(rows)))
	return nil
}

type graphRelationRepo struct{ g *GraphStore }

func (r *graphRelationRepo) ReplaceAll(ctx context.Context, relations []*entity.CanonicalRelation) error {
	rows := make([]map[string]any, 0, len(relations))
	for _, rel := range relations {
		rows = append(rows, map[string]any{
			"from":       rel.FromEntityID,
			"to":         rel.ToEntityID,
			"type":       rel.Type,
			"provenance": rel.Provenance,
		})
	}

	_, err := r.g.driver.ExecuteWrite(ctx, func(tx Transaction) (any, error) {
		if _, err := tx.Run(ctx, "MATCH (:Entity)-[r:RELATED]->(:Entity) DELETE r", nil); err != nil {
			return nil, err
		}
		_, err := tx.Run(ctx, `
			UNWIND $rows AS row
			MATCH (f:Entity {id: row.from}), (t:Entity {id: row.to})
			CREATE (f)-[:RELATED {type: row.type, provenance: row.provenance}]->(t)`,
			map[string]any{"rows": rows})
		return nil, err
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreQueryFailed, "relation replace failed")
	}
	r.g.log.Info("replaced canonical relations", logging.Int("count", len(rows)))
	return nil
}

func (r *graphRelationRepo) ListAll(ctx context.Context) ([]*entity.CanonicalRelation, error) {
	res, err := r.g.driver.ExecuteRead(ctx, func(tx Transaction) (any, error) {
		result, err := tx.Run(ctx, `
			MATCH (f:Entity)-[rel:RELATED]->(t:Entity)
			RETURN f.id AS from, t.id AS to, rel.type AS type, rel.provenance AS provenance
			ORDER BY from, to, type`, nil)
		if err != nil {
			return nil, err
		}
		return CollectRecords(ctx, result, relationFromRecord)
	})
	if err != nil {
		return nil, err
	}
	return res.([]*entity.CanonicalRelation), nil
}

func (r *graphRelationRepo) Neighborhood(ctx context.Context, seedIDs []string, depth int) ([]string, error) {
	if len(seedIDs) == 0 {
		return nil, nil
	}
	if depth < 1 {
		depth = 1
	}
	// Variable-length bounds cannot be parameterized in Cypher; depth is an
	// internal integer, never user input.
	query := fmt.Sprintf(`
		MATCH (s:Entity)-[:RELATED*1..%d]-(n:Entity)
		WHERE s.id IN $seeds AND NOT n.id IN $seeds
		RETURN DISTINCT n.id AS id ORDER BY id`, depth)

	res, err := r.g.driver.ExecuteRead(ctx, func(tx Transaction) (any, error) {
		result, err := tx.Run(ctx, query, map[string]any{"seeds": seedIDs})
		if err != nil {
			return nil, err
		}
		return CollectRecords(ctx, result, func(rec *neo4j.Record) (string, error) {
			return stringValue(rec, "id")
		})
	})
	if err != nil {
		return nil, err
	}
	return res.([]string), nil
}

type graphBridgeRepo struct{ g *GraphStore }

func (r *graphBridgeRepo) ReplaceForElements(ctx context.Context, elementIDs []string, bridges []*bridge.Bridge) error {
	rows := make([]map[string]any, 0, len(bridges))
	for _, b := range bridges {
		if err := b.Validate(); err != nil {
			return err
		}
		rows = append(rows, map[string]any{
			"from":    b.FromElementID,
			"to":      b.ToEntityID,
			"score":   b.Score,
			"method":  b.Method,
			"context": b.ContextFlag,
			"key":     b.Key(),
		})
	}

	_, err := r.g.driver.ExecuteWrite(ctx, func(tx Transaction) (any, error) {
		if _, err := tx.Run(ctx, `
			UNWIND $ids AS id
			MATCH (el:Element {id: id})-[r:RESOLVED_TO]->()
			DELETE r`, map[string]any{"ids": elementIDs}); err != nil {
			return nil, err
		}
		_, err := tx.Run(ctx, `
			UNWIND $rows AS row
			MERGE (el:Element {id: row.from})
			WITH el, row
			MATCH (e:Entity {id: row.to})
			CREATE (el)-[:RESOLVED_TO {
				key: row.key, score: row.score, method: row.method, context: row.context
			}]->(e)`, map[string]any{"rows": rows})
		return nil, err
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeBridgeCommitFailed, "bridge replace failed")
	}
	return nil
}

func (r *graphBridgeRepo) ListAll(ctx context.Context) ([]*bridge.Bridge, error) {
	res, err := r.g.driver.ExecuteRead(ctx, func(tx Transaction) (any, error) {
		result, err := tx.Run(ctx, `
			MATCH (el:Element)-[r:RESOLVED_TO]->(e:Entity)
			RETURN el.id AS from, e.id AS to, r.score AS score,
			       r.method AS method, r.context AS context
			ORDER BY from`, nil)
		if err != nil {
			return nil, err
		}
		return CollectRecords(ctx, result, bridgeFromRecord)
	})
	if err != nil {
		return nil, err
	}
	return res.([]*bridge.Bridge), nil
}

func (r *graphBridgeRepo) ForElement(ctx context.Context, elementID string) (*bridge.Bridge, error) {
	res, err := r.g.driver.ExecuteRead(ctx, func(tx Transaction) (any, error) {
		result, err := tx.Run(ctx, `
			MATCH (el:Element {id: $id})-[r:RESOLVED_TO]->(e:Entity)
			RETURN el.id AS from, e.id AS to, r.score AS score,
			       r.method AS method, r.context AS context`,
			map[string]any{"id": elementID})
		if err != nil {
			return nil, err
		}
		if result.Next(ctx) {
			return bridgeFromRecord(result.Record())
		}
		if err := result.Err(); err != nil {
			return nil, err
		}
		return nil, errors.NotFound("element is unbridged").WithDetail("element=" + elementID)
	})
	if err != nil {
		return nil, err
	}
	return res.(*bridge.Bridge), nil
}

// Record mappers

func entityFromRecord(rec *neo4j.Record) (*entity.CanonicalEntity, error) {
	raw, ok := rec.Values[0].(neo4j.Node)
	if !ok {
		return nil, errors.New(errors.ErrCodeSerialization, "record value is not a node")
	}
	props := raw.Props
	return &entity.CanonicalEntity{
		ID:          asString(props["id"]),
		PrimaryName: asString(props["primary_name"]),
		Aliases:     asStringSlice(props["aliases"]),
		Type:        asString(props["type"]),
		Description: asString(props["description"]),
		Provenance:  asStringSlice(props["provenance"]),
	}, nil
}

func relationFromRecord(rec *neo4j.Record) (*entity.CanonicalRelation, error) {
	from, err := stringValue(rec, "from")
	if err != nil {
		return nil, err
	}
	to, err := stringValue(rec, "to")
	if err != nil {
		return nil, err
	}
	relType, err := stringValue(rec, "type")
	if err != nil {
		return nil, err
	}
	prov, _ := rec.Get("provenance")
	return &entity.CanonicalRelation{
		FromEntityID: from,
		ToEntityID:   to,
		Type:         relType,
		Provenance:   asStringSlice(prov),
	}, nil
}

func bridgeFromRecord(rec *neo4j.Record) (*bridge.Bridge, error) {
	from, err := stringValue(rec, "from")
	if err != nil {
		return nil, err
	}
	to, err := stringValue(rec, "to")
	if err != nil {
		return nil, err
	}
	score, _ := rec.Get("score")
	method, _ := rec.Get("method")
	contextFlag, _ := rec.Get("context")
	b := &bridge.Bridge{
		FromElementID: from,
		ToEntityID:    to,
		Method:        asString(method),
	}
	if f, ok := score.(float64); ok {
		b.Score = f
	}
	if v, ok := contextFlag.(bool); ok {
		b.ContextFlag = v
	}
	return b, nil
}

func stringValue(rec *neo4j.Record, key string) (string, error) {
	v, ok := rec.Get(key)
	if !ok {
		return "", errors.New(errors.ErrCodeSerialization, "record is missing field").WithDetail("field=" + key)
	}
	return asString(v), nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asStringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
