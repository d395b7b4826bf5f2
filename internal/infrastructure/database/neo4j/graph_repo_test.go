package neo4j

import (
	"context"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silicograph/bridger/internal/domain/bridge"
	"github.com/silicograph/bridger/internal/domain/entity"
	"github.com/silicograph/bridger/internal/infrastructure/monitoring/logging"
	"github.com/silicograph/bridger/pkg/errors"
)

// fakeResult replays scripted records.
type fakeResult struct {
	records []*neo4j.Record
	pos     int
}

func (f *fakeResult) Next(ctx context.Context) bool {
	if f.pos >= len(f.records) {
		return false
	}
	f.pos++
	return true
}
func (f *fakeResult) Record() *neo4j.Record { return f.records[f.pos-1] }
func (f *fakeResult) Err() error            { return nil }
func (f *fakeResult) Consume(ctx context.Context) (neo4j.ResultSummary, error) {
	return nil, nil
}

// fakeTransaction records every statement and serves scripted results in
// call order.
type fakeTransaction struct {
	statements []string
	params     []map[string]any
	results    []*fakeResult
	calls      int
}

func (f *fakeTransaction) Run(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	f.statements = append(f.statements, cypher)
	f.params = append(f.params, params)
	f.calls++
	if f.calls <= len(f.results) {
		return f.results[f.calls-1], nil
	}
	return &fakeResult{}, nil
}

type fakeSession struct {
	tx *fakeTransaction
}

func (f *fakeSession) ExecuteRead(ctx context.Context, work func(Transaction) (any, error)) (any, error) {
	return work(f.tx)
}
func (f *fakeSession) ExecuteWrite(ctx context.Context, work func(Transaction) (any, error)) (any, error) {
	return work(f.tx)
}
func (f *fakeSession) Close(ctx context.Context) error { return nil }

type fakeDriver struct {
	tx *fakeTransaction
}

func (f *fakeDriver) VerifyConnectivity(ctx context.Context) error { return nil }
func (f *fakeDriver) NewSession(ctx context.Context, cfg neo4j.SessionConfig) internalSession {
	return &fakeSession{tx: f.tx}
}
func (f *fakeDriver) Close(ctx context.Context) error { return nil }

func newTestStore(tx *fakeTransaction) *GraphStore {
	d := &Driver{
		driver: &fakeDriver{tx: tx},
		logger: logging.NewNopLogger(),
	}
	return NewGraphStore(d, logging.NewNopLogger())
}

func entityRecord(id, name, typ string, aliases ...string) *neo4j.Record {
	props := map[string]any{
		"id":           id,
		"primary_name": name,
		"type":         typ,
		"description":  "",
		"provenance":   []any{"rec1"},
	}
	raw := make([]any, len(aliases))
	for i, a := range aliases {
		raw[i] = a
	}
	props["aliases"] = raw
	return &neo4j.Record{
		Keys:   []string{"e"},
		Values: []any{neo4j.Node{Props: props}},
	}
}

func TestGraphEntityRepo_GetByID(t *testing.T) {
	t.Parallel()

	tx := &fakeTransaction{results: []*fakeResult{
		{records: []*neo4j.Record{entityRecord("ent_1", "alu unit", "component", "ALU Unit", "ALU_Unit")}},
	}}
	store := newTestStore(tx)

	got, err := store.Entities().GetByID(context.Background(), "ent_1")
	require.NoError(t, err)
	assert.Equal(t, "ent_1", got.ID)
	assert.Equal(t, "alu unit", got.PrimaryName)
	assert.Equal(t, []string{"ALU Unit", "ALU_Unit"}, got.Aliases)
	assert.Equal(t, []string{"rec1"}, got.Provenance)
	require.Len(t, tx.params, 1)
	assert.Equal(t, "ent_1", tx.params[0]["id"])
}

func TestGraphEntityRepo_GetByID_NotFound(t *testing.T) {
	t.Parallel()

	tx := &fakeTransaction{results: []*fakeResult{{}}}
	store := newTestStore(tx)

	_, err := store.Entities().GetByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestGraphEntityRepo_ReplaceAll_ValidatesBeforeWrite(t *testing.T) {
	t.Parallel()

	tx := &fakeTransaction{}
	store := newTestStore(tx)

	err := store.Entities().ReplaceAll(context.Background(), []*entity.CanonicalEntity{
		{ID: "ent_1", PrimaryName: "alu", Type: "component"}, // no provenance
	})
	require.Error(t, err)
	assert.Empty(t, tx.statements, "invalid entity must not reach the store")
}

func TestGraphEntityRepo_ReplaceAll_DeletesThenCreates(t *testing.T) {
	t.Parallel()

	tx := &fakeTransaction{}
	store := newTestStore(tx)

	err := store.Entities().ReplaceAll(context.Background(), []*entity.CanonicalEntity{
		{ID: "ent_1", PrimaryName: "alu", Type: "component", Provenance: []string{"rec1"}},
	})
	require.NoError(t, err)
	require.Len(t, tx.statements, 2)
	assert.Contains(t, tx.statements[0], "DETACH DELETE")
	assert.Contains(t, tx.statements[1], "UNWIND $rows")
	rows := tx.params[1]["rows"].([]map[string]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "ent_1", rows[0]["id"])
}

func TestGraphRelationRepo_Neighborhood_FormatsDepth(t *testing.T) {
	t.Parallel()

	tx := &fakeTransaction{results: []*fakeResult{
		{records: []*neo4j.Record{
			{Keys: []string{"id"}, Values: []any{"ent_2"}},
			{Keys: []string{"id"}, Values: []any{"ent_3"}},
		}},
	}}
	store := newTestStore(tx)

	ids, err := store.Relations().Neighborhood(context.Background(), []string{"ent_1"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"ent_2", "ent_3"}, ids)
	require.Len(t, tx.statements, 1)
	assert.Contains(t, tx.statements[0], "[:RELATED*1..2]")
}

func TestGraphRelationRepo_Neighborhood_EmptySeeds(t *testing.T) {
	t.Parallel()

	tx := &fakeTransaction{}
	store := newTestStore(tx)

	ids, err := store.Relations().Neighborhood(context.Background(), nil, 2)
	require.NoError(t, err)
	assert.Nil(t, ids)
	assert.Empty(t, tx.statements)
}

func TestGraphBridgeRepo_ReplaceForElements(t *testing.T) {
	t.Parallel()

	tx := &fakeTransaction{}
	store := newTestStore(tx)

	err := store.Bridges().ReplaceForElements(context.Background(),
		[]string{"el_1", "el_2"},
		[]*bridge.Bridge{{
			FromElementID: "el_1",
			ToEntityID:    "ent_1",
			Score:         0.9,
			Method:        bridge.MethodJaroWinkler,
			ContextFlag:   true,
		}})
	require.NoError(t, err)
	require.Len(t, tx.statements, 2)
	assert.Contains(t, tx.statements[0], "DELETE r")
	assert.Contains(t, tx.statements[1], "RESOLVED_TO")
	assert.Equal(t, []string{"el_1", "el_2"}, tx.params[0]["ids"])
	rows := tx.params[1]["rows"].([]map[string]any)
	require.Len(t, rows, 1)
	assert.Equal(t, 0.9, rows[0]["score"])
	assert.Equal(t, true, rows[0]["context"])
}

func TestGraphBridgeRepo_ReplaceForElements_RejectsBadScore(t *testing.T) {
	t.Parallel()

	tx := &fakeTransaction{}
	store := newTestStore(tx)

	err := store.Bridges().ReplaceForElements(context.Background(),
		[]string{"el_1"},
		[]*bridge.Bridge{{FromElementID: "el_1", ToEntityID: "ent_1", Score: 1.5}})
	require.Error(t, err)
	assert.Empty(t, tx.statements)
}

func TestGraphBridgeRepo_ForElement(t *testing.T) {
	t.Parallel()

	tx := &fakeTransaction{results: []*fakeResult{
		{records: []*neo4j.Record{{
			Keys:   []string{"from", "to", "score", "method", "context"},
			Values: []any{"el_1", "ent_1", 0.75, bridge.MethodJaroWinkler, false},
		}}},
	}}
	store := newTestStore(tx)

	b, err := store.Bridges().ForElement(context.Background(), "el_1")
	require.NoError(t, err)
	assert.Equal(t, "el_1", b.FromElementID)
	assert.Equal(t, "ent_1", b.ToEntityID)
	assert.Equal(t, 0.75, b.Score)
	assert.Equal(t, bridge.MethodJaroWinkler, b.Method)
	assert.False(t, b.ContextFlag)
}

func TestEnsureIndexes_RunsAllStatements(t *testing.T) {
	t.Parallel()

	tx := &fakeTransaction{}
	store := newTestStore(tx)

	require.NoError(t, store.EnsureIndexes(context.Background()))
	assert.Len(t, tx.statements, 3)
}
