package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silicograph/bridger/internal/config"
	"github.com/silicograph/bridger/internal/domain/element"
	"github.com/silicograph/bridger/internal/domain/entity"
	"github.com/silicograph/bridger/internal/infrastructure/database/memory"
	"github.com/silicograph/bridger/internal/infrastructure/messaging/kafka"
	"github.com/silicograph/bridger/internal/matching/bridger"
	"github.com/silicograph/bridger/internal/matching/consolidator"
	"github.com/silicograph/bridger/pkg/errors"
)

type fakeLocker struct {
	lockErr  error
	locked   int
	unlocked int
}

func (l *fakeLocker) Lock(_ context.Context) error {
	if l.lockErr != nil {
		return l.lockErr
	}
	l.locked++
	return nil
}

func (l *fakeLocker) Unlock(_ context.Context) error {
	l.unlocked++
	return nil
}

type fakePublisher struct {
	err    error
	topics []string
	events []interface{}
}

func (p *fakePublisher) Publish(_ context.Context, topic, _ string, payload interface{}) error {
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.events = append(p.events, payload)
	return nil
}

func storesFor(s *memory.Store) Stores {
	return Stores{
		Raw:       s.Raw(),
		Elements:  s.Elements(),
		Entities:  s.Entities(),
		Relations: s.Relations(),
		Index:     s.Index(),
		Bridges:   s.Bridges(),
	}
}

func seedStaging(s *memory.Store) {
	s.SeedRawRecords([]*entity.RawRecord{
		{ID: "r1", Name: "or1200_alu", Type: "component", Provenance: "arch.md"},
		{ID: "r2", Name: "alu", Type: "component", Provenance: "impl.md"},
		{ID: "r3", Name: "ctrl", Type: "signal", Provenance: "arch.md"},
	})
	s.SeedRawRelations([]*entity.RawRelation{
		{ID: "rel1", FromRecordID: "r1", ToRecordID: "r3", Type: "drives"},
	})
}

func TestConsolidateJob_CommitsStoresAndPublishes(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	seedStaging(store)
	locker := &fakeLocker{}
	publisher := &fakePublisher{}

	job := NewConsolidateJob(consolidator.DefaultConfig(), []string{"or1200_"}, ConsolidateDeps{
		Stores:    storesFor(store),
		Locker:    locker,
		Publisher: publisher,
	})

	res, err := job.Run(context.Background(), false)
	require.NoError(t, err)

	// or1200_alu and alu collapse into one entity.
	assert.Equal(t, 2, res.Summary.Entities)

	entities, err := store.Entities().ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, entities, 2)

	relations, err := store.Relations().ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, relations, 1)

	assert.Equal(t, 1, locker.locked)
	assert.Equal(t, 1, locker.unlocked)

	require.Len(t, publisher.topics, 1)
	assert.Equal(t, kafka.TopicConsolidationCompleted, publisher.topics[0])
	payload, ok := publisher.events[0].(kafka.ConsolidationCompletedPayload)
	require.True(t, ok)
	assert.Equal(t, 2, payload.Entities)
	assert.Equal(t, 3, payload.Records)
	assert.NotEmpty(t, payload.RunID)
}

func TestConsolidateJob_DryRunLeavesStoresUntouched(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	seedStaging(store)
	publisher := &fakePublisher{}

	job := NewConsolidateJob(consolidator.DefaultConfig(), []string{"or1200_"}, ConsolidateDeps{
		Stores:    storesFor(store),
		Publisher: publisher,
	})

	res, err := job.Run(context.Background(), true)
	require.NoError(t, err)
	assert.Len(t, res.Entities, 2)

	entities, err := store.Entities().ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entities)
	assert.Empty(t, publisher.topics)
}

func TestConsolidateJob_LockFailureStopsRun(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	seedStaging(store)
	locker := &fakeLocker{lockErr: errors.New(errors.ErrCodeLockNotAcquired, "held elsewhere")}

	job := NewConsolidateJob(consolidator.DefaultConfig(), nil, ConsolidateDeps{
		Stores: storesFor(store),
		Locker: locker,
	})

	_, err := job.Run(context.Background(), false)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeLockNotAcquired))

	entities, err := store.Entities().ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entities)
}

func seedGraph(t *testing.T, store *memory.Store) {
	t.Helper()
	entities := []*entity.CanonicalEntity{
		{ID: "ent_alu", PrimaryName: "alu unit", Type: "component", Provenance: []string{"r1"}},
		{ID: "ent_ctrl", PrimaryName: "ctrl", Type: "signal", Provenance: []string{"r3"}},
	}
	require.NoError(t, store.Entities().ReplaceAll(context.Background(), entities))
	require.NoError(t, store.Index().Rebuild(context.Background(), entities))
	store.SeedElements([]*element.StructuralElement{
		{ID: "el_alu", Name: "or1200_alu", Role: element.RoleModule},
	})
}

func bridgeConfig() bridger.Config {
	cfg := bridger.DefaultConfig()
	cfg.StripPrefixes = []string{"or1200_"}
	return cfg
}

func TestBridgeJob_CommitsBridgesAndPublishes(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	seedGraph(t, store)
	locker := &fakeLocker{}
	publisher := &fakePublisher{}

	job, err := NewBridgeJob(bridgeConfig(), map[string][]string{"module": {"component"}}, BridgeDeps{
		Stores:    storesFor(store),
		Locker:    locker,
		Publisher: publisher,
	})
	require.NoError(t, err)

	res, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.Bridged)

	bridges, err := store.Bridges().ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, bridges, 1)
	assert.Equal(t, "ent_alu", bridges[0].ToEntityID)

	assert.Equal(t, 1, locker.locked)
	assert.Equal(t, 1, locker.unlocked)

	require.Len(t, publisher.topics, 1)
	assert.Equal(t, kafka.TopicBridgingCompleted, publisher.topics[0])
	payload, ok := publisher.events[0].(kafka.BridgingCompletedPayload)
	require.True(t, ok)
	assert.Equal(t, 1, payload.Bridged)
}

func TestBridgeJob_PublishFailureDoesNotFailRun(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	seedGraph(t, store)
	publisher := &fakePublisher{err: errors.New(errors.ErrCodeInternal, "broker down")}

	job, err := NewBridgeJob(bridgeConfig(), map[string][]string{"module": {"component"}}, BridgeDeps{
		Stores:    storesFor(store),
		Publisher: publisher,
	})
	require.NoError(t, err)

	res, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.Bridged)
}

func TestBridgeJob_RejectsBadConfig(t *testing.T) {
	t.Parallel()

	cfg := bridgeConfig()
	cfg.Thresholds[element.RoleModule] = 1.5

	_, err := NewBridgeJob(cfg, nil, BridgeDeps{Stores: storesFor(memory.NewStore())})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeThresholdInvalid))
}

func TestStatsJob_SnapshotsGraph(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	seedGraph(t, store)

	job, err := NewBridgeJob(bridgeConfig(), map[string][]string{"module": {"component"}}, BridgeDeps{
		Stores: storesFor(store),
	})
	require.NoError(t, err)
	_, err = job.Run(context.Background())
	require.NoError(t, err)

	stats, err := NewStatsJob(storesFor(store), nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Entities)
	assert.Equal(t, 1, stats.EntitiesByType["component"])
	assert.Equal(t, 1, stats.EntitiesByType["signal"])
	assert.Equal(t, 1, stats.Elements)
	assert.Equal(t, 1, stats.ElementsByRole["module"])
	assert.Equal(t, 1, stats.Bridges)
	assert.InDelta(t, 1.0, stats.BridgedRatio, 1e-9)
	assert.Greater(t, stats.AvgBridgeScore, 0.0)
}

func TestEngineConfig_MapsLoadedConfig(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)

	ec := EngineConfig(cfg)
	assert.Equal(t, 0.70, ec.Thresholds[element.RoleModule])
	assert.Equal(t, 0.60, ec.Thresholds[element.RolePort])
	assert.Equal(t, 0.35, ec.ModuleMinNameSimilarity)
	assert.Equal(t, 1.20, ec.ContextBoost)
	assert.Contains(t, ec.StripPrefixes, "or1200_")

	cc := ConsolidatorConfig(cfg)
	assert.Equal(t, consolidator.DefaultConfig(), cc)
}
