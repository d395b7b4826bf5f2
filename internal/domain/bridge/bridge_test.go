package bridge_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silicograph/bridger/internal/domain/bridge"
	"github.com/silicograph/bridger/pkg/errors"
)

func TestBridgeValidate(t *testing.T) {
	t.Parallel()

	valid := &bridge.Bridge{
		FromElementID: "el1",
		ToEntityID:    "ent_a",
		Score:         0.82,
		Method:        bridge.MethodJaroWinkler,
	}
	assert.NoError(t, valid.Validate())

	cases := []struct {
		name string
		b    *bridge.Bridge
	}{
		{"missing element", &bridge.Bridge{ToEntityID: "ent_a", Score: 0.5}},
		{"missing entity", &bridge.Bridge{FromElementID: "el1", Score: 0.5}},
		{"score above one", &bridge.Bridge{FromElementID: "el1", ToEntityID: "ent_a", Score: 1.2}},
		{"negative score", &bridge.Bridge{FromElementID: "el1", ToEntityID: "ent_a", Score: -0.1}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Error(t, tc.b.Validate())
		})
	}
}

func TestKey_DeterministicPerEndpointsAndMethod(t *testing.T) {
	t.Parallel()

	a := &bridge.Bridge{FromElementID: "el1", ToEntityID: "ent_a", Method: bridge.MethodJaroWinkler}
	b := &bridge.Bridge{FromElementID: "el1", ToEntityID: "ent_a", Method: bridge.MethodJaroWinkler, Score: 0.9}
	c := &bridge.Bridge{FromElementID: "el1", ToEntityID: "ent_b", Method: bridge.MethodJaroWinkler}

	assert.Equal(t, a.Key(), b.Key(), "score must not affect edge identity")
	assert.NotEqual(t, a.Key(), c.Key())
	assert.Regexp(t, `^brg_[0-9a-f]{32}$`, a.Key())
}

func TestSort_OrdersByElementID(t *testing.T) {
	t.Parallel()

	bridges := []*bridge.Bridge{
		{FromElementID: "el3"}, {FromElementID: "el1"}, {FromElementID: "el2"},
	}
	bridge.Sort(bridges)
	assert.Equal(t, "el1", bridges[0].FromElementID)
	assert.Equal(t, "el3", bridges[2].FromElementID)
}

func TestValidate_ErrorCarriesValidationCode(t *testing.T) {
	t.Parallel()

	err := (&bridge.Bridge{FromElementID: "el1", ToEntityID: "ent_a", Score: 2}).Validate()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}
