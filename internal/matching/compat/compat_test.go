package compat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/silicograph/bridger/internal/domain/element"
	"github.com/silicograph/bridger/internal/matching/compat"
)

func testRules() map[string][]string {
	return map[string][]string{
		"signal": {"register", "signal", "architecture_feature"},
		"module": {"component", "architecture_feature"},
		"port":   {"signal", "register", "interface"},
	}
}

func TestAllows(t *testing.T) {
	t.Parallel()

	m := compat.NewMatrix(testRules())

	cases := []struct {
		name       string
		role       element.Role
		entityType string
		want       bool
	}{
		{"signal to register", element.RoleSignal, "register", true},
		{"signal to architecture feature", element.RoleSignal, "architecture_feature", true},
		{"signal never bridges to instruction", element.RoleSignal, "instruction", false},
		{"module to component", element.RoleModule, "component", true},
		{"module not to register", element.RoleModule, "register", false},
		{"unconfigured role is fail-closed", element.RoleFSM, "architecture_feature", false},
		{"empty type", element.RoleSignal, "", false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, m.Allows(tc.role, tc.entityType))
		})
	}
}

func TestCompatibleTypes_SortedAndDeduplicated(t *testing.T) {
	t.Parallel()

	m := compat.NewMatrix(map[string][]string{
		"port": {"signal", "register", "signal", ""},
	})
	assert.Equal(t, []string{"register", "signal"}, m.CompatibleTypes(element.RolePort))
	assert.Nil(t, m.CompatibleTypes(element.RoleClock), "unconfigured role returns nil")
}
