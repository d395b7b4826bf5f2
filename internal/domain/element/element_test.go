package element_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silicograph/bridger/internal/domain/element"
	"github.com/silicograph/bridger/pkg/errors"
)

func TestRoleIsValid(t *testing.T) {
	t.Parallel()

	for _, r := range element.AllRoles {
		assert.True(t, r.IsValid(), "role %s", r)
	}
	assert.False(t, element.Role("instruction").IsValid())
	assert.False(t, element.Role("").IsValid())
}

func TestStructuralElementValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		el       *element.StructuralElement
		wantCode errors.ErrorCode
	}{
		{"valid port", &element.StructuralElement{ID: "e1", Name: "spr_dat_i", Role: element.RolePort, ParentID: "m1"}, errors.CodeOK},
		{"valid top-level module", &element.StructuralElement{ID: "e2", Name: "or1200_top", Role: element.RoleModule}, errors.CodeOK},
		{"missing name", &element.StructuralElement{ID: "e3", Role: element.RoleSignal}, errors.CodeInvalidParam},
		{"unknown role", &element.StructuralElement{ID: "e4", Name: "x", Role: element.Role("wire")}, errors.ErrCodeUnknownRole},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.el.Validate()
			if tc.wantCode == errors.CodeOK {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tc.wantCode, errors.GetCode(err))
		})
	}
}

func TestArchitecturalRoles_ExcludeHierarchy(t *testing.T) {
	t.Parallel()

	for _, r := range element.ArchitecturalRoles {
		assert.NotEqual(t, element.RoleModule, r)
		assert.NotEqual(t, element.RolePort, r)
		assert.NotEqual(t, element.RoleSignal, r)
	}
}
