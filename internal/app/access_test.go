package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragdesk/internal/model"
)

func TestAllowedSourceTypes(t *testing.T) {
	tests := []struct {
		role    model.Role
		allowed []model.SourceType
	}{
		{model.RoleFullAccess, []model.SourceType{model.SourcePDF, model.SourceWeb}},
		{model.RolePDFOnly, []model.SourceType{model.SourcePDF}},
		{model.RoleWebOnly, []model.SourceType{model.SourceWeb}},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			allowed, err := AllowedSourceTypes(tt.role)
			require.NoError(t, err)
			assert.Equal(t, tt.allowed, allowed)
		})
	}
}

func TestAllowedSourceTypes_UnknownRole(t *testing.T) {
	for _, role := range []model.Role{"", "admin", "superuser", "PDF-ONLY"} {
		allowed, err := AllowedSourceTypes(role)
		assert.ErrorIs(t, err, model.ErrUnknownRole, "role %q", role)
		assert.Nil(t, allowed)
	}
}

func TestCanContribute(t *testing.T) {
	tests := []struct {
		role   model.Role
		source model.SourceType
		want   bool
	}{
		{model.RoleFullAccess, model.SourcePDF, true},
		{model.RoleFullAccess, model.SourceWeb, true},
		{model.RolePDFOnly, model.SourcePDF, true},
		{model.RolePDFOnly, model.SourceWeb, false},
		{model.RoleWebOnly, model.SourceWeb, true},
		{model.RoleWebOnly, model.SourcePDF, false},
	}
	for _, tt := range tests {
		ok, err := CanContribute(tt.role, tt.source)
		require.NoError(t, err)
		assert.Equal(t, tt.want, ok, "%s contributing %s", tt.role, tt.source)
	}
}

func TestCanContribute_UnknownRole(t *testing.T) {
	_, err := CanContribute("viewer", model.SourcePDF)
	assert.ErrorIs(t, err, model.ErrUnknownRole)
}

func TestCanDeleteDocuments(t *testing.T) {
	assert.True(t, CanDeleteDocuments(model.RoleFullAccess))
	assert.False(t, CanDeleteDocuments(model.RolePDFOnly))
	assert.False(t, CanDeleteDocuments(model.RoleWebOnly))
	assert.False(t, CanDeleteDocuments("admin"))
}
