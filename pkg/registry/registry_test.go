package registry

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activity(id string) Activity {
	return Activity{ID: id, DisplayName: "Generate Quote", TaskType: id, Category: "quoting"}
}

func TestLoadRegistry_MissingFile(t *testing.T) {
	reg, err := LoadRegistry(filepath.Join(t.TempDir(), "none.json"))
	require.NoError(t, err)
	assert.Empty(t, reg.Activities)
}

func TestRegistry_UpsertSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs", "activity-registry.json")
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.False(t, reg.Upsert(activity("generate-quote"), now))

	updated := activity("generate-quote")
	updated.Version = "1.1.0"
	assert.True(t, reg.Upsert(updated, now))
	require.NoError(t, SaveRegistry(reg, path))

	loaded, err := LoadRegistry(path)
	require.NoError(t, err)
	require.Len(t, loaded.Activities, 1)
	assert.Equal(t, "2026-01-02T03:04:05Z", loaded.LastUpdated)

	got, ok := loaded.Find("generate-quote")
	require.True(t, ok)
	assert.Equal(t, "1.1.0", got.Version)
}

func TestRegistry_Validate(t *testing.T) {
	tests := []struct {
		name    string
		reg     ActivityRegistry
		wantErr string
	}{
		{name: "valid", reg: ActivityRegistry{Activities: []Activity{activity("a"), activity("b")}}},
		{name: "empty", reg: ActivityRegistry{}, wantErr: "no activities"},
		{name: "duplicate", reg: ActivityRegistry{Activities: []Activity{activity("a"), activity("a")}}, wantErr: "duplicate"},
		{name: "missing category", reg: ActivityRegistry{Activities: []Activity{{ID: "a", DisplayName: "A", TaskType: "a"}}}, wantErr: "Category"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.reg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
