package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClosurePolicy_RequiresSignOff(t *testing.T) {
	policy := &ClosurePolicy{
		DefaultSignOff: true,
		Departments: map[string]bool{
			"parks": false,
		},
		RestrictionTypes: map[string]bool{
			"full_closure": true,
		},
	}

	tests := []struct {
		name            string
		department      string
		restrictionType string
		want            bool
	}{
		{"global default", "roads", "lane_closure", true},
		{"department opt-out", "parks", "lane_closure", false},
		{"restriction type wins over department", "parks", "full_closure", true},
		{"unknown everything falls back", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.RequiresSignOff(tt.department, tt.restrictionType))
		})
	}
}

func TestLoadClosurePolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	content := `defaultSignOff: false
departments:
  roads: true
restrictionTypes:
  full_closure: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	policy, err := LoadClosurePolicy(path)
	require.NoError(t, err)
	assert.False(t, policy.DefaultSignOff)
	assert.True(t, policy.RequiresSignOff("roads", ""))
	assert.True(t, policy.RequiresSignOff("parks", "full_closure"))
	assert.False(t, policy.RequiresSignOff("parks", ""))
}

func TestLoadClosurePolicy_Missing(t *testing.T) {
	_, err := LoadClosurePolicy(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
