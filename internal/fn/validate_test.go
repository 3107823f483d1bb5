package fn

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csso/fngraph/internal/dtype"
)

func TestBindManifests(t *testing.T) {
	compiled := []Descriptor{
		{Name: "sum", Inputs: []Arg{{Name: "a", Type: dtype.Int}, {Name: "b", Type: dtype.Int}}, Outputs: []Arg{{Name: "result", Type: dtype.Int}}},
		{Name: "print", Inputs: []Arg{{Name: "message", Type: dtype.Any}}},
	}
	pinned := uuid.MustParse("5a300d83-6f8c-4f0f-9a5d-9a2a7c64d9fb")
	manifests := []Descriptor{
		{Name: "print", Description: "Logs its input.", Inputs: []Arg{{Name: "message", Type: dtype.Any}}},
		{Name: "sum", ID: pinned, Inputs: []Arg{{Name: "a", Type: dtype.Int}, {Name: "b", Type: dtype.Int}}, Outputs: []Arg{{Name: "result", Type: dtype.Int}}},
	}

	resolved, err := BindManifests(context.Background(), manifests, compiled)
	require.NoError(t, err)
	require.Len(t, resolved, 2)

	// Order follows the compiled registration order, not manifest file order.
	assert.Equal(t, "sum", resolved[0].Name)
	assert.Equal(t, pinned, resolved[0].ID)
	assert.Equal(t, "print", resolved[1].Name)
	assert.Equal(t, DeriveID("print"), resolved[1].ID)
	assert.Equal(t, "Logs its input.", resolved[1].Description)
}

func TestBindManifestsParityErrors(t *testing.T) {
	testCases := []struct {
		name      string
		manifests []Descriptor
		compiled  []Descriptor
		wantErr   string
	}{
		{
			name:      "manifest without handler",
			manifests: []Descriptor{{Name: "ghost"}},
			wantErr:   "no Go handler is registered",
		},
		{
			name:     "handler without manifest",
			compiled: []Descriptor{{Name: "stowaway"}},
			wantErr:  "no manifest declares it",
		},
		{
			name:      "pin count mismatch",
			manifests: []Descriptor{{Name: "f", Inputs: []Arg{{Name: "a", Type: dtype.Int}}}},
			compiled:  []Descriptor{{Name: "f"}},
			wantErr:   "manifest declares 1 input pins, Go handler has 0",
		},
		{
			name:      "pin name mismatch",
			manifests: []Descriptor{{Name: "f", Inputs: []Arg{{Name: "a", Type: dtype.Int}}}},
			compiled:  []Descriptor{{Name: "f", Inputs: []Arg{{Name: "b", Type: dtype.Int}}}},
			wantErr:   "manifest names it 'a'",
		},
		{
			name:      "pin type mismatch",
			manifests: []Descriptor{{Name: "f", Outputs: []Arg{{Name: "r", Type: dtype.Float}}}},
			compiled:  []Descriptor{{Name: "f", Outputs: []Arg{{Name: "r", Type: dtype.String}}}},
			wantErr:   "type mismatch",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := BindManifests(context.Background(), tc.manifests, tc.compiled)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
