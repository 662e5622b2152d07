package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/marketplace-backend/internal/http/response"
)

func executeCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestHelpWithoutConfig(t *testing.T) {
	out, err := executeCLI(t, "--help")
	require.NoError(t, err)
	for _, sub := range []string{"migrate", "create-superuser", "seed-plans", "sync-plans"} {
		assert.Contains(t, out, sub)
	}
}

func TestCreateSuperuserRequiresFlags(t *testing.T) {
	_, err := executeCLI(t, "create-superuser", "--email", "root@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "password" not set`)
}

func TestMigrateDownRejectsNonPositiveSteps(t *testing.T) {
	_, err := executeCLI(t, "migrate", "down", "--steps", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--steps must be positive")
}

func TestReadPlans(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
		want    []string
	}{
		{
			name:    "valid file",
			content: `[{"name":"Basic","price":5},{"name":"Pro","price":15,"features":["reports"]}]`,
			want:    []string{"Basic", "Pro"},
		},
		{name: "unknown plan name", content: `[{"name":"Gold","price":5}]`, wantErr: true},
		{name: "zero price", content: `[{"name":"Basic","price":0}]`, wantErr: true},
		{name: "broken json", content: `[{"name":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "plans.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			plans, err := readPlans(path)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			names := make([]string, 0, len(plans))
			for _, p := range plans {
				names = append(names, p.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestDefaultPlansAreValid(t *testing.T) {
	v := response.NewValidator()
	for _, p := range defaultPlans {
		assert.NoError(t, v.Struct(p), p.Name)
		assert.True(t, json.Valid(p.Features), p.Name)
	}
}
