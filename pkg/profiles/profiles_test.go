package profiles

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-intake/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-intake/pkg/models"
)

func TestDefault_ProfilesInResolutionOrder(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	profiles := r.Profiles()
	require.Len(t, profiles, 3)
	assert.Equal(t, models.EntityClient, profiles[0].Type)
	assert.Equal(t, models.EntityWorker, profiles[1].Type)
	assert.Equal(t, models.EntityTask, profiles[2].Type)
}

func TestDefault_ClientProfile(t *testing.T) {
	r := MustDefault()
	p, ok := r.Profile(models.EntityClient)
	require.True(t, ok)

	assert.Equal(t, []string{"ClientID", "ClientName", "PriorityLevel", "RequestedTaskIDs", "GroupTag"}, p.RequiredFields)
	assert.Equal(t, []string{"AttributesJSON", "Email", "Phone", "Region", "Budget"}, p.OptionalFields)
	assert.Equal(t, "ClientID", p.IDField)
	assert.True(t, p.IDPattern.MatchString("c12"), "id pattern is case-insensitive")
	assert.False(t, p.IDPattern.MatchString("W1"))
	assert.Len(t, p.Patterns["ClientID"], 6)
	assert.True(t, p.Patterns["ClientID"][0].MatchString("CLIENT_ID"))
	assert.Len(t, p.SampleSignals, 3)
	assert.Contains(t, p.ColumnAliases(models.ColumnRequestedTasks), "RequestedTaskIDs")

	_, ok = r.Profile(models.EntityUnknown)
	assert.False(t, ok)
}

func TestDefault_TaskSignals(t *testing.T) {
	p, ok := MustDefault().Profile(models.EntityTask)
	require.True(t, ok)

	require.Len(t, p.SampleSignals, 3)
	idSignal := p.SampleSignals[0]
	assert.True(t, idSignal.Matches(models.TextCell("T12")))
	assert.False(t, idSignal.Matches(models.TextCell("t12")), "sample patterns keep their case")

	durationSignal := p.SampleSignals[1]
	assert.True(t, durationSignal.Matches(models.NumberCell(40)))
	assert.False(t, durationSignal.Matches(models.NumberCell(100)))

	assert.Len(t, p.IDTokens, 2)
	assert.True(t, p.IDTokens[1].MatchString("TASK7"))
}

func TestDefault_RolePatterns(t *testing.T) {
	p, ok := MustDefault().Profile(models.EntityWorker)
	require.True(t, ok)

	assert.True(t, p.Role.Filename[0].MatchString("Workers.csv"))
	assert.True(t, p.Role.Headers[0].MatchString("WorkerID"))
}

const tomlProfiles = `
[[profiles]]
type = "client"
required_fields = ["ClientID"]
id_field = "ClientID"
id_pattern = '^C\d+$'

[profiles.patterns]
ClientID = ["client.*id"]

[[profiles.sample_signals]]
kind = "numeric_range"
min = 1.0
max = 5.0
weight = 1.0

[[profiles]]
type = "worker"
required_fields = ["WorkerID"]

[profiles.role]
filename = ["worker"]

[[profiles]]
type = "task"
required_fields = ["TaskID"]

[profiles.columns]
id = ["TaskID", "ID"]
`

func TestParse_TOML(t *testing.T) {
	r, err := Parse([]byte(tomlProfiles), FormatTOML)
	require.NoError(t, err)

	client, ok := r.Profile(models.EntityClient)
	require.True(t, ok)
	assert.Equal(t, []string{"ClientID"}, client.RequiredFields)
	require.Len(t, client.SampleSignals, 1)
	assert.Equal(t, models.SignalNumericRange, client.SampleSignals[0].Kind)

	worker, _ := r.Profile(models.EntityWorker)
	require.Len(t, worker.Role.Filename, 1)

	task, _ := r.Profile(models.EntityTask)
	assert.Equal(t, []string{"TaskID", "ID"}, task.ColumnAliases(models.ColumnID))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "missing role",
			doc: `
profiles:
  - {type: client, required_fields: [ClientID]}
  - {type: worker, required_fields: [WorkerID]}
`,
		},
		{
			name: "duplicate role",
			doc: `
profiles:
  - {type: client, required_fields: [ClientID]}
  - {type: client, required_fields: [ClientID]}
  - {type: worker, required_fields: [WorkerID]}
  - {type: task, required_fields: [TaskID]}
`,
		},
		{
			name: "unknown type",
			doc: `
profiles:
  - {type: vendor, required_fields: [VendorID]}
`,
		},
		{
			name: "pattern for unknown field",
			doc: `
profiles:
  - type: client
    required_fields: [ClientID]
    patterns:
      Nope: [x]
`,
		},
		{
			name: "bad regex",
			doc: `
profiles:
  - type: client
    required_fields: [ClientID]
    patterns:
      ClientID: ['(']
`,
		},
		{
			name: "bad signal kind",
			doc: `
profiles:
  - type: client
    required_fields: [ClientID]
    sample_signals:
      - {kind: vibes, weight: 1}
`,
		},
		{
			name: "unknown key",
			doc: `
profiles:
  - type: client
    required: [ClientID]
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), FormatYAML)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidProfile)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	tomlPath := filepath.Join(dir, "profiles.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(tomlProfiles), 0644))
	r, err := Load(tomlPath)
	require.NoError(t, err)
	assert.Len(t, r.Profiles(), 3)

	r, err = Load("")
	require.NoError(t, err)
	assert.Len(t, r.Profiles(), 3)

	_, err = Load(filepath.Join(dir, "profiles.json"))
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedFormat)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
