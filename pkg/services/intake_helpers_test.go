package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-intake/pkg/config"
	"github.com/ekaya-inc/ekaya-intake/pkg/models"
)

// newTestTable builds a table of text cells. Empty strings become null cells,
// as they do when a file is ingested.
func newTestTable(t *testing.T, name string, headers []string, rows ...[]string) *models.Table {
	t.Helper()

	records := make([]models.Record, 0, len(rows))
	for _, row := range rows {
		require.Len(t, row, len(headers), "row width must match headers")
		rec := make(models.Record, len(headers))
		for i, h := range headers {
			if row[i] == "" {
				rec[h] = models.NullCell()
			} else {
				rec[h] = models.TextCell(row[i])
			}
		}
		records = append(records, rec)
	}

	table, err := models.NewTable(name, headers, records)
	require.NoError(t, err)
	return table
}

// singleColumn builds a single-column table from values.
func singleColumn(t *testing.T, name, header string, values ...string) *models.Table {
	t.Helper()
	rows := make([][]string, len(values))
	for i, v := range values {
		rows[i] = []string{v}
	}
	return newTestTable(t, name, []string{header}, rows...)
}

// testEngineConfig returns the default thresholds with the injection scan
// off, so JSON-heavy fixtures are not flagged.
func testEngineConfig() config.EngineConfig {
	cfg := config.DefaultEngineConfig()
	cfg.CheckSuspiciousContent = false
	return cfg
}

func clientsTable(t *testing.T) *models.Table {
	return newTestTable(t, "clients.csv",
		[]string{"ClientID", "ClientName", "PriorityLevel", "RequestedTaskIDs", "GroupTag"},
		[]string{"C1", "Acme Corp", "3", "T1,T2,999", "G1"},
		[]string{"C2", "Globex", "5", "T1", "G1"},
	)
}

func workersTable(t *testing.T) *models.Table {
	return newTestTable(t, "workers.csv",
		[]string{"WorkerID", "WorkerName", "Skills", "AvailableSlots", "WorkerGroup"},
		[]string{"W1", "Ann", "python,sql", "[1,2]", "G1"},
		[]string{"W2", "Bob", "sql", "[2,3]", "G1"},
	)
}

func tasksTable(t *testing.T) *models.Table {
	return newTestTable(t, "tasks.csv",
		[]string{"TaskID", "TaskName", "RequiredSkills", "PreferredPhases", "MaxConcurrent"},
		[]string{"T1", "Build", "python", "[1]", "1"},
		[]string{"T2", "Query", "sql", "[2]", "2"},
	)
}
