package services

import (
	"fmt"

	"github.com/ekaya-inc/ekaya-intake/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-intake/pkg/models"
)

// TransformTable rewrites a table under a header mapping. Headers keep their
// original order and are replaced by their canonical names; cell values are
// copied unchanged. The input table is not modified.
//
// Matched canonical names are claimed first, then the remaining names that
// are still free. A column whose name is already claimed is suffixed _2, _3,
// and so on, so the output headers stay unique.
func TransformTable(table *models.Table, mapping models.HeaderMapping) (*models.Table, error) {
	if table == nil {
		return nil, fmt.Errorf("transform: nil table: %w", apperrors.ErrEmptyInput)
	}

	assignments := make([]models.HeaderAssignment, len(table.Headers))
	for i, h := range table.Headers {
		a, ok := findAssignment(mapping, h)
		if !ok {
			return nil, fmt.Errorf("table %q header %q: %w", table.Name, h, apperrors.ErrMappingMismatch)
		}
		assignments[i] = a
	}

	used := make(map[string]bool, len(assignments))
	named := make([]bool, len(assignments))
	outHeaders := make([]string, len(assignments))

	for i, a := range assignments {
		if a.Matched && !used[a.Canonical] {
			outHeaders[i] = a.Canonical
			named[i] = true
			used[a.Canonical] = true
		}
	}
	for i, a := range assignments {
		if !named[i] && !used[a.Canonical] {
			outHeaders[i] = a.Canonical
			named[i] = true
			used[a.Canonical] = true
		}
	}
	for i, a := range assignments {
		if named[i] {
			continue
		}
		name := a.Canonical
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s_%d", a.Canonical, n)
		}
		outHeaders[i] = name
		used[name] = true
	}

	rows := make([]models.Record, len(table.Rows))
	for r, row := range table.Rows {
		out := make(models.Record, len(outHeaders))
		for i, h := range table.Headers {
			if c, ok := row[h]; ok {
				out[outHeaders[i]] = c
			}
		}
		rows[r] = out
	}

	return models.NewTable(table.Name, outHeaders, rows)
}

func findAssignment(mapping models.HeaderMapping, raw string) (models.HeaderAssignment, bool) {
	for _, a := range mapping.Assignments {
		if a.Raw == raw {
			return a, true
		}
	}
	return models.HeaderAssignment{}, false
}
