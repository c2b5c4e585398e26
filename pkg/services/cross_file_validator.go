package services

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/ekaya-intake/pkg/listparse"
	"github.com/ekaya-inc/ekaya-intake/pkg/logging"
	"github.com/ekaya-inc/ekaya-intake/pkg/models"
	"github.com/ekaya-inc/ekaya-intake/pkg/profiles"
	"github.com/ekaya-inc/ekaya-intake/pkg/textmatch"
)

const (
	// Role resolution evidence weights. Header evidence outweighs the
	// filename so a client-shaped "workers.csv" resolves as the client table.
	roleHeaderMatch   = 2
	roleFilenameMatch = 1

	// inventoryPreview is how many task IDs the inventory message lists.
	inventoryPreview = 5
	// jsonPreviewLength bounds the cell text echoed in cross-file JSON errors.
	jsonPreviewLength = 50
)

// CrossFileValidator checks references and consistency across the client,
// worker and task tables of one intake.
type CrossFileValidator interface {
	// ValidateCrossFile resolves the three roles among tables and runs the
	// cross-table checks. A missing role yields a single
	// missing_required_files error and no further checks. The error is
	// non-nil only when ctx ends; the result then holds what was collected.
	ValidateCrossFile(ctx context.Context, tables []*models.Table) (models.ValidationResult, error)
}

type crossFileValidator struct {
	registry *profiles.Registry
	logger   *zap.Logger
}

// NewCrossFileValidator creates a cross-file validator over the given profiles.
func NewCrossFileValidator(registry *profiles.Registry, logger *zap.Logger) CrossFileValidator {
	return &crossFileValidator{
		registry: registry,
		logger:   logger.Named("cross-file-validator"),
	}
}

var _ CrossFileValidator = (*crossFileValidator)(nil)

// resolvedTables holds the table and profile chosen for each role.
type resolvedTables struct {
	client, worker, task                      *models.Table
	clientProfile, workerProfile, taskProfile *models.EntityProfile
}

func (v *crossFileValidator) ValidateCrossFile(ctx context.Context, tables []*models.Table) (models.ValidationResult, error) {
	result := models.NewValidationResult()
	if err := ctx.Err(); err != nil {
		return result, err
	}

	roles := v.resolveRoles(tables)
	var missing []string
	for _, t := range models.KnownEntityTypes {
		if roles[t] == nil {
			missing = append(missing, string(t))
		}
	}
	if len(missing) > 0 {
		v.logger.Info("Cross-file validation skipped, missing roles",
			zap.Strings("missing", missing),
			zap.Int("tables", len(tables)))
		result.Add(models.ValidationIssue{
			Severity: models.SeverityError,
			Type:     models.IssueMissingRequiredFiles,
			Message: fmt.Sprintf("Missing required files: Expected Clients, Workers, and Tasks files (not found: %s)",
				strings.Join(missing, ", ")),
			Fixable: false,
		})
		return result, nil
	}

	r := resolvedTables{
		client: roles[models.EntityClient],
		worker: roles[models.EntityWorker],
		task:   roles[models.EntityTask],
	}
	r.clientProfile, _ = v.registry.Profile(models.EntityClient)
	r.workerProfile, _ = v.registry.Profile(models.EntityWorker)
	r.taskProfile, _ = v.registry.Profile(models.EntityTask)

	taskIDs := buildIDUniverse(r.task, r.taskProfile)

	v.logger.Debug("Resolved cross-file roles",
		zap.String("client", r.client.Name),
		zap.String("worker", r.worker.Name),
		zap.String("task", r.task.Name),
		zap.Int("task_ids", taskIDs.Len()))

	steps := []func(context.Context) []models.ValidationIssue{
		func(ctx context.Context) []models.ValidationIssue { return v.checkTaskReferences(ctx, r, taskIDs) },
		func(ctx context.Context) []models.ValidationIssue { return v.checkAttributeJSON(ctx, r) },
		func(ctx context.Context) []models.ValidationIssue { return v.checkSkillCoverage(ctx, r) },
		func(context.Context) []models.ValidationIssue { return v.checkGroupAlignment(r) },
		func(ctx context.Context) []models.ValidationIssue { return v.checkCapacity(ctx, r) },
		func(ctx context.Context) []models.ValidationIssue { return v.checkPhaseAvailability(ctx, r) },
	}

	// Checks only read the tables; each writes its own slot so the merge
	// below keeps step order. Row loops stop early once gctx is done.
	collected := make([][]models.ValidationIssue, len(steps))
	g, gctx := errgroup.WithContext(ctx)
	for i, step := range steps {
		i, step := i, step
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			collected[i] = step(gctx)
			return gctx.Err()
		})
	}
	err := g.Wait()

	for _, issues := range collected {
		result.Add(issues...)
	}
	if err != nil {
		return result, err
	}

	if taskIDs.Len() > 0 {
		ids := taskIDs.InsertionOrder()
		preview := ids
		suffix := ""
		if len(preview) > inventoryPreview {
			preview = preview[:inventoryPreview]
			suffix = "..."
		}
		result.Add(models.ValidationIssue{
			Severity:      models.SeverityInfo,
			Type:          models.IssueTaskInventory,
			Message:       fmt.Sprintf("Found %d valid TaskIDs in Tasks file: %s%s", len(ids), strings.Join(preview, ", "), suffix),
			Fixable:       false,
			RelatedTables: []string{r.task.Name},
		})
	}

	v.logger.Debug("Cross-file validation complete",
		zap.Int("errors", result.Summary.ErrorCount),
		zap.Int("warnings", result.Summary.WarningCount),
		zap.Int("info", result.Summary.InfoCount))

	return result, nil
}

// roleCandidate is one (role, table) pairing with its evidence score.
type roleCandidate struct {
	roleIndex  int
	tableIndex int
	score      int
}

// resolveRoles assigns at most one table to each role. Candidates are taken
// greedily by score, then role order (client, worker, task), then input
// order. A table is never used for two roles.
func (v *crossFileValidator) resolveRoles(tables []*models.Table) map[models.EntityType]*models.Table {
	var candidates []roleCandidate
	for ri, t := range models.KnownEntityTypes {
		profile, ok := v.registry.Profile(t)
		if !ok {
			continue
		}
		for ti, table := range tables {
			if table == nil {
				continue
			}
			score := 0
			if headersMatchRole(table.Headers, profile.Role) {
				score += roleHeaderMatch
			}
			if filenameMatchesRole(table.Name, profile.Role) {
				score += roleFilenameMatch
			}
			if score > 0 {
				candidates = append(candidates, roleCandidate{roleIndex: ri, tableIndex: ti, score: score})
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.roleIndex != b.roleIndex {
			return a.roleIndex < b.roleIndex
		}
		return a.tableIndex < b.tableIndex
	})

	roles := make(map[models.EntityType]*models.Table, len(models.KnownEntityTypes))
	tableUsed := make(map[int]bool)
	for _, c := range candidates {
		role := models.KnownEntityTypes[c.roleIndex]
		if roles[role] != nil || tableUsed[c.tableIndex] {
			continue
		}
		roles[role] = tables[c.tableIndex]
		tableUsed[c.tableIndex] = true
	}
	return roles
}

func headersMatchRole(headers []string, role models.RoleMatcher) bool {
	for _, h := range headers {
		if anyPatternMatches(role.Headers, h) {
			return true
		}
	}
	return false
}

// filenameMatchesRole checks the file's base name and its singular form,
// so "people.csv" is recognized by a "person" pattern.
func filenameMatchesRole(name string, role models.RoleMatcher) bool {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	lower := strings.ToLower(base)
	return anyPatternMatches(role.Filename, base) || anyPatternMatches(role.Filename, inflection.Singular(lower))
}

// buildIDUniverse collects the normalized identifiers of a table. Sources
// are tried in order until one yields an identifier: columns named after an
// ID alias of the profile, columns whose name contains id or key, then a scan
// of every text cell for the profile's ID tokens.
func buildIDUniverse(table *models.Table, profile *models.EntityProfile) *models.IDUniverse {
	universe := models.NewIDUniverse(profile.Type)

	aliases := make(map[string]bool)
	if profile.IDField != "" {
		aliases[textmatch.Normalize(profile.IDField)] = true
	}
	for _, alias := range profile.ColumnAliases(models.ColumnID) {
		aliases[textmatch.Normalize(alias)] = true
	}

	var aliasColumns, genericColumns []string
	for _, h := range table.Headers {
		n := textmatch.Normalize(h)
		if n == "" {
			continue
		}
		if aliases[n] {
			aliasColumns = append(aliasColumns, h)
		}
		if strings.Contains(n, "id") || strings.Contains(n, "key") {
			genericColumns = append(genericColumns, h)
		}
	}

	addColumns(universe, table, aliasColumns)
	if universe.Len() == 0 {
		addColumns(universe, table, genericColumns)
	}

	if universe.Len() == 0 && len(profile.IDTokens) > 0 {
		for _, h := range table.Headers {
			for _, c := range table.Column(h) {
				if c.Kind() != models.CellText {
					continue
				}
				id := textmatch.NormalizeID(c.Text())
				if anyPatternMatches(profile.IDTokens, id) {
					universe.Add(id)
				}
			}
		}
	}

	return universe
}

func addColumns(universe *models.IDUniverse, table *models.Table, columns []string) {
	for _, h := range columns {
		for _, c := range table.Column(h) {
			if c.IsEmpty() {
				continue
			}
			universe.Add(textmatch.NormalizeID(c.Text()))
		}
	}
}

// findColumns returns the headers that match any alias, in alias order then
// header order, without repeats. A header matches when its normalized form
// equals, contains, or is contained in the normalized alias; containment of
// the header in the alias requires more than two letters.
func findColumns(headers []string, aliases []string) []string {
	var found []string
	for _, alias := range aliases {
		a := textmatch.Normalize(alias)
		if a == "" {
			continue
		}
		for _, h := range headers {
			n := textmatch.Normalize(h)
			if n == "" || slices.Contains(found, h) {
				continue
			}
			if n == a || strings.Contains(n, a) || (len(n) > 2 && strings.Contains(a, n)) {
				found = append(found, h)
			}
		}
	}
	return found
}

// checkTaskReferences reports client rows that request unknown task IDs.
func (v *crossFileValidator) checkTaskReferences(ctx context.Context, r resolvedTables, taskIDs *models.IDUniverse) []models.ValidationIssue {
	var issues []models.ValidationIssue
	columns := findColumns(r.client.Headers, r.clientProfile.ColumnAliases(models.ColumnRequestedTasks))

	for _, col := range columns {
		for row := range r.client.Rows {
			if ctx.Err() != nil {
				return issues
			}
			cell := r.client.Cell(row, col)
			if cell.IsEmpty() {
				continue
			}

			var invalid []string
			for _, token := range listparse.ParseTokens(cell.Text()) {
				id := textmatch.NormalizeID(token)
				if id != "" && !taskIDs.Contains(id) {
					invalid = append(invalid, id)
				}
			}
			if len(invalid) == 0 {
				continue
			}

			issues = append(issues, models.ValidationIssue{
				Severity:      models.SeverityError,
				Type:          models.IssueInvalidTaskReference,
				Message:       fmt.Sprintf("Invalid task references: %s not found in Tasks file", logging.SanitizeValue(strings.Join(invalid, ", "))),
				Location:      models.At(r.client.Name, row, col),
				Value:         models.ValueOf(cell),
				Fixable:       false,
				RelatedTables: []string{r.task.Name},
			})
		}
	}
	return issues
}

// checkAttributeJSON re-checks JSON-looking cells in attribute columns of
// every resolved table.
func (v *crossFileValidator) checkAttributeJSON(ctx context.Context, r resolvedTables) []models.ValidationIssue {
	var issues []models.ValidationIssue
	pairs := []struct {
		table   *models.Table
		profile *models.EntityProfile
	}{
		{r.client, r.clientProfile},
		{r.worker, r.workerProfile},
		{r.task, r.taskProfile},
	}

	for _, p := range pairs {
		for _, col := range findColumns(p.table.Headers, p.profile.ColumnAliases(models.ColumnAttributes)) {
			for row := range p.table.Rows {
				if ctx.Err() != nil {
					return issues
				}
				cell := p.table.Cell(row, col)
				if cell.IsEmpty() {
					continue
				}
				text := strings.TrimSpace(cell.Text())
				if listparse.ValidJSONOrText(text) {
					continue
				}
				issues = append(issues, models.ValidationIssue{
					Severity:      models.SeverityError,
					Type:          models.IssueMalformedJSON,
					Message:       fmt.Sprintf("Malformed JSON in %s: %s", col, logging.TruncateString(text, jsonPreviewLength)),
					Location:      models.At(p.table.Name, row, col),
					Value:         models.ValueOf(cell),
					Fixable:       true,
					RelatedTables: []string{p.table.Name},
				})
			}
		}
	}
	return issues
}

// workerSkillUnion returns every lower-cased skill any worker has.
func workerSkillUnion(r resolvedTables) map[string]bool {
	union := make(map[string]bool)
	for _, col := range findColumns(r.worker.Headers, r.workerProfile.ColumnAliases(models.ColumnSkills)) {
		for _, c := range r.worker.Column(col) {
			if c.IsEmpty() {
				continue
			}
			for _, skill := range listparse.ParseSkills(c.Text()) {
				union[normalizeSkill(skill)] = true
			}
		}
	}
	return union
}

// checkSkillCoverage reports task skills that no worker has.
func (v *crossFileValidator) checkSkillCoverage(ctx context.Context, r resolvedTables) []models.ValidationIssue {
	var issues []models.ValidationIssue
	available := workerSkillUnion(r)

	for _, col := range findColumns(r.task.Headers, r.taskProfile.ColumnAliases(models.ColumnRequiredSkills)) {
		for row := range r.task.Rows {
			if ctx.Err() != nil {
				return issues
			}
			cell := r.task.Cell(row, col)
			if cell.IsEmpty() {
				continue
			}
			var unavailable []string
			for _, skill := range listparse.ParseSkills(cell.Text()) {
				if !available[normalizeSkill(skill)] {
					unavailable = append(unavailable, skill)
				}
			}
			if len(unavailable) == 0 {
				continue
			}
			issues = append(issues, models.ValidationIssue{
				Severity:      models.SeverityWarning,
				Type:          models.IssueSkillCoverageGap,
				Message:       fmt.Sprintf("Required skills not available in any worker: %s", logging.SanitizeValue(strings.Join(unavailable, ", "))),
				Location:      models.At(r.task.Name, row, col),
				Value:         models.ValueOf(cell),
				Fixable:       false,
				RelatedTables: []string{r.worker.Name},
			})
		}
	}
	return issues
}

// checkGroupAlignment reports client groups that no worker belongs to. It
// runs only when both tables have a group column.
func (v *crossFileValidator) checkGroupAlignment(r resolvedTables) []models.ValidationIssue {
	clientCols := findColumns(r.client.Headers, r.clientProfile.ColumnAliases(models.ColumnGroups))
	workerCols := findColumns(r.worker.Headers, r.workerProfile.ColumnAliases(models.ColumnGroups))
	if len(clientCols) == 0 || len(workerCols) == 0 {
		return nil
	}

	clientGroups := collectTrimmed(r.client, clientCols)
	workerGroups := collectTrimmed(r.worker, workerCols)

	var unmatched []string
	for g := range clientGroups {
		if !workerGroups[g] {
			unmatched = append(unmatched, g)
		}
	}
	sort.Strings(unmatched)

	issues := make([]models.ValidationIssue, 0, len(unmatched))
	for _, g := range unmatched {
		issues = append(issues, models.ValidationIssue{
			Severity:      models.SeverityWarning,
			Type:          models.IssueGroupMismatch,
			Message:       fmt.Sprintf("Client group '%s' has no corresponding workers", logging.SanitizeValue(g)),
			Fixable:       false,
			RelatedTables: []string{r.client.Name, r.worker.Name},
		})
	}
	return issues
}

func collectTrimmed(table *models.Table, columns []string) map[string]bool {
	values := make(map[string]bool)
	for _, col := range columns {
		for _, c := range table.Column(col) {
			if c.IsEmpty() {
				continue
			}
			values[strings.TrimSpace(c.Text())] = true
		}
	}
	return values
}

// checkCapacity reports tasks whose concurrency exceeds the number of
// workers holding every required skill. Only the first matched concurrency
// and required-skills columns are read; worker skills merge across every
// matched column.
func (v *crossFileValidator) checkCapacity(ctx context.Context, r resolvedTables) []models.ValidationIssue {
	maxCols := findColumns(r.task.Headers, r.taskProfile.ColumnAliases(models.ColumnMaxConcurrent))
	reqCols := findColumns(r.task.Headers, r.taskProfile.ColumnAliases(models.ColumnRequiredSkills))
	workerCols := findColumns(r.worker.Headers, r.workerProfile.ColumnAliases(models.ColumnSkills))
	if len(maxCols) == 0 || len(reqCols) == 0 || len(workerCols) == 0 {
		return nil
	}
	maxCol, reqCol := maxCols[0], reqCols[0]

	workerSkills := make([]map[string]bool, r.worker.RowCount())
	for w := range r.worker.Rows {
		skills := make(map[string]bool)
		for _, col := range workerCols {
			maps.Copy(skills, skillSet(r.worker.Cell(w, col)))
		}
		workerSkills[w] = skills
	}

	var issues []models.ValidationIssue
	for row := range r.task.Rows {
		if ctx.Err() != nil {
			return issues
		}
		maxCell := r.task.Cell(row, maxCol)
		reqCell := r.task.Cell(row, reqCol)
		maxConcurrent, ok := listparse.LeadingInt(maxCell.Text())
		if !ok || maxConcurrent <= 0 || reqCell.IsEmpty() {
			continue
		}

		required := skillSet(reqCell)
		qualified := 0
		for _, skills := range workerSkills {
			if hasAll(skills, required) {
				qualified++
			}
		}
		if maxConcurrent <= qualified {
			continue
		}

		issues = append(issues, models.ValidationIssue{
			Severity:      models.SeverityWarning,
			Type:          models.IssueInsufficientWorkers,
			Message:       fmt.Sprintf("MaxConcurrent (%d) exceeds qualified workers (%d)", maxConcurrent, qualified),
			Location:      models.At(r.task.Name, row, maxCol),
			Value:         models.ValueOf(maxCell),
			Fixable:       false,
			RelatedTables: []string{r.worker.Name},
		})
	}
	return issues
}

func skillSet(c models.Cell) map[string]bool {
	set := make(map[string]bool)
	if c.IsEmpty() {
		return set
	}
	for _, skill := range listparse.ParseSkills(c.Text()) {
		set[normalizeSkill(skill)] = true
	}
	return set
}

func hasAll(have, want map[string]bool) bool {
	for s := range want {
		if !have[s] {
			return false
		}
	}
	return true
}

func normalizeSkill(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// checkPhaseAvailability reports preferred task phases in which no worker
// is available. It runs only when workers declare at least one phase.
func (v *crossFileValidator) checkPhaseAvailability(ctx context.Context, r resolvedTables) []models.ValidationIssue {
	available := make(map[string]bool)
	for _, col := range findColumns(r.worker.Headers, r.workerProfile.ColumnAliases(models.ColumnSlots)) {
		for _, c := range r.worker.Column(col) {
			if ctx.Err() != nil {
				return nil
			}
			if c.IsEmpty() {
				continue
			}
			for _, phase := range listparse.ParsePhases(c.Text()) {
				available[phase] = true
			}
		}
	}

	phaseCols := findColumns(r.task.Headers, r.taskProfile.ColumnAliases(models.ColumnPhases))
	if len(phaseCols) == 0 || len(available) == 0 {
		return nil
	}

	var issues []models.ValidationIssue
	for _, col := range phaseCols {
		for row := range r.task.Rows {
			if ctx.Err() != nil {
				return issues
			}
			cell := r.task.Cell(row, col)
			if cell.IsEmpty() {
				continue
			}
			var unavailable []string
			for _, phase := range listparse.ParsePhases(cell.Text()) {
				if !available[phase] {
					unavailable = append(unavailable, phase)
				}
			}
			if len(unavailable) == 0 {
				continue
			}
			issues = append(issues, models.ValidationIssue{
				Severity:      models.SeverityWarning,
				Type:          models.IssuePhaseAvailability,
				Message:       fmt.Sprintf("Preferred phases not available: %s", logging.SanitizeValue(strings.Join(unavailable, ", "))),
				Location:      models.At(r.task.Name, row, col),
				Value:         models.ValueOf(cell),
				Fixable:       false,
				RelatedTables: []string{r.worker.Name},
			})
		}
	}
	return issues
}
