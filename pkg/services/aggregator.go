package services

import "github.com/ekaya-inc/ekaya-intake/pkg/models"

// Aggregate merges results in argument order. Issues are not deduplicated
// and the summary is recomputed from the merged slices.
func Aggregate(results ...models.ValidationResult) models.ValidationResult {
	combined := models.NewValidationResult()
	for _, r := range results {
		combined.Merge(r)
	}
	return combined
}
