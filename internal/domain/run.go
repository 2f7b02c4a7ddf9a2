package domain

import "time"

// Run records the provenance of one analysis run.
type Run struct {
	RunID            string
	CreatedAt        time.Time
	ConfigHash       string // sha256 of the normalized configuration
	DataHash         string // sha256 of the aligned panel
	StartDate        time.Time
	EndDate          time.Time
	Rows             int
	Assets           []string
	GeneratorVersion string
}
