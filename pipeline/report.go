package pipeline

import (
	"time"

	"incidentwatch/corroboration"
	"incidentwatch/geocoding"
	"incidentwatch/logging"
	"incidentwatch/types"
)

// Report summarizes one pipeline run.
type Report struct {
	RunID        string            `json:"run_id"`
	StartedAt    time.Time         `json:"started_at"`
	FinishedAt   time.Time         `json:"finished_at"`
	Duration     time.Duration     `json:"duration"`
	SourceErrors map[string]string `json:"source_errors,omitempty"`

	Fetched     int `json:"fetched"`
	Unique      int `json:"unique"`
	Exact       int `json:"exact_duplicates"`
	Fuzzy       int `json:"fuzzy_duplicates"`
	DedupErrors int `json:"dedup_errors"`

	Candidates       int                    `json:"candidates"`
	ExtractionFailed []string               `json:"extraction_failed,omitempty"`
	Geocoding        geocoding.ResolveStats `json:"geocoding"`
	Corroboration    corroboration.Stats    `json:"corroboration"`

	// Incidents holds new and re-scored incidents; Review holds candidates
	// below the persistence threshold.
	Incidents []*types.Incident         `json:"incidents"`
	Review    []*types.Incident         `json:"review,omitempty"`
	Groups    []types.CoordinationGroup `json:"coordination_groups"`

	ArticleWrites  types.BatchWriteResult `json:"article_writes"`
	IncidentWrites types.BatchWriteResult `json:"incident_writes"`
	Published      types.BatchWriteResult `json:"published"`
	ArchiveKey     string                 `json:"archive_key,omitempty"`

	Results []types.ArticleResult `json:"-"`
}

func (r *Report) log() {
	logging.Info("pipeline run complete",
		"run", r.RunID,
		"duration", r.Duration.Round(time.Millisecond),
		"fetched", r.Fetched,
		"unique", r.Unique,
		"duplicates", r.Exact+r.Fuzzy,
		"incidents", len(r.Incidents),
		"review", len(r.Review),
		"groups", len(r.Groups),
		"failed_writes", len(r.ArticleWrites.Failed)+len(r.IncidentWrites.Failed))
}
