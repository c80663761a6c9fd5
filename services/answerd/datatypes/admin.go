package datatypes

type PurgeRequest struct {
	DryRun bool `json:"dry_run,omitempty"`
}

// PurgeResponse reports the outcome of an expired-entry sweep.
type PurgeResponse struct {
	Removed   int64 `json:"removed"`
	Remaining int64 `json:"remaining"`
	DryRun    bool  `json:"dry_run"`
}

// CacheStatsResponse is a point-in-time census of the shared answer cache.
type CacheStatsResponse struct {
	Entries int64 `json:"entries"`
	Expired int64 `json:"expired"`
}
