package model

// ImportResult aggregates the outcome of one prediction import batch.
type ImportResult struct {
	PredictionsCreated int      `json:"predictions_created"`
	InsightsCreated    int      `json:"insights_created"`
	InsightsUpdated    int      `json:"insights_updated"`
	InsightsDeleted    int      `json:"insights_deleted"`
	Errors             []string `json:"errors,omitempty"`
}

// Add folds another result into r.
func (r *ImportResult) Add(other ImportResult) {
	r.PredictionsCreated += other.PredictionsCreated
	r.InsightsCreated += other.InsightsCreated
	r.InsightsUpdated += other.InsightsUpdated
	r.InsightsDeleted += other.InsightsDeleted
	r.Errors = append(r.Errors, other.Errors...)
}
