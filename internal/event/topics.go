package event

// Event topics published by Curio components.
const (
	TopicContentRefreshed = "content.refreshed"
	TopicIngestCompleted  = "ingest.completed"
)

// RefreshedPayload accompanies TopicContentRefreshed.
type RefreshedPayload struct {
	Page   string         `json:"page"`
	Counts map[string]int `json:"counts"`
}

// IngestPayload accompanies TopicIngestCompleted.
type IngestPayload struct {
	Kind    string `json:"kind"`
	Stored  int    `json:"stored"`
	Skipped int    `json:"skipped"`
}
