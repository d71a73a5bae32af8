package constants

// JobStatus is the canonical status of a queued document.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusProcessed JobStatus = "PROCESSED" // pages extracted and aggregated
	JobStatusSkipped   JobStatus = "SKIPPED"   // duplicate content hash
	JobStatusFailed    JobStatus = "FAILED"    // terminal failure
)
