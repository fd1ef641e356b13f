package constants

// JobStatus is the canonical status of one file moving through the intake pipeline.
type JobStatus string

// Stable values (store these exact strings).
const (
	JobStatusQueued      JobStatus = "QUEUED"       // waiting for a worker
	JobStatusRunning     JobStatus = "RUNNING"      // in progress
	JobStatusOCROK       JobStatus = "OCR_OK"       // stage 1 completed (text extracted)
	JobStatusFieldsOK    JobStatus = "FIELDS_OK"    // stage 2 completed (fields extracted)
	JobStatusNeedsReview JobStatus = "NEEDS_REVIEW" // fields extracted but incomplete or low confidence
	JobStatusSaved       JobStatus = "SAVED"        // persisted to the document store
	JobStatusFailed      JobStatus = "FAILED"       // terminal failure
)
