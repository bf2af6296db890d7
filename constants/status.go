package constants

// JobStatus is the canonical status for rows in analysis_job.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusRunning   JobStatus = "RUNNING"   // in progress
	JobStatusSucceeded JobStatus = "SUCCEEDED" // analysis validated and returned
	JobStatusRejected  JobStatus = "REJECTED"  // document class disallowed
	JobStatusFailed    JobStatus = "FAILED"    // terminal failure
)
