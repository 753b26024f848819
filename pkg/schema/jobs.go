// pkg/schema/jobs.go
package schema

// Job is one capture task: navigate to URL, capture a user selection, upload
// the crop. Immutable once created.
type Job struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
