// internal/remote/client.go
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/snapq/capture-coordinator/pkg/schema"
)

// Client talks to the remote job-queue service: it fetches the capture queue
// and submits finished crops.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient wraps the job service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// RemoteError reports a non-success HTTP status from the job service.
type RemoteError struct {
	Op     string
	Status int
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: unexpected status %d", e.Op, e.Status)
}

// ErrMalformedQueue marks a job-list payload that could not be normalized.
var ErrMalformedQueue = errors.New("unrecognized job queue payload")

// FetchJobs retrieves and normalizes the job queue.
func (c *Client) FetchJobs(ctx context.Context) ([]schema.Job, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs", nil)
	if err != nil {
		return nil, fmt.Errorf("build jobs request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch jobs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RemoteError{Op: "fetch jobs", Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read jobs response: %w", err)
	}

	jobs, err := Normalize(body)
	if err != nil {
		return nil, fmt.Errorf("normalize jobs: %w", err)
	}
	return jobs, nil
}

// rawJob tolerates the shape variance the service is known to produce:
// ids arrive as JSON numbers or strings.
type rawJob struct {
	ID  json.RawMessage `json:"id"`
	URL string          `json:"url"`
}

type envelope struct {
	Jobs []rawJob `json:"jobs"`
}

// Normalize converts a job-list payload into canonical jobs. The payload may
// be a bare array of job records or an envelope {"jobs": [...]}; anything
// else is a parse failure, not a silent coercion.
func Normalize(raw []byte) ([]schema.Job, error) {
	var records []rawJob
	if err := json.Unmarshal(raw, &records); err != nil {
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil || env.Jobs == nil {
			return nil, ErrMalformedQueue
		}
		records = env.Jobs
	}

	jobs := make([]schema.Job, 0, len(records))
	for i, rec := range records {
		id, err := canonicalID(rec.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrMalformedQueue, i, err)
		}
		if rec.URL == "" {
			return nil, fmt.Errorf("%w: record %d: missing url", ErrMalformedQueue, i)
		}
		jobs = append(jobs, schema.Job{ID: id, URL: rec.URL})
	}
	return jobs, nil
}

func canonicalID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", errors.New("missing id")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}

	return "", fmt.Errorf("unsupported id %s", raw)
}

// JobAt returns the job at position i, or ok=false when i is out of range.
func JobAt(jobs []schema.Job, i int) (schema.Job, bool) {
	if i < 0 || i >= len(jobs) {
		return schema.Job{}, false
	}
	return jobs[i], true
}

// Upload submits one cropped capture as a multipart form: id and url as text,
// the rectangle as JSON text, and the image as a PNG attachment.
func (c *Client) Upload(ctx context.Context, job schema.Job, rect schema.Rect, image []byte) error {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	if err := form.WriteField("id", job.ID); err != nil {
		return fmt.Errorf("write id field: %w", err)
	}
	if err := form.WriteField("url", job.URL); err != nil {
		return fmt.Errorf("write url field: %w", err)
	}

	rectJSON, err := json.Marshal(rect)
	if err != nil {
		return fmt.Errorf("marshal rect: %w", err)
	}
	if err := form.WriteField("rect", string(rectJSON)); err != nil {
		return fmt.Errorf("write rect field: %w", err)
	}

	part, err := form.CreateFormFile("image", "snap-"+job.ID+".png")
	if err != nil {
		return fmt.Errorf("create image part: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return fmt.Errorf("write image part: %w", err)
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", &body)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload capture: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RemoteError{Op: "upload", Status: resp.StatusCode}
	}
	return nil
}
