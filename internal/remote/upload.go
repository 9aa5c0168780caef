package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/memoryvault/memory-vault/internal/metrics"
)

// ProgressFunc receives upload progress as a percentage in [0, 100].
type ProgressFunc func(percent int)

// UploadFile describes the file part of a multipart upload. Size is used to
// compute progress; when it is 0 only 0 and 100 are reported.
type UploadFile struct {
	Name   string
	Size   int64
	Reader io.Reader
}

// Upload streams file (and fields) as multipart/form-data to path and decodes
// the JSON response into out. Uploads go straight through the http.Client
// and are never retried: the file reader can only be consumed once.
func (c *Client) Upload(ctx context.Context, path string, file UploadFile, fields map[string]string, onProgress ProgressFunc, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	op := http.MethodPost + " " + path
	start := time.Now()
	progress := newProgressTracker(onProgress)
	progress.report(0)

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeMultipart(mw, file, fields, progress))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, pr)
	if err != nil {
		_ = pr.Close()
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	err = c.doUpload(req, op, out)
	// unblock the writer goroutine if the request ended before the body was read
	_ = pr.CloseWithError(io.ErrClosedPipe)
	metrics.ObserveRemoteRequest(op, outcome(err), start)
	if err != nil {
		return err
	}
	progress.report(100)
	return nil
}

func (c *Client) doUpload(req *http.Request, op string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return NewNetworkError(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewNetworkError(op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(op, resp.StatusCode, string(body))
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func writeMultipart(mw *multipart.Writer, file UploadFile, fields map[string]string, progress *progressTracker) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := mw.WriteField(k, fields[k]); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("file", file.Name)
	if err != nil {
		return err
	}
	src := &countingReader{r: file.Reader, total: file.Size, progress: progress}
	if _, err := io.Copy(part, src); err != nil {
		return err
	}
	return mw.Close()
}

// countingReader reports read progress, capped at 99 until the server answers.
type countingReader struct {
	r        io.Reader
	total    int64
	read     int64
	progress *progressTracker
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.read += int64(n)
	if cr.total > 0 {
		pct := int(cr.read * 100 / cr.total)
		if pct > 99 {
			pct = 99
		}
		cr.progress.report(pct)
	}
	return n, err
}

// progressTracker forwards strictly increasing percentages only. The body
// writer goroutine and the caller both report, hence the lock.
type progressTracker struct {
	mu   sync.Mutex
	fn   ProgressFunc
	last int
}

func newProgressTracker(fn ProgressFunc) *progressTracker {
	return &progressTracker{fn: fn, last: -1}
}

func (p *progressTracker) report(pct int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fn == nil || pct <= p.last {
		return
	}
	if pct > 100 {
		pct = 100
	}
	p.last = pct
	p.fn(pct)
}
