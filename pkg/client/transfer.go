package client

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/lmaocloud/cloudbrowser/pkg/models"
	"github.com/lmaocloud/cloudbrowser/pkg/retry"
)

// UploadSource is one file to upload.
type UploadSource struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// FileSource returns an UploadSource reading the local file at path.
func FileSource(path string) (UploadSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return UploadSource{}, err
	}
	if info.IsDir() {
		return UploadSource{}, fmt.Errorf("%s is a directory", path)
	}
	return UploadSource{
		Name: filepath.Base(path),
		Size: info.Size(),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// UploadResult is the per-file answer of the batch upload endpoint.
type UploadResult struct {
	FileID   models.ID        `json:"fileId"`
	FileName string           `json:"fileName"`
	FilePath string           `json:"filePath"`
	FileSize int64            `json:"fileSize"`
	FileType string           `json:"fileType"`
	FileURL  string           `json:"fileUrl"`
	Uploaded models.Timestamp `json:"uploadTime"`
	Success  bool             `json:"success"`
	Message  string           `json:"message"`
}

// ProgressFunc receives the number of content bytes sent so far and the total.
type ProgressFunc func(sent, total int64)

// UploadFiles sends files to dir in one multipart request. progress (optional)
// is called as file content is streamed. Uploads are never retried.
func (c *Client) UploadFiles(ctx context.Context, dir string, files []UploadSource, progress ProgressFunc) ([]UploadResult, error) {
	const op = "upload"
	if len(files) == 0 {
		return nil, Validation(op, "no files selected")
	}

	var total int64
	for _, f := range files {
		total += f.Size
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	var sent atomic.Int64

	go func() {
		pw.CloseWithError(writeUploadBody(mw, dir, files, func(n int) {
			s := sent.Add(int64(n))
			if progress != nil {
				progress(s, total)
			}
		}))
	}()

	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint("/file/upload/multiple", nil), pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	c.log.Debug("uploading files", zap.String("dir", dir), zap.Int("count", len(files)), zap.Int64("bytes", total))

	start := time.Now()
	results, err := c.doUpload(ctx, req)
	pr.Close()
	c.record(op, err, time.Since(start))
	return results, err
}

func (c *Client) doUpload(ctx context.Context, req *http.Request) ([]UploadResult, error) {
	resp, err := c.transferClient.Do(req)
	if err != nil {
		return nil, retry.Cause(c.transportError(ctx, "upload", err))
	}
	defer resp.Body.Close()

	var results []UploadResult
	if err := c.decode("upload", resp, &results); err != nil {
		return nil, retry.Cause(err)
	}
	return results, nil
}

func writeUploadBody(mw *multipart.Writer, dir string, files []UploadSource, onWrite func(int)) error {
	if err := mw.WriteField("path", dir); err != nil {
		return err
	}
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.Name)
		if err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open %s: %w", f.Name, err)
		}
		_, err = io.Copy(part, &countingReader{r: rc, onRead: onWrite})
		rc.Close()
		if err != nil {
			return fmt.Errorf("read %s: %w", f.Name, err)
		}
	}
	return mw.Close()
}

// countingReader reports every successful read.
type countingReader struct {
	r      io.Reader
	onRead func(int)
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 && cr.onRead != nil {
		cr.onRead(n)
	}
	return n, err
}

// DownloadURL returns the direct download URL of a file.
func (c *Client) DownloadURL(id models.ID) string {
	return c.baseURL + "/file/download/" + url.PathEscape(id.String())
}

// Download opens the content stream of a file. The caller closes the reader.
// The request is retried on transport failures and 5xx answers.
func (c *Client) Download(ctx context.Context, id models.ID) (io.ReadCloser, int64, error) {
	const op = "download"
	start := time.Now()

	type result struct {
		body io.ReadCloser
		size int64
	}
	res, err := retry.DoWithResult(ctx, c.retryConfig, func() (result, error) {
		req, err := c.newRequest(ctx, http.MethodGet, c.DownloadURL(id), nil)
		if err != nil {
			return result{}, fmt.Errorf("%s: %w", op, err)
		}
		resp, err := c.transferClient.Do(req)
		if err != nil {
			return result{}, c.transportError(ctx, op, err)
		}
		if resp.StatusCode != http.StatusOK {
			// Error bodies are JSON envelopes.
			defer resp.Body.Close()
			return result{}, c.decode(op, resp, nil)
		}

		// A 200 with a JSON body is an application failure envelope.
		if isJSON(resp.Header.Get("Content-Type")) {
			defer resp.Body.Close()
			if err := c.decode(op, resp, nil); err != nil {
				return result{}, err
			}
			return result{}, &Error{Op: op, Kind: KindApplication, Status: resp.StatusCode, Message: "server returned no content"}
		}

		c.setOnline(true)
		return result{body: resp.Body, size: resp.ContentLength}, nil
	})
	c.record(op, err, time.Since(start))
	if err != nil {
		return nil, 0, err
	}
	return res.body, res.size, nil
}

func isJSON(contentType string) bool {
	return len(contentType) >= 16 && contentType[:16] == "application/json"
}
