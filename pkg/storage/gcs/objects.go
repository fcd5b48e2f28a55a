package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ErrObjectNotFound is returned when an object lookup yields 404.
var ErrObjectNotFound = errors.New("gcs object not found")

// ObjectAttrs is the subset of object metadata the vault reads.
type ObjectAttrs struct {
	Bucket      string `json:"bucket"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size,string"`
	MediaLink   string `json:"mediaLink"`
}

// Upload streams body into bucket/object through a media upload.
func (c *Client) Upload(ctx context.Context, bucket, object, contentType string, body io.Reader) (*ObjectAttrs, error) {
	bucket = c.bucketOrDefault(bucket)
	if bucket == "" || object == "" {
		return nil, errors.New("bucket and object are required")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	q := url.Values{"uploadType": {"media"}, "name": {object}}
	endpoint := fmt.Sprintf("%s/upload/storage/v1/b/%s/o?%s", c.base(), url.PathEscape(bucket), q.Encode())

	resp, err := c.do(ctx, http.MethodPost, endpoint, contentType, body)
	if err != nil {
		return nil, err
	}
	defer c.closeBody(ctx, resp)
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("upload", resp)
	}
	return decodeAttrs(resp)
}

// ObjectExists reports whether bucket/object is present.
func (c *Client) ObjectExists(ctx context.Context, bucket, object string) (bool, error) {
	_, err := c.Attrs(ctx, bucket, object)
	switch {
	case errors.Is(err, ErrObjectNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

func (c *Client) Attrs(ctx context.Context, bucket, object string) (*ObjectAttrs, error) {
	resp, err := c.do(ctx, http.MethodGet, c.objectEndpoint(bucket, object), "", nil)
	if err != nil {
		return nil, err
	}
	defer c.closeBody(ctx, resp)
	switch resp.StatusCode {
	case http.StatusOK:
		return decodeAttrs(resp)
	case http.StatusNotFound:
		return nil, ErrObjectNotFound
	default:
		return nil, statusError("attrs", resp)
	}
}

// DeleteObject removes bucket/object. A missing object is not an error.
func (c *Client) DeleteObject(ctx context.Context, bucket, object string) error {
	resp, err := c.do(ctx, http.MethodDelete, c.objectEndpoint(bucket, object), "", nil)
	if err != nil {
		return err
	}
	defer c.closeBody(ctx, resp)
	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return statusError("delete", resp)
	}
}

// ObjectURL is the stable public URL of an object.
func (c *Client) ObjectURL(bucket, object string) string {
	base := c.publicBase
	if base == "" {
		base = defaultAPIBase
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(base, "/"), c.bucketOrDefault(bucket), object)
}

func (c *Client) objectEndpoint(bucket, object string) string {
	return fmt.Sprintf("%s/storage/v1/b/%s/o/%s", c.base(), url.PathEscape(c.bucketOrDefault(bucket)), url.PathEscape(object))
}

// do sends an authenticated request; the oauth2 transport sets the bearer token.
func (c *Client) do(ctx context.Context, method, endpoint, contentType string, body io.Reader) (*http.Response, error) {
	if c == nil || c.http == nil {
		return nil, errors.New("gcs client not initialized")
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.http.Do(req)
}

func (c *Client) closeBody(ctx context.Context, resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	if err := resp.Body.Close(); err != nil && c.logg != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "gcs: closing response body failed")
	}
}

func decodeAttrs(resp *http.Response) (*ObjectAttrs, error) {
	var attrs ObjectAttrs
	if err := json.NewDecoder(resp.Body).Decode(&attrs); err != nil {
		return nil, fmt.Errorf("decode object attrs: %w", err)
	}
	return &attrs, nil
}

func statusError(op string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if msg := strings.TrimSpace(string(b)); msg != "" {
		return fmt.Errorf("gcs %s failed: %s: %s", op, resp.Status, msg)
	}
	return fmt.Errorf("gcs %s failed: %s", op, resp.Status)
}
