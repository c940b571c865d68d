// internal/api/client.go
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Client talks to a remote pudscan upload API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck checks if the upload API is reachable.
func (c *Client) Healthcheck() error {
	resp, err := c.httpClient.Get(c.baseURL + "/healthcheck")
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// Upload sends a map file to the upload API. A rejected map is not an
// error: the response carries the rejection.
func (c *Client) Upload(filePath string) (*UploadResponse, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	errCh := make(chan error, 1)
	go func() {
		part, err := writer.CreateFormFile("file", filepath.Base(filePath))
		if err != nil {
			err = fmt.Errorf("failed to create form file: %w", err)
			pw.CloseWithError(err)
			errCh <- err
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			err = fmt.Errorf("failed to copy file: %w", err)
			pw.CloseWithError(err)
			errCh <- err
			return
		}
		errCh <- writer.Close()
		pw.Close()
	}()

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/v1/maps", pr)
	if err != nil {
		pr.Close()
		<-errCh
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		pr.Close()
		<-errCh
		return nil, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	// the server may answer before reading the whole body
	pr.Close()
	writeErr := <-errCh

	switch resp.StatusCode {
	case http.StatusOK, http.StatusUnprocessableEntity, http.StatusRequestEntityTooLarge:
	default:
		return nil, statusError("upload", resp)
	}
	if writeErr != nil && resp.StatusCode == http.StatusOK {
		return nil, writeErr
	}

	var out UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}
	if out.Status == "" {
		// the body was cut off before the scanner saw it
		return nil, fmt.Errorf("upload returned status %d", resp.StatusCode)
	}
	return &out, nil
}

// Lookup fetches a stored scan by file hash. It returns nil when the server
// has no scan for the hash.
func (c *Client) Lookup(hash string) (*UploadResponse, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/api/v1/maps/" + url.PathEscape(hash))
	if err != nil {
		return nil, fmt.Errorf("lookup request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, statusError("lookup", resp)
	}

	var out UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode lookup response: %w", err)
	}
	return &out, nil
}

func statusError(op string, resp *http.Response) error {
	var body ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		return fmt.Errorf("%s returned status %d: %s", op, resp.StatusCode, body.Error)
	}
	return fmt.Errorf("%s returned status %d", op, resp.StatusCode)
}
