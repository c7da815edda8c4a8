package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// apiError is the JSON error body every endpoint returns on failure
type apiError struct {
	Status    int    `json:"-"`
	Message   string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Provider  string `json:"provider,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (e *apiError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%s (%s, HTTP %d)", e.Message, e.Kind, e.Status)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

type apiClient struct {
	baseURL string
	http    *http.Client
}

// acquisitions can block for the whole provider chain
func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Minute},
	}
}

func (c *apiClient) do(method, path string, query url.Values, body interface{}) (*http.Response, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req)
}

func (c *apiClient) send(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return resp, nil
}

// getJSON decodes a successful response into out
func (c *apiClient) getJSON(path string, query url.Values, out interface{}) error {
	resp, err := c.do(http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *apiClient) postJSON(path string, body, out interface{}) error {
	resp, err := c.do(http.MethodPost, path, nil, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &apiError{Status: resp.StatusCode}
	data, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// saveAttachment writes the response body into dir, named after its
// Content-Disposition header, and returns the written path
func saveAttachment(resp *http.Response, dir string) (string, int64, error) {
	name := filenameFromDisposition(resp.Header.Get("Content-Disposition"))
	if name == "" {
		name = "download.bin"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", 0, err
	}

	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	if err != nil {
		return "", 0, err
	}
	defer file.Close()

	n, err := io.Copy(file, resp.Body)
	if err != nil {
		os.Remove(path)
		return "", 0, err
	}
	return path, n, nil
}

func filenameFromDisposition(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil || params["filename"] == "" {
		return ""
	}
	// the server sanitizes names; strip directories anyway
	return filepath.Base(params["filename"])
}
