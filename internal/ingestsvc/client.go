// Package ingestsvc is a client for the document ingestion service, which
// extracts text, chunks it, embeds the chunks and persists them.
//
// Each document is sent as multipart/form-data: a "file" part with the raw
// bytes and a "metadata" field holding a JSON object. A 2xx answer carries
// the created document ID and chunk count; anything else is a StatusError.
package ingestsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"
)

const (
	// maxErrorBody caps how much of an error response is kept.
	maxErrorBody = 4 << 10

	// healthTimeout bounds the liveness probe.
	healthTimeout = 10 * time.Second
)

// ErrMalformedResponse is returned when a 2xx response cannot be decoded or
// lacks a chunk count.
var ErrMalformedResponse = errors.New("malformed ingestion response")

// Document is one file to ingest.
type Document struct {
	Name     string
	RelPath  string
	Ext      string
	Content  []byte
	Metadata map[string]string
}

// Receipt confirms a stored document.
type Receipt struct {
	DocumentID string
	ChunkCount int
}

// StatusError is a non-2xx answer from the service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

type ingestResponse struct {
	DocumentID string `json:"document_id"`
	ChunkCount *int   `json:"chunk_count"`
}

// Client talks to one collection of the ingestion service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	collection string
}

// NewClient creates a client for baseURL and collection. Per-request
// deadlines come from the caller's context, so the HTTP client itself has
// no timeout.
func NewClient(baseURL, collection string) *Client {
	return &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
	}
}

// DocumentsURL is the endpoint documents are posted to.
func (c *Client) DocumentsURL() string {
	return fmt.Sprintf("%s/api/v1/collections/%s/documents", c.baseURL, url.PathEscape(c.collection))
}

// Ingest uploads doc and waits for the service to finish processing it.
func (c *Client) Ingest(ctx context.Context, doc Document) (Receipt, error) {
	body, contentType, err := encodeDocument(doc)
	if err != nil {
		return Receipt{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.DocumentsURL(), body)
	if err != nil {
		return Receipt{}, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	log.Debug().Str("file", doc.RelPath).Int("bytes", len(doc.Content)).Msg("Posting document to ingestion service")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Receipt{}, errors.Wrap(err, "post document")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return Receipt{}, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var parsed ingestResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		if ctx.Err() != nil {
			return Receipt{}, errors.Wrap(ctx.Err(), "read response")
		}
		return Receipt{}, errors.Wrapf(ErrMalformedResponse, "decode: %v", err)
	}
	if parsed.ChunkCount == nil {
		return Receipt{}, errors.Wrap(ErrMalformedResponse, "missing chunk_count")
	}
	return Receipt{DocumentID: parsed.DocumentID, ChunkCount: *parsed.ChunkCount}, nil
}

// Health calls the liveness endpoint. It is a diagnostic and is never part
// of the ingestion control flow.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return errors.Wrap(err, "build health request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "health check")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return nil
}

func encodeDocument(doc Document) (io.Reader, string, error) {
	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return nil, "", errors.Wrap(err, "encode metadata")
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("metadata", string(meta)); err != nil {
		return nil, "", errors.Wrap(err, "write metadata field")
	}
	part, err := w.CreateFormFile("file", doc.Name)
	if err != nil {
		return nil, "", errors.Wrap(err, "create file part")
	}
	if _, err := part.Write(doc.Content); err != nil {
		return nil, "", errors.Wrap(err, "write file part")
	}
	if err := w.Close(); err != nil {
		return nil, "", errors.Wrap(err, "close multipart body")
	}
	return &buf, w.FormDataContentType(), nil
}
