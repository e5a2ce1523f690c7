package dataverse

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/nucleus/sync-core/internal/connector/http"
	"github.com/nucleus/sync-core/internal/engine"
)

var _ engine.BatchSender = (*Client)(nil)

// EnvelopeArchive receives successfully posted envelopes, best effort.
type EnvelopeArchive interface {
	ArchiveEnvelope(ctx context.Context, boundary string, payload []byte) (string, error)
}

// Client posts atomic upsert batches to the Dataverse Web API.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenProvider

	// Archive, when set, preserves each accepted envelope. Archive failures
	// are logged and never fail the send.
	Archive EnvelopeArchive
}

// NewClient creates a Dataverse client. The token provider is consulted
// before every envelope post; the transport handles throttling and retry.
func NewClient(baseURL string, tokens TokenProvider, transport *http.ClientConfig) *Client {
	// The base URL is embedded in absolute part URLs, so a trailing slash
	// would produce double slashes inside the envelope.
	baseURL = strings.TrimSuffix(baseURL, "/")
	if transport == nil {
		transport = http.DefaultClientConfig()
	}
	transport.BaseURL = baseURL
	if transport.Headers == nil {
		transport.Headers = make(map[string]string)
	}
	transport.Headers["Accept"] = "application/json"

	return &Client{
		baseURL: baseURL,
		http:    http.NewClient(transport),
		tokens:  tokens,
	}
}

// SendBatch encodes the operations into one envelope and posts it to the
// $batch endpoint. A nil error means the whole changeset was accepted.
func (c *Client) SendBatch(ctx context.Context, ops []engine.UpsertOperation) error {
	if len(ops) == 0 {
		return nil
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("acquire token: %w", err)
	}

	boundary, payload, err := EncodeBatch(c.baseURL, ops)
	if err != nil {
		return err
	}

	_, err = c.http.Do(ctx, &http.Request{
		Method: "POST",
		Path:   apiPath + "/$batch",
		Headers: map[string]string{
			"Authorization": "Bearer " + token,
			"Content-Type":  "multipart/mixed;boundary=" + boundary,
		},
		Body: payload,
	})
	if err != nil {
		var terr *http.TransportError
		if errors.As(err, &terr) {
			return engine.NewError(engine.CodeTransportFailed, err)
		}
		return err
	}

	if c.Archive != nil {
		if _, aerr := c.Archive.ArchiveEnvelope(ctx, boundary, payload); aerr != nil {
			var coded interface {
				CodeValue() string
				RetryableStatus() bool
			}
			if errors.As(aerr, &coded) {
				log.Printf("Failed to archive envelope %s (%s, retryable=%t): %v",
					boundary, coded.CodeValue(), coded.RetryableStatus(), aerr)
			} else {
				log.Printf("Failed to archive envelope %s: %v", boundary, aerr)
			}
		}
	}

	return nil
}
