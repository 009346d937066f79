package adapters

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/chigozzdevv/zecflow-sub000/common/config"
	"github.com/chigozzdevv/zecflow-sub000/common/logger"
)

// NildbClient reads and writes the encrypted key-value store. Field
// encryption happens inside the service; the engine only selects which
// fields are protected.
type NildbClient struct {
	rest *restClient
	log  *logger.Logger
}

// NewNildbClient creates a client from adapter configuration
func NewNildbClient(cfg config.AdapterConfig, log *logger.Logger) *NildbClient {
	return &NildbClient{
		rest: newRESTClient(cfg.NildbBaseURL, cfg.NildbAPIKey, cfg.HTTPTimeout, log),
		log:  log,
	}
}

type putDocumentResponse struct {
	Key          string `json:"key"`
	CollectionID string `json:"collection_id"`
}

type getDocumentResponse struct {
	Found bool `json:"found"`
	Data  any  `json:"data"`
}

// PutDocument stores a document. EncryptFields limits protection to the
// named fields; otherwise EncryptAll applies.
func (c *NildbClient) PutDocument(ctx context.Context, collectionID, key string, data any, opts *StateOptions) (*StateRef, error) {
	if collectionID == "" {
		return nil, fmt.Errorf("collection id is required")
	}
	if key == "" {
		return nil, fmt.Errorf("document key is required")
	}
	if opts == nil {
		opts = &StateOptions{EncryptAll: true}
	}

	req := map[string]any{
		"key":  key,
		"data": data,
	}
	if len(opts.EncryptFields) > 0 {
		req["encrypt_fields"] = opts.EncryptFields
	} else {
		req["encrypt_all"] = opts.EncryptAll
	}

	var resp putDocumentResponse
	path := fmt.Sprintf("/v1/collections/%s/documents", collectionID)
	if err := c.rest.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}

	return &StateRef{Key: resp.Key, CollectionID: resp.CollectionID}, nil
}

// GetDocument reads a document; a missing key returns nil, nil
func (c *NildbClient) GetDocument(ctx context.Context, collectionID, key string) (any, error) {
	if collectionID == "" {
		return nil, fmt.Errorf("collection id is required")
	}

	var resp getDocumentResponse
	path := fmt.Sprintf("/v1/collections/%s/documents/%s", collectionID, key)
	if err := c.rest.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Found {
		return nil, nil
	}
	return resp.Data, nil
}

// StoreState is the auto-keyed PutDocument variant
func (c *NildbClient) StoreState(ctx context.Context, collectionID string, data any, opts *StateOptions) (string, error) {
	key := uuid.New().String()
	ref, err := c.PutDocument(ctx, collectionID, key, data, opts)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s", ref.CollectionID, ref.Key), nil
}
