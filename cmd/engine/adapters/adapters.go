// Package adapters holds the typed clients the dispatcher uses to reach
// the external private-compute, inference, transfer and storage
// services. The engine treats adapter payloads as opaque beyond
// distinguishing mappings from scalars.
package adapters

import (
	"context"
	"time"
)

// MPCResult is the outcome of a single-workload private computation
type MPCResult struct {
	Response    any            `json:"response"`
	Attestation map[string]any `json:"attestation,omitempty"`
	Result      any            `json:"result"`
}

// MPCGraphNode is one node of a computation sub-graph submitted to the
// private-compute service
type MPCGraphNode struct {
	ID      string         `json:"id"`
	BlockID string         `json:"blockId"`
	Inputs  map[string]any `json:"inputs,omitempty"`
}

// MPCGraphEdge is a data dependency inside a computation sub-graph
type MPCGraphEdge struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// MPCGraph is a computation graph of private arithmetic, comparison,
// logic and control-flow nodes
type MPCGraph struct {
	Nodes []MPCGraphNode `json:"nodes"`
	Edges []MPCGraphEdge `json:"edges"`
}

// MPCGraphResult carries the output mapping of a graph submission,
// keyed by "nodeId.outputName"
type MPCGraphResult struct {
	Output      map[string]any `json:"output"`
	Attestation map[string]any `json:"attestation,omitempty"`
}

// MPCClient executes private computations, singly or as a graph
type MPCClient interface {
	// Execute forwards input as the body of the resolved workload URL.
	// Fails when the workload is unknown or a required attestation
	// report is missing.
	Execute(ctx context.Context, workloadID string, input any, relativePath string) (*MPCResult, error)

	// ExecuteBlockGraph submits a computation graph plus inputs. The
	// adapter instantiates an ephemeral workload, polls for output with
	// bounded retries, collects attestation, and guarantees teardown on
	// every exit path.
	ExecuteBlockGraph(ctx context.Context, g *MPCGraph, inputs map[string]any, runTag string) (*MPCGraphResult, error)
}

// LLMResult is a private-inference response with optional integrity
// evidence, passed through untouched by the executor
type LLMResult struct {
	Message      string         `json:"message"`
	Signature    string         `json:"signature,omitempty"`
	VerifyingKey string         `json:"verifyingKey,omitempty"`
	Attestation  map[string]any `json:"attestation,omitempty"`
	Raw          map[string]any `json:"raw,omitempty"`
}

// LLMClient runs private LLM inference
type LLMClient interface {
	RunInference(ctx context.Context, prompt string) (*LLMResult, error)
}

// TransferOptions are the optional parameters of a shielded send
type TransferOptions struct {
	Memo             string
	FromAddress      string
	MinConfirmations int
	Fee              float64
	PrivacyPolicy    string
	Timeout          time.Duration
}

// TransferResult identifies a submitted shielded transfer
type TransferResult struct {
	TxID        string `json:"txId"`
	OperationID string `json:"operationId"`
}

// TransferClient submits shielded value transfers
type TransferClient interface {
	Send(ctx context.Context, address string, amount float64, opts *TransferOptions) (*TransferResult, error)
}

// StateOptions select which fields of a stored document are protected.
// When EncryptFields is empty, EncryptAll applies.
type StateOptions struct {
	EncryptFields []string
	EncryptAll    bool
}

// StateRef identifies a stored document
type StateRef struct {
	Key          string `json:"key"`
	CollectionID string `json:"collectionId"`
}

// StateClient reads and writes the encrypted key-value store
type StateClient interface {
	PutDocument(ctx context.Context, collectionID, key string, data any, opts *StateOptions) (*StateRef, error)

	// GetDocument returns nil with no error for a missing key
	GetDocument(ctx context.Context, collectionID, key string) (any, error)

	// StoreState is the auto-keyed variant, returning "collectionId:key"
	StoreState(ctx context.Context, collectionID string, data any, opts *StateOptions) (string, error)
}

// HTTPRequest describes a generic outbound HTTP call
type HTTPRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    any
	Timeout time.Duration
}

// HTTPCaller performs generic HTTP connector calls, returning the
// decoded response body
type HTTPCaller interface {
	Do(ctx context.Context, req *HTTPRequest) (any, error)
}
