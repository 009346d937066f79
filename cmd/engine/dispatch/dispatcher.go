// Package dispatch executes individual workflow nodes against the
// external adapters.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chigozzdevv/zecflow-sub000/cmd/engine/adapters"
	"github.com/chigozzdevv/zecflow-sub000/cmd/engine/resolver"
	"github.com/chigozzdevv/zecflow-sub000/common/logger"
	"github.com/chigozzdevv/zecflow-sub000/common/models"
	"github.com/chigozzdevv/zecflow-sub000/common/registry"
)

// Adapters bundles the external service clients the dispatcher needs
type Adapters struct {
	MPC      adapters.MPCClient
	LLM      adapters.LLMClient
	Transfer adapters.TransferClient
	State    adapters.StateClient
	HTTP     adapters.HTTPCaller
}

// Dispatcher routes a node to its handler and returns the node result
type Dispatcher struct {
	adapters *Adapters
	log      *logger.Logger
}

// NewDispatcher creates a dispatcher over the given adapters
func NewDispatcher(a *Adapters, log *logger.Logger) *Dispatcher {
	return &Dispatcher{adapters: a, log: log}
}

// MPCEligible reports whether a block is delegated to the private-
// compute batch planner
func MPCEligible(blockID string) bool {
	switch blockID {
	case registry.BlockMathAdd, registry.BlockMathSubtract, registry.BlockMathMultiply,
		registry.BlockMathDivide, registry.BlockMathGreaterThan, registry.BlockLogicIfElse:
		return true
	}
	return false
}

// Dispatch executes one node. MPC-eligible nodes are the batch
// planner's concern and never reach here; output nodes carry no work.
func (d *Dispatcher) Dispatch(ctx context.Context, env *Env, node *models.GraphNode) (any, error) {
	data := GatherInputs(env, node)

	switch node.BlockID {
	case registry.BlockPayloadInput:
		return d.payloadInput(env, data)
	case registry.BlockJSONExtract:
		return d.jsonExtract(env, data)
	case registry.BlockMemoParser:
		return d.memoParser(env, data)
	case registry.BlockNillionCompute:
		return d.nillionCompute(ctx, env, data)
	case registry.BlockNillionGraph:
		return d.nillionGraph(ctx, env, data)
	case registry.BlockNilaiLLM:
		return d.nilaiLLM(ctx, env, data)
	case registry.BlockZcashSend:
		return d.zcashSend(ctx, env, data)
	case registry.BlockStateStore:
		return d.stateStore(ctx, env, data)
	case registry.BlockStateRead:
		return d.stateRead(ctx, env, data)
	case registry.BlockConnectorReq:
		return d.connectorRequest(ctx, env, node, data)
	case registry.BlockCustomHTTP:
		return d.customHTTP(ctx, env, data)
	default:
		return nil, fmt.Errorf("no handler for block type: %s", node.BlockID)
	}
}

func (d *Dispatcher) payloadInput(env *Env, data map[string]any) (any, error) {
	path, _ := data["path"].(string)
	if path == "" {
		return env.Payload, nil
	}
	value, _ := resolver.Read(map[string]any{"payload": env.Payload}, path)
	return value, nil
}

func (d *Dispatcher) jsonExtract(env *Env, data map[string]any) (any, error) {
	source, _ := data["source"].(string)
	if source != "memory" {
		source = "payload"
	}
	path, _ := data["path"].(string)
	if path == "" {
		return nil, fmt.Errorf("json-extract requires a path")
	}

	// Paths may arrive already source-prefixed; avoid doubling the root
	full := path
	if path != source && !strings.HasPrefix(path, source+".") {
		full = source + "." + path
	}

	value, _ := resolver.Read(map[string]any{
		"payload": env.Payload,
		"memory":  env.Ctx.AsObject(),
	}, full)
	return value, nil
}

func (d *Dispatcher) memoParser(env *Env, data map[string]any) (any, error) {
	memoPath, _ := data["memoPath"].(string)
	if memoPath == "" {
		memoPath = "payload.memo"
	}

	raw, ok := env.Resolve(memoPath)
	if !ok {
		if inputs, isMap := data["__inputs"].(map[string]any); isMap {
			raw, ok = inputs["value"]
		}
	}
	if !ok {
		return nil, fmt.Errorf("memo-parser found no memo at %s", memoPath)
	}
	memo, isString := raw.(string)
	if !isString {
		return nil, fmt.Errorf("memo-parser expects a string, got %T", raw)
	}

	delimiter, _ := data["delimiter"].(string)
	if delimiter == "" {
		delimiter = ":"
	}

	parsed := make(map[string]any)
	for _, line := range strings.Split(strings.ReplaceAll(memo, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.SplitN(line, delimiter, 2)
		if len(parts) != 2 {
			continue
		}
		parsed[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return parsed, nil
}

func (d *Dispatcher) nillionCompute(ctx context.Context, env *Env, data map[string]any) (any, error) {
	workloadID, _ := data["workloadId"].(string)
	if workloadID == "" {
		return nil, fmt.Errorf("nillion-compute requires a workloadId")
	}

	var input any = env.Payload
	if inputPath, ok := data["inputPath"].(string); ok && inputPath != "" {
		resolved, found := env.Resolve(inputPath)
		if !found {
			return nil, fmt.Errorf("nillion-compute input not found at %s", inputPath)
		}
		input = resolved
	}

	relativePath, _ := data["relativePath"].(string)
	if relativePath == "" {
		relativePath = "/"
	}

	result, err := d.adapters.MPC.Execute(ctx, workloadID, input, relativePath)
	if err != nil {
		return nil, err
	}
	return result.Result, nil
}

func (d *Dispatcher) nillionGraph(ctx context.Context, env *Env, data map[string]any) (any, error) {
	rawGraph, ok := data["nillionGraph"]
	if !ok {
		return nil, fmt.Errorf("nillion-block-graph requires a nillionGraph")
	}

	// The stored graph is an opaque mapping; round-trip through JSON to
	// the adapter's typed form.
	graphJSON, err := json.Marshal(rawGraph)
	if err != nil {
		return nil, fmt.Errorf("marshal nillionGraph: %w", err)
	}
	var g adapters.MPCGraph
	if err := json.Unmarshal(graphJSON, &g); err != nil {
		return nil, fmt.Errorf("nillionGraph is not a computation graph: %w", err)
	}

	inputs := make(map[string]any)
	if mapping, ok := data["inputMapping"].(map[string]any); ok {
		for graphKey, rawPath := range mapping {
			path, isString := rawPath.(string)
			if !isString {
				continue
			}
			value, found := env.Resolve(path)
			if !found {
				return nil, fmt.Errorf("input %q not found at %s", graphKey, path)
			}
			inputs[graphKey] = value
		}
	}

	result, err := d.adapters.MPC.ExecuteBlockGraph(ctx, &g, inputs, env.RunID)
	if err != nil {
		return nil, err
	}

	out := map[string]any{"output": result.Output}
	if result.Attestation != nil {
		out["attestation"] = result.Attestation
	}
	return out, nil
}

func (d *Dispatcher) nilaiLLM(ctx context.Context, env *Env, data map[string]any) (any, error) {
	template, _ := data["promptTemplate"].(string)
	if template == "" {
		return nil, fmt.Errorf("nilai-llm requires a promptTemplate")
	}

	prompt := resolver.RenderTemplate(env.Root(), template)

	result, err := d.adapters.LLM.RunInference(ctx, prompt)
	if err != nil {
		return nil, err
	}

	out := map[string]any{"message": result.Message}
	if result.Signature != "" {
		out["signature"] = result.Signature
	}
	if result.VerifyingKey != "" {
		out["verifyingKey"] = result.VerifyingKey
	}
	if result.Attestation != nil {
		out["attestation"] = result.Attestation
	}
	return out, nil
}

func (d *Dispatcher) zcashSend(ctx context.Context, env *Env, data map[string]any) (any, error) {
	address := d.resolveOrLiteral(env, data, "addressPath", "address")
	addressStr, _ := address.(string)
	if addressStr == "" {
		return nil, fmt.Errorf("zcash-send requires a destination address")
	}

	amount, err := resolveAmount(env, data)
	if err != nil {
		return nil, err
	}

	opts := &adapters.TransferOptions{}
	if memo, ok := data["memo"].(string); ok {
		opts.Memo = memo
	}
	if from, ok := data["fromAddress"].(string); ok {
		opts.FromAddress = from
	}
	if minConf, ok := data["minConfirmations"].(float64); ok {
		opts.MinConfirmations = int(minConf)
	}
	if fee, ok := data["fee"].(float64); ok {
		opts.Fee = fee
	}
	if policy, ok := data["privacyPolicy"].(string); ok {
		opts.PrivacyPolicy = policy
	}
	if timeoutMs, ok := data["timeoutMs"].(float64); ok && timeoutMs > 0 {
		opts.Timeout = time.Duration(timeoutMs) * time.Millisecond
	}

	result, err := d.adapters.Transfer.Send(ctx, addressStr, amount, opts)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"txId":        result.TxID,
		"operationId": result.OperationID,
	}, nil
}

func (d *Dispatcher) stateStore(ctx context.Context, env *Env, data map[string]any) (any, error) {
	collectionID, _ := data["collectionId"].(string)
	if collectionID == "" {
		return nil, fmt.Errorf("state-store requires a collectionId")
	}

	var payload any = env.Payload
	if dataPath, ok := data["dataPath"].(string); ok && dataPath != "" {
		resolved, found := env.Resolve(dataPath)
		if !found {
			return nil, fmt.Errorf("state-store data not found at %s", dataPath)
		}
		payload = resolved
	}

	key := d.resolveKey(env, data)

	opts := &adapters.StateOptions{EncryptAll: true}
	if fields, ok := data["encryptFields"].([]any); ok && len(fields) > 0 {
		opts.EncryptAll = false
		for _, f := range fields {
			if name, isString := f.(string); isString {
				opts.EncryptFields = append(opts.EncryptFields, name)
			}
		}
	}

	ref, err := d.adapters.State.PutDocument(ctx, collectionID, key, payload, opts)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"key":          ref.Key,
		"collectionId": ref.CollectionID,
	}, nil
}

func (d *Dispatcher) stateRead(ctx context.Context, env *Env, data map[string]any) (any, error) {
	collectionID, _ := data["collectionId"].(string)
	if collectionID == "" {
		return nil, fmt.Errorf("state-read requires a collectionId")
	}

	key := d.resolveKey(env, data)

	return d.adapters.State.GetDocument(ctx, collectionID, key)
}

func (d *Dispatcher) connectorRequest(ctx context.Context, env *Env, node *models.GraphNode, data map[string]any) (any, error) {
	if node.Connector == nil {
		return nil, fmt.Errorf("connector-request node %s has no connector", node.ID)
	}
	if node.Connector.BaseURL == "" {
		return nil, fmt.Errorf("connector %s has no baseUrl", node.Connector.ID)
	}

	relativePath, _ := data["relativePath"].(string)
	url := strings.TrimSuffix(node.Connector.BaseURL, "/")
	if relativePath != "" {
		if !strings.HasPrefix(relativePath, "/") {
			relativePath = "/" + relativePath
		}
		url += relativePath
	}

	headers := make(map[string]string, len(node.Connector.Headers))
	for k, v := range node.Connector.Headers {
		headers[k] = v
	}
	mergeHeaders(headers, data)

	return d.adapters.HTTP.Do(ctx, &adapters.HTTPRequest{
		Method:  requestMethod(data),
		URL:     url,
		Headers: headers,
		Body:    requestBody(env, data),
		Timeout: requestTimeout(data),
	})
}

func (d *Dispatcher) customHTTP(ctx context.Context, env *Env, data map[string]any) (any, error) {
	url, _ := data["url"].(string)
	if url == "" {
		return nil, fmt.Errorf("custom-http-action requires a url")
	}

	headers := make(map[string]string)
	mergeHeaders(headers, data)

	return d.adapters.HTTP.Do(ctx, &adapters.HTTPRequest{
		Method:  requestMethod(data),
		URL:     url,
		Headers: headers,
		Body:    requestBody(env, data),
		Timeout: requestTimeout(data),
	})
}

// resolveOrLiteral resolves a path key, falling back to a literal key
func (d *Dispatcher) resolveOrLiteral(env *Env, data map[string]any, pathKey, literalKey string) any {
	if path, ok := data[pathKey].(string); ok && path != "" {
		if value, found := env.Resolve(path); found {
			return value
		}
	}
	return data[literalKey]
}

func (d *Dispatcher) resolveKey(env *Env, data map[string]any) string {
	if path, ok := data["keyPath"].(string); ok && path != "" {
		if value, found := env.Resolve(path); found {
			return resolver.Stringify(value)
		}
	}
	if key, ok := data["key"].(string); ok && key != "" {
		return key
	}
	return "default"
}

func resolveAmount(env *Env, data map[string]any) (float64, error) {
	var raw any
	if path, ok := data["amountPath"].(string); ok && path != "" {
		value, found := env.Resolve(path)
		if !found {
			return 0, fmt.Errorf("zcash-send amount not found at %s", path)
		}
		raw = value
	} else {
		raw = data["amount"]
	}

	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		var parsed float64
		if _, err := fmt.Sscanf(v, "%g", &parsed); err != nil {
			return 0, fmt.Errorf("zcash-send amount is not numeric: %q", v)
		}
		return parsed, nil
	case nil:
		return 0, fmt.Errorf("zcash-send requires an amount")
	default:
		return 0, fmt.Errorf("zcash-send amount is not numeric: %T", raw)
	}
}

func requestMethod(data map[string]any) string {
	if method, ok := data["method"].(string); ok && method != "" {
		return strings.ToUpper(method)
	}
	return "POST"
}

func requestBody(env *Env, data map[string]any) any {
	if bodyPath, ok := data["bodyPath"].(string); ok && bodyPath != "" {
		if value, found := env.Resolve(bodyPath); found {
			return value
		}
		return nil
	}
	if body, ok := data["body"]; ok {
		return body
	}
	return env.Payload
}

func requestTimeout(data map[string]any) time.Duration {
	if timeoutMs, ok := data["timeoutMs"].(float64); ok && timeoutMs > 0 {
		return time.Duration(timeoutMs) * time.Millisecond
	}
	return 0
}

func mergeHeaders(headers map[string]string, data map[string]any) {
	raw, ok := data["headers"].(map[string]any)
	if !ok {
		return
	}
	for k, v := range raw {
		if s, isString := v.(string); isString {
			headers[k] = s
		}
	}
}
