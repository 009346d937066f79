// Package registry holds the closed table of block definitions the
// engine supports. Dispatch, credit planning and materialization all
// key off this table; adding a block means adding one entry here plus a
// handler case in the dispatcher.
package registry

import (
	"fmt"
	"sort"
)

// Handler identifies which dispatcher family executes a block
type Handler string

const (
	HandlerLogic     Handler = "logic"
	HandlerNillion   Handler = "nillion"
	HandlerNilai     Handler = "nilai"
	HandlerZcash     Handler = "zcash"
	HandlerConnector Handler = "connector"
)

// Category drives the materializer's node-type derivation
type Category string

const (
	CategoryInput     Category = "input"
	CategoryCompute   Category = "compute"
	CategoryAction    Category = "action"
	CategoryStorage   Category = "storage"
	CategoryTransform Category = "transform"
)

// Block ids in the closed set
const (
	BlockPayloadInput    = "payload-input"
	BlockJSONExtract     = "json-extract"
	BlockMemoParser      = "memo-parser"
	BlockMathAdd         = "math-add"
	BlockMathSubtract    = "math-subtract"
	BlockMathMultiply    = "math-multiply"
	BlockMathDivide      = "math-divide"
	BlockMathGreaterThan = "math-greater-than"
	BlockLogicIfElse     = "logic-if-else"
	BlockNillionCompute  = "nillion-compute"
	BlockNillionGraph    = "nillion-block-graph"
	BlockNilaiLLM        = "nilai-llm"
	BlockZcashSend       = "zcash-send"
	BlockConnectorReq    = "connector-request"
	BlockCustomHTTP      = "custom-http-action"
	BlockStateStore      = "state-store"
	BlockStateRead       = "state-read"
)

// ConfigValidator checks a block's configuration mapping at write time
type ConfigValidator func(data map[string]any) error

// Definition describes one block type
type Definition struct {
	ID                string
	Handler           Handler
	Category          Category
	RequiresConnector bool
	Cost              int
	ValidateConfig    ConfigValidator
}

var definitions = map[string]Definition{
	BlockPayloadInput: {
		ID:             BlockPayloadInput,
		Handler:        HandlerLogic,
		Category:       CategoryInput,
		ValidateConfig: validatePayloadInput,
	},
	BlockJSONExtract: {
		ID:             BlockJSONExtract,
		Handler:        HandlerLogic,
		Category:       CategoryTransform,
		ValidateConfig: validateJSONExtract,
	},
	BlockMemoParser: {
		ID:             BlockMemoParser,
		Handler:        HandlerLogic,
		Category:       CategoryTransform,
		ValidateConfig: validateMemoParser,
	},
	BlockMathAdd:         mpcDefinition(BlockMathAdd),
	BlockMathSubtract:    mpcDefinition(BlockMathSubtract),
	BlockMathMultiply:    mpcDefinition(BlockMathMultiply),
	BlockMathDivide:      mpcDefinition(BlockMathDivide),
	BlockMathGreaterThan: mpcDefinition(BlockMathGreaterThan),
	BlockLogicIfElse: {
		ID:             BlockLogicIfElse,
		Handler:        HandlerNillion,
		Category:       CategoryCompute,
		Cost:           2,
		ValidateConfig: validateNoop,
	},
	BlockNillionCompute: {
		ID:             BlockNillionCompute,
		Handler:        HandlerNillion,
		Category:       CategoryCompute,
		Cost:           5,
		ValidateConfig: validateNillionCompute,
	},
	BlockNillionGraph: {
		ID:             BlockNillionGraph,
		Handler:        HandlerNillion,
		Category:       CategoryCompute,
		Cost:           5,
		ValidateConfig: validateNillionGraph,
	},
	BlockNilaiLLM: {
		ID:             BlockNilaiLLM,
		Handler:        HandlerNilai,
		Category:       CategoryCompute,
		Cost:           10,
		ValidateConfig: validateNilaiLLM,
	},
	BlockZcashSend: {
		ID:             BlockZcashSend,
		Handler:        HandlerZcash,
		Category:       CategoryAction,
		Cost:           3,
		ValidateConfig: validateZcashSend,
	},
	BlockConnectorReq: {
		ID:                BlockConnectorReq,
		Handler:           HandlerConnector,
		Category:          CategoryAction,
		RequiresConnector: true,
		Cost:              1,
		ValidateConfig:    validateConnectorRequest,
	},
	BlockCustomHTTP: {
		ID:             BlockCustomHTTP,
		Handler:        HandlerConnector,
		Category:       CategoryAction,
		Cost:           1,
		ValidateConfig: validateCustomHTTP,
	},
	BlockStateStore: {
		ID:             BlockStateStore,
		Handler:        HandlerNillion,
		Category:       CategoryStorage,
		Cost:           2,
		ValidateConfig: validateStateStore,
	},
	BlockStateRead: {
		ID:             BlockStateRead,
		Handler:        HandlerNillion,
		Category:       CategoryStorage,
		Cost:           1,
		ValidateConfig: validateStateRead,
	},
}

// mpcDefinition builds a definition for the free arithmetic blocks. The
// arithmetic and comparison blocks are free: their cost is carried by
// the batch submission they ride in.
func mpcDefinition(id string) Definition {
	return Definition{
		ID:             id,
		Handler:        HandlerNillion,
		Category:       CategoryCompute,
		Cost:           0,
		ValidateConfig: validateNoop,
	}
}

// Lookup returns the definition for a block id
func Lookup(blockID string) (Definition, error) {
	def, ok := definitions[blockID]
	if !ok {
		return Definition{}, fmt.Errorf("unknown block type: %s", blockID)
	}
	return def, nil
}

// Exists reports whether a block id is in the closed set
func Exists(blockID string) bool {
	_, ok := definitions[blockID]
	return ok
}

// Cost returns the credit cost for a block id; unknown ids cost zero.
// Input and transform blocks are free by table construction.
func Cost(blockID string) int {
	def, ok := definitions[blockID]
	if !ok {
		return 0
	}
	return def.Cost
}

// All returns every definition sorted by id, for the registry API surface
func All() []Definition {
	defs := make([]Definition, 0, len(definitions))
	for _, def := range definitions {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs
}

// NodeTypeFor derives the runnable node type from a definition category
func NodeTypeFor(category Category) string {
	switch category {
	case CategoryInput:
		return "input"
	case CategoryCompute, CategoryStorage:
		return "compute"
	case CategoryAction:
		return "action"
	case CategoryTransform:
		return "transform"
	default:
		return "compute"
	}
}
