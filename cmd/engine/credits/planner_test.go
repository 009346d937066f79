package credits

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chigozzdevv/zecflow-sub000/common/logger"
	"github.com/chigozzdevv/zecflow-sub000/common/models"
	"github.com/chigozzdevv/zecflow-sub000/common/registry"
)

type fakeLedger struct {
	balance int
	debits  []int
	failGet error
	failDeb error
}

func (f *fakeLedger) GetAvailable(ctx context.Context, org string) (int, error) {
	if f.failGet != nil {
		return 0, f.failGet
	}
	return f.balance, nil
}

func (f *fakeLedger) Debit(ctx context.Context, org string, amount int, reason string) error {
	if f.failDeb != nil {
		return f.failDeb
	}
	if amount > f.balance {
		return ErrInsufficient
	}
	f.balance -= amount
	f.debits = append(f.debits, amount)
	return nil
}

func testGraph(blockIDs ...string) *models.WorkflowGraph {
	g := &models.WorkflowGraph{}
	for i, id := range blockIDs {
		g.Nodes = append(g.Nodes, models.GraphNode{
			ID:      fmt.Sprintf("n%d", i+1),
			BlockID: id,
		})
	}
	return g
}

func TestPlanSumsRegistryCosts(t *testing.T) {
	planner := NewPlanner(&fakeLedger{}, 1, logger.New("error", "text"))

	// Free blocks only: base cost remains
	free := testGraph(registry.BlockPayloadInput, registry.BlockJSONExtract)
	assert.Equal(t, 1, planner.Plan(free))

	// Paid blocks add their table cost on top of the base
	paid := testGraph(registry.BlockPayloadInput, registry.BlockNilaiLLM, registry.BlockZcashSend)
	expected := 1 + registry.Cost(registry.BlockNilaiLLM) + registry.Cost(registry.BlockZcashSend)
	assert.Equal(t, expected, planner.Plan(paid))
	assert.Greater(t, expected, 1)
}

func TestReserveSufficient(t *testing.T) {
	planner := NewPlanner(&fakeLedger{balance: 100}, 1, logger.New("error", "text"))
	require.NoError(t, planner.Reserve(context.Background(), "org-1", 100))
}

func TestReserveInsufficient(t *testing.T) {
	planner := NewPlanner(&fakeLedger{balance: 100}, 1, logger.New("error", "text"))

	err := planner.Reserve(context.Background(), "org-1", 120)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficient)
	assert.Contains(t, err.Error(), "Required: 120, Available: 100")
}

func TestReserveLedgerError(t *testing.T) {
	ledger := &fakeLedger{failGet: fmt.Errorf("connection refused")}
	planner := NewPlanner(ledger, 1, logger.New("error", "text"))

	err := planner.Reserve(context.Background(), "org-1", 10)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInsufficient)
}

func TestReserveDoesNotDebit(t *testing.T) {
	ledger := &fakeLedger{balance: 50}
	planner := NewPlanner(ledger, 1, logger.New("error", "text"))

	require.NoError(t, planner.Reserve(context.Background(), "org-1", 30))
	assert.Equal(t, 50, ledger.balance)
	assert.Empty(t, ledger.debits)
}

func TestCommitDebitsOnce(t *testing.T) {
	ledger := &fakeLedger{balance: 50}
	planner := NewPlanner(ledger, 1, logger.New("error", "text"))

	require.NoError(t, planner.Commit(context.Background(), "org-1", 30, "run r-1"))
	assert.Equal(t, 20, ledger.balance)
	assert.Equal(t, []int{30}, ledger.debits)
}

func TestCommitPropagatesFailure(t *testing.T) {
	ledger := &fakeLedger{balance: 50, failDeb: fmt.Errorf("deadlock")}
	planner := NewPlanner(ledger, 1, logger.New("error", "text"))

	err := planner.Commit(context.Background(), "org-1", 30, "run r-1")
	require.Error(t, err)
	assert.Equal(t, 50, ledger.balance, "failed commit must not move funds")
}
