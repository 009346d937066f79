// Package credits maps graphs to credit requirements and talks to the
// credit ledger. Users are billed for completed work only: the
// pre-flight reserve stops runs that cannot be paid for in full, and
// the debit happens once, after terminal success.
package credits

import (
	"context"
	"errors"
	"fmt"

	"github.com/chigozzdevv/zecflow-sub000/common/logger"
	"github.com/chigozzdevv/zecflow-sub000/common/models"
	"github.com/chigozzdevv/zecflow-sub000/common/registry"
)

// ErrInsufficient is returned by the ledger when a debit would overdraw
var ErrInsufficient = errors.New("insufficient credits")

// Ledger is the contract the engine requires of credit storage. Debit
// must be atomic: it either moves the full amount or fails.
type Ledger interface {
	GetAvailable(ctx context.Context, org string) (int, error)
	Debit(ctx context.Context, org string, amount int, reason string) error
}

// Planner computes and settles the credit cost of runs
type Planner struct {
	ledger   Ledger
	baseCost int
	log      *logger.Logger
}

// NewPlanner creates a planner with the given per-run base cost
func NewPlanner(ledger Ledger, baseCost int, log *logger.Logger) *Planner {
	return &Planner{
		ledger:   ledger,
		baseCost: baseCost,
		log:      log,
	}
}

// Plan sums per-node costs from the registry table plus the base run
// cost. Input, output and transform nodes are free by table
// construction.
func (p *Planner) Plan(g *models.WorkflowGraph) int {
	required := p.baseCost
	for _, node := range g.Nodes {
		required += registry.Cost(node.BlockID)
	}
	return required
}

// Reserve performs the pre-flight balance check. It never debits; it
// only rejects runs that could not be paid for.
func (p *Planner) Reserve(ctx context.Context, org string, required int) error {
	available, err := p.ledger.GetAvailable(ctx, org)
	if err != nil {
		return fmt.Errorf("check credit balance: %w", err)
	}
	if available < required {
		return fmt.Errorf("%w. Required: %d, Available: %d", ErrInsufficient, required, available)
	}
	return nil
}

// Commit atomically debits the run's cost. Called only after the run
// succeeded.
func (p *Planner) Commit(ctx context.Context, org string, required int, reason string) error {
	if err := p.ledger.Debit(ctx, org, required, reason); err != nil {
		return fmt.Errorf("debit credits: %w", err)
	}
	p.log.Info("credits committed", "org", org, "amount", required, "reason", reason)
	return nil
}
