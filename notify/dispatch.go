package notify

import (
	"context"
	"fmt"

	"github.com/Megii/CarCareFunctions/store"
	"github.com/Megii/CarCareFunctions/utils"
	"go.uber.org/zap"
)

type Dispatcher struct {
	transport Transport
	pruner    *Pruner
}

func NewDispatcher(t Transport, s store.Store) *Dispatcher {
	return &Dispatcher{transport: t, pruner: NewPruner(s)}
}

// Dispatch sends p to every recipient in a single transport call and prunes
// the tokens reported as permanently invalid. It returns once every removal
// has settled. Only a transport failure is returned as an error.
func (d *Dispatcher) Dispatch(ctx context.Context, rs []Recipient, p *Payload) ([]Outcome, error) {
	if len(rs) == 0 {
		zap.S().Debugw("no recipients, skipping dispatch", "title", p.Title)
		return nil, nil
	}

	tokens := utils.Map(rs, func(r Recipient) string { return r.Token })
	outcomes, err := d.transport.Send(ctx, tokens, p)
	if err != nil {
		return nil, fmt.Errorf("sending notification to %d tokens: %w", len(tokens), err)
	}

	failed := utils.Filter(outcomes, func(o Outcome) bool { return !o.Success() })
	for _, o := range failed {
		if !o.Permanent() {
			zap.S().Warnw("notification delivery failed", "token", o.Token, "code", o.Code)
		}
	}

	pruned := d.pruner.Prune(ctx, outcomes, rs)
	zap.S().Infow("notification dispatched",
		"tokens", len(tokens),
		"failed", len(failed),
		"pruned", pruned,
	)
	return outcomes, nil
}
