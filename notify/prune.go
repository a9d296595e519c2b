package notify

import (
	"context"
	"sync"

	"github.com/Megii/CarCareFunctions/store"
	"go.uber.org/zap"
)

type Pruner struct {
	store store.Store
}

func NewPruner(s store.Store) *Pruner {
	return &Pruner{store: s}
}

// Prune removes every token whose outcome is a permanent failure from the
// node it was read from. outcomes[i] belongs to recipients[i]. Removals run
// concurrently; failures are logged and dropped. It returns the number of
// tokens removed.
func (p *Pruner) Prune(ctx context.Context, outcomes []Outcome, recipients []Recipient) int {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		removed int
	)

	for i, o := range outcomes {
		if !o.Permanent() {
			continue
		}
		if i >= len(recipients) || recipients[i].Path == "" {
			zap.S().Warnw("no location for invalid token", "token", o.Token, "index", i)
			continue
		}
		r := recipients[i]
		if o.Token != "" && o.Token != r.Token {
			zap.S().Warnw("outcome does not match recipient", "token", o.Token, "recipient", r.Token)
			continue
		}

		wg.Add(1)
		go func(r Recipient, code string) {
			defer wg.Done()
			ok, err := p.remove(ctx, r)
			if err != nil {
				zap.S().Warnw("error removing invalid token", "path", r.Path, "error", err)
				return
			}
			if ok {
				zap.S().Infow("removed invalid token", "path", r.Path, "code", code)
				mu.Lock()
				removed++
				mu.Unlock()
			}
		}(r, o.Code)
	}

	wg.Wait()
	return removed
}

// remove deletes the token at r.Path if the node still holds it. A token
// that is already gone, or was replaced by a fresh registration, is left alone.
func (p *Pruner) remove(ctx context.Context, r Recipient) (bool, error) {
	var current string
	if err := p.store.Get(ctx, r.Path, &current); err != nil {
		return false, err
	}
	if current != r.Token {
		return false, nil
	}
	if err := p.store.Delete(ctx, r.Path); err != nil {
		return false, err
	}
	return true, nil
}
