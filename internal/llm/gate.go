package llm

import "context"

// Gate is a single permit shared by every Client that should never have
// more than one provider call in flight.
type Gate struct {
	ch chan struct{}
}

func NewGate() *Gate {
	return &Gate{ch: make(chan struct{}, 1)}
}

// Acquire blocks until the permit is free or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case g.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gate) Release() {
	select {
	case <-g.ch:
	default:
		panic("llm: Gate.Release without Acquire")
	}
}
