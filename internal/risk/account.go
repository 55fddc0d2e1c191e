package risk

import (
	"context"
	"sync/atomic"
)

// AccountState holds the latest portfolio snapshot pushed by the execution
// collaborator. Reads never block writers.
type AccountState struct {
	current atomic.Pointer[Portfolio]
}

func NewAccountState() *AccountState {
	s := &AccountState{}
	s.current.Store(&Portfolio{})
	return s
}

// Update replaces the snapshot.
func (s *AccountState) Update(p Portfolio) {
	p.Positions = append([]Position(nil), p.Positions...)
	s.current.Store(&p)
}

// Portfolio returns the latest snapshot. Zero-valued until the first
// update; the assessor treats that as missing data.
func (s *AccountState) Portfolio(ctx context.Context) (Portfolio, error) {
	if err := ctx.Err(); err != nil {
		return Portfolio{}, err
	}
	return *s.current.Load(), nil
}
