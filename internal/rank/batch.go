package rank

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/hyperifyio/dinecoach/internal/menu"
	"github.com/hyperifyio/dinecoach/internal/score"
)

// RankMany ranks several independent menus in parallel with at most limit
// goroutines. Results keep the order of menus.
func RankMany(ctx context.Context, menus [][]menu.Candidate, p score.Preferences, opt Options, limit int) ([]Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	out := make([]Result, len(menus))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, cands := range menus {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := Rank(cands, p, opt)
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
