package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hyperifyio/dinecoach/internal/discovery"
	"github.com/hyperifyio/dinecoach/internal/fetch"
	"github.com/hyperifyio/dinecoach/internal/menu"
	"github.com/hyperifyio/dinecoach/internal/rank"
	"github.com/hyperifyio/dinecoach/internal/score"
)

// NearbyPicks caps the picks shown per restaurant.
const NearbyPicks = 2

// NearbyRequest selects restaurants around a ZIP code.
type NearbyRequest struct {
	ZIP         string
	RadiusMiles float64
	OnlyChains  bool
	Preferences score.Preferences
}

// NearbyResult lists restaurants by distance with their picks.
type NearbyResult struct {
	Context     Context           `json:"context"`
	Restaurants []RestaurantPicks `json:"restaurants"`
}

// Nearby discovers restaurants, collects each one's menu candidates in
// parallel, then ranks the menus together. A restaurant whose menu cannot be
// resolved or yields no picks falls back to its playbook. Only discovery and
// preference errors fail the call.
func (a *App) Nearby(ctx context.Context, req NearbyRequest) (NearbyResult, error) {
	p := normalizePrefs(req.Preferences)
	if err := p.Validate(); err != nil {
		return NearbyResult{}, err
	}
	radius := req.RadiusMiles
	if radius <= 0 {
		radius = a.cfg.RadiusMiles
	}
	area, err := a.discovery.Nearby(ctx, discovery.Query{
		ZIP:         req.ZIP,
		RadiusMiles: radius,
		OnlyChains:  req.OnlyChains,
		Limit:       a.cfg.DiscoveryLimit,
	})
	if err != nil {
		return NearbyResult{}, err
	}

	menus := make([][]menu.Candidate, len(area.Restaurants))
	menuURLs := make([]string, len(area.Restaurants))
	g, gctx := errgroup.WithContext(ctx)
	if n := a.cfg.NearbyConcurrency; n > 0 {
		g.SetLimit(n)
	}
	for i, r := range area.Restaurants {
		g.Go(func() error {
			menus[i], menuURLs[i] = a.restaurantMenu(gctx, r)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return NearbyResult{}, err
	}
	ranked, err := rank.RankMany(ctx, menus, p, rank.Options{Picks: NearbyPicks}, a.cfg.NearbyConcurrency)
	if err != nil {
		return NearbyResult{}, err
	}

	out := make([]RestaurantPicks, len(area.Restaurants))
	for i, r := range area.Restaurants {
		rp, err := a.restaurantPicks(r, menuURLs[i], ranked[i].Picks, p)
		if err != nil {
			return NearbyResult{}, err
		}
		out[i] = rp
	}

	c := newContext(SourceZIP, p)
	c.ZIP = area.ZIP
	c.RadiusMiles = area.RadiusMiles
	return NearbyResult{Context: c, Restaurants: out}, nil
}

// restaurantPicks uses the ranked menu picks when there are any and the
// restaurant's playbook otherwise.
func (a *App) restaurantPicks(r discovery.Restaurant, menuURL string, picks []rank.ScoredPick, p score.Preferences) (RestaurantPicks, error) {
	dist := r.DistanceMi
	rp := RestaurantPicks{
		Name:       r.Name,
		DistanceMi: &dist,
		Cuisine:    r.Cuisine,
		Website:    r.Website,
		Source:     SourcePlay,
	}
	if rp.Cuisine == nil {
		rp.Cuisine = []string{}
	}
	if len(picks) > 0 {
		rp.Source, rp.MenuURL, rp.Picks = SourceMenu, menuURL, picks
	} else {
		fallback, err := a.playbooks.Picks(r.Name, r.Cuisine, p, NearbyPicks)
		if err != nil {
			return RestaurantPicks{}, err
		}
		rp.Picks = fallback
	}
	if len(rp.Picks) > NearbyPicks {
		rp.Picks = rp.Picks[:NearbyPicks]
	}
	return rp, nil
}

// restaurantMenu resolves and extracts a restaurant's menu. Failures yield no
// candidates.
func (a *App) restaurantMenu(ctx context.Context, r discovery.Restaurant) ([]menu.Candidate, string) {
	if r.Website == "" || (!a.cfg.AllowPrivateHosts && fetch.CheckPublicURL(r.Website) != nil) {
		return nil, ""
	}
	menuURL, err := a.resolver.MenuURL(ctx, r.Website)
	if err != nil || menuURL == "" {
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Debug().Err(err).Str("restaurant", r.Name).Msg("menu url not resolved")
		}
		return nil, ""
	}
	cands, finalURL, err := a.URLCandidates(ctx, menuURL)
	if err != nil {
		log.Debug().Err(err).Str("url", menuURL).Msg("menu fetch failed")
		return nil, ""
	}
	return cands, finalURL
}
