package routing

import (
	"log/slog"
	"slices"
	"sort"

	"mercator-hq/saturn/pkg/processing/costs"
)

// BuildChain filters entries by the criteria and orders them for fallback.
//
// Order is priority ascending, ties broken by name, so the same configuration
// always produces the same chain. With Criteria.CostAware the chain is then
// stably re-sorted by estimated cost. A Primary that survived filtering is
// moved to the head last.
func BuildChain(entries []Entry, c Criteria) []Entry {
	chain := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if !eligible(e, c) {
			continue
		}
		chain = append(chain, e)
	}

	sort.SliceStable(chain, func(i, j int) bool {
		a, b := chain[i].Descriptor, chain[j].Descriptor
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.Name < b.Name
	})

	if c.CostAware {
		cost := make(map[string]float64, len(chain))
		for _, e := range chain {
			cost[e.Name()] = costs.Calculate(e.Name(), costs.PricingOf(e.Descriptor), c.EstimatedIn, c.EstimatedOut).TotalCost
		}
		sort.SliceStable(chain, func(i, j int) bool {
			return cost[chain[i].Name()] < cost[chain[j].Name()]
		})
	}

	if c.Primary != "" {
		for i, e := range chain {
			if e.Name() == c.Primary && i > 0 {
				primary := chain[i]
				copy(chain[1:i+1], chain[:i])
				chain[0] = primary
				break
			}
		}
	}

	slog.Debug("built provider chain",
		"capability", c.Capability,
		"model", c.Model,
		"eligible", len(chain),
		"configured", len(entries),
	)
	return chain
}

func eligible(e Entry, c Criteria) bool {
	if e.Provider == nil {
		return false
	}
	if c.Capability != "" && !e.Descriptor.Supports(c.Capability) {
		return false
	}
	if c.Model != "" && !e.Descriptor.SupportsModel(c.Model) {
		return false
	}
	if len(c.AllowedProviders) > 0 && !slices.Contains(c.AllowedProviders, e.Name()) {
		return false
	}
	return true
}

// Names returns the provider names of a chain in order.
func Names(chain []Entry) []string {
	names := make([]string, len(chain))
	for i, e := range chain {
		names[i] = e.Name()
	}
	return names
}
