// Package routing selects providers for a request and falls back between
// them.
//
// BuildChain turns the configured providers into an ordered chain for one
// request: providers lacking the capability or model, or excluded by the
// policy decision, are dropped; the rest are ordered by priority and name,
// optionally re-ordered by estimated cost.
//
// Router walks the chain. Every attempt is recorded, and the attempts list is
// returned both on success and inside *ExhaustedError and *TerminalError so
// the audit trail shows the full fallback path:
//
//	router := routing.NewRouter(manager.Entries(), routing.Options{})
//	res, err := router.Chat(ctx, routing.Criteria{Model: "gpt-4o"}, req)
//	if err != nil {
//		var exhausted *routing.ExhaustedError
//		if errors.As(err, &exhausted) {
//			log.Warn("chain exhausted", "attempts", len(exhausted.Attempts))
//		}
//		return err
//	}
//	fmt.Println(res.Provider, res.Fallbacks())
package routing
