// Package tokens estimates token counts for requests before they reach a
// provider.
//
// Estimates drive budget reservations and cost-aware routing, so they only
// need to be stable and roughly proportional to real usage. The
// SimpleEstimator divides character counts by a characters-per-token ratio,
// configurable per model prefix:
//
//	estimator := tokens.NewSimpleEstimator(cfg.Processing.Tokens)
//	est := estimator.EstimateRequest(req, cfg.Budget.DefaultMaxTokens)
//	fmt.Println(est.PromptTokens, est.EstimatedCompletionTokens)
//
// Actual usage reported by the provider always replaces the estimate when the
// budget is committed.
package tokens
