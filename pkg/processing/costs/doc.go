// Package costs prices token usage in USD.
//
// Prices come from the provider descriptors (cost_per_1k_input and
// cost_per_1k_output in configuration). The router uses Calculate to order a
// chain by estimated cost, and the pipeline records the actual cost of a
// response in the audit event:
//
//	calculator := costs.NewCalculator(descriptors)
//	cost := calculator.CalculateResponseCost("openai", resp.Usage)
//	fmt.Printf("$%.4f\n", cost.TotalCost)
package costs
