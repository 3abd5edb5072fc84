package pipeline

import (
	"errors"

	"mercator-hq/saturn/pkg/governance"
	"mercator-hq/saturn/pkg/limits/budget"
	"mercator-hq/saturn/pkg/policy"
	"mercator-hq/saturn/pkg/retrieval"
	"mercator-hq/saturn/pkg/routing"
)

// Reason codes for terminal errors raised by the pipeline itself.
const (
	ReasonInvalidRequest       = "invalid_request"
	ReasonProviderExhausted    = "provider_exhausted"
	ReasonProviderError        = "provider_error"
	ReasonNoEligibleProvider   = "no_eligible_provider"
	ReasonCitationIntegrity    = "citation_integrity_violation"
	ReasonRetrievalUnavailable = "retrieval_failed"
)

func invalidRequest(err error, hash string) *governance.Error {
	return governance.NewError(governance.KindInvalidRequest, ReasonInvalidRequest, hash, err)
}

func transformError(err error, hash string) *governance.Error {
	return governance.NewError(governance.KindPolicyDenied, policy.ReasonUnsupportedTransform, hash, err)
}

func modelError(err error, hash string) *governance.Error {
	return governance.NewError(governance.KindPolicyDenied, policy.ReasonModelNotAllowed, hash, err)
}

func retrievalError(err error, hash string) *governance.Error {
	var (
		unauthorized *retrieval.UnauthorizedError
		notFound     *retrieval.ConnectorNotFoundError
		failed       *retrieval.ConnectorError
		integrity    *retrieval.CitationIntegrityError
	)
	switch {
	case errors.As(err, &unauthorized):
		return governance.NewError(governance.KindRetrievalUnauthorized, retrieval.ReasonConnectorNotAllowed, hash, err)
	case errors.As(err, &integrity):
		return governance.NewError(governance.KindCitationIntegrityViolation, ReasonCitationIntegrity, hash, err)
	case errors.As(err, &notFound):
		return governance.NewError(governance.KindRetrievalFailed, retrieval.ReasonConnectorNotFound, hash, err)
	case errors.As(err, &failed):
		return governance.NewError(governance.KindRetrievalFailed, retrieval.ReasonConnectorFailed, hash, err)
	default:
		return governance.NewError(governance.KindRetrievalFailed, ReasonRetrievalUnavailable, hash, err)
	}
}

func budgetError(err error, hash string) *governance.Error {
	var exceeded *budget.ExceededError
	if errors.As(err, &exceeded) {
		return governance.NewError(governance.KindBudgetExceeded, budget.ReasonBudgetExceeded, hash, err)
	}
	return governance.NewError(governance.KindBudgetBackendUnavailable, budget.ReasonBackendUnavailable, hash, err)
}

func providerError(err error, hash string) *governance.Error {
	var (
		exhausted  *routing.ExhaustedError
		terminal   *routing.TerminalError
		noEligible *routing.NoEligibleProviderError
	)
	switch {
	case errors.As(err, &noEligible):
		return governance.NewError(governance.KindProviderExhausted, ReasonNoEligibleProvider, hash, err)
	case errors.As(err, &terminal):
		return governance.NewError(governance.KindProviderFailed, ReasonProviderError, hash, err)
	case errors.As(err, &exhausted):
		return governance.NewError(governance.KindProviderExhausted, ReasonProviderExhausted, hash, err)
	default:
		return governance.NewError(governance.KindProviderFailed, ReasonProviderError, hash, err)
	}
}
