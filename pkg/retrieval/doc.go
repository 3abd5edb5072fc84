// Package retrieval implements authorized retrieval-augmented context.
//
// The Retriever narrows the connectors a caller asked for to those the
// policy decision (or configuration) allows, searches them, merges the
// results and verifies that every returned chunk comes from the authorized
// scope. A chunk outside that scope is a CitationIntegrityError, which is a
// connector bug and is never returned to the caller as data.
//
// Connector implementations live in the connectors subpackages.
package retrieval
