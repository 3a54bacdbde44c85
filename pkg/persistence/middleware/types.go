// Package middleware wraps report stores to keep sensitive variable values
// out of persisted run reports.
package middleware

import "github.com/aretw0/tendril/pkg/ports"

// Middleware allows wrapping a ReportStore to add behavior.
type Middleware func(ports.ReportStore) ports.ReportStore

// Chain applies mws so that the first one sees a report first on Save.
func Chain(store ports.ReportStore, mws ...Middleware) ports.ReportStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
