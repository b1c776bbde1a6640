// Package location resolves a city and state to a provider location code.
package location

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pario-ai/vendorsearch/pkg/logging"
	"github.com/pario-ai/vendorsearch/pkg/models"
)

// DefaultCode is the provider code for the whole United States.
const DefaultCode = 2840

// LookupTimeout bounds one backing-table lookup.
const LookupTimeout = 2 * time.Second

// Lookup finds a location code in a backing table. *vendordb.DB implements it.
type Lookup interface {
	LocationCode(ctx context.Context, city, state string) (int, bool, error)
}

// Resolver checks a static table, then the backing lookup, then falls back
// to a default code. It never fails.
type Resolver struct {
	static      map[string]int
	lookup      Lookup
	defaultCode int
	timeout     time.Duration
	log         *zap.Logger
}

// New creates a Resolver. lookup may be nil.
func New(entries []models.LocationEntry, lookup Lookup, defaultCode int, log *zap.Logger) *Resolver {
	if defaultCode <= 0 {
		defaultCode = DefaultCode
	}
	static := make(map[string]int, len(entries))
	for _, e := range entries {
		static[tableKey(e.City, StateName(e.State))] = e.Code
	}
	return &Resolver{
		static:      static,
		lookup:      lookup,
		defaultCode: defaultCode,
		timeout:     LookupTimeout,
		log:         logging.Named(log, "location"),
	}
}

func tableKey(city, state string) string {
	return strings.ToLower(strings.TrimSpace(city)) + "|" + strings.ToLower(strings.TrimSpace(state))
}

// Resolve returns the location code for city and state.
func (r *Resolver) Resolve(ctx context.Context, city, state string) int {
	stateName := StateName(state)
	if code, ok := r.static[tableKey(city, stateName)]; ok {
		return code
	}

	if r.lookup != nil && city != "" {
		lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
		code, ok, err := r.lookup.LocationCode(lookupCtx, strings.TrimSpace(city), stateName)
		cancel()
		switch {
		case err != nil:
			logging.FromContext(ctx, r.log).Warn("location lookup failed, using default",
				zap.String("city", city), zap.String("state", state), zap.Error(err))
		case ok:
			return code
		}
	}
	return r.defaultCode
}

var usStates = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas", "CA": "California",
	"CO": "Colorado", "CT": "Connecticut", "DE": "Delaware", "DC": "District of Columbia",
	"FL": "Florida", "GA": "Georgia", "HI": "Hawaii", "ID": "Idaho", "IL": "Illinois",
	"IN": "Indiana", "IA": "Iowa", "KS": "Kansas", "KY": "Kentucky", "LA": "Louisiana",
	"ME": "Maine", "MD": "Maryland", "MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota",
	"MS": "Mississippi", "MO": "Missouri", "MT": "Montana", "NE": "Nebraska", "NV": "Nevada",
	"NH": "New Hampshire", "NJ": "New Jersey", "NM": "New Mexico", "NY": "New York",
	"NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio", "OK": "Oklahoma", "OR": "Oregon",
	"PA": "Pennsylvania", "RI": "Rhode Island", "SC": "South Carolina", "SD": "South Dakota",
	"TN": "Tennessee", "TX": "Texas", "UT": "Utah", "VT": "Vermont", "VA": "Virginia",
	"WA": "Washington", "WV": "West Virginia", "WI": "Wisconsin", "WY": "Wyoming",
}

// StateName expands a US state abbreviation; other input is returned trimmed.
func StateName(state string) string {
	s := strings.TrimSpace(state)
	if name, ok := usStates[strings.ToUpper(s)]; ok {
		return name
	}
	return s
}
