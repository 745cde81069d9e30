// Package registry holds the immutable table of grid authorities gridfeed can
// query. The table is assembled once at package init and never mutated; every
// lookup returns a copy of the descriptor.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/tejusbharadwaj/gridfeed/internal/models"
)

// Class is the geographic class of an authority.
type Class string

const (
	ClassUS     Class = "US"
	ClassCanada Class = "Canada"
	ClassMexico Class = "Mexico"
	ClassEU     Class = "EU"
)

// Family names the adapter implementation that serves an authority.
type Family string

const (
	FamilyCAISO    Family = "caiso"
	FamilyPJM      Family = "pjm"
	FamilyERCOT    Family = "ercot"
	FamilyISONE    Family = "isone"
	FamilyNYISO    Family = "nyiso"
	FamilyMISO     Family = "miso"
	FamilyBPA      Family = "bpa"
	FamilyNVEnergy Family = "nvenergy"
	FamilySVERI    Family = "sveri"
	FamilyEIA      Family = "eia"
	FamilyENTSOE   Family = "entsoe"
)

const defaultMaxConcurrency = 4

// Authority describes one balancing authority.
type Authority struct {
	Code        string
	DisplayName string
	Family      Family
	DataTypes   []models.DataType
	Class       Class

	// UpstreamCode is the identifier the upstream feed uses when it differs
	// from Code.
	UpstreamCode string

	// DefaultWindow is the lookback used when a query names no temporal mode.
	// Zero means the latest snapshot.
	DefaultWindow time.Duration

	// ForecastLead is the minimum distance from the call time before which
	// this authority's forecasts are not yet published.
	ForecastLead time.Duration

	// RequiresNodes is set when the upstream cannot answer unfiltered queries.
	RequiresNodes bool

	MaxConcurrency int
}

// Supports reports whether the authority publishes the given data type.
func (a Authority) Supports(dt models.DataType) bool {
	return lo.Contains(a.DataTypes, dt)
}

// Upstream returns the identifier sent to the upstream feed.
func (a Authority) Upstream() string {
	if a.UpstreamCode != "" {
		return a.UpstreamCode
	}
	return a.Code
}

// Concurrency returns the per-call ceiling on parallel upstream requests.
func (a Authority) Concurrency() int {
	if a.MaxConcurrency > 0 {
		return a.MaxConcurrency
	}
	return defaultMaxConcurrency
}

var table map[string]Authority

func init() {
	table = make(map[string]Authority)
	for _, a := range authorities() {
		if _, dup := table[a.Code]; dup {
			panic(fmt.Sprintf("registry: duplicate authority code %s", a.Code))
		}
		a.DataTypes = append([]models.DataType(nil), a.DataTypes...)
		table[a.Code] = a
	}
}

// Lookup returns the descriptor for code. Codes are matched case-insensitively.
func Lookup(code string) (Authority, error) {
	a, ok := table[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return Authority{}, fmt.Errorf("%w: %q", models.ErrUnknownAuthority, code)
	}
	return a.clone(), nil
}

// ListAuthorities returns every authority supporting dt, sorted by code.
// An empty dt lists all authorities.
func ListAuthorities(dt models.DataType) []Authority {
	out := lo.FilterMap(lo.Values(table), func(a Authority, _ int) (Authority, bool) {
		return a.clone(), dt == "" || a.Supports(dt)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Codes returns every registered code, sorted.
func Codes() []string {
	codes := lo.Keys(table)
	sort.Strings(codes)
	return codes
}

// ByFamily returns the authorities served by one adapter family, sorted by code.
func ByFamily(f Family) []Authority {
	return lo.Filter(ListAuthorities(""), func(a Authority, _ int) bool { return a.Family == f })
}

func (a Authority) clone() Authority {
	a.DataTypes = append([]models.DataType(nil), a.DataTypes...)
	return a
}
