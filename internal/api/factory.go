package api

import (
	"fmt"

	"github.com/tejusbharadwaj/gridfeed/internal/adapter"
	"github.com/tejusbharadwaj/gridfeed/internal/adapter/bpa"
	"github.com/tejusbharadwaj/gridfeed/internal/adapter/caiso"
	"github.com/tejusbharadwaj/gridfeed/internal/adapter/eia"
	"github.com/tejusbharadwaj/gridfeed/internal/adapter/entsoe"
	"github.com/tejusbharadwaj/gridfeed/internal/adapter/ercot"
	"github.com/tejusbharadwaj/gridfeed/internal/adapter/isone"
	"github.com/tejusbharadwaj/gridfeed/internal/adapter/miso"
	"github.com/tejusbharadwaj/gridfeed/internal/adapter/nvenergy"
	"github.com/tejusbharadwaj/gridfeed/internal/adapter/nyiso"
	"github.com/tejusbharadwaj/gridfeed/internal/adapter/pjm"
	"github.com/tejusbharadwaj/gridfeed/internal/adapter/sveri"
	"github.com/tejusbharadwaj/gridfeed/internal/registry"
)

// constructor builds a family adapter. The result implements
// adapter.LMPGetter, adapter.LoadGetter or both.
type constructor func(registry.Authority, adapter.Deps) (any, error)

func wrap[T any](fn func(registry.Authority, adapter.Deps) (T, error)) constructor {
	return func(a registry.Authority, d adapter.Deps) (any, error) {
		return fn(a, d)
	}
}

var families = map[registry.Family]constructor{
	registry.FamilyCAISO:    wrap(caiso.New),
	registry.FamilyPJM:      wrap(pjm.New),
	registry.FamilyERCOT:    wrap(ercot.New),
	registry.FamilyISONE:    wrap(isone.New),
	registry.FamilyNYISO:    wrap(nyiso.New),
	registry.FamilyMISO:     wrap(miso.New),
	registry.FamilyBPA:      wrap(bpa.New),
	registry.FamilyNVEnergy: wrap(nvenergy.New),
	registry.FamilySVERI:    wrap(sveri.New),
	registry.FamilyEIA:      wrap(eia.New),
	registry.FamilyENTSOE:   wrap(entsoe.New),
}

// newAdapter builds a fresh adapter for one call.
func newAdapter(a registry.Authority, d adapter.Deps) (any, error) {
	build, ok := families[a.Family]
	if !ok {
		return nil, fmt.Errorf("no adapter for family %q of %s", a.Family, a.Code)
	}
	return build(a, d)
}
