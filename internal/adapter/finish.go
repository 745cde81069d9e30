package adapter

import (
	"sort"

	"github.com/samber/lo"

	"github.com/tejusbharadwaj/gridfeed/internal/models"
	"github.com/tejusbharadwaj/gridfeed/internal/options"
)

// Finish applies the query's temporal and node constraints, removes
// duplicates by (node, timestamp, market, lmp type), sorts by (node,
// timestamp, lmp type, market) and stamps the authority
// code. Latest queries keep only the newest timestamp.
func (b *Base) Finish(q options.Query, points []models.Point) []models.Point {
	lead := b.Authority.ForecastLead
	kept := lo.Filter(points, func(p models.Point, _ int) bool {
		if !q.Contains(p.Timestamp, lead) {
			return false
		}
		if q.Market != "" && p.Market != q.Market {
			return false
		}
		return p.NodeID == "" || q.WantsNode(p.NodeID)
	})

	for i := range kept {
		kept[i].BAName = b.Authority.Code
		kept[i].Timestamp = kept[i].Timestamp.UTC()
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Less(kept[j]) })
	kept = lo.UniqBy(kept, func(p models.Point) models.Key { return p.Key() })

	if q.Mode == options.ModeLatest && len(kept) > 0 {
		newest := lo.MaxBy(kept, func(x, y models.Point) bool { return x.Timestamp.After(y.Timestamp) }).Timestamp
		kept = lo.Filter(kept, func(p models.Point, _ int) bool { return p.Timestamp.Equal(newest) })
	}
	if kept == nil {
		kept = []models.Point{}
	}
	return kept
}
