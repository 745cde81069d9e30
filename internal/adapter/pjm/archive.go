package pjm

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/tejusbharadwaj/gridfeed/internal/adapter"
	"github.com/tejusbharadwaj/gridfeed/internal/models"
	"github.com/tejusbharadwaj/gridfeed/internal/normalize"
	"github.com/tejusbharadwaj/gridfeed/internal/options"
	"github.com/tejusbharadwaj/gridfeed/internal/transport"
)

const (
	archiveDateLayout = "01/02/2006"
	archiveZone       = "RTO"
	maxHourEnding     = 25
)

// archive reads every yearly file touched by the query window. Files for
// closed years are immutable and marked cacheable.
func (a *Adapter) archive(ctx context.Context, q options.Query) []models.Point {
	days := adapter.Days(q.Start, q.End, a.Normalizer.Location())
	years := lo.Uniq(lo.Map(days, func(d time.Time, _ int) int { return d.Year() }))

	return adapter.Each(ctx, &a.Base, years, func(ctx context.Context, year int) ([]models.Point, error) {
		req := transport.Get(archiveFile(year), nil)
		req.Cacheable = year < q.Now.In(a.Normalizer.Location()).Year()

		body := a.Fetch(ctx, req)
		if body == nil {
			return nil, nil
		}
		records, err := a.parseArchive(body)
		if err != nil {
			a.Malformed(req, err)
			return nil, nil
		}
		return a.Points(records), nil
	})
}

func (a *Adapter) parseArchive(body []byte) ([]normalize.Record, error) {
	t, err := adapter.ParseTable(body, ',')
	if err != nil {
		return nil, err
	}
	if !t.Has("DATE", "ZONE") {
		return nil, models.Malformed("archive header missing DATE or ZONE: %v", t.Header)
	}

	var records []normalize.Record
	for _, row := range t.Rows {
		if t.Get(row, "ZONE") != archiveZone {
			continue
		}
		day, err := time.Parse(archiveDateLayout, t.Get(row, "DATE"))
		if err != nil {
			a.Logger.WithError(err).Warn("Skipping archive row with bad date")
			continue
		}
		for he := 1; he <= maxHourEnding; he++ {
			col := fmt.Sprintf("HE%02d", he)
			if t.Get(row, col) == "" {
				continue
			}
			v, ok := t.Float(row, col)
			if !ok {
				a.Logger.WithField("cell", t.Get(row, col)).Warn("Skipping unparseable archive value")
				continue
			}
			records = append(records, normalize.Record{
				Time:     a.Normalizer.HourEnding(day, he),
				Cadence:  feedMeteredLoad,
				Value:    v,
				Unit:     normalize.MW,
				DataType: models.DataTypeLoad,
			})
		}
	}
	return records, nil
}
