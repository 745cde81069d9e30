// Package normalize turns authority-native records into canonical points.
//
// Every authority family has an explicit zone in the table below. Naive wall
// clock labels are resolved in that zone: an ambiguous fall-back label takes
// the earlier instant and a label inside a spring-forward gap is moved forward
// by the size of the gap. Labels that collide after resolution are collapsed
// later by deduplication; no missing hour is ever synthesized.
package normalize

import (
	"fmt"
	"math"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/tejusbharadwaj/gridfeed/internal/models"
	"github.com/tejusbharadwaj/gridfeed/internal/registry"
)

var zones = map[registry.Family]string{
	registry.FamilyCAISO:    "America/Los_Angeles",
	registry.FamilyPJM:      "America/New_York",
	registry.FamilyERCOT:    "America/Chicago",
	registry.FamilyISONE:    "America/New_York",
	registry.FamilyNYISO:    "America/New_York",
	registry.FamilyMISO:     "Etc/GMT+5", // EST year round
	registry.FamilyBPA:      "America/Los_Angeles",
	registry.FamilyNVEnergy: "America/Los_Angeles",
	registry.FamilySVERI:    "America/Phoenix",
	registry.FamilyEIA:      "UTC",
	registry.FamilyENTSOE:   "UTC",
}

type cadence struct {
	market models.Market
	freq   models.Freq
}

var canonicalCadences = map[string]cadence{
	string(models.MarketRealtime5Min): {models.MarketRealtime5Min, models.Freq5Min},
	string(models.MarketHourly):       {models.MarketHourly, models.FreqHourly},
	string(models.MarketDayAhead):     {models.MarketDayAhead, models.FreqHourly},
}

var vocabularies = map[registry.Family]map[string]cadence{
	registry.FamilyCAISO: {
		"PRC_INTVL_LMP": {models.MarketRealtime5Min, models.Freq5Min},
		"PRC_HASP_LMP":  {models.MarketHourly, models.FreqHourly},
		"PRC_LMP":       {models.MarketDayAhead, models.FreqHourly},
		"RTM":           {models.MarketRealtime5Min, models.Freq5Min},
		"ACTUAL":        {models.MarketHourly, models.FreqHourly},
		"DAM":           {models.MarketDayAhead, models.FreqHourly},
	},
	registry.FamilyPJM: {
		"rt_fivemin_hrl_lmps": {models.MarketRealtime5Min, models.Freq5Min},
		"rt_hrl_lmps":         {models.MarketHourly, models.FreqHourly},
		"da_hrl_lmps":         {models.MarketDayAhead, models.FreqHourly},
		"inst_load":           {models.MarketRealtime5Min, models.Freq5Min},
		"hrl_load_metered":    {models.MarketHourly, models.FreqHourly},
		"load_frcstd_7_day":   {models.MarketDayAhead, models.FreqHourly},
	},
	registry.FamilyERCOT: {
		"SCED": {models.MarketRealtime5Min, models.Freq5Min},
		"DAM":  {models.MarketDayAhead, models.FreqHourly},
		"STLF": {models.MarketDayAhead, models.FreqHourly},
	},
	registry.FamilyISONE: {
		"FiveMinute": {models.MarketRealtime5Min, models.Freq5Min},
		"Hourly":     {models.MarketHourly, models.FreqHourly},
		"DayAhead":   {models.MarketDayAhead, models.FreqHourly},
	},
	registry.FamilyNYISO: {
		"realtime": {models.MarketRealtime5Min, models.Freq5Min},
		"hamlbmp":  {models.MarketHourly, models.FreqHourly},
		"damlbmp":  {models.MarketDayAhead, models.FreqHourly},
		"pal":      {models.MarketRealtime5Min, models.Freq5Min},
		"isolf":    {models.MarketDayAhead, models.FreqHourly},
	},
	registry.FamilyMISO: {
		"ExPost":           {models.MarketRealtime5Min, models.Freq5Min},
		"FiveMinTotalLoad": {models.MarketRealtime5Min, models.Freq5Min},
		"RT":               {models.MarketHourly, models.FreqHourly},
		"DA":               {models.MarketDayAhead, models.FreqHourly},
		"MTLF":             {models.MarketDayAhead, models.FreqHourly},
	},
	registry.FamilyBPA: {
		"5MIN": {models.MarketRealtime5Min, models.Freq5Min},
	},
	registry.FamilyNVEnergy: {
		"ACTUAL":   {models.MarketHourly, models.FreqHourly},
		"FORECAST": {models.MarketDayAhead, models.FreqHourly},
	},
	registry.FamilySVERI: {
		"5MIN": {models.MarketRealtime5Min, models.Freq5Min},
	},
	registry.FamilyEIA: {
		"D":  {models.MarketHourly, models.FreqHourly},
		"DF": {models.MarketDayAhead, models.FreqHourly},
	},
	registry.FamilyENTSOE: {
		"A16/PT60M": {models.MarketHourly, models.FreqHourly},
		"A16/PT15M": {models.MarketRealtime5Min, models.Freq15Min},
		"A01/PT60M": {models.MarketDayAhead, models.FreqHourly},
		"A01/PT15M": {models.MarketDayAhead, models.Freq15Min},
	},
}

// Unit is the unit an upstream value is published in.
type Unit string

const (
	DollarsPerMWh Unit = "$/MWh"
	DollarsPerKWh Unit = "$/kWh"
	CentsPerKWh   Unit = "¢/kWh"
	MW            Unit = "MW"
	KW            Unit = "kW"
	GW            Unit = "GW"
)

var unitFactors = map[Unit]float64{
	"":            1,
	DollarsPerMWh: 1,
	MW:            1,
	DollarsPerKWh: 1000,
	CentsPerKWh:   10,
	KW:            0.001,
	GW:            1000,
}

// Record is one authority-native observation before normalization.
type Record struct {
	// Time is an aware instant. When zero, Local is parsed with Layout in the
	// authority's zone.
	Time   time.Time
	Local  string
	Layout string

	Cadence  string
	Value    float64
	Unit     Unit
	NodeID   string
	LMPType  models.LMPType
	DataType models.DataType
}

// Normalizer maps one authority's records onto the canonical schema.
type Normalizer struct {
	authority string
	loc       *time.Location
	vocab     map[string]cadence
}

// For returns the normalizer for an authority.
func For(a registry.Authority) (*Normalizer, error) {
	name, ok := zones[a.Family]
	if !ok {
		return nil, fmt.Errorf("normalize: no timezone for family %s", a.Family)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("normalize: load zone %s: %w", name, err)
	}
	return &Normalizer{authority: a.Code, loc: loc, vocab: vocabularies[a.Family]}, nil
}

// Location is the authority's local zone.
func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// Point converts one record. Errors wrap models.ErrMalformedUpstream.
func (n *Normalizer) Point(rec Record) (models.Point, error) {
	ts := rec.Time
	if ts.IsZero() {
		if rec.Local == "" {
			return models.Point{}, models.Malformed("%s: record has no timestamp", n.authority)
		}
		var err error
		if ts, err = n.ParseLocal(rec.Layout, rec.Local); err != nil {
			return models.Point{}, err
		}
	}
	market, freq, err := n.Cadence(rec.Cadence)
	if err != nil {
		return models.Point{}, err
	}
	factor, ok := unitFactors[rec.Unit]
	if !ok {
		return models.Point{}, models.Malformed("%s: unknown unit %q", n.authority, rec.Unit)
	}
	if math.IsNaN(rec.Value) || math.IsInf(rec.Value, 0) {
		return models.Point{}, models.Malformed("%s: non-finite value at %s", n.authority, ts)
	}
	value := rec.Value
	if factor != 1 {
		value *= factor
	}

	p := models.Point{
		BAName:    n.authority,
		Timestamp: ts.UTC().Truncate(time.Minute),
		Market:    market,
		Freq:      freq,
		Value:     value,
		NodeID:    strings.TrimSpace(rec.NodeID),
		DataType:  rec.DataType,
	}
	if rec.DataType == models.DataTypeLMP {
		p.LMPType = rec.LMPType
		if p.LMPType == "" {
			p.LMPType = models.LMPTotal
		}
	}
	return p, nil
}

// Cadence maps an authority cadence label onto the canonical market and freq.
func (n *Normalizer) Cadence(label string) (models.Market, models.Freq, error) {
	if c, ok := n.vocab[label]; ok {
		return c.market, c.freq, nil
	}
	if c, ok := canonicalCadences[strings.ToUpper(label)]; ok {
		return c.market, c.freq, nil
	}
	return "", "", models.Malformed("%s: unknown cadence label %q", n.authority, label)
}

// ParseLocal parses a naive wall clock label in the authority's zone.
func (n *Normalizer) ParseLocal(layout, value string) (time.Time, error) {
	wall, err := time.ParseInLocation(layout, strings.TrimSpace(value), time.UTC)
	if err != nil {
		return time.Time{}, models.Malformed("%s: timestamp %q: %v", n.authority, value, err)
	}
	return ResolveWall(wall, n.loc), nil
}

// HourEnding converts a 1-based hour-ending label on a local market day into
// the UTC start of that hour. The label is read as wall clock hour he-1 and
// resolved with ResolveWall. On the spring day HE3 lands in the gap and
// collides with HE4. On the fall day HE2 takes the first 01:00, HE3 through
// HE24 are 02:00 to 23:00 standard time, and HE25 collides with the next
// day's HE1, so the repeated 01:00 hour never appears.
func (n *Normalizer) HourEnding(day time.Time, he int) time.Time {
	y, m, d := day.Date()
	return ResolveWall(time.Date(y, m, d, he-1, 0, 0, 0, time.UTC), n.loc)
}

// ResolveWall interprets the clock fields of wall in loc and returns the UTC
// instant.
func ResolveWall(wall time.Time, loc *time.Location) time.Time {
	y, mo, d := wall.Date()
	h, mi, s := wall.Clock()
	t := time.Date(y, mo, d, h, mi, s, wall.Nanosecond(), loc)

	if !sameWall(t.In(loc), wall) {
		// Inside a spring-forward gap: move forward by the gap.
		_, before := t.Zone()
		_, after := t.Add(3 * time.Hour).Zone()
		if shifted := t.Add(time.Duration(after-before) * time.Second); shifted.After(t) {
			t = shifted
		}
		return t.UTC()
	}
	if earlier := t.Add(-time.Hour); sameWall(earlier.In(loc), wall) {
		return earlier.UTC()
	}
	return t.UTC()
}

func sameWall(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd &&
		a.Hour() == b.Hour() && a.Minute() == b.Minute() && a.Second() == b.Second()
}
