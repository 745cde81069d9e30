package server

import (
	"fmt"
	"time"

	"github.com/tejusbharadwaj/gridfeed/internal/database"
	"github.com/tejusbharadwaj/gridfeed/internal/models"
)

const maxTimeRange = 2 * 365 * 24 * time.Hour

// RequestValidator checks archive queries before they reach the database.
type RequestValidator struct {
	validWindows      map[string]string
	validAggregations map[string]bool
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{
		validWindows:      database.Windows,
		validAggregations: database.Aggregations,
	}
}

// Validate checks if the request parameters are valid
func (v *RequestValidator) Validate(q database.SeriesQuery) error {
	if q.BAName == "" {
		return fmt.Errorf("missing ba_name")
	}
	if q.DataType != models.DataTypeLMP && q.DataType != models.DataTypeLoad {
		return fmt.Errorf("invalid data_type: %s", q.DataType)
	}

	// Validate timestamps are present
	if q.Start.IsZero() || q.End.IsZero() || q.Start.Equal(time.Unix(0, 0)) || q.End.Equal(time.Unix(0, 0)) {
		return fmt.Errorf("missing timestamp")
	}

	if !q.Start.Before(q.End) {
		return fmt.Errorf("start time must be before end time")
	}
	if q.End.Sub(q.Start) > maxTimeRange {
		return fmt.Errorf("time range exceeds maximum allowed")
	}

	if _, ok := v.validWindows[q.Window]; !ok {
		return fmt.Errorf("invalid window: %s", q.Window)
	}
	if !v.validAggregations[q.Aggregation] {
		return fmt.Errorf("invalid aggregation: %s", q.Aggregation)
	}
	return nil
}
