// Package docfilter builds owner-scoped document filter queries from raw
// request parameters.
package docfilter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	dbutil "github.com/lekha-app/lekha-server/internal/db"
)

var (
	// ErrNoFilter indicates that no filter parameter was supplied.
	ErrNoFilter = errors.New("docfilter: at least one filter parameter is required")
	// ErrInvalidRange indicates a range whose start date is after its end date.
	ErrInvalidRange = errors.New("docfilter: start date cannot be after end date")
)

// BadDateError reports a date value that could not be parsed.
type BadDateError struct {
	Param string
	Value string
}

func (e *BadDateError) Error() string {
	return fmt.Sprintf("docfilter: invalid date for %s: %q", e.Param, e.Value)
}

// Params holds the raw query-string filter values.
type Params struct {
	Owner         string
	VehicleNumber string
	CFStart       string
	CFEnd         string
	NPStart       string
	NPEnd         string
	AuthStart     string
	AuthEnd       string
}

// empty reports whether no filter value is present.
func (p Params) empty() bool {
	for _, v := range []string{
		p.Owner, p.VehicleNumber,
		p.CFStart, p.CFEnd, p.NPStart, p.NPEnd, p.AuthStart, p.AuthEnd,
	} {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// dateRange bounds one date column. Either side may be nil.
type dateRange struct {
	start *time.Time
	end   *time.Time
}

// rangeFilter binds a dateRange to a document date column.
type rangeFilter struct {
	column string
	rng    dateRange
}

// Filter is a validated document filter ready to be applied to a query.
type Filter struct {
	owner         string
	vehicleNumber string
	ranges        []rangeFilter
}

// Build validates raw parameters into a Filter.
//
// It fails with ErrNoFilter when nothing is supplied and with ErrInvalidRange
// when any range has start after end, before any query is issued.
func Build(p Params) (*Filter, error) {
	if p.empty() {
		return nil, ErrNoFilter
	}

	f := &Filter{
		owner:         strings.TrimSpace(p.Owner),
		vehicleNumber: strings.ToUpper(strings.TrimSpace(p.VehicleNumber)),
	}

	for _, spec := range []struct {
		column     string
		start, end string
		param      string
	}{
		{"cf", p.CFStart, p.CFEnd, "cf"},
		{"np", p.NPStart, p.NPEnd, "np"},
		{"auth", p.AuthStart, p.AuthEnd, "auth"},
	} {
		rng, err := parseRange(spec.param, spec.start, spec.end)
		if err != nil {
			return nil, err
		}
		if rng == nil {
			continue
		}
		f.ranges = append(f.ranges, rangeFilter{column: spec.column, rng: *rng})
	}
	return f, nil
}

// parseRange parses optional start/end bounds for one date column.
//
// The end bound is widened to the last instant of its calendar day so a
// date-only end value matches the whole day.
func parseRange(param, startRaw, endRaw string) (*dateRange, error) {
	startRaw = strings.TrimSpace(startRaw)
	endRaw = strings.TrimSpace(endRaw)
	if startRaw == "" && endRaw == "" {
		return nil, nil
	}

	var rng dateRange
	if startRaw != "" {
		start, err := ParseDate(startRaw)
		if err != nil {
			return nil, &BadDateError{Param: param + "Start", Value: startRaw}
		}
		rng.start = &start
	}
	if endRaw != "" {
		end, err := ParseDate(endRaw)
		if err != nil {
			return nil, &BadDateError{Param: param + "End", Value: endRaw}
		}
		if rng.start != nil && rng.start.After(end) {
			return nil, ErrInvalidRange
		}
		end = endOfDay(end)
		rng.end = &end
	}
	return &rng, nil
}

// ParseDate accepts RFC 3339 timestamps and plain yyyy-mm-dd dates.
func ParseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("docfilter: unparseable date: %q", raw)
}

// endOfDay returns the last instant of t's calendar day in UTC.
func endOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
}

// Apply adds the filter's WHERE clauses to q. Clauses are AND-combined.
func (f *Filter) Apply(conn *gorm.DB, q *gorm.DB) *gorm.DB {
	if f.owner != "" {
		pattern := dbutil.NormalizeLikePattern(conn, "%"+f.owner+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(conn, "owner"), pattern)
	}
	if f.vehicleNumber != "" {
		q = q.Where("vehicle_number = ?", f.vehicleNumber)
	}
	for _, rf := range f.ranges {
		if rf.rng.start != nil {
			q = q.Where(rf.column+" >= ?", *rf.rng.start)
		}
		if rf.rng.end != nil {
			q = q.Where(rf.column+" <= ?", *rf.rng.end)
		}
	}
	return q
}
