// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package scheduler wraps a cron-triggered job runner: Schedules register
// one job each, keyed by schedule id, and triggered execution starts a scan
// and optionally monitors it for auto-commit.
package scheduler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ScanCron is a parsed 5-field cron expression driving a recurring scan
// schedule: minute hour day-of-month month day-of-week.
type ScanCron struct {
	Minutes     []int // 0-59
	Hours       []int // 0-23
	DaysOfMonth []int // 1-31
	Months      []int // 1-12
	DaysOfWeek  []int // 0-6 (0 = Sunday)
}

// ParseCron parses a Schedule's CronExpression field into a ScanCron.
//
// Supported field syntax:
//   - * (any value)
//   - n (specific value)
//   - n-m (range)
//   - n,m,o (list)
//   - */n (step from start)
//   - n-m/s (step in range)
//
// Examples: "0 9 * * *" (daily at 9am), "*/15 * * * *" (every 15 minutes),
// "0 3 1 * *" (midnight on the first of every month).
func ParseCron(expr string) (*ScanCron, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("scheduler: cron expression must have 5 fields, got %d", len(fields))
	}

	minutes, err := parseCronField(fields[0], 0, 59)
	if err != nil {
		return nil, fmt.Errorf("scheduler: invalid minute field: %w", err)
	}
	hours, err := parseCronField(fields[1], 0, 23)
	if err != nil {
		return nil, fmt.Errorf("scheduler: invalid hour field: %w", err)
	}
	daysOfMonth, err := parseCronField(fields[2], 1, 31)
	if err != nil {
		return nil, fmt.Errorf("scheduler: invalid day-of-month field: %w", err)
	}
	months, err := parseCronField(fields[3], 1, 12)
	if err != nil {
		return nil, fmt.Errorf("scheduler: invalid month field: %w", err)
	}
	daysOfWeek, err := parseCronField(fields[4], 0, 7)
	if err != nil {
		return nil, fmt.Errorf("scheduler: invalid day-of-week field: %w", err)
	}

	// Standard cron treats both 0 and 7 as Sunday.
	for i, d := range daysOfWeek {
		if d == 7 {
			daysOfWeek[i] = 0
		}
	}

	return &ScanCron{
		Minutes:     minutes,
		Hours:       hours,
		DaysOfMonth: dedupSorted(daysOfMonth),
		Months:      months,
		DaysOfWeek:  dedupSorted(daysOfWeek),
	}, nil
}

// NextRun returns the next time after t that this schedule should fire a
// scan, in loc (UTC if loc is nil).
func (c *ScanCron) NextRun(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	candidate := t.In(loc).Add(time.Minute).Truncate(time.Minute)

	// A schedule firing every minute for up to 4 years bounds the search
	// without risking an infinite loop on a malformed expression.
	const maxChecks = 365 * 24 * 60 * 4
	for i := 0; i < maxChecks; i++ {
		if c.fires(candidate) {
			return candidate
		}
		candidate = candidate.Add(time.Minute)
	}
	return time.Time{}
}

// fires reports whether t matches every field of the schedule. Day-of-month
// and day-of-week are OR'd per standard cron semantics: when both fields are
// restricted (not wildcards), either one matching is sufficient.
func (c *ScanCron) fires(t time.Time) bool {
	if !intIn(c.Minutes, t.Minute()) || !intIn(c.Hours, t.Hour()) || !intIn(c.Months, int(t.Month())) {
		return false
	}

	domWild := len(c.DaysOfMonth) == 31
	dowWild := len(c.DaysOfWeek) == 7
	domHit := intIn(c.DaysOfMonth, t.Day())
	dowHit := intIn(c.DaysOfWeek, int(t.Weekday()))

	switch {
	case domWild && dowWild:
		return true
	case domWild:
		return dowHit
	case dowWild:
		return domHit
	default:
		return domHit || dowHit
	}
}

// parseCronField parses one cron field (a list, range, step, wildcard, or
// single value) into the sorted set of values it selects.
func parseCronField(field string, minVal, maxVal int) ([]int, error) {
	if field == "*" {
		return intRange(minVal, maxVal), nil
	}
	if strings.Contains(field, ",") {
		var out []int
		for _, part := range strings.Split(field, ",") {
			vals, err := parseCronFieldPart(part, minVal, maxVal)
			if err != nil {
				return nil, err
			}
			out = append(out, vals...)
		}
		return dedupSorted(out), nil
	}
	return parseCronFieldPart(field, minVal, maxVal)
}

// parseCronFieldPart parses a single non-list cron field part: a step
// ("*/5", "0-30/5"), a range ("1-5"), or a bare value.
//
//nolint:gocyclo // cron field syntax genuinely branches on step/range/value
func parseCronFieldPart(part string, minVal, maxVal int) ([]int, error) {
	if strings.Contains(part, "/") {
		base, stepStr, _ := strings.Cut(part, "/")
		step, err := strconv.Atoi(stepStr)
		if err != nil || step <= 0 {
			return nil, fmt.Errorf("invalid step value: %s", stepStr)
		}

		rangeStart, rangeEnd := minVal, maxVal
		switch {
		case base == "*":
			// rangeStart/rangeEnd already cover the full field.
		case strings.Contains(base, "-"):
			startStr, endStr, _ := strings.Cut(base, "-")
			if rangeStart, err = strconv.Atoi(startStr); err != nil {
				return nil, fmt.Errorf("invalid range start: %s", startStr)
			}
			if rangeEnd, err = strconv.Atoi(endStr); err != nil {
				return nil, fmt.Errorf("invalid range end: %s", endStr)
			}
		default:
			if rangeStart, err = strconv.Atoi(base); err != nil {
				return nil, fmt.Errorf("invalid value: %s", base)
			}
		}

		var out []int
		for i := rangeStart; i <= rangeEnd; i += step {
			if i >= minVal && i <= maxVal {
				out = append(out, i)
			}
		}
		return out, nil
	}

	if strings.Contains(part, "-") {
		startStr, endStr, _ := strings.Cut(part, "-")
		start, err := strconv.Atoi(startStr)
		if err != nil {
			return nil, fmt.Errorf("invalid range start: %s", startStr)
		}
		end, err := strconv.Atoi(endStr)
		if err != nil {
			return nil, fmt.Errorf("invalid range end: %s", endStr)
		}
		if start > end || start < minVal || end > maxVal {
			return nil, fmt.Errorf("invalid range: %d-%d (field bounds %d-%d)", start, end, minVal, maxVal)
		}
		return intRange(start, end), nil
	}

	val, err := strconv.Atoi(part)
	if err != nil {
		return nil, fmt.Errorf("invalid value: %s", part)
	}
	if val < minVal || val > maxVal {
		return nil, fmt.Errorf("value out of range: %d (field bounds %d-%d)", val, minVal, maxVal)
	}
	return []int{val}, nil
}

// intRange returns [start, end] inclusive.
func intRange(start, end int) []int {
	out := make([]int, end-start+1)
	for i := range out {
		out[i] = start + i
	}
	return out
}

// intIn reports whether vals contains v.
func intIn(vals []int, v int) bool {
	for _, x := range vals {
		if x == v {
			return true
		}
	}
	return false
}

// dedupSorted returns vals with duplicates removed, ascending.
func dedupSorted(vals []int) []int {
	seen := make(map[int]bool, len(vals))
	out := make([]int, 0, len(vals))
	for _, v := range vals {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}

// CalculateNextRun parses a Schedule's cron expression and returns its next
// fire time after t, interpreted in timezone (UTC if timezone is "").
func CalculateNextRun(cronExpr string, t time.Time, timezone string) (time.Time, error) {
	cron, err := ParseCron(cronExpr)
	if err != nil {
		return time.Time{}, err
	}

	var loc *time.Location
	if timezone != "" {
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return time.Time{}, fmt.Errorf("scheduler: invalid timezone %q: %w", timezone, err)
		}
	}
	return cron.NextRun(t, loc), nil
}
