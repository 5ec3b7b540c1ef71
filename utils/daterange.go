package utils

import (
	"fmt"
	"time"
)

// DateFormat is the ISO layout used for every date exchanged with the
// App Store API, the landing bucket keys and the warehouse range predicates.
const DateFormat = "2006-01-02"

// StartEndDate computes the reporting window relative to today.
// The window ends daysBehind days before today and spans daysToFetch days
// back from there, both bounds inclusive.
func StartEndDate(daysToFetch, daysBehind int) (string, string) {
	return StartEndDateFrom(time.Now(), daysToFetch, daysBehind)
}

// StartEndDateFrom is StartEndDate anchored at an explicit base time.
func StartEndDateFrom(base time.Time, daysToFetch, daysBehind int) (string, string) {
	end := base.AddDate(0, 0, -daysBehind)
	start := end.AddDate(0, 0, -daysToFetch)
	return start.Format(DateFormat), end.Format(DateFormat)
}

// DateListBuilder enumerates every calendar day from start to end inclusive,
// ascending. Returns an empty list when start is after end.
func DateListBuilder(start, end string) ([]string, error) {
	startDate, err := time.Parse(DateFormat, start)
	if err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	endDate, err := time.Parse(DateFormat, end)
	if err != nil {
		return nil, fmt.Errorf("invalid end date %q: %w", end, err)
	}

	var dates []string
	for d := startDate; !d.After(endDate); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(DateFormat))
	}
	return dates, nil
}

// StartEndDateList composes StartEndDate and DateListBuilder.
func StartEndDateList(daysToFetch, daysBehind int) ([]string, error) {
	start, end := StartEndDate(daysToFetch, daysBehind)
	return DateListBuilder(start, end)
}
