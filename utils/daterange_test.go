package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartEndDateFrom(t *testing.T) {
	base := time.Date(2024, 3, 10, 15, 4, 5, 0, time.UTC)

	tests := []struct {
		name        string
		daysToFetch int
		daysBehind  int
		wantStart   string
		wantEnd     string
	}{
		{
			name:        "two days behind",
			daysToFetch: 3,
			daysBehind:  2,
			wantStart:   "2024-03-05",
			wantEnd:     "2024-03-08",
		},
		{
			name:        "zero days to fetch",
			daysToFetch: 0,
			daysBehind:  1,
			wantStart:   "2024-03-09",
			wantEnd:     "2024-03-09",
		},
		{
			name:        "window crossing a month boundary",
			daysToFetch: 10,
			daysBehind:  1,
			wantStart:   "2024-02-28",
			wantEnd:     "2024-03-09",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := StartEndDateFrom(base, tt.daysToFetch, tt.daysBehind)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}

func TestDateListBuilder(t *testing.T) {
	tests := []struct {
		name    string
		start   string
		end     string
		want    []string
		wantErr bool
	}{
		{
			name:  "five day range",
			start: "2022-01-01",
			end:   "2022-01-05",
			want:  []string{"2022-01-01", "2022-01-02", "2022-01-03", "2022-01-04", "2022-01-05"},
		},
		{
			name:  "single day",
			start: "2022-01-01",
			end:   "2022-01-01",
			want:  []string{"2022-01-01"},
		},
		{
			name:  "start after end yields empty list",
			start: "2022-01-05",
			end:   "2022-01-01",
			want:  nil,
		},
		{
			name:  "crosses leap day",
			start: "2024-02-28",
			end:   "2024-03-01",
			want:  []string{"2024-02-28", "2024-02-29", "2024-03-01"},
		},
		{
			name:    "invalid start date",
			start:   "01/01/2022",
			end:     "2022-01-05",
			wantErr: true,
		},
		{
			name:    "invalid end date",
			start:   "2022-01-01",
			end:     "not-a-date",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DateListBuilder(tt.start, tt.end)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStartEndDateList(t *testing.T) {
	// daysToFetch+1 consecutive dates. The exact end date is pinned by the
	// fixed-base test below, which does not depend on the wall clock.
	for _, daysToFetch := range []int{0, 1, 7, 30} {
		dates, err := StartEndDateList(daysToFetch, 1)
		require.NoError(t, err)
		require.Len(t, dates, daysToFetch+1)

		for i := 1; i < len(dates); i++ {
			prev, err := time.Parse(DateFormat, dates[i-1])
			require.NoError(t, err)
			assert.Equal(t, prev.AddDate(0, 0, 1).Format(DateFormat), dates[i])
		}
	}
}

func TestDateWindowFromFixedBase(t *testing.T) {
	base := time.Date(2024, 3, 10, 23, 59, 59, 0, time.UTC)

	for _, daysToFetch := range []int{0, 1, 7, 30} {
		start, end := StartEndDateFrom(base, daysToFetch, 1)
		assert.Equal(t, "2024-03-09", end, "window ends one day behind the base")

		dates, err := DateListBuilder(start, end)
		require.NoError(t, err)
		require.Len(t, dates, daysToFetch+1)
		assert.Equal(t, start, dates[0])
		assert.Equal(t, end, dates[len(dates)-1])
	}
}
