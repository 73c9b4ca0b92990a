package schedule

import (
	"fmt"
	"time"
)

// MarketHours restricts monitoring to a weekday open/close window in a
// given timezone. A disabled MarketHours is always open.
type MarketHours struct {
	Enabled  bool
	Open     TimeOfDay
	Close    TimeOfDay
	Location *time.Location
}

// NewMarketHours builds a MarketHours from "HH:MM" strings.
func NewMarketHours(enabled bool, open, close string, loc *time.Location) (MarketHours, error) {
	if loc == nil {
		loc = time.UTC
	}
	mh := MarketHours{Enabled: enabled, Location: loc}
	if !enabled {
		return mh, nil
	}

	var err error
	if mh.Open, err = ParseTimeOfDay(open); err != nil {
		return MarketHours{}, fmt.Errorf("market open: %w", err)
	}
	if mh.Close, err = ParseTimeOfDay(close); err != nil {
		return MarketHours{}, fmt.Errorf("market close: %w", err)
	}
	if mh.Close.Before(mh.Open) {
		return MarketHours{}, fmt.Errorf("market close %s is before open %s", mh.Close, mh.Open)
	}
	return mh, nil
}

// IsOpen reports whether now falls inside the window. Both ends are
// inclusive at second precision, so a 16:00 close admits 16:00:00 but not
// 16:00:01. Weekends are closed.
func (m MarketHours) IsOpen(now time.Time) bool {
	if !m.Enabled {
		return true
	}
	loc := m.Location
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	secs := local.Hour()*3600 + local.Minute()*60 + local.Second()
	return secs >= m.Open.minutes()*60 && secs <= m.Close.minutes()*60
}
