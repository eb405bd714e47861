package utils

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	DateLayout        = "2006-01-02"
	CompactDateLayout = "20060102"
)

// BangkokLocation is the business calendar zone (UTC+7, no DST).
var BangkokLocation = loadBangkok()

func loadBangkok() *time.Location {
	loc, err := time.LoadLocation("Asia/Bangkok")
	if err != nil {
		return time.FixedZone("ICT", 7*60*60)
	}
	return loc
}

// Clock is the single source of "now" for the ledger.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// SystemClock returns the wall clock in UTC, millisecond precision.
func SystemClock() Clock {
	return systemClock{}
}

// FixedClock is a settable clock for tests and replays.
type FixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{t: t.UTC()}
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t.UTC()
	c.mu.Unlock()
}

func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// BangkokDate returns the Bangkok civil date of t as midnight UTC.
func BangkokDate(t time.Time) time.Time {
	y, m, d := t.In(BangkokLocation).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today is the Bangkok civil date of clock.Now().
func Today(clock Clock) time.Time {
	return BangkokDate(clock.Now())
}

// DayRange returns the UTC instants [start, end) covering the Bangkok date.
func DayRange(date time.Time) (time.Time, time.Time) {
	y, m, d := date.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, BangkokLocation)
	end := start.AddDate(0, 0, 1)
	return start.UTC(), end.UTC()
}

// NormalizeDate strips time of day, keeping the Y-M-D the value carries.
func NormalizeDate(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func FormatDate(date time.Time) string {
	return date.Format(DateLayout)
}

func CompactDate(date time.Time) string {
	return date.Format(CompactDateLayout)
}

// ParseDate accepts YYYY-MM-DD (or an RFC3339 prefix) as a civil date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q", ErrorValidation, s)
	}
	return t, nil
}
