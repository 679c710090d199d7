package types

import (
	"time"

	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/samber/lo"
)

// Currency is a lowercase ISO 4217 currency code
type Currency = string

// BillingInterval is the cadence of a recurring price
type BillingInterval string

const (
	BillingIntervalDay     BillingInterval = "day"
	BillingIntervalWeek    BillingInterval = "week"
	BillingIntervalMonth   BillingInterval = "month"
	BillingIntervalYear    BillingInterval = "year"
	BillingIntervalOneTime BillingInterval = "one_time"
)

func (b BillingInterval) String() string {
	return string(b)
}

func (b BillingInterval) Validate() error {
	allowed := []BillingInterval{
		BillingIntervalDay,
		BillingIntervalWeek,
		BillingIntervalMonth,
		BillingIntervalYear,
		BillingIntervalOneTime,
	}
	if !lo.Contains(allowed, b) {
		return ierr.NewError("invalid billing interval").
			WithHint("Invalid billing interval").
			WithReportableDetails(map[string]any{
				"interval":          b,
				"allowed_intervals": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsRecurring reports whether the interval produces periodic renewals
func (b BillingInterval) IsRecurring() bool {
	return b != BillingIntervalOneTime && b != ""
}

// AddInterval advances t by count billing intervals using calendar
// arithmetic. Month and year additions clamp to the last day of the target
// month, so Jan 31 + 1 month = Feb 28 (29 in leap years), never Mar 2/3.
func AddInterval(t time.Time, interval BillingInterval, count int) time.Time {
	if count <= 0 {
		count = 1
	}
	switch interval {
	case BillingIntervalDay:
		return t.AddDate(0, 0, count)
	case BillingIntervalWeek:
		return t.AddDate(0, 0, 7*count)
	case BillingIntervalMonth:
		return addMonthsClamped(t, count)
	case BillingIntervalYear:
		return addMonthsClamped(t, 12*count)
	default:
		return t
	}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	m := int(month) + months
	// normalize year/month, keeping month in [1, 12]
	year += (m - 1) / 12
	m = (m-1)%12 + 1
	if m <= 0 {
		m += 12
		year--
	}
	if last := daysInMonth(year, time.Month(m)); day > last {
		day = last
	}
	return time.Date(year, time.Month(m), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
