package bot

import "time"

// Period selects the reporting window.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// Start returns the beginning of the period containing now, in zone.
// Weeks start on Monday.
func (p Period) Start(now time.Time, zone *time.Location) time.Time {
	local := now.In(zone)
	switch p {
	case PeriodWeek:
		days := int(local.Weekday()) - int(time.Monday)
		if days < 0 {
			days += 7
		}
		return time.Date(local.Year(), local.Month(), local.Day()-days, 0, 0, 0, 0, zone)
	case PeriodMonth:
		return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, zone)
	default:
		return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, zone)
	}
}
