package cron

// Named schedules for the recurring billing work. Expressions use the
// six-field form with a leading seconds column.
const (
	ScheduleEveryMinute    = "0 * * * * *"
	ScheduleEvery5Minutes  = "0 */5 * * * *"
	ScheduleEvery15Minutes = "0 */15 * * * *"
	ScheduleEveryHour      = "0 0 * * * *"
	ScheduleDailyMidnight  = "0 0 0 * * *"
	ScheduleDaily6AM       = "0 0 6 * * *"
	ScheduleWeeklyMonday   = "0 0 0 * * MON"
	ScheduleMonthlyFirst   = "0 0 0 1 * *"

	// ScheduleMonthlyLast fires on days 28-31; the handler must check it
	// is actually the last day of the month before doing work.
	ScheduleMonthlyLast = "0 0 0 28-31 * *"
)
