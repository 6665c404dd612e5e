package domain

import "time"

const fristDays = 4

// Frist returns the task deadline for a task created on day: four days out,
// pushed to the following Monday when that lands on a weekend.
func Frist(day time.Time) time.Time {
	d := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location()).AddDate(0, 0, fristDays)
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, 2)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	}
	return d
}
