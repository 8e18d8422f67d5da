package models

import "time"

// DateLayout is the calendar-date format used for attendance keys.
const DateLayout = "2006-01-02"

// AttendanceEntry marks a student present on a calendar date. Absence is never stored.
type AttendanceEntry struct {
	ID        int64     `db:"id" json:"id"`
	StudentID int64     `db:"student_id" json:"student_id"`
	Date      time.Time `db:"date" json:"date"`
}

// MonthAttendanceRow is one row of the left-joined month view. Date is nil for
// students without any entry in the month.
type MonthAttendanceRow struct {
	StudentID   int64      `db:"student_id" json:"student_id"`
	StudentName string     `db:"student_name" json:"student_name"`
	Date        *time.Time `db:"date" json:"date,omitempty"`
}

// AttendanceSummary partitions a roster for a single date.
type AttendanceSummary struct {
	Date    time.Time
	Present []Student
	Absent  []Student
}

// Day returns the calendar date of t, read in t's location, as UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
