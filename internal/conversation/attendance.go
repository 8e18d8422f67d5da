package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/attendance-bot/internal/models"
	appErrors "github.com/noah-isme/attendance-bot/pkg/errors"
)

func (m *Machine) openAttendance(ctx context.Context, in *interaction) ([]Reply, error) {
	ws, students, err := m.attendance.Open(ctx, in.teacher().ID, m.today())
	if err != nil {
		return nil, err
	}
	in.sess.Attendance = ws
	if ws == nil {
		return in.reply(textNoStudentsYet, backOnly()), nil
	}
	return in.reply(fmt.Sprintf(textAttendanceHeader, ws.Date.Format(models.DateLayout)), attendanceKeyboard(students, ws)), nil
}

func (m *Machine) toggleAttendance(ctx context.Context, in *interaction) ([]Reply, error) {
	teacherID := in.teacher().ID
	ws := in.sess.Attendance
	if ws == nil {
		opened, _, err := m.attendance.Open(ctx, teacherID, m.today())
		if err != nil {
			return nil, err
		}
		if opened == nil {
			return in.reply(textNoStudentsYet, backOnly()), nil
		}
		ws = opened
		in.sess.Attendance = ws
	}

	students, err := m.attendance.Toggle(ctx, teacherID, ws, in.action().ID)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			in.outcome = outcomeRejected
			return in.reply(textStudentNotFound, attendanceKeyboard(students, ws)), nil
		}
		return nil, err
	}
	return in.reply(fmt.Sprintf(textAttendanceHeader, ws.Date.Format(models.DateLayout)), attendanceKeyboard(students, ws)), nil
}

func (m *Machine) closeAttendance(ctx context.Context, in *interaction) ([]Reply, error) {
	ws := in.sess.Attendance
	if ws == nil {
		return in.refuse(appErrors.ErrDataLost, mainMenu(in.teacher())), nil
	}
	summary, err := m.attendance.Summarize(ctx, in.teacher().ID, ws)
	if err != nil {
		return nil, err
	}
	in.sess.Attendance = nil
	return in.reply(formatSummary(summary), mainMenu(in.teacher())), nil
}

func formatSummary(s *models.AttendanceSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, textAttendanceSaved, s.Date.Format(models.DateLayout))
	fmt.Fprintf(&b, "\n\nPresent (%d):\n", len(s.Present))
	writeNames(&b, s.Present)
	fmt.Fprintf(&b, "\n\nAbsent (%d):\n", len(s.Absent))
	writeNames(&b, s.Absent)
	return b.String()
}

func writeNames(b *strings.Builder, students []models.Student) {
	if len(students) == 0 {
		b.WriteString("  None")
		return
	}
	for i, st := range students {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("  • " + st.Name)
	}
}
