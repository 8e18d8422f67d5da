package conversation

import (
	"fmt"
	"time"

	"github.com/noah-isme/attendance-bot/internal/models"
	"github.com/noah-isme/attendance-bot/internal/session"
)

// Button is an inline keyboard button carrying an action token.
type Button struct {
	Label string
	Token string
}

// Document is a file attached to a reply.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
	Caption     string
}

// Reply is one outgoing message. Edit asks the transport to replace the message
// that carried the triggering button instead of sending a new one. Delete lists
// message ids to remove before the reply is shown.
type Reply struct {
	Text     string
	Buttons  [][]Button
	Document *Document
	Edit     bool
	Delete   []int
}

func button(label string, a Action) Button {
	return Button{Label: label, Token: a.Token()}
}

func row(buttons ...Button) []Button {
	return buttons
}

var (
	backButton   = button("🔙 Back to Main Menu", Action{Kind: KindMainMenu})
	cancelButton = button("🔙 Cancel", Action{Kind: KindMainMenu})
)

func mainMenu(teacher *models.Teacher) [][]Button {
	rows := [][]Button{
		row(button("📋 Take Attendance", Action{Kind: KindAttendance})),
		row(button("👥 Manage Students", Action{Kind: KindManageStudents})),
	}
	if teacher != nil && teacher.IsAdmin {
		rows = append(rows, row(button("⚙️ Admin Menu", Action{Kind: KindAdminMenu})))
	}
	return rows
}

func manageMenu() [][]Button {
	return [][]Button{
		row(button("➕ Add Student", Action{Kind: KindAddStudent})),
		row(button("❌ Remove Student", Action{Kind: KindRemoveStudent})),
		row(button("✏️ Edit Student Name", Action{Kind: KindEditStudent})),
		row(button("🔄 Move Student", Action{Kind: KindMoveStudent})),
		row(backButton),
	}
}

func adminMenu() [][]Button {
	return [][]Button{
		row(button("📊 Download Report", Action{Kind: KindDownloadReport})),
		row(button("➕ Register Teacher", Action{Kind: KindRegisterTeacher})),
		row(button("❌ Remove Teacher", Action{Kind: KindRemoveTeacher})),
		row(backButton),
	}
}

func cancelOnly() [][]Button {
	return [][]Button{row(cancelButton)}
}

func backOnly() [][]Button {
	return [][]Button{row(backButton)}
}

func confirmKeyboard(yesLabel string) [][]Button {
	return [][]Button{row(
		button(yesLabel, Action{Kind: KindConfirm, Yes: true}),
		button("❌ No, cancel", Action{Kind: KindConfirm}),
	)}
}

func adminFlagKeyboard() [][]Button {
	return [][]Button{row(
		button("✅ Yes", Action{Kind: KindAdminFlag, Yes: true}),
		button("❌ No", Action{Kind: KindAdminFlag}),
	)}
}

func studentPicker(kind Kind, students []models.Student) [][]Button {
	rows := make([][]Button, 0, len(students)+1)
	for _, st := range students {
		rows = append(rows, row(button(st.Name, Action{Kind: kind, ID: st.ID})))
	}
	return append(rows, row(cancelButton))
}

func teacherPicker(kind Kind, teachers []models.Teacher, markAdmins bool) [][]Button {
	rows := make([][]Button, 0, len(teachers)+1)
	for _, t := range teachers {
		label := t.Name
		if markAdmins && t.IsAdmin {
			label += " (admin)"
		}
		rows = append(rows, row(button(label, Action{Kind: kind, ID: t.ID})))
	}
	return append(rows, row(cancelButton))
}

// reportMonths returns the month of now followed by the five preceding ones.
func reportMonths(now time.Time) [][]Button {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	rows := make([][]Button, 0, reportMonthChoices+1)
	for i := 0; i < reportMonthChoices; i++ {
		m := first.AddDate(0, -i, 0)
		label := fmt.Sprintf("%s %d", m.Month(), m.Year())
		rows = append(rows, row(button(label, Action{Kind: KindSelectReportMonth, Year: m.Year(), Month: m.Month()})))
	}
	return append(rows, row(cancelButton))
}

func attendanceKeyboard(students []models.Student, ws *session.WorkingSet) [][]Button {
	rows := make([][]Button, 0, len(students)+2)
	for _, st := range students {
		mark := "⬜"
		if ws.Has(st.ID) {
			mark = "✅"
		}
		rows = append(rows, row(button(mark+" "+st.Name, Action{Kind: KindToggle, ID: st.ID})))
	}
	rows = append(rows, row(button("✔️ Done", Action{Kind: KindDone})))
	return append(rows, row(backButton))
}
