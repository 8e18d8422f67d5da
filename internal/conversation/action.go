package conversation

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind identifies what an incoming interaction asks for.
type Kind int

const (
	KindUnknown Kind = iota
	KindStart
	KindCancel
	KindText
	KindMainMenu
	KindAttendance
	KindToggle
	KindDone
	KindManageStudents
	KindAddStudent
	KindRemoveStudent
	KindEditStudent
	KindMoveStudent
	KindAdminMenu
	KindDownloadReport
	KindRegisterTeacher
	KindRemoveTeacher
	KindConfirm
	KindAdminFlag
	KindSelectRemoveStudent
	KindSelectEditStudent
	KindSelectMoveStudent
	KindSelectMoveTarget
	KindSelectRemoveTeacher
	KindSelectReportTeacher
	KindSelectReportMonth
)

var kindNames = map[Kind]string{
	KindUnknown:             "unknown",
	KindStart:               "start",
	KindCancel:              "cancel",
	KindText:                "text",
	KindMainMenu:            "main_menu",
	KindAttendance:          "attendance",
	KindToggle:              "toggle",
	KindDone:                "done",
	KindManageStudents:      "manage_students",
	KindAddStudent:          "add_student",
	KindRemoveStudent:       "remove_student",
	KindEditStudent:         "edit_student",
	KindMoveStudent:         "move_student",
	KindAdminMenu:           "admin_menu",
	KindDownloadReport:      "download_report",
	KindRegisterTeacher:     "register_teacher",
	KindRemoveTeacher:       "remove_teacher",
	KindConfirm:             "confirm",
	KindAdminFlag:           "admin_flag",
	KindSelectRemoveStudent: "select_remove_student",
	KindSelectEditStudent:   "select_edit_student",
	KindSelectMoveStudent:   "select_move_student",
	KindSelectMoveTarget:    "select_move_target",
	KindSelectRemoveTeacher: "select_remove_teacher",
	KindSelectReportTeacher: "select_report_teacher",
	KindSelectReportMonth:   "select_report_month",
}

// String returns the metric/log label of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Fixed tokens carried by menu buttons.
var fixedTokens = map[string]Kind{
	"mainmenu": KindMainMenu,
	"att":      KindAttendance,
	"done":     KindDone,
	"mgst":     KindManageStudents,
	"addst":    KindAddStudent,
	"rmst":     KindRemoveStudent,
	"edst":     KindEditStudent,
	"mvst":     KindMoveStudent,
	"admin":    KindAdminMenu,
	"dlrpt":    KindDownloadReport,
	"regt":     KindRegisterTeacher,
	"rmt":      KindRemoveTeacher,
}

// Prefixed tokens carrying a numeric id. No prefix is a prefix of another.
var idPrefixes = map[string]Kind{
	"toggle_":     KindToggle,
	"rmsel_":      KindSelectRemoveStudent,
	"edsel_":      KindSelectEditStudent,
	"mvsel_":      KindSelectMoveStudent,
	"mvto_":       KindSelectMoveTarget,
	"rmtsel_":     KindSelectRemoveTeacher,
	"rptteacher_": KindSelectReportTeacher,
}

const reportMonthPrefix = "rptmonth_"

// Action is a decoded interaction. Only the fields relevant to Kind are set.
type Action struct {
	Kind  Kind
	ID    int64
	Yes   bool
	Year  int
	Month time.Month
	Text  string
}

// Decode parses a button token. Malformed tokens decode to KindUnknown.
func Decode(token string) Action {
	if kind, ok := fixedTokens[token]; ok {
		return Action{Kind: kind}
	}
	switch token {
	case "yes", "no":
		return Action{Kind: KindConfirm, Yes: token == "yes"}
	case "admin_yes", "admin_no":
		return Action{Kind: KindAdminFlag, Yes: token == "admin_yes"}
	}
	if strings.HasPrefix(token, reportMonthPrefix) {
		parts := strings.Split(strings.TrimPrefix(token, reportMonthPrefix), "_")
		if len(parts) != 2 {
			return Action{Kind: KindUnknown}
		}
		year, errY := strconv.Atoi(parts[0])
		month, errM := strconv.Atoi(parts[1])
		if errY != nil || errM != nil || year < 1 || month < 1 || month > 12 {
			return Action{Kind: KindUnknown}
		}
		return Action{Kind: KindSelectReportMonth, Year: year, Month: time.Month(month)}
	}
	for prefix, kind := range idPrefixes {
		if !strings.HasPrefix(token, prefix) {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(token, prefix), 10, 64)
		if err != nil || id <= 0 {
			return Action{Kind: KindUnknown}
		}
		return Action{Kind: kind, ID: id}
	}
	return Action{Kind: KindUnknown}
}

// Command decodes a slash command name without the leading slash.
func Command(name string) Action {
	switch strings.ToLower(name) {
	case "start":
		return Action{Kind: KindStart}
	case "cancel":
		return Action{Kind: KindCancel}
	}
	return Action{Kind: KindUnknown}
}

// TextInput wraps free text typed by the user.
func TextInput(text string) Action {
	return Action{Kind: KindText, Text: text}
}

// Token encodes the action back into its button token. Commands and text have none.
func (a Action) Token() string {
	for token, kind := range fixedTokens {
		if kind == a.Kind {
			return token
		}
	}
	switch a.Kind {
	case KindConfirm:
		if a.Yes {
			return "yes"
		}
		return "no"
	case KindAdminFlag:
		if a.Yes {
			return "admin_yes"
		}
		return "admin_no"
	case KindSelectReportMonth:
		return fmt.Sprintf("%s%d_%d", reportMonthPrefix, a.Year, int(a.Month))
	}
	for prefix, kind := range idPrefixes {
		if kind == a.Kind {
			return prefix + strconv.FormatInt(a.ID, 10)
		}
	}
	return ""
}

// IsCallback reports whether the action arrives as a button press.
func (a Action) IsCallback() bool {
	switch a.Kind {
	case KindUnknown, KindStart, KindCancel, KindText:
		return false
	}
	return true
}
