package session

import (
	"time"

	"github.com/noah-isme/attendance-bot/internal/models"
)

// maxTrackedMessages bounds the message ids kept for /start cleanup.
const maxTrackedMessages = 50

// Session is the per-chat conversation state. It is loaded before and saved
// after every interaction, and only ever touched by one interaction at a time.
type Session struct {
	ChatID int64 `json:"chat_id"`
	// Teacher is a snapshot taken at authentication time and may be stale.
	Teacher    *models.Teacher `json:"teacher,omitempty"`
	State      string          `json:"state,omitempty"`
	Pending    Pending         `json:"pending"`
	Attendance *WorkingSet     `json:"attendance,omitempty"`
	MessageIDs []int           `json:"message_ids,omitempty"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Pending carries the payload of the active flow between steps.
type Pending struct {
	Student         *PendingStudent      `json:"student,omitempty"`
	Teacher         *PendingTeacher      `json:"teacher,omitempty"`
	Registration    *PendingRegistration `json:"registration,omitempty"`
	ReportTeacherID *int64               `json:"report_teacher_id,omitempty"`
}

// PendingStudent is a student selected for removal, rename or move.
type PendingStudent struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// PendingTeacher is a teacher selected for removal.
type PendingTeacher struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// PendingRegistration accumulates the answers of the register-teacher flow.
type PendingRegistration struct {
	Name           string `json:"name"`
	TelegramUserID int64  `json:"telegram_user_id,omitempty"`
	HasTelegramID  bool   `json:"has_telegram_id,omitempty"`
}

// WorkingSet is the attendance date and present student ids for an open attendance screen.
type WorkingSet struct {
	Date    time.Time          `json:"date"`
	Present map[int64]struct{} `json:"present"`
}

// New returns an empty session for chatID.
func New(chatID int64) *Session {
	return &Session{ChatID: chatID}
}

// Authenticated reports whether a teacher is attached.
func (s *Session) Authenticated() bool {
	return s != nil && s.Teacher != nil
}

// IsAdmin reports whether the attached teacher holds the admin flag.
func (s *Session) IsAdmin() bool {
	return s.Authenticated() && s.Teacher.IsAdmin
}

// Reset leaves the active flow and drops every pending value.
func (s *Session) Reset() {
	s.State = ""
	s.Pending = Pending{}
}

// TakeStudent returns the pending student and clears it.
func (s *Session) TakeStudent() *PendingStudent {
	p := s.Pending.Student
	s.Pending.Student = nil
	return p
}

// TakeTeacher returns the pending teacher and clears it.
func (s *Session) TakeTeacher() *PendingTeacher {
	p := s.Pending.Teacher
	s.Pending.Teacher = nil
	return p
}

// TakeRegistration returns the pending registration and clears it.
func (s *Session) TakeRegistration() *PendingRegistration {
	p := s.Pending.Registration
	s.Pending.Registration = nil
	return p
}

// TakeReportTeacher returns the teacher chosen for a report and clears it.
func (s *Session) TakeReportTeacher() (int64, bool) {
	p := s.Pending.ReportTeacherID
	s.Pending.ReportTeacherID = nil
	if p == nil {
		return 0, false
	}
	return *p, true
}

// TrackMessage remembers a bot message id for later cleanup.
func (s *Session) TrackMessage(id int) {
	if id == 0 {
		return
	}
	s.MessageIDs = append(s.MessageIDs, id)
	if n := len(s.MessageIDs); n > maxTrackedMessages {
		s.MessageIDs = append([]int(nil), s.MessageIDs[n-maxTrackedMessages:]...)
	}
}

// TakeMessages returns the tracked message ids and forgets them.
func (s *Session) TakeMessages() []int {
	ids := s.MessageIDs
	s.MessageIDs = nil
	return ids
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Teacher != nil {
		t := *s.Teacher
		out.Teacher = &t
	}
	if s.Pending.Student != nil {
		p := *s.Pending.Student
		out.Pending.Student = &p
	}
	if s.Pending.Teacher != nil {
		p := *s.Pending.Teacher
		out.Pending.Teacher = &p
	}
	if s.Pending.Registration != nil {
		p := *s.Pending.Registration
		out.Pending.Registration = &p
	}
	if s.Pending.ReportTeacherID != nil {
		id := *s.Pending.ReportTeacherID
		out.Pending.ReportTeacherID = &id
	}
	if s.Attendance != nil {
		out.Attendance = s.Attendance.Clone()
	}
	if s.MessageIDs != nil {
		out.MessageIDs = append([]int(nil), s.MessageIDs...)
	}
	return &out
}

// NewWorkingSet builds a working set for date seeded with present ids.
func NewWorkingSet(date time.Time, present map[int64]struct{}) *WorkingSet {
	set := make(map[int64]struct{}, len(present))
	for id := range present {
		set[id] = struct{}{}
	}
	return &WorkingSet{Date: models.Day(date), Present: set}
}

func (w *WorkingSet) Has(id int64) bool {
	_, ok := w.Present[id]
	return ok
}

func (w *WorkingSet) Add(id int64) {
	if w.Present == nil {
		w.Present = map[int64]struct{}{}
	}
	w.Present[id] = struct{}{}
}

func (w *WorkingSet) Remove(id int64) {
	delete(w.Present, id)
}

func (w *WorkingSet) Len() int {
	return len(w.Present)
}

func (w *WorkingSet) Clone() *WorkingSet {
	return NewWorkingSet(w.Date, w.Present)
}
