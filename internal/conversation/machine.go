package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-bot/internal/models"
	"github.com/noah-isme/attendance-bot/internal/service"
	"github.com/noah-isme/attendance-bot/internal/session"
	appErrors "github.com/noah-isme/attendance-bot/pkg/errors"
	"github.com/noah-isme/attendance-bot/pkg/logger"
)

// State names a step of a multi-step flow. The zero value means no flow is active.
type State string

const (
	StateIdle State = ""

	StateAddStudentName State = "add_student.await_name"

	StateRemoveStudentSelect  State = "remove_student.select"
	StateRemoveStudentConfirm State = "remove_student.confirm"

	StateEditStudentSelect State = "edit_student.select"
	StateEditStudentName   State = "edit_student.await_name"

	StateMoveStudentSelect State = "move_student.select"
	StateMoveStudentTarget State = "move_student.target"

	StateRegisterName       State = "register_teacher.await_name"
	StateRegisterTelegramID State = "register_teacher.await_telegram_id"
	StateRegisterAdmin      State = "register_teacher.await_admin"

	StateRemoveTeacherSelect  State = "remove_teacher.select"
	StateRemoveTeacherConfirm State = "remove_teacher.confirm"

	StateReportTeacher State = "report.select_teacher"
	StateReportMonth   State = "report.select_month"
)

const reportMonthChoices = 6

const (
	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

// TeacherService is the teacher directory used by the machine.
type TeacherService interface {
	Authenticate(ctx context.Context, telegramUserID int64) (*models.Teacher, error)
	List(ctx context.Context) ([]models.Teacher, error)
	ListOthers(ctx context.Context, selfID int64) ([]models.Teacher, error)
	Get(ctx context.Context, id int64) (*models.Teacher, error)
	EnsureAvailable(ctx context.Context, telegramUserID int64) error
	Register(ctx context.Context, req service.RegisterTeacherRequest) (*models.Teacher, error)
	Remove(ctx context.Context, id int64) error
}

// StudentService manages a teacher's roster.
type StudentService interface {
	List(ctx context.Context, teacherID int64) ([]models.Student, error)
	Get(ctx context.Context, teacherID, id int64) (*models.Student, error)
	Add(ctx context.Context, req service.AddStudentRequest) (*models.Student, error)
	Rename(ctx context.Context, id int64, name string) error
	Move(ctx context.Context, id, teacherID int64) error
	Remove(ctx context.Context, id int64) error
}

// AttendanceService drives the attendance screen.
type AttendanceService interface {
	Open(ctx context.Context, teacherID int64, date time.Time) (*session.WorkingSet, []models.Student, error)
	Toggle(ctx context.Context, teacherID int64, ws *session.WorkingSet, studentID int64) ([]models.Student, error)
	Summarize(ctx context.Context, teacherID int64, ws *session.WorkingSet) (*models.AttendanceSummary, error)
}

// ReportService renders monthly reports.
type ReportService interface {
	Generate(ctx context.Context, teacherID int64, year int, month time.Month) (*service.Report, error)
}

// Deps wires the machine to its collaborators.
type Deps struct {
	Sessions   session.Store
	Teachers   TeacherService
	Students   StudentService
	Attendance AttendanceService
	Reports    ReportService
	Metrics    *service.MetricsService
	Logger     *zap.Logger
	// Location picks "today" for attendance and the report month list.
	Location *time.Location
	Now      func() time.Time
}

// Update is one decoded interaction of a chat.
type Update struct {
	ChatID    int64
	UserID    int64
	MessageID int
	Action    Action
	// Progress, when set, receives replies that must be shown before Handle returns.
	Progress func(Reply)
}

type effect func(ctx context.Context, in *interaction) ([]Reply, error)

// interaction is the per-call view handed to effects.
type interaction struct {
	update  Update
	sess    *session.Session
	logger  *zap.Logger
	outcome string
}

func (in *interaction) action() Action { return in.update.Action }

func (in *interaction) teacher() *models.Teacher { return in.sess.Teacher }

// reply builds a reply that replaces the pressed message when the action came from a button.
func (in *interaction) reply(text string, buttons [][]Button) []Reply {
	return []Reply{{Text: text, Buttons: buttons, Edit: in.action().IsCallback()}}
}

// enter moves the session into state and prompts.
func (in *interaction) enter(state State, text string, buttons [][]Button) []Reply {
	in.sess.State = string(state)
	return in.reply(text, buttons)
}

// finish ends the active flow.
func (in *interaction) finish(text string, buttons [][]Button) []Reply {
	in.sess.Reset()
	return in.reply(text, buttons)
}

func (in *interaction) reject(text string, buttons [][]Button) []Reply {
	in.outcome = outcomeRejected
	return in.finish(text, buttons)
}

// refusalTexts maps domain refusals onto the text shown in chat.
var refusalTexts = map[string]string{
	appErrors.ErrSessionExpired.Code: textSessionExpired,
	appErrors.ErrForbidden.Code:      textAdminRequired,
	appErrors.ErrDataLost.Code:       textDataLost,
}

// refuse ends the flow with the reply registered for err.
func (in *interaction) refuse(err *appErrors.Error, buttons [][]Button) []Reply {
	in.logger.Info("interaction refused", zap.String("code", err.Code))
	text, ok := refusalTexts[err.Code]
	if !ok {
		text = err.Message
	}
	return in.reject(text, buttons)
}

func (in *interaction) progress(r Reply) {
	if in.update.Progress != nil {
		in.update.Progress(r)
	}
}

// Machine routes interactions through the per-chat flow table.
type Machine struct {
	sessions   session.Store
	teachers   TeacherService
	students   StudentService
	attendance AttendanceService
	reports    ReportService
	metrics    *service.MetricsService
	logger     *zap.Logger
	location   *time.Location
	now        func() time.Time

	table map[State]map[Kind]effect
}

// New constructs a Machine.
func New(d Deps) *Machine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Location == nil {
		d.Location = time.Local
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	m := &Machine{
		sessions:   d.Sessions,
		teachers:   d.Teachers,
		students:   d.Students,
		attendance: d.Attendance,
		reports:    d.Reports,
		metrics:    d.Metrics,
		logger:     d.Logger,
		location:   d.Location,
		now:        d.Now,
	}
	m.table = m.buildTable()
	return m
}

func (m *Machine) buildTable() map[State]map[Kind]effect {
	return map[State]map[Kind]effect{
		StateIdle: {
			KindCancel:          m.cancel,
			KindMainMenu:        m.showMainMenu,
			KindManageStudents:  m.showManageMenu,
			KindAdminMenu:       m.showAdminMenu,
			KindText:            m.idleText,
			KindAttendance:      m.requireTeacher(m.openAttendance),
			KindToggle:          m.requireTeacher(m.toggleAttendance),
			KindDone:            m.requireTeacher(m.closeAttendance),
			KindAddStudent:      m.requireTeacher(m.beginAddStudent),
			KindRemoveStudent:   m.requireTeacher(m.beginRemoveStudent),
			KindEditStudent:     m.requireTeacher(m.beginEditStudent),
			KindMoveStudent:     m.requireTeacher(m.beginMoveStudent),
			KindRegisterTeacher: m.requireAdmin(m.beginRegisterTeacher),
			KindRemoveTeacher:   m.requireAdmin(m.beginRemoveTeacher),
			KindDownloadReport:  m.requireAdmin(m.beginReport),
		},
		StateAddStudentName: {
			KindText: m.addStudentName,
		},
		StateRemoveStudentSelect: {
			KindSelectRemoveStudent: m.selectRemoveStudent,
		},
		StateRemoveStudentConfirm: {
			KindConfirm: m.confirmRemoveStudent,
		},
		StateEditStudentSelect: {
			KindSelectEditStudent: m.selectEditStudent,
		},
		StateEditStudentName: {
			KindText: m.editStudentName,
		},
		StateMoveStudentSelect: {
			KindSelectMoveStudent: m.selectMoveStudent,
		},
		StateMoveStudentTarget: {
			KindSelectMoveTarget: m.selectMoveTarget,
		},
		StateRegisterName: {
			KindText: m.registerName,
		},
		StateRegisterTelegramID: {
			KindText: m.registerTelegramID,
		},
		StateRegisterAdmin: {
			KindAdminFlag: m.registerAdminFlag,
		},
		StateRemoveTeacherSelect: {
			KindSelectRemoveTeacher: m.selectRemoveTeacher,
		},
		StateRemoveTeacherConfirm: {
			KindConfirm: m.confirmRemoveTeacher,
		},
		StateReportTeacher: {
			KindSelectReportTeacher: m.selectReportTeacher,
		},
		StateReportMonth: {
			KindSelectReportMonth: m.selectReportMonth,
		},
	}
}

// Accepts reports whether state has a transition for kind.
func (m *Machine) Accepts(state State, kind Kind) bool {
	_, ok := m.table[state][kind]
	return ok
}

// Handle processes one interaction for its chat. Calls for the same chat must not overlap.
func (m *Machine) Handle(ctx context.Context, u Update) ([]Reply, error) {
	start := time.Now()
	kind := u.Action.Kind
	log := m.logger.With(logger.Interaction(uuid.NewString(), u.ChatID, u.UserID, kind.String())...)

	sess, err := m.sessions.Load(ctx, u.ChatID)
	if err != nil {
		m.metrics.ObserveInteraction(kind.String(), outcomeError, time.Since(start))
		log.Error("failed to load session", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	in := &interaction{update: u, sess: sess, logger: log, outcome: outcomeOK}
	replies, err := m.dispatch(ctx, in)
	if err != nil {
		in.outcome = outcomeError
		log.Error("interaction failed", zap.String("state", sess.State), zap.Error(err))
		sess.Reset()
		replies = []Reply{{Text: textFailure, Buttons: mainMenu(sess.Teacher)}}
	}

	sess.UpdatedAt = m.now()
	if err := m.sessions.Save(ctx, sess); err != nil {
		m.metrics.ObserveInteraction(kind.String(), outcomeError, time.Since(start))
		log.Error("failed to save session", zap.Error(err))
		return replies, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save session")
	}

	m.metrics.ObserveInteraction(kind.String(), in.outcome, time.Since(start))
	log.Debug("interaction handled", zap.String("outcome", in.outcome), zap.String("state", sess.State))
	return replies, nil
}

// Track remembers ids of messages sent to chatID so /start can clear them.
func (m *Machine) Track(ctx context.Context, chatID int64, messageIDs ...int) error {
	sess, err := m.sessions.Load(ctx, chatID)
	if err != nil {
		return err
	}
	for _, id := range messageIDs {
		sess.TrackMessage(id)
	}
	return m.sessions.Save(ctx, sess)
}

func (m *Machine) dispatch(ctx context.Context, in *interaction) ([]Reply, error) {
	kind := in.action().Kind
	if kind == KindStart {
		return m.start(ctx, in)
	}

	if state := State(in.sess.State); state != StateIdle {
		if kind == KindCancel || kind == KindMainMenu {
			return m.cancel(ctx, in)
		}
		if !in.sess.Authenticated() {
			return in.refuse(appErrors.ErrSessionExpired, nil), nil
		}
		if eff, ok := m.table[state][kind]; ok {
			return eff(ctx, in)
		}
		if !abandonsFlow(kind) {
			return []Reply{{Text: reprompt(state)}}, nil
		}
		in.logger.Debug("flow abandoned", zap.String("state", string(state)))
		in.sess.Reset()
	}

	if eff, ok := m.table[StateIdle][kind]; ok {
		return eff(ctx, in)
	}
	switch kind {
	case KindConfirm, KindAdminFlag, KindSelectRemoveStudent, KindSelectEditStudent,
		KindSelectMoveStudent, KindSelectMoveTarget, KindSelectRemoveTeacher,
		KindSelectReportTeacher, KindSelectReportMonth:
		if !in.sess.Authenticated() {
			return in.refuse(appErrors.ErrSessionExpired, nil), nil
		}
		return in.refuse(appErrors.ErrDataLost, mainMenu(in.teacher())), nil
	}
	return nil, nil
}

// abandonsFlow reports whether kind leaves any active flow and is routed as if idle.
func abandonsFlow(kind Kind) bool {
	switch kind {
	case KindAttendance, KindToggle, KindDone, KindManageStudents, KindAdminMenu,
		KindAddStudent, KindRemoveStudent, KindEditStudent, KindMoveStudent,
		KindRegisterTeacher, KindRemoveTeacher, KindDownloadReport:
		return true
	}
	return false
}

func reprompt(state State) string {
	switch state {
	case StateAddStudentName, StateEditStudentName, StateRegisterName:
		return textRepromptName
	case StateRegisterTelegramID:
		return textInvalidTelegramID
	case StateRemoveStudentConfirm, StateRemoveTeacherConfirm, StateRegisterAdmin:
		return textRepromptConfirm
	}
	return textRepromptPick
}

func (m *Machine) requireTeacher(next effect) effect {
	return func(ctx context.Context, in *interaction) ([]Reply, error) {
		if !in.sess.Authenticated() {
			return in.refuse(appErrors.ErrSessionExpired, nil), nil
		}
		return next(ctx, in)
	}
}

func (m *Machine) requireAdmin(next effect) effect {
	return func(ctx context.Context, in *interaction) ([]Reply, error) {
		if !in.sess.Authenticated() {
			return in.refuse(appErrors.ErrSessionExpired, nil), nil
		}
		if !in.sess.IsAdmin() {
			return in.refuse(appErrors.ErrForbidden, mainMenu(in.teacher())), nil
		}
		return next(ctx, in)
	}
}

// authenticate attaches the teacher behind the user id when the session has none.
func (m *Machine) authenticate(ctx context.Context, in *interaction) (bool, error) {
	if in.sess.Authenticated() {
		return true, nil
	}
	teacher, err := m.teachers.Authenticate(ctx, in.update.UserID)
	if err != nil {
		if errors.Is(err, appErrors.ErrUnregistered) {
			return false, nil
		}
		return false, err
	}
	in.sess.Teacher = teacher
	return true, nil
}

func (m *Machine) start(ctx context.Context, in *interaction) ([]Reply, error) {
	cleanup := in.sess.TakeMessages()
	if in.update.MessageID != 0 {
		cleanup = append(cleanup, in.update.MessageID)
	}
	in.sess.Reset()
	in.sess.Attendance = nil
	in.sess.Teacher = nil

	teacher, err := m.teachers.Authenticate(ctx, in.update.UserID)
	if err != nil {
		if !errors.Is(err, appErrors.ErrUnregistered) {
			return nil, err
		}
		in.outcome = outcomeRejected
		return []Reply{{Text: textNotRegistered, Delete: cleanup}}, nil
	}
	in.sess.Teacher = teacher
	return []Reply{{
		Text:    fmt.Sprintf(textGreeting, teacher.Name),
		Buttons: mainMenu(teacher),
		Delete:  cleanup,
	}}, nil
}

func (m *Machine) cancel(_ context.Context, in *interaction) ([]Reply, error) {
	return in.finish(textCancelled, mainMenu(in.teacher())), nil
}

func (m *Machine) idleText(_ context.Context, in *interaction) ([]Reply, error) {
	return []Reply{{Text: textIdleHint}}, nil
}

func (m *Machine) showMainMenu(ctx context.Context, in *interaction) ([]Reply, error) {
	ok, err := m.authenticate(ctx, in)
	if err != nil {
		return nil, err
	}
	if !ok {
		return in.reject(textNotRegistered, nil), nil
	}
	return in.finish(textMainMenu, mainMenu(in.teacher())), nil
}

func (m *Machine) showManageMenu(ctx context.Context, in *interaction) ([]Reply, error) {
	ok, err := m.authenticate(ctx, in)
	if err != nil {
		return nil, err
	}
	if !ok {
		return in.reject(textNotRegistered, nil), nil
	}
	return in.finish(textManageMenu, manageMenu()), nil
}

func (m *Machine) showAdminMenu(ctx context.Context, in *interaction) ([]Reply, error) {
	ok, err := m.authenticate(ctx, in)
	if err != nil {
		return nil, err
	}
	if !ok {
		return in.reject(textNotRegistered, nil), nil
	}
	if !in.sess.IsAdmin() {
		return in.reject(textNoAdminMenu, mainMenu(in.teacher())), nil
	}
	return in.finish(textAdminMenu, adminMenu()), nil
}

func (m *Machine) today() time.Time {
	return m.now().In(m.location)
}
