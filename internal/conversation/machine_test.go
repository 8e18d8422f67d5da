package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-bot/internal/repository/repotest"
	"github.com/noah-isme/attendance-bot/internal/service"
	"github.com/noah-isme/attendance-bot/internal/session"
	appErrors "github.com/noah-isme/attendance-bot/pkg/errors"
	"github.com/noah-isme/attendance-bot/pkg/export"
)

type fixture struct {
	store    *repotest.Store
	sessions *session.MemoryStore
	metrics  *service.MetricsService
	machine  *Machine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repotest.New()
	metrics := service.NewMetricsService()
	sessions := session.NewMemoryStore(time.Hour)
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	m := New(Deps{
		Sessions:   sessions,
		Teachers:   service.NewTeacherService(store.Teachers, nil, nil),
		Students:   service.NewStudentService(store.Students, nil, nil),
		Attendance: service.NewAttendanceService(store.Attendance, store.Students, metrics, nil),
		Reports:    service.NewReportService(store.Teachers, store.Attendance, export.NewXLSXExporter(), nil, metrics, nil),
		Metrics:    metrics,
		Location:   time.UTC,
		Now:        func() time.Time { return now },
	})
	return &fixture{store: store, sessions: sessions, metrics: metrics, machine: m}
}

func (f *fixture) handle(t *testing.T, u Update) []Reply {
	t.Helper()
	if u.ChatID == 0 {
		u.ChatID = u.UserID
	}
	replies, err := f.machine.Handle(context.Background(), u)
	require.NoError(t, err)
	return replies
}

func (f *fixture) do(t *testing.T, userID int64, a Action) []Reply {
	t.Helper()
	return f.handle(t, Update{UserID: userID, Action: a})
}

func (f *fixture) press(t *testing.T, userID int64, token string) []Reply {
	t.Helper()
	a := Decode(token)
	require.NotEqual(t, KindUnknown, a.Kind, "token %q", token)
	return f.do(t, userID, a)
}

func (f *fixture) say(t *testing.T, userID int64, text string) []Reply {
	t.Helper()
	return f.do(t, userID, TextInput(text))
}

func (f *fixture) start(t *testing.T, userID int64) []Reply {
	t.Helper()
	return f.do(t, userID, Command("start"))
}

func (f *fixture) session(t *testing.T, chatID int64) *session.Session {
	t.Helper()
	sess, err := f.sessions.Load(context.Background(), chatID)
	require.NoError(t, err)
	return sess
}

func tokens(buttons [][]Button) []string {
	var out []string
	for _, r := range buttons {
		for _, b := range r {
			out = append(out, b.Token)
		}
	}
	return out
}

func labels(buttons [][]Button) []string {
	var out []string
	for _, r := range buttons {
		for _, b := range r {
			out = append(out, b.Label)
		}
	}
	return out
}

func only(t *testing.T, replies []Reply) Reply {
	t.Helper()
	require.Len(t, replies, 1)
	return replies[0]
}

func TestStartGreetsTeacherAndClearsChat(t *testing.T) {
	f := newFixture(t)
	f.store.SeedTeacher("Alice", 111, true)
	require.NoError(t, f.machine.Track(context.Background(), 111, 5, 6))

	r := only(t, f.handle(t, Update{UserID: 111, MessageID: 9, Action: Command("start")}))
	assert.Equal(t, "Hello, Alice! 👋\n\nChoose an option below:", r.Text)
	assert.Equal(t, []int{5, 6, 9}, r.Delete)
	assert.Equal(t, []string{"att", "mgst", "admin"}, tokens(r.Buttons))

	sess := f.session(t, 111)
	require.NotNil(t, sess.Teacher)
	assert.Equal(t, "Alice", sess.Teacher.Name)
	assert.Empty(t, sess.MessageIDs)
}

func TestStartRejectsUnregisteredUser(t *testing.T) {
	f := newFixture(t)

	r := only(t, f.start(t, 999))
	assert.Equal(t, textNotRegistered, r.Text)
	assert.Empty(t, r.Buttons)
	assert.Nil(t, f.session(t, 999).Teacher)
}

func TestMainMenuHidesAdminEntryForTeachers(t *testing.T) {
	f := newFixture(t)
	f.store.SeedTeacher("Bob", 222, false)

	r := only(t, f.start(t, 222))
	assert.Equal(t, []string{"att", "mgst"}, tokens(r.Buttons))
}

func TestNavigationReauthenticatesWithoutSession(t *testing.T) {
	f := newFixture(t)
	f.store.SeedTeacher("Alice", 111, false)

	r := only(t, f.press(t, 111, "mgst"))
	assert.Equal(t, textManageMenu, r.Text)
	assert.True(t, r.Edit)
	assert.Equal(t, "Alice", f.session(t, 111).Teacher.Name)

	r = only(t, f.press(t, 333, "mainmenu"))
	assert.Equal(t, textNotRegistered, r.Text)
}

func TestFlowsRequireSession(t *testing.T) {
	f := newFixture(t)
	f.store.SeedTeacher("Alice", 111, true)

	for _, token := range []string{"att", "addst", "rmst", "regt", "dlrpt", "toggle_1"} {
		r := only(t, f.press(t, 111, token))
		assert.Equal(t, textSessionExpired, r.Text, token)
		assert.Equal(t, "", f.session(t, 111).State, token)
	}
	assert.Equal(t, uint64(6), f.metrics.Snapshot().Interactions)
}

func TestStraySelectionWithoutSessionAsksToStartAgain(t *testing.T) {
	f := newFixture(t)
	f.store.SeedTeacher("Alice", 111, true)

	for _, token := range []string{"yes", "rmsel_2", "admin_yes", "rptmonth_2024_3"} {
		r := only(t, f.press(t, 111, token))
		assert.Equal(t, textSessionExpired, r.Text, token)
		assert.Empty(t, r.Buttons, token)
		assert.Nil(t, f.session(t, 111).Teacher, token)
	}

	f.start(t, 111)
	r := only(t, f.press(t, 111, "yes"))
	assert.Equal(t, textDataLost, r.Text)
}

func TestRefusalsUseDomainErrorTexts(t *testing.T) {
	in := &interaction{sess: session.New(1), logger: zap.NewNop()}
	in.sess.State = string(StateRemoveStudentConfirm)

	cases := []struct {
		err  *appErrors.Error
		want string
	}{
		{appErrors.ErrSessionExpired, textSessionExpired},
		{appErrors.ErrForbidden, textAdminRequired},
		{appErrors.ErrDataLost, textDataLost},
		{appErrors.Clone(appErrors.ErrConflict, "already taken"), "already taken"},
	}
	for _, tc := range cases {
		r := only(t, in.refuse(tc.err, nil))
		assert.Equal(t, tc.want, r.Text, tc.err.Code)
		assert.Equal(t, outcomeRejected, in.outcome)
		assert.Equal(t, "", in.sess.State)
	}
}

func TestAdminFlowsRejectNonAdmins(t *testing.T) {
	f := newFixture(t)
	f.store.SeedTeacher("Bob", 222, false)
	f.start(t, 222)

	for _, token := range []string{"regt", "rmt", "dlrpt"} {
		r := only(t, f.press(t, 222, token))
		assert.Equal(t, textAdminRequired, r.Text, token)
		assert.Equal(t, "", f.session(t, 222).State, token)
	}
	r := only(t, f.press(t, 222, "admin"))
	assert.Equal(t, textNoAdminMenu, r.Text)
}

func TestAttendanceDoubleToggleRestoresAbsent(t *testing.T) {
	f := newFixture(t)
	alice := f.store.SeedTeacher("Alice", 111, false)
	sam := f.store.SeedStudent("Sam", alice.ID)
	f.store.SeedStudent("Lee", alice.ID)
	f.start(t, 111)

	r := only(t, f.press(t, 111, "att"))
	assert.Equal(t, "📋 Attendance for 2024-03-01\n\nTap a student name to toggle present/absent:", r.Text)
	assert.Equal(t, []string{"⬜ Lee", "⬜ Sam", "✔️ Done", "🔙 Back to Main Menu"}, labels(r.Buttons))

	toggle := fmt.Sprintf("toggle_%d", sam.ID)
	r = only(t, f.press(t, 111, toggle))
	assert.Contains(t, labels(r.Buttons), "✅ Sam")
	assert.Len(t, f.store.Entries(sam.ID), 1)
	assert.True(t, f.session(t, 111).Attendance.Has(sam.ID))

	r = only(t, f.press(t, 111, toggle))
	assert.Contains(t, labels(r.Buttons), "⬜ Sam")
	assert.Empty(t, f.store.Entries(sam.ID))
	assert.False(t, f.session(t, 111).Attendance.Has(sam.ID))
}

func TestAttendanceToggleWithoutWorkingSetReloadsStore(t *testing.T) {
	f := newFixture(t)
	alice := f.store.SeedTeacher("Alice", 111, false)
	sam := f.store.SeedStudent("Sam", alice.ID)
	f.store.SeedPresent(sam.ID, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	f.start(t, 111)

	only(t, f.press(t, 111, fmt.Sprintf("toggle_%d", sam.ID)))
	assert.Empty(t, f.store.Entries(sam.ID))
	assert.False(t, f.session(t, 111).Attendance.Has(sam.ID))
}

func TestAttendanceToggleForeignStudent(t *testing.T) {
	f := newFixture(t)
	alice := f.store.SeedTeacher("Alice", 111, false)
	bob := f.store.SeedTeacher("Bob", 222, false)
	f.store.SeedStudent("Sam", alice.ID)
	mia := f.store.SeedStudent("Mia", bob.ID)
	f.start(t, 111)
	f.press(t, 111, "att")

	r := only(t, f.press(t, 111, fmt.Sprintf("toggle_%d", mia.ID)))
	assert.Equal(t, textStudentNotFound, r.Text)
	assert.Zero(t, f.store.AttendanceCount())
}

func TestAttendanceWithoutStudents(t *testing.T) {
	f := newFixture(t)
	f.store.SeedTeacher("Alice", 111, false)
	f.start(t, 111)

	r := only(t, f.press(t, 111, "att"))
	assert.Equal(t, textNoStudentsYet, r.Text)
	assert.Equal(t, []string{"mainmenu"}, tokens(r.Buttons))
	assert.Nil(t, f.session(t, 111).Attendance)
}

func TestAttendanceDoneSummarises(t *testing.T) {
	f := newFixture(t)
	alice := f.store.SeedTeacher("Alice", 111, false)
	sam := f.store.SeedStudent("Sam", alice.ID)
	f.store.SeedStudent("Lee", alice.ID)
	f.start(t, 111)
	f.press(t, 111, "att")
	f.press(t, 111, fmt.Sprintf("toggle_%d", sam.ID))

	r := only(t, f.press(t, 111, "done"))
	assert.Equal(t, "✅ Attendance saved for 2024-03-01\n\nPresent (1):\n  • Sam\n\nAbsent (1):\n  • Lee", r.Text)
	assert.Nil(t, f.session(t, 111).Attendance)

	r = only(t, f.press(t, 111, "done"))
	assert.Equal(t, textDataLost, r.Text)
}

func TestAddStudentRepromptsOnEmptyName(t *testing.T) {
	f := newFixture(t)
	alice := f.store.SeedTeacher("Alice", 111, false)
	f.start(t, 111)

	r := only(t, f.press(t, 111, "addst"))
	assert.Equal(t, textAddStudentPrompt, r.Text)

	r = only(t, f.say(t, 111, "   "))
	assert.Equal(t, textNameEmpty, r.Text)
	assert.Equal(t, string(StateAddStudentName), f.session(t, 111).State)

	r = only(t, f.say(t, 111, strings.Repeat("x", 101)))
	assert.Equal(t, textNameTooLong, r.Text)

	r = only(t, f.say(t, 111, "  Sam  "))
	assert.Equal(t, "✅ Student 'Sam' added to your class.", r.Text)
	assert.False(t, r.Edit)
	assert.Equal(t, "", f.session(t, 111).State)

	students, err := f.store.Students.ListByTeacher(context.Background(), alice.ID)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "Sam", students[0].Name)
}

func TestCancelLeavesFlowWithoutWriting(t *testing.T) {
	f := newFixture(t)
	alice := f.store.SeedTeacher("Alice", 111, false)
	f.start(t, 111)

	f.press(t, 111, "addst")
	r := only(t, f.do(t, 111, Command("cancel")))
	assert.Equal(t, textCancelled, r.Text)
	assert.Equal(t, "", f.session(t, 111).State)

	f.press(t, 111, "addst")
	r = only(t, f.press(t, 111, "mainmenu"))
	assert.Equal(t, textCancelled, r.Text)

	r = only(t, f.say(t, 111, "Sam"))
	assert.Equal(t, textIdleHint, r.Text)
	students, err := f.store.Students.ListByTeacher(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Empty(t, students)
}

func TestOtherFlowEntryAbandonsActiveFlow(t *testing.T) {
	f := newFixture(t)
	alice := f.store.SeedTeacher("Alice", 111, false)
	sam := f.store.SeedStudent("Sam", alice.ID)
	f.start(t, 111)

	f.press(t, 111, "rmst")
	f.press(t, 111, fmt.Sprintf("rmsel_%d", sam.ID))
	require.NotNil(t, f.session(t, 111).Pending.Student)

	r := only(t, f.press(t, 111, "att"))
	assert.True(t, strings.HasPrefix(r.Text, "📋 Attendance for"))
	sess := f.session(t, 111)
	assert.Equal(t, "", sess.State)
	assert.Nil(t, sess.Pending.Student)

	r = only(t, f.press(t, 111, "yes"))
	assert.Equal(t, textDataLost, r.Text)
	_, ok := f.store.Student(sam.ID)
	assert.True(t, ok)
}

func TestUnexpectedTriggerReprompts(t *testing.T) {
	f := newFixture(t)
	alice := f.store.SeedTeacher("Alice", 111, false)
	sam := f.store.SeedStudent("Sam", alice.ID)
	f.start(t, 111)
	f.press(t, 111, "rmst")
	f.press(t, 111, fmt.Sprintf("rmsel_%d", sam.ID))

	r := only(t, f.say(t, 111, "hello"))
	assert.Equal(t, textRepromptConfirm, r.Text)
	sess := f.session(t, 111)
	assert.Equal(t, string(StateRemoveStudentConfirm), sess.State)
	require.NotNil(t, sess.Pending.Student)
	assert.Equal(t, sam.ID, sess.Pending.Student.ID)
}

func TestRemoveStudentConfirmAndDoubleConfirm(t *testing.T) {
	f := newFixture(t)
	alice := f.store.SeedTeacher("Alice", 111, false)
	sam := f.store.SeedStudent("Sam", alice.ID)
	f.store.SeedPresent(sam.ID, time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC))
	f.start(t, 111)

	r := only(t, f.press(t, 111, "rmst"))
	assert.Equal(t, textRemoveStudentPick, r.Text)
	assert.Equal(t, []string{fmt.Sprintf("rmsel_%d", sam.ID), "mainmenu"}, tokens(r.Buttons))

	r = only(t, f.press(t, 111, fmt.Sprintf("rmsel_%d", sam.ID)))
	assert.Equal(t, "Are you sure you want to remove 'Sam'?\nThis will also delete all their attendance records.", r.Text)

	r = only(t, f.press(t, 111, "yes"))
	assert.Equal(t, "✅ Student 'Sam' has been removed.", r.Text)
	assert.Equal(t, 1, f.store.Deletes)
	assert.Zero(t, f.store.AttendanceCount())

	r = only(t, f.press(t, 111, "yes"))
	assert.Equal(t, textDataLost, r.Text)
	assert.Equal(t, 1, f.store.Deletes)
}

func TestRemoveStudentDeclined(t *testing.T) {
	f := newFixture(t)
	alice := f.store.SeedTeacher("Alice", 111, false)
	sam := f.store.SeedStudent("Sam", alice.ID)
	f.start(t, 111)
	f.press(t, 111, "rmst")
	f.press(t, 111, fmt.Sprintf("rmsel_%d", sam.ID))

	r := only(t, f.press(t, 111, "no"))
	assert.Equal(t, textRemovalCancelled, r.Text)
	assert.Zero(t, f.store.Deletes)
	assert.Nil(t, f.session(t, 111).Pending.Student)
}

func TestRemoveStudentRacedByOtherChat(t *testing.T) {
	f := newFixture(t)
	alice := f.store.SeedTeacher("Alice", 111, false)
	sam := f.store.SeedStudent("Sam", alice.ID)
	f.start(t, 111)
	f.press(t, 111, "rmst")
	f.press(t, 111, fmt.Sprintf("rmsel_%d", sam.ID))

	require.NoError(t, f.store.Students.Delete(context.Background(), sam.ID))
	deletes := f.store.Deletes

	r := only(t, f.press(t, 111, "yes"))
	assert.Equal(t, textStudentNotFound, r.Text)
	assert.Equal(t, deletes, f.store.Deletes)
	assert.Equal(t, "", f.session(t, 111).State)
}

func TestRemoveStudentWithEmptyRoster(t *testing.T) {
	f := newFixture(t)
	f.store.SeedTeacher("Alice", 111, false)
	f.start(t, 111)

	r := only(t, f.press(t, 111, "rmst"))
	assert.Equal(t, textNoStudentsToRemove, r.Text)
	assert.Equal(t, "", f.session(t, 111).State)
}

func TestEditStudentRenames(t *testing.T) {
	f := newFixture(t)
	alice := f.store.SeedTeacher("Alice", 111, false)
	sam := f.store.SeedStudent("Sam", alice.ID)
	f.start(t, 111)
	f.press(t, 111, "edst")

	r := only(t, f.press(t, 111, fmt.Sprintf("edsel_%d", sam.ID)))
	assert.Equal(t, "Current name: Sam\n\nType the new name (or /cancel):", r.Text)

	r = only(t, f.say(t, 111, ""))
	assert.Equal(t, textNameEmpty, r.Text)

	r = only(t, f.say(t, 111, "Samuel"))
	assert.Equal(t, "✅ Student renamed from 'Sam' to 'Samuel'.", r.Text)
	st, ok := f.store.Student(sam.ID)
	require.True(t, ok)
	assert.Equal(t, "Samuel", st.Name)
}

func TestMoveStudentKeepsAttendanceAndExcludesSelf(t *testing.T) {
	f := newFixture(t)
	alice := f.store.SeedTeacher("Alice", 111, false)
	bob := f.store.SeedTeacher("Bob", 222, false)
	sam := f.store.SeedStudent("Sam", alice.ID)
	f.store.SeedPresent(sam.ID, time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC))
	f.start(t, 111)
	f.press(t, 111, "mvst")

	r := only(t, f.press(t, 111, fmt.Sprintf("mvsel_%d", sam.ID)))
	assert.Equal(t, "Moving 'Sam'\n\nSelect the destination teacher's class:", r.Text)
	assert.Equal(t, []string{fmt.Sprintf("mvto_%d", bob.ID), "mainmenu"}, tokens(r.Buttons))

	r = only(t, f.press(t, 111, fmt.Sprintf("mvto_%d", bob.ID)))
	assert.Equal(t, "✅ Student 'Sam' moved to Bob's class.", r.Text)
	st, ok := f.store.Student(sam.ID)
	require.True(t, ok)
	assert.Equal(t, bob.ID, st.TeacherID)
	assert.Len(t, f.store.Entries(sam.ID), 1)
}

func TestMoveStudentWithoutOtherTeachers(t *testing.T) {
	f := newFixture(t)
	alice := f.store.SeedTeacher("Alice", 111, false)
	sam := f.store.SeedStudent("Sam", alice.ID)
	f.start(t, 111)
	f.press(t, 111, "mvst")

	r := only(t, f.press(t, 111, fmt.Sprintf("mvsel_%d", sam.ID)))
	assert.Equal(t, textNoMoveDestinations, r.Text)
	assert.Equal(t, "", f.session(t, 111).State)
}

func registerTeacher(t *testing.T, f *fixture, admin int64, name, telegramID, flag string) []Reply {
	t.Helper()
	f.press(t, admin, "regt")
	f.say(t, admin, name)
	replies := f.say(t, admin, telegramID)
	if f.session(t, admin).State != string(StateRegisterAdmin) {
		return replies
	}
	return f.press(t, admin, flag)
}

func TestRegisterTeacher(t *testing.T) {
	f := newFixture(t)
	f.store.SeedTeacher("Alice", 111, true)
	f.start(t, 111)

	r := only(t, f.press(t, 111, "regt"))
	assert.Equal(t, textRegisterPrompt, r.Text)

	r = only(t, f.say(t, 111, "Carol"))
	assert.True(t, strings.HasPrefix(r.Text, "Teacher name: Carol"))

	r = only(t, f.say(t, 111, "abc"))
	assert.Equal(t, textInvalidTelegramID, r.Text)
	assert.Equal(t, string(StateRegisterTelegramID), f.session(t, 111).State)

	r = only(t, f.say(t, 111, "-4"))
	assert.Equal(t, textInvalidTelegramID, r.Text)

	r = only(t, f.say(t, 111, "555"))
	assert.Equal(t, textRegisterAdminAsk, r.Text)
	assert.Equal(t, []string{"admin_yes", "admin_no"}, tokens(r.Buttons))

	r = only(t, f.press(t, 111, "admin_yes"))
	assert.Equal(t, "✅ Carol registered as admin teacher (Telegram ID: 555).", r.Text)
	assert.Equal(t, 2, f.store.TeacherCount())

	carol, err := f.store.Teachers.FindByTelegramID(context.Background(), 555)
	require.NoError(t, err)
	assert.True(t, carol.IsAdmin)
}

func TestRegisterTeacherDuplicateTelegramID(t *testing.T) {
	f := newFixture(t)
	f.store.SeedTeacher("Alice", 111, true)
	f.start(t, 111)

	r := only(t, registerTeacher(t, f, 111, "Carol", "555", "admin_no"))
	assert.Equal(t, "✅ Carol registered as teacher (Telegram ID: 555).", r.Text)

	r = only(t, registerTeacher(t, f, 111, "Dave", "555", "admin_no"))
	assert.Equal(t, "A teacher with Telegram ID 555 is already registered as 'Carol'.", r.Text)
	assert.Equal(t, 2, f.store.TeacherCount())
	sess := f.session(t, 111)
	assert.Equal(t, "", sess.State)
	assert.Nil(t, sess.Pending.Registration)
}

func TestRegisterTeacherIDTakenBeforeConfirm(t *testing.T) {
	f := newFixture(t)
	f.store.SeedTeacher("Alice", 111, true)
	f.start(t, 111)
	f.press(t, 111, "regt")
	f.say(t, 111, "Dave")
	f.say(t, 111, "555")
	f.store.SeedTeacher("Carol", 555, false)

	r := only(t, f.press(t, 111, "admin_no"))
	assert.Equal(t, "A teacher with Telegram ID 555 is already registered as 'Carol'.", r.Text)
	assert.Equal(t, 2, f.store.TeacherCount())
}

func TestRemoveTeacherCascades(t *testing.T) {
	f := newFixture(t)
	alice := f.store.SeedTeacher("Alice", 111, true)
	bob := f.store.SeedTeacher("Bob", 222, true)
	mia := f.store.SeedStudent("Mia", bob.ID)
	for day := 1; day <= 3; day++ {
		f.store.SeedPresent(mia.ID, time.Date(2024, 2, day, 0, 0, 0, 0, time.UTC))
	}
	f.start(t, 111)

	r := only(t, f.press(t, 111, "rmt"))
	assert.Equal(t, []string{"Bob (admin)", "🔙 Cancel"}, labels(r.Buttons))
	assert.NotContains(t, tokens(r.Buttons), fmt.Sprintf("rmtsel_%d", alice.ID))

	r = only(t, f.press(t, 111, fmt.Sprintf("rmtsel_%d", bob.ID)))
	assert.Equal(t, "Are you sure you want to remove teacher 'Bob'?\nThis will also delete all their students and attendance records.", r.Text)

	r = only(t, f.press(t, 111, "yes"))
	assert.Equal(t, "✅ Teacher 'Bob' has been removed.", r.Text)
	assert.Equal(t, 1, f.store.TeacherCount())
	assert.Zero(t, f.store.AttendanceCount())
	_, ok := f.store.Student(mia.ID)
	assert.False(t, ok)
}

func TestRemoveTeacherRejectsSelf(t *testing.T) {
	f := newFixture(t)
	alice := f.store.SeedTeacher("Alice", 111, true)
	f.store.SeedTeacher("Bob", 222, false)
	f.start(t, 111)
	f.press(t, 111, "rmt")

	r := only(t, f.press(t, 111, fmt.Sprintf("rmtsel_%d", alice.ID)))
	assert.Equal(t, textTeacherNotFound, r.Text)
	assert.Equal(t, 2, f.store.TeacherCount())
}

func TestRemoveTeacherAlone(t *testing.T) {
	f := newFixture(t)
	f.store.SeedTeacher("Alice", 111, true)
	f.start(t, 111)

	r := only(t, f.press(t, 111, "rmt"))
	assert.Equal(t, textNoTeachersToRemove, r.Text)
}

func TestDownloadReport(t *testing.T) {
	f := newFixture(t)
	alice := f.store.SeedTeacher("Alice", 111, true)
	sam := f.store.SeedStudent("Sam", alice.ID)
	f.store.SeedPresent(sam.ID, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	f.start(t, 111)

	r := only(t, f.press(t, 111, "dlrpt"))
	assert.Equal(t, textReportTeacherPick, r.Text)

	r = only(t, f.press(t, 111, fmt.Sprintf("rptteacher_%d", alice.ID)))
	assert.Equal(t, textReportMonthPick, r.Text)
	assert.Equal(t, []string{
		"rptmonth_2024_3", "rptmonth_2024_2", "rptmonth_2024_1",
		"rptmonth_2023_12", "rptmonth_2023_11", "rptmonth_2023_10", "mainmenu",
	}, tokens(r.Buttons))
	assert.Equal(t, "March 2024", r.Buttons[0][0].Label)

	var progress []Reply
	replies := f.handle(t, Update{
		UserID:   111,
		Action:   Decode("rptmonth_2024_3"),
		Progress: func(r Reply) { progress = append(progress, r) },
	})
	require.Len(t, progress, 1)
	assert.Equal(t, textReportGenerating, progress[0].Text)
	assert.True(t, progress[0].Edit)

	require.Len(t, replies, 2)
	require.NotNil(t, replies[0].Document)
	assert.Equal(t, "Attendance_Alice_March_2024.xlsx", replies[0].Document.Filename)
	assert.Equal(t, "📊 Attendance report for Alice — March 2024", replies[0].Document.Caption)
	assert.NotEmpty(t, replies[0].Document.Data)
	assert.Equal(t, textReportSent, replies[1].Text)

	sess := f.session(t, 111)
	assert.Equal(t, "", sess.State)
	assert.Nil(t, sess.Pending.ReportTeacherID)
}

type failingReports struct{}

func (failingReports) Generate(context.Context, int64, int, time.Month) (*service.Report, error) {
	return nil, errors.New("disk full")
}

func TestUnexpectedErrorEndsFlow(t *testing.T) {
	f := newFixture(t)
	alice := f.store.SeedTeacher("Alice", 111, true)
	f.machine.reports = failingReports{}
	f.start(t, 111)
	f.press(t, 111, "dlrpt")
	f.press(t, 111, fmt.Sprintf("rptteacher_%d", alice.ID))

	r := only(t, f.press(t, 111, "rptmonth_2024_3"))
	assert.Equal(t, textFailure, r.Text)
	assert.Equal(t, "", f.session(t, 111).State)
	assert.Equal(t, uint64(1), f.metrics.Snapshot().InteractionErrors)
}

func TestTableAcceptsOnlyDeclaredTriggers(t *testing.T) {
	f := newFixture(t)
	assert.True(t, f.machine.Accepts(StateRemoveStudentConfirm, KindConfirm))
	assert.False(t, f.machine.Accepts(StateRemoveStudentConfirm, KindText))
	assert.True(t, f.machine.Accepts(StateRegisterTelegramID, KindText))
	assert.False(t, f.machine.Accepts(StateReportMonth, KindSelectReportTeacher))
}
