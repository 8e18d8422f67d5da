package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/noah-isme/attendance-bot/internal/service"
	"github.com/noah-isme/attendance-bot/internal/session"
	appErrors "github.com/noah-isme/attendance-bot/pkg/errors"
)

const maxNameLength = 100

// checkName returns a reprompt text when name is unusable.
func checkName(name string) (string, bool) {
	switch {
	case name == "":
		return textNameEmpty, false
	case utf8.RuneCountInString(name) > maxNameLength:
		return textNameTooLong, false
	}
	return "", true
}

func (m *Machine) beginAddStudent(_ context.Context, in *interaction) ([]Reply, error) {
	return in.enter(StateAddStudentName, textAddStudentPrompt, cancelOnly()), nil
}

func (m *Machine) addStudentName(ctx context.Context, in *interaction) ([]Reply, error) {
	name := strings.TrimSpace(in.action().Text)
	if hint, ok := checkName(name); !ok {
		return []Reply{{Text: hint}}, nil
	}
	student, err := m.students.Add(ctx, service.AddStudentRequest{TeacherID: in.teacher().ID, Name: name})
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return in.refuse(appErrors.ErrSessionExpired, nil), nil
		}
		return nil, err
	}
	return in.finish(fmt.Sprintf(textStudentAdded, student.Name), manageMenu()), nil
}

func (m *Machine) beginRemoveStudent(ctx context.Context, in *interaction) ([]Reply, error) {
	students, err := m.students.List(ctx, in.teacher().ID)
	if err != nil {
		return nil, err
	}
	if len(students) == 0 {
		return in.finish(textNoStudentsToRemove, manageMenu()), nil
	}
	return in.enter(StateRemoveStudentSelect, textRemoveStudentPick, studentPicker(KindSelectRemoveStudent, students)), nil
}

func (m *Machine) selectRemoveStudent(ctx context.Context, in *interaction) ([]Reply, error) {
	student, err := m.students.Get(ctx, in.teacher().ID, in.action().ID)
	if err != nil {
		return studentGone(in, err)
	}
	in.sess.Pending.Student = &session.PendingStudent{ID: student.ID, Name: student.Name}
	return in.enter(StateRemoveStudentConfirm,
		fmt.Sprintf(textRemoveStudentAsk, student.Name),
		confirmKeyboard("✅ Yes, remove")), nil
}

func (m *Machine) confirmRemoveStudent(ctx context.Context, in *interaction) ([]Reply, error) {
	pending := in.sess.TakeStudent()
	if !in.action().Yes {
		return in.finish(textRemovalCancelled, manageMenu()), nil
	}
	if pending == nil {
		return in.reject(textStudentDataLost, manageMenu()), nil
	}
	// The student may have been moved or removed since it was listed.
	if _, err := m.students.Get(ctx, in.teacher().ID, pending.ID); err != nil {
		return studentGone(in, err)
	}
	if err := m.students.Remove(ctx, pending.ID); err != nil {
		return studentGone(in, err)
	}
	return in.finish(fmt.Sprintf(textStudentRemoved, pending.Name), manageMenu()), nil
}

func (m *Machine) beginEditStudent(ctx context.Context, in *interaction) ([]Reply, error) {
	students, err := m.students.List(ctx, in.teacher().ID)
	if err != nil {
		return nil, err
	}
	if len(students) == 0 {
		return in.finish(textNoStudentsToEdit, manageMenu()), nil
	}
	return in.enter(StateEditStudentSelect, textEditStudentPick, studentPicker(KindSelectEditStudent, students)), nil
}

func (m *Machine) selectEditStudent(ctx context.Context, in *interaction) ([]Reply, error) {
	student, err := m.students.Get(ctx, in.teacher().ID, in.action().ID)
	if err != nil {
		return studentGone(in, err)
	}
	in.sess.Pending.Student = &session.PendingStudent{ID: student.ID, Name: student.Name}
	return in.enter(StateEditStudentName, fmt.Sprintf(textEditStudentPrompt, student.Name), cancelOnly()), nil
}

func (m *Machine) editStudentName(ctx context.Context, in *interaction) ([]Reply, error) {
	name := strings.TrimSpace(in.action().Text)
	if hint, ok := checkName(name); !ok {
		return []Reply{{Text: hint}}, nil
	}
	pending := in.sess.TakeStudent()
	if pending == nil {
		return in.reject(textStudentDataLost, manageMenu()), nil
	}
	if _, err := m.students.Get(ctx, in.teacher().ID, pending.ID); err != nil {
		return studentGone(in, err)
	}
	if err := m.students.Rename(ctx, pending.ID, name); err != nil {
		return studentGone(in, err)
	}
	return in.finish(fmt.Sprintf(textStudentRenamed, pending.Name, name), manageMenu()), nil
}

func (m *Machine) beginMoveStudent(ctx context.Context, in *interaction) ([]Reply, error) {
	students, err := m.students.List(ctx, in.teacher().ID)
	if err != nil {
		return nil, err
	}
	if len(students) == 0 {
		return in.finish(textNoStudentsToMove, manageMenu()), nil
	}
	return in.enter(StateMoveStudentSelect, textMoveStudentPick, studentPicker(KindSelectMoveStudent, students)), nil
}

func (m *Machine) selectMoveStudent(ctx context.Context, in *interaction) ([]Reply, error) {
	student, err := m.students.Get(ctx, in.teacher().ID, in.action().ID)
	if err != nil {
		return studentGone(in, err)
	}
	others, err := m.teachers.ListOthers(ctx, in.teacher().ID)
	if err != nil {
		return nil, err
	}
	if len(others) == 0 {
		return in.finish(textNoMoveDestinations, manageMenu()), nil
	}
	in.sess.Pending.Student = &session.PendingStudent{ID: student.ID, Name: student.Name}
	return in.enter(StateMoveStudentTarget,
		fmt.Sprintf(textMoveStudentTarget, student.Name),
		teacherPicker(KindSelectMoveTarget, others, false)), nil
}

func (m *Machine) selectMoveTarget(ctx context.Context, in *interaction) ([]Reply, error) {
	pending := in.sess.TakeStudent()
	if pending == nil {
		return in.reject(textStudentDataLost, manageMenu()), nil
	}
	targetID := in.action().ID
	if targetID == in.teacher().ID {
		return in.reject(textDestinationNotFound, manageMenu()), nil
	}
	target, err := m.teachers.Get(ctx, targetID)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return in.reject(textDestinationNotFound, manageMenu()), nil
		}
		return nil, err
	}
	if _, err := m.students.Get(ctx, in.teacher().ID, pending.ID); err != nil {
		return studentGone(in, err)
	}
	if err := m.students.Move(ctx, pending.ID, target.ID); err != nil {
		return studentGone(in, err)
	}
	return in.finish(fmt.Sprintf(textStudentMoved, pending.Name, target.Name), manageMenu()), nil
}

// studentGone ends the flow with "not found" for NotFound errors and passes anything else through.
func studentGone(in *interaction, err error) ([]Reply, error) {
	if errors.Is(err, appErrors.ErrNotFound) {
		return in.reject(textStudentNotFound, manageMenu()), nil
	}
	return nil, err
}
