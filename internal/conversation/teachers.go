package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/noah-isme/attendance-bot/internal/service"
	"github.com/noah-isme/attendance-bot/internal/session"
	appErrors "github.com/noah-isme/attendance-bot/pkg/errors"
)

func (m *Machine) beginRegisterTeacher(_ context.Context, in *interaction) ([]Reply, error) {
	in.sess.Pending.Registration = &session.PendingRegistration{}
	return in.enter(StateRegisterName, textRegisterPrompt, cancelOnly()), nil
}

func (m *Machine) registerName(_ context.Context, in *interaction) ([]Reply, error) {
	name := strings.TrimSpace(in.action().Text)
	if hint, ok := checkName(name); !ok {
		return []Reply{{Text: hint}}, nil
	}
	reg := in.sess.Pending.Registration
	if reg == nil {
		return in.reject(textTeacherDataLost, adminMenu()), nil
	}
	reg.Name = name
	return in.enter(StateRegisterTelegramID, fmt.Sprintf(textRegisterIDPrompt, name), cancelOnly()), nil
}

func (m *Machine) registerTelegramID(ctx context.Context, in *interaction) ([]Reply, error) {
	telegramID, err := strconv.ParseInt(strings.TrimSpace(in.action().Text), 10, 64)
	if err != nil || telegramID <= 0 {
		return []Reply{{Text: textInvalidTelegramID}}, nil
	}
	reg := in.sess.Pending.Registration
	if reg == nil || reg.Name == "" {
		return in.reject(textTeacherDataLost, adminMenu()), nil
	}
	if err := m.teachers.EnsureAvailable(ctx, telegramID); err != nil {
		return conflictOr(in, err)
	}
	reg.TelegramUserID = telegramID
	reg.HasTelegramID = true
	return in.enter(StateRegisterAdmin, textRegisterAdminAsk, adminFlagKeyboard()), nil
}

func (m *Machine) registerAdminFlag(ctx context.Context, in *interaction) ([]Reply, error) {
	reg := in.sess.TakeRegistration()
	if reg == nil || reg.Name == "" || !reg.HasTelegramID {
		return in.reject(textTeacherDataLost, adminMenu()), nil
	}
	teacher, err := m.teachers.Register(ctx, service.RegisterTeacherRequest{
		Name:           reg.Name,
		TelegramUserID: reg.TelegramUserID,
		IsAdmin:        in.action().Yes,
	})
	if err != nil {
		return conflictOr(in, err)
	}
	role := "teacher"
	if teacher.IsAdmin {
		role = "admin teacher"
	}
	return in.finish(fmt.Sprintf(textTeacherRegistered, teacher.Name, role, teacher.TelegramUserID), adminMenu()), nil
}

func (m *Machine) beginRemoveTeacher(ctx context.Context, in *interaction) ([]Reply, error) {
	others, err := m.teachers.ListOthers(ctx, in.teacher().ID)
	if err != nil {
		return nil, err
	}
	if len(others) == 0 {
		return in.finish(textNoTeachersToRemove, adminMenu()), nil
	}
	return in.enter(StateRemoveTeacherSelect, textRemoveTeacherPick, teacherPicker(KindSelectRemoveTeacher, others, true)), nil
}

func (m *Machine) selectRemoveTeacher(ctx context.Context, in *interaction) ([]Reply, error) {
	if in.action().ID == in.teacher().ID {
		return in.reject(textTeacherNotFound, adminMenu()), nil
	}
	teacher, err := m.teachers.Get(ctx, in.action().ID)
	if err != nil {
		return teacherGone(in, err)
	}
	in.sess.Pending.Teacher = &session.PendingTeacher{ID: teacher.ID, Name: teacher.Name}
	return in.enter(StateRemoveTeacherConfirm,
		fmt.Sprintf(textRemoveTeacherAsk, teacher.Name),
		confirmKeyboard("✅ Yes, remove")), nil
}

func (m *Machine) confirmRemoveTeacher(ctx context.Context, in *interaction) ([]Reply, error) {
	pending := in.sess.TakeTeacher()
	if !in.action().Yes {
		return in.finish(textRemovalCancelled, adminMenu()), nil
	}
	if pending == nil {
		return in.reject(textTeacherDataLost, adminMenu()), nil
	}
	if err := m.teachers.Remove(ctx, pending.ID); err != nil {
		return teacherGone(in, err)
	}
	return in.finish(fmt.Sprintf(textTeacherRemoved, pending.Name), adminMenu()), nil
}

func teacherGone(in *interaction, err error) ([]Reply, error) {
	if errors.Is(err, appErrors.ErrNotFound) {
		return in.reject(textTeacherNotFound, adminMenu()), nil
	}
	return nil, err
}

// conflictOr ends the flow with the conflict message, which names the current owner.
func conflictOr(in *interaction, err error) ([]Reply, error) {
	if errors.Is(err, appErrors.ErrConflict) {
		return in.reject(appErrors.FromError(err).Message, adminMenu()), nil
	}
	return nil, err
}
