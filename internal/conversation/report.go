package conversation

import (
	"context"
	"errors"

	appErrors "github.com/noah-isme/attendance-bot/pkg/errors"
)

func (m *Machine) beginReport(ctx context.Context, in *interaction) ([]Reply, error) {
	teachers, err := m.teachers.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(teachers) == 0 {
		return in.finish(textNoTeachers, adminMenu()), nil
	}
	return in.enter(StateReportTeacher, textReportTeacherPick, teacherPicker(KindSelectReportTeacher, teachers, false)), nil
}

func (m *Machine) selectReportTeacher(ctx context.Context, in *interaction) ([]Reply, error) {
	teacher, err := m.teachers.Get(ctx, in.action().ID)
	if err != nil {
		return teacherGone(in, err)
	}
	id := teacher.ID
	in.sess.Pending.ReportTeacherID = &id
	return in.enter(StateReportMonth, textReportMonthPick, reportMonths(m.today())), nil
}

func (m *Machine) selectReportMonth(ctx context.Context, in *interaction) ([]Reply, error) {
	teacherID, ok := in.sess.TakeReportTeacher()
	if !ok {
		return in.reject(textTeacherDataLost, adminMenu()), nil
	}
	action := in.action()
	in.progress(Reply{Text: textReportGenerating, Edit: action.IsCallback()})

	report, err := m.reports.Generate(ctx, teacherID, action.Year, action.Month)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return in.reject(textTeacherNotFound, mainMenu(in.teacher())), nil
		}
		return nil, err
	}

	in.sess.Reset()
	return []Reply{
		{Document: &Document{
			Filename:    report.Filename,
			ContentType: report.ContentType,
			Data:        report.Data,
			Caption:     report.Caption,
		}},
		{Text: textReportSent, Buttons: mainMenu(in.teacher())},
	}, nil
}
