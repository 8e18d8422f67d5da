// Package repotest provides an in-memory stand-in for the PostgreSQL
// repositories. It enforces the same uniqueness and cascade rules as schema.sql
// so service and conversation tests can assert on store contents.
package repotest

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/attendance-bot/internal/models"
	"github.com/noah-isme/attendance-bot/internal/repository"
)

type entryKey struct {
	studentID int64
	date      time.Time
}

// Store holds all rows. Use the Teachers, Students and Attendance views as repositories.
type Store struct {
	mu         sync.Mutex
	nextID     int64
	teachers   map[int64]models.Teacher
	students   map[int64]models.Student
	attendance map[entryKey]struct{}

	Teachers   *TeacherRepo
	Students   *StudentRepo
	Attendance *AttendanceRepo

	// Deletes counts successful student and teacher deletions.
	Deletes int
}

// New returns an empty store.
func New() *Store {
	s := &Store{
		teachers:   map[int64]models.Teacher{},
		students:   map[int64]models.Student{},
		attendance: map[entryKey]struct{}{},
	}
	s.Teachers = &TeacherRepo{s}
	s.Students = &StudentRepo{s}
	s.Attendance = &AttendanceRepo{s}
	return s
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// SeedTeacher inserts a teacher directly.
func (s *Store) SeedTeacher(name string, telegramUserID int64, admin bool) models.Teacher {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := models.Teacher{ID: s.id(), TelegramUserID: telegramUserID, Name: name, IsAdmin: admin}
	s.teachers[t.ID] = t
	return t
}

// SeedStudent inserts a student directly.
func (s *Store) SeedStudent(name string, teacherID int64) models.Student {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := models.Student{ID: s.id(), Name: name, TeacherID: teacherID}
	s.students[st.ID] = st
	return st
}

// SeedPresent inserts an attendance entry directly.
func (s *Store) SeedPresent(studentID int64, date time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attendance[entryKey{studentID, models.Day(date)}] = struct{}{}
}

// Entries returns the stored attendance dates of a student, sorted.
func (s *Store) Entries(studentID int64) []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []time.Time
	for k := range s.attendance {
		if k.studentID == studentID {
			out = append(out, k.date)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// TeacherCount returns the number of teacher rows.
func (s *Store) TeacherCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.teachers)
}

// AttendanceCount returns the number of attendance rows.
func (s *Store) AttendanceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attendance)
}

// Student returns a student row, if present.
func (s *Store) Student(id int64) (models.Student, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.students[id]
	return st, ok
}

func (s *Store) deleteStudentLocked(id int64) {
	delete(s.students, id)
	for k := range s.attendance {
		if k.studentID == id {
			delete(s.attendance, k)
		}
	}
}

func (s *Store) studentsOfLocked(teacherID int64) []models.Student {
	var out []models.Student
	for _, st := range s.students {
		if st.TeacherID == teacherID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// TeacherRepo mirrors repository.TeacherRepository.
type TeacherRepo struct{ s *Store }

func (r *TeacherRepo) List(context.Context) ([]models.Teacher, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.Teacher, 0, len(r.s.teachers))
	for _, t := range r.s.teachers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *TeacherRepo) FindByID(_ context.Context, id int64) (*models.Teacher, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.teachers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &t, nil
}

func (r *TeacherRepo) FindByTelegramID(_ context.Context, telegramUserID int64) (*models.Teacher, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.teachers {
		if t.TelegramUserID == telegramUserID {
			t := t
			return &t, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *TeacherRepo) Create(_ context.Context, teacher *models.Teacher) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.teachers {
		if t.TelegramUserID == teacher.TelegramUserID {
			return repository.ErrDuplicateTelegramID
		}
	}
	teacher.ID = r.s.id()
	r.s.teachers[teacher.ID] = *teacher
	return nil
}

func (r *TeacherRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.teachers[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.s.teachers, id)
	for _, st := range r.s.studentsOfLocked(id) {
		r.s.deleteStudentLocked(st.ID)
	}
	r.s.Deletes++
	return nil
}

func (r *TeacherRepo) Ping(context.Context) error { return nil }

// StudentRepo mirrors repository.StudentRepository.
type StudentRepo struct{ s *Store }

func (r *StudentRepo) ListByTeacher(_ context.Context, teacherID int64) ([]models.Student, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.studentsOfLocked(teacherID), nil
}

func (r *StudentRepo) FindByID(_ context.Context, id int64) (*models.Student, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &st, nil
}

func (r *StudentRepo) Create(_ context.Context, student *models.Student) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.teachers[student.TeacherID]; !ok {
		return repository.ErrMissingReference
	}
	student.ID = r.s.id()
	r.s.students[student.ID] = *student
	return nil
}

func (r *StudentRepo) Rename(_ context.Context, id int64, name string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.students[id]
	if !ok {
		return sql.ErrNoRows
	}
	st.Name = name
	r.s.students[id] = st
	return nil
}

func (r *StudentRepo) Move(_ context.Context, id, teacherID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.teachers[teacherID]; !ok {
		return repository.ErrMissingReference
	}
	st, ok := r.s.students[id]
	if !ok {
		return sql.ErrNoRows
	}
	st.TeacherID = teacherID
	r.s.students[id] = st
	return nil
}

func (r *StudentRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.students[id]; !ok {
		return sql.ErrNoRows
	}
	r.s.deleteStudentLocked(id)
	r.s.Deletes++
	return nil
}

// AttendanceRepo mirrors repository.AttendanceRepository.
type AttendanceRepo struct{ s *Store }

func (r *AttendanceRepo) MarkPresent(_ context.Context, studentID int64, date time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.students[studentID]; !ok {
		return repository.ErrMissingReference
	}
	r.s.attendance[entryKey{studentID, models.Day(date)}] = struct{}{}
	return nil
}

func (r *AttendanceRepo) UnmarkPresent(_ context.Context, studentID int64, date time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.attendance, entryKey{studentID, models.Day(date)})
	return nil
}

func (r *AttendanceRepo) PresentSet(_ context.Context, teacherID int64, date time.Time) (map[int64]struct{}, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	day := models.Day(date)
	set := map[int64]struct{}{}
	for _, st := range r.s.studentsOfLocked(teacherID) {
		if _, ok := r.s.attendance[entryKey{st.ID, day}]; ok {
			set[st.ID] = struct{}{}
		}
	}
	return set, nil
}

func (r *AttendanceRepo) MonthView(_ context.Context, teacherID int64, year int, month time.Month) ([]models.MonthAttendanceRow, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var rows []models.MonthAttendanceRow
	for _, st := range r.s.studentsOfLocked(teacherID) {
		dates := r.s.datesLocked(st.ID, year, month)
		if len(dates) == 0 {
			rows = append(rows, models.MonthAttendanceRow{StudentID: st.ID, StudentName: st.Name})
			continue
		}
		for _, d := range dates {
			d := d
			rows = append(rows, models.MonthAttendanceRow{StudentID: st.ID, StudentName: st.Name, Date: &d})
		}
	}
	return rows, nil
}

func (r *AttendanceRepo) PresentDates(_ context.Context, teacherID int64, year int, month time.Month) ([]time.Time, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := map[time.Time]struct{}{}
	var out []time.Time
	for _, st := range r.s.studentsOfLocked(teacherID) {
		for _, d := range r.s.datesLocked(st.ID, year, month) {
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (s *Store) datesLocked(studentID int64, year int, month time.Month) []time.Time {
	var out []time.Time
	for k := range s.attendance {
		if k.studentID == studentID && k.date.Year() == year && k.date.Month() == month {
			out = append(out, k.date)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
