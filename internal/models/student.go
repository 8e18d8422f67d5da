package models

// Student belongs to exactly one teacher's class.
type Student struct {
	ID        int64  `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	TeacherID int64  `db:"teacher_id" json:"teacher_id"`
}
