package models

// Teacher is a registered chat user who owns a class roster.
type Teacher struct {
	ID             int64  `db:"id" json:"id"`
	TelegramUserID int64  `db:"telegram_user_id" json:"telegram_user_id"`
	Name           string `db:"name" json:"name"`
	IsAdmin        bool   `db:"is_admin" json:"is_admin"`
}
