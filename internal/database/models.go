package database

import (
	"database/sql"
	"time"
)

// Bot represents one registered Telegram bot: its identity and the token
// used to authenticate remote profile calls.
type Bot struct {
	ID        uint      `db:"id"`
	CreatedAt time.Time `db:"created_at"`

	BotID    string       `db:"bot_id"`
	Token    string       `db:"token"`
	Username string       `db:"username"`
	LastSync sql.NullTime `db:"last_sync"` // null until the first successful full sync
}

// BotSettings is one localized profile snapshot for one bot. The empty
// language denotes the default profile used by Telegram when no
// locale-specific override exists. Empty field values mean "not set".
type BotSettings struct {
	ID uint `db:"id"`

	BotID            string `db:"bot_id"`
	Language         string `db:"language"`
	Name             string `db:"name"`
	Description      string `db:"description"`
	ShortDescription string `db:"short_description"`
}

// SettingsPatch carries a partial settings write. Nil fields are not
// supplied and retain the previously stored value on upsert; non-nil fields
// overwrite, including overwriting with the empty string.
type SettingsPatch struct {
	Name             *string
	Description      *string
	ShortDescription *string
}

// IsEmpty reports whether no supplied field carries a non-empty value.
func (p SettingsPatch) IsEmpty() bool {
	for _, f := range []*string{p.Name, p.Description, p.ShortDescription} {
		if f != nil && *f != "" {
			return false
		}
	}
	return true
}
