// Package tasks implements the scheduled background tasks of the bot
// profile manager: cache database maintenance and periodic re-sync of every
// registered bot.
package tasks

import (
	"log/slog"

	"botadmin/internal/database"
	"botadmin/internal/syncer"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Syncer *syncer.Syncer
}
