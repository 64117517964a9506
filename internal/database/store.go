package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrBotExists is returned by SaveBot when a bot with the same bot_id is
// already registered.
var ErrBotExists = errors.New("bot already exists")

// Store defines the interface for cache database operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// SaveBot inserts a new bot record. Returns ErrBotExists if the bot_id
	// is already registered.
	SaveBot(ctx context.Context, bot *Bot) error

	// GetBot retrieves a bot by its Telegram bot_id. Returns nil, nil if not found.
	GetBot(ctx context.Context, botID string) (*Bot, error)

	// ListBots retrieves all registered bots in insertion order.
	ListBots(ctx context.Context) ([]Bot, error)

	// TouchLastSync updates the bot's last successful sync timestamp.
	TouchLastSync(ctx context.Context, botID string, at time.Time) error

	// DeleteBot removes a bot row. Deleting settings is the caller's
	// responsibility; the store enforces no cascade.
	DeleteBot(ctx context.Context, botID string) error

	// UpsertSettings inserts or updates the (bot_id, language) settings row.
	// Nil patch fields retain the previously stored value; non-nil fields
	// overwrite it.
	UpsertSettings(ctx context.Context, botID, language string, patch SettingsPatch) error

	// GetSettings retrieves one settings row. Returns nil, nil if not found.
	GetSettings(ctx context.Context, botID, language string) (*BotSettings, error)

	// ListSettings retrieves all settings rows for a bot, one per known
	// language, in insertion order.
	ListSettings(ctx context.Context, botID string) ([]BotSettings, error)

	// DeleteSettings removes all settings rows for a bot.
	DeleteSettings(ctx context.Context, botID string) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveBot inserts a new bot record.
func (s *sqlxStore) SaveBot(ctx context.Context, bot *Bot) error {
	if bot == nil {
		return fmt.Errorf("cannot save nil bot")
	}
	if bot.BotID == "" {
		return fmt.Errorf("bot must have a non-empty bot_id")
	}
	if bot.Token == "" {
		return fmt.Errorf("bot must have a non-empty token")
	}

	if bot.CreatedAt.IsZero() {
		bot.CreatedAt = time.Now().UTC()
	}

	query := `
        INSERT INTO bots (bot_id, token, username, last_sync, created_at)
        VALUES (:bot_id, :token, :username, :last_sync, :created_at);
    `

	result, err := s.db.NamedExecContext(ctx, query, bot)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			s.logger.DebugContext(ctx, "Bot already registered", "bot_id", bot.BotID)
			return fmt.Errorf("%w: bot_id %s", ErrBotExists, bot.BotID)
		}
		s.logger.ErrorContext(ctx, "Error saving bot", "bot_id", bot.BotID, "error", err)
		return fmt.Errorf("failed to save bot %s: %w", bot.BotID, err)
	}

	if id, err := result.LastInsertId(); err == nil {
		//nolint:gosec // integer overflow conversion is acceptable here
		bot.ID = uint(id)
	} else {
		s.logger.WarnContext(ctx, "Could not retrieve last insert ID after saving bot",
			"bot_id", bot.BotID, "error", err)
	}

	s.logger.DebugContext(ctx, "Bot saved successfully", "bot_id", bot.BotID, "username", bot.Username)
	return nil
}

// GetBot retrieves a bot by its Telegram bot_id. Returns nil, nil if not found.
func (s *sqlxStore) GetBot(ctx context.Context, botID string) (*Bot, error) {
	if botID == "" {
		return nil, fmt.Errorf("bot_id cannot be empty")
	}

	var bot Bot
	query := `SELECT id, created_at, bot_id, token, username, last_sync
	          FROM bots WHERE bot_id = ?`

	err := s.db.GetContext(ctx, &bot, query, botID)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.DebugContext(ctx, "No bot found", "bot_id", botID)
		return nil, nil

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting bot", "bot_id", botID, "error", err)
		return nil, fmt.Errorf("failed to get bot %s: %w", botID, err)
	}

	return &bot, nil
}

// ListBots retrieves all registered bots in insertion order.
func (s *sqlxStore) ListBots(ctx context.Context) ([]Bot, error) {
	var bots []Bot
	query := `SELECT id, created_at, bot_id, token, username, last_sync
	          FROM bots ORDER BY id ASC`

	if err := s.db.SelectContext(ctx, &bots, query); err != nil {
		s.logger.ErrorContext(ctx, "Error listing bots", "error", err)
		return nil, fmt.Errorf("failed to list bots: %w", err)
	}

	s.logger.DebugContext(ctx, "Listed bots", "count", len(bots))
	return bots, nil
}

// TouchLastSync updates the bot's last successful sync timestamp.
func (s *sqlxStore) TouchLastSync(ctx context.Context, botID string, at time.Time) error {
	if botID == "" {
		return fmt.Errorf("bot_id cannot be empty")
	}

	query := `UPDATE bots SET last_sync = ? WHERE bot_id = ?`
	result, err := s.db.ExecContext(ctx, query, at.UTC(), botID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating last_sync", "bot_id", botID, "error", err)
		return fmt.Errorf("failed to update last_sync for bot %s: %w", botID, err)
	}

	if affected, err := result.RowsAffected(); err == nil && affected != 1 {
		s.logger.WarnContext(ctx, "Unexpected number of rows affected when updating last_sync",
			"bot_id", botID, "affected", affected)
	}

	return nil
}

// DeleteBot removes a bot row.
func (s *sqlxStore) DeleteBot(ctx context.Context, botID string) error {
	if botID == "" {
		return fmt.Errorf("bot_id cannot be empty")
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM bots WHERE bot_id = ?`, botID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting bot", "bot_id", botID, "error", err)
		return fmt.Errorf("failed to delete bot %s: %w", botID, err)
	}

	count, _ := result.RowsAffected()
	s.logger.InfoContext(ctx, "Deleted bot", "bot_id", botID, "rows", count)
	return nil
}

// UpsertSettings inserts or updates the (bot_id, language) settings row,
// merging the patch with any existing row inside a transaction.
func (s *sqlxStore) UpsertSettings(ctx context.Context, botID, language string, patch SettingsPatch) error {
	if botID == "" {
		return fmt.Errorf("bot_id cannot be empty")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for settings upsert",
			"bot_id", botID, "language", language, "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				if !errors.Is(rollbackErr, sql.ErrTxDone) {
					s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
				}
			}
		}
	}()

	merged := BotSettings{
		BotID:    botID,
		Language: language,
	}

	var existing BotSettings
	err = tx.GetContext(ctx, &existing,
		`SELECT id, bot_id, language, name, description, short_description
		 FROM bot_settings WHERE bot_id = ? AND language = ?`, botID, language)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// No prior row, patch applies to an all-empty baseline.
	case err != nil:
		s.logger.ErrorContext(ctx, "Error reading existing settings",
			"bot_id", botID, "language", language, "error", err)
		return fmt.Errorf("failed to read settings for bot %s language %q: %w", botID, language, err)
	default:
		merged.Name = existing.Name
		merged.Description = existing.Description
		merged.ShortDescription = existing.ShortDescription
	}

	if patch.Name != nil {
		merged.Name = *patch.Name
	}
	if patch.Description != nil {
		merged.Description = *patch.Description
	}
	if patch.ShortDescription != nil {
		merged.ShortDescription = *patch.ShortDescription
	}

	query := `
        INSERT INTO bot_settings (bot_id, language, name, description, short_description)
        VALUES (:bot_id, :language, :name, :description, :short_description)
        ON CONFLICT (bot_id, language) DO UPDATE SET
            name = excluded.name,
            description = excluded.description,
            short_description = excluded.short_description;
    `

	if _, err := tx.NamedExecContext(ctx, query, merged); err != nil {
		s.logger.ErrorContext(ctx, "Error upserting settings",
			"bot_id", botID, "language", language, "error", err)
		return fmt.Errorf("failed to upsert settings for bot %s language %q: %w", botID, language, err)
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit settings upsert",
			"bot_id", botID, "language", language, "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Settings upserted successfully", "bot_id", botID, "language", language)
	return nil
}

// GetSettings retrieves one settings row. Returns nil, nil if not found.
func (s *sqlxStore) GetSettings(ctx context.Context, botID, language string) (*BotSettings, error) {
	if botID == "" {
		return nil, fmt.Errorf("bot_id cannot be empty")
	}

	var settings BotSettings
	query := `SELECT id, bot_id, language, name, description, short_description
	          FROM bot_settings WHERE bot_id = ? AND language = ?`

	err := s.db.GetContext(ctx, &settings, query, botID, language)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting settings",
			"bot_id", botID, "language", language, "error", err)
		return nil, fmt.Errorf("failed to get settings for bot %s language %q: %w", botID, language, err)
	}

	return &settings, nil
}

// ListSettings retrieves all settings rows for a bot in insertion order.
func (s *sqlxStore) ListSettings(ctx context.Context, botID string) ([]BotSettings, error) {
	if botID == "" {
		return nil, fmt.Errorf("bot_id cannot be empty")
	}

	var settings []BotSettings
	query := `SELECT id, bot_id, language, name, description, short_description
	          FROM bot_settings WHERE bot_id = ? ORDER BY id ASC`

	if err := s.db.SelectContext(ctx, &settings, query, botID); err != nil {
		s.logger.ErrorContext(ctx, "Error listing settings", "bot_id", botID, "error", err)
		return nil, fmt.Errorf("failed to list settings for bot %s: %w", botID, err)
	}

	return settings, nil
}

// DeleteSettings removes all settings rows for a bot.
func (s *sqlxStore) DeleteSettings(ctx context.Context, botID string) error {
	if botID == "" {
		return fmt.Errorf("bot_id cannot be empty")
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM bot_settings WHERE bot_id = ?`, botID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting settings", "bot_id", botID, "error", err)
		return fmt.Errorf("failed to delete settings for bot %s: %w", botID, err)
	}

	count, _ := result.RowsAffected()
	s.logger.DebugContext(ctx, "Deleted settings", "bot_id", botID, "rows", count)
	return nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite.
	_, err := s.db.ExecContext(ctx, "VACUUM;")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)

	default:
		s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	}

	return nil
}
