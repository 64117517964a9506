// Package syncer orchestrates registration, refresh, update, and deletion of
// managed bots, fanning per-language profile reads out to Telegram and
// merging the results into the local cache.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"botadmin/internal/config"
	"botadmin/internal/database"
	"botadmin/internal/telegram"
)

// ErrInvalidToken indicates the token was rejected while resolving the bot
// identity during registration.
var ErrInvalidToken = errors.New("invalid bot token")

// ErrDuplicateBot indicates the bot is already registered.
var ErrDuplicateBot = errors.New("bot already registered")

// ErrBotNotFound indicates no bot with the given id is registered.
var ErrBotNotFound = errors.New("bot not found")

// Result is the outcome of a registration or refresh: the bot row and all
// settings currently cached for it.
type Result struct {
	Bot      database.Bot
	Settings []database.BotSettings
}

// Syncer is the engine behind the settings API. It owns no state beyond its
// dependencies; bots are either present in the store or absent.
type Syncer struct {
	store       database.Store
	newClient   telegram.ClientFactory
	languages   []config.Language
	concurrency int
	logger      *slog.Logger
}

// New creates a Syncer. concurrency bounds the per-language fan-out width;
// values below 1 are raised to 1.
func New(
	store database.Store,
	newClient telegram.ClientFactory,
	languages []config.Language,
	concurrency int,
	logger *slog.Logger,
) *Syncer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Syncer{
		store:       store,
		newClient:   newClient,
		languages:   languages,
		concurrency: concurrency,
		logger:      logger.With("component", "syncer"),
	}
}

// RegisterBot validates the token against Telegram, inserts the bot, and
// pulls its profile for the default language plus every configured language.
// A fetch failure for a configured language is logged and skipped;
// registration still succeeds. A default-profile fetch failure aborts, and
// the just-inserted bot row is removed again so the token can be retried.
func (s *Syncer) RegisterBot(ctx context.Context, token string) (*Result, error) {
	client, err := s.newClient(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	identity, err := client.FetchIdentity(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	existing, err := s.store.GetBot(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: bot_id %s", ErrDuplicateBot, identity.ID)
	}

	bot := &database.Bot{
		BotID:    identity.ID,
		Token:    token,
		Username: identity.Username,
	}
	if err := s.store.SaveBot(ctx, bot); err != nil {
		if errors.Is(err, database.ErrBotExists) {
			return nil, fmt.Errorf("%w: bot_id %s", ErrDuplicateBot, identity.ID)
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "Registered bot, pulling profiles",
		"bot_id", identity.ID, "username", identity.Username, "languages", len(s.languages))

	// The default profile row must exist after registration, even if every
	// field is empty.
	defaultProfile, err := client.FetchProfile(ctx, "")
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to fetch default profile, rolling back registration",
			"bot_id", identity.ID, "error", err)
		if delErr := s.store.DeleteBot(ctx, identity.ID); delErr != nil {
			s.logger.ErrorContext(ctx, "Failed to remove bot after aborted registration",
				"bot_id", identity.ID, "error", delErr)
		}
		return nil, err
	}
	if err := s.store.UpsertSettings(ctx, identity.ID, "", fullPatch(defaultProfile)); err != nil {
		return nil, err
	}

	fetched := s.fetchLanguages(ctx, client, identity.ID)
	for _, f := range fetched {
		if err := s.store.UpsertSettings(ctx, identity.ID, f.language, fullPatch(f.profile)); err != nil {
			return nil, err
		}
	}

	if err := s.store.TouchLastSync(ctx, identity.ID, time.Now().UTC()); err != nil {
		return nil, err
	}

	return s.result(ctx, identity.ID)
}

// RefreshBot re-pulls the default profile and every configured language for
// an already-registered bot. Unlike registration, any fetch failure aborts
// the whole refresh; rows for languages no longer returning data are left
// untouched.
func (s *Syncer) RefreshBot(ctx context.Context, botID string) (*Result, error) {
	bot, err := s.store.GetBot(ctx, botID)
	if err != nil {
		return nil, err
	}
	if bot == nil {
		return nil, fmt.Errorf("%w: bot_id %s", ErrBotNotFound, botID)
	}

	client, err := s.newClient(bot.Token)
	if err != nil {
		return nil, err
	}

	if _, err := client.FetchIdentity(ctx); err != nil {
		return nil, err
	}

	defaultProfile, err := client.FetchProfile(ctx, "")
	if err != nil {
		return nil, err
	}

	fetched, err := s.fetchLanguagesStrict(ctx, client)
	if err != nil {
		return nil, err
	}

	// All fetches succeeded; only now touch the cache.
	if err := s.store.UpsertSettings(ctx, botID, "", fullPatch(defaultProfile)); err != nil {
		return nil, err
	}
	for _, f := range fetched {
		if err := s.store.UpsertSettings(ctx, botID, f.language, fullPatch(f.profile)); err != nil {
			return nil, err
		}
	}

	if err := s.store.TouchLastSync(ctx, botID, time.Now().UTC()); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Refreshed bot", "bot_id", botID, "languages_stored", len(fetched))
	return s.result(ctx, botID)
}

// UpdateSettings pushes the supplied fields to Telegram for one language and,
// only after every push succeeded, stores them in the cache. Fields the
// caller did not supply are neither pushed nor stored; the UI's
// default-language fallback stays a display concern.
func (s *Syncer) UpdateSettings(ctx context.Context, botID, language string, patch database.SettingsPatch) error {
	bot, err := s.store.GetBot(ctx, botID)
	if err != nil {
		return err
	}
	if bot == nil {
		return fmt.Errorf("%w: bot_id %s", ErrBotNotFound, botID)
	}

	client, err := s.newClient(bot.Token)
	if err != nil {
		return err
	}

	update := telegram.ProfileUpdate{
		Name:             patch.Name,
		Description:      patch.Description,
		ShortDescription: patch.ShortDescription,
	}
	if err := client.PushProfile(ctx, language, update); err != nil {
		return err
	}

	if err := s.store.UpsertSettings(ctx, botID, language, patch); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Updated bot settings", "bot_id", botID, "language", language)
	return nil
}

// DeleteBot removes a bot and its settings from the cache. Telegram has no
// remote deletion for bot profiles, so this is local only. Settings are
// deleted first; the store enforces no cascade.
func (s *Syncer) DeleteBot(ctx context.Context, botID string) error {
	bot, err := s.store.GetBot(ctx, botID)
	if err != nil {
		return err
	}
	if bot == nil {
		return fmt.Errorf("%w: bot_id %s", ErrBotNotFound, botID)
	}

	if err := s.store.DeleteSettings(ctx, botID); err != nil {
		return err
	}
	if err := s.store.DeleteBot(ctx, botID); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Deleted bot", "bot_id", botID)
	return nil
}

// RefreshAll refreshes every registered bot, logging and skipping bots whose
// refresh fails. Used by the scheduled auto-refresh task.
func (s *Syncer) RefreshAll(ctx context.Context) error {
	bots, err := s.store.ListBots(ctx)
	if err != nil {
		return err
	}

	var failed int
	for _, bot := range bots {
		if _, err := s.RefreshBot(ctx, bot.BotID); err != nil {
			s.logger.WarnContext(ctx, "Scheduled refresh failed for bot",
				"bot_id", bot.BotID, "error", err)
			failed++
		}
	}

	s.logger.InfoContext(ctx, "Refreshed all bots", "total", len(bots), "failed", failed)
	if failed > 0 {
		return fmt.Errorf("refresh failed for %d of %d bots", failed, len(bots))
	}
	return nil
}

type fetchedProfile struct {
	language string
	profile  telegram.Profile
}

// fetchLanguages pulls the profile for every configured language with a
// bounded fan-out. Fetch failures are logged and the language skipped.
// Languages whose profile is entirely empty are omitted so the cache is not
// cluttered with rows the bot owner never configured.
func (s *Syncer) fetchLanguages(ctx context.Context, client telegram.ProfileClient, botID string) []fetchedProfile {
	var (
		mu      sync.Mutex
		results []fetchedProfile
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, lang := range s.languages {
		code := lang.Code
		g.Go(func() error {
			profile, err := client.FetchProfile(gCtx, code)
			if err != nil {
				s.logger.WarnContext(gCtx, "Failed to fetch profile for language, skipping",
					"bot_id", botID, "language", code, "error", err)
				return nil
			}
			if profile == (telegram.Profile{}) {
				return nil
			}
			mu.Lock()
			results = append(results, fetchedProfile{language: code, profile: profile})
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait() // goroutines never return errors on this path

	return results
}

// fetchLanguagesStrict is the refresh-path variant: the first fetch failure
// cancels the remaining fetches and aborts.
func (s *Syncer) fetchLanguagesStrict(ctx context.Context, client telegram.ProfileClient) ([]fetchedProfile, error) {
	var (
		mu      sync.Mutex
		results []fetchedProfile
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, lang := range s.languages {
		code := lang.Code
		g.Go(func() error {
			profile, err := client.FetchProfile(gCtx, code)
			if err != nil {
				return fmt.Errorf("failed to fetch profile for language %q: %w", code, err)
			}
			if profile == (telegram.Profile{}) {
				return nil
			}
			mu.Lock()
			results = append(results, fetchedProfile{language: code, profile: profile})
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Syncer) result(ctx context.Context, botID string) (*Result, error) {
	bot, err := s.store.GetBot(ctx, botID)
	if err != nil {
		return nil, err
	}
	if bot == nil {
		return nil, fmt.Errorf("%w: bot_id %s", ErrBotNotFound, botID)
	}

	settings, err := s.store.ListSettings(ctx, botID)
	if err != nil {
		return nil, err
	}

	return &Result{Bot: *bot, Settings: settings}, nil
}

// fullPatch converts a fetched profile into a patch that overwrites all
// three fields, empty values included. Sync always has the complete remote
// picture for a language, so nothing should be retained from before.
func fullPatch(p telegram.Profile) database.SettingsPatch {
	return database.SettingsPatch{
		Name:             &p.Name,
		Description:      &p.Description,
		ShortDescription: &p.ShortDescription,
	}
}
