// Package telegram wraps the Telegram bot profile API (getMe, getMy*/setMy*
// endpoints) behind a small per-token client used by the sync engine.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-telegram/bot"
	"golang.org/x/sync/errgroup"

	"botadmin/internal/config"
)

// ErrRemoteAuth indicates Telegram rejected the bot token.
var ErrRemoteAuth = errors.New("telegram rejected the token")

// ErrRemoteUpdate indicates Telegram rejected a profile write. The wrapped
// message carries the remote-reported reason.
var ErrRemoteUpdate = errors.New("telegram rejected the update")

// ErrRemoteFetch indicates a profile read was rejected or failed.
var ErrRemoteFetch = errors.New("telegram profile fetch failed")

// Identity is the bot identity reported by getMe.
type Identity struct {
	ID       string
	Username string
}

// Profile is one localized profile snapshot. Fields unset on the remote side
// come back as empty strings.
type Profile struct {
	Name             string
	Description      string
	ShortDescription string
}

// ProfileUpdate carries a partial profile write. Nil fields are not sent,
// leaving the remote value untouched.
type ProfileUpdate struct {
	Name             *string
	Description      *string
	ShortDescription *string
}

// ProfileClient talks to the Telegram profile endpoints for one bot token.
type ProfileClient interface {
	// FetchIdentity resolves the token to the bot's id and username.
	FetchIdentity(ctx context.Context) (Identity, error)

	// FetchProfile reads name, description, and short description for one
	// language code. The empty code addresses the default profile.
	FetchProfile(ctx context.Context, language string) (Profile, error)

	// PushProfile writes the supplied fields for one language code.
	PushProfile(ctx context.Context, language string, update ProfileUpdate) error
}

// ClientFactory builds a ProfileClient for a bot token. The sync engine
// depends on this indirection so tests can substitute fakes.
type ClientFactory func(token string) (ProfileClient, error)

// NewClientFactory returns a ClientFactory backed by the go-telegram/bot
// library, pointed at the configured API URL with a per-call timeout.
func NewClientFactory(cfg config.TelegramConfig, logger *slog.Logger) ClientFactory {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "telegram_client")

	return func(token string) (ProfileClient, error) {
		if token == "" {
			return nil, fmt.Errorf("telegram bot token cannot be empty")
		}

		opts := []bot.Option{
			bot.WithSkipGetMe(),
		}
		if cfg.APIURL != "" {
			opts = append(opts, bot.WithServerURL(cfg.APIURL))
		}

		b, err := bot.New(token, opts...)
		if err != nil {
			log.Error("Failed to create Telegram bot instance", "error", err)
			return nil, fmt.Errorf("failed to create telegram bot: %w", err)
		}

		return &profileClient{
			bot:     b,
			timeout: cfg.RequestTimeout,
			logger:  log,
		}, nil
	}
}

type profileClient struct {
	bot     *bot.Bot
	timeout time.Duration
	logger  *slog.Logger
}

// callCtx derives a per-call context so a hung remote call cannot stall a
// whole registration or refresh.
func (c *profileClient) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *profileClient) FetchIdentity(ctx context.Context) (Identity, error) {
	callCtx, cancel := c.callCtx(ctx)
	defer cancel()

	user, err := c.bot.GetMe(callCtx)
	if err != nil {
		c.logger.DebugContext(ctx, "getMe failed", "error", err)
		return Identity{}, fmt.Errorf("%w: %v", ErrRemoteAuth, err)
	}

	return Identity{
		ID:       strconv.FormatInt(user.ID, 10),
		Username: user.Username,
	}, nil
}

func (c *profileClient) FetchProfile(ctx context.Context, language string) (Profile, error) {
	var profile Profile

	// The three profile endpoints are independent; fetch them concurrently
	// and join before returning.
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		callCtx, cancel := c.callCtx(gCtx)
		defer cancel()

		name, err := c.bot.GetMyName(callCtx, &bot.GetMyNameParams{LanguageCode: language})
		if err != nil {
			return fmt.Errorf("%w: failed to get name for language %q: %v", ErrRemoteFetch, language, err)
		}
		profile.Name = name.Name
		return nil
	})

	g.Go(func() error {
		callCtx, cancel := c.callCtx(gCtx)
		defer cancel()

		desc, err := c.bot.GetMyDescription(callCtx, &bot.GetMyDescriptionParams{LanguageCode: language})
		if err != nil {
			return fmt.Errorf("%w: failed to get description for language %q: %v", ErrRemoteFetch, language, err)
		}
		profile.Description = desc.Description
		return nil
	})

	g.Go(func() error {
		callCtx, cancel := c.callCtx(gCtx)
		defer cancel()

		short, err := c.bot.GetMyShortDescription(callCtx, &bot.GetMyShortDescriptionParams{LanguageCode: language})
		if err != nil {
			return fmt.Errorf("%w: failed to get short description for language %q: %v", ErrRemoteFetch, language, err)
		}
		profile.ShortDescription = short.ShortDescription
		return nil
	})

	if err := g.Wait(); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

func (c *profileClient) PushProfile(ctx context.Context, language string, update ProfileUpdate) error {
	g, gCtx := errgroup.WithContext(ctx)

	if update.Name != nil {
		name := *update.Name
		g.Go(func() error {
			callCtx, cancel := c.callCtx(gCtx)
			defer cancel()

			if _, err := c.bot.SetMyName(callCtx, &bot.SetMyNameParams{
				Name:         name,
				LanguageCode: language,
			}); err != nil {
				return fmt.Errorf("%w: failed to set name: %v", ErrRemoteUpdate, err)
			}
			return nil
		})
	}

	if update.Description != nil {
		description := *update.Description
		g.Go(func() error {
			callCtx, cancel := c.callCtx(gCtx)
			defer cancel()

			if _, err := c.bot.SetMyDescription(callCtx, &bot.SetMyDescriptionParams{
				Description:  description,
				LanguageCode: language,
			}); err != nil {
				return fmt.Errorf("%w: failed to set description: %v", ErrRemoteUpdate, err)
			}
			return nil
		})
	}

	if update.ShortDescription != nil {
		short := *update.ShortDescription
		g.Go(func() error {
			callCtx, cancel := c.callCtx(gCtx)
			defer cancel()

			if _, err := c.bot.SetMyShortDescription(callCtx, &bot.SetMyShortDescriptionParams{
				ShortDescription: short,
				LanguageCode:     language,
			}); err != nil {
				return fmt.Errorf("%w: failed to set short description: %v", ErrRemoteUpdate, err)
			}
			return nil
		})
	}

	return g.Wait()
}
