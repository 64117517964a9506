package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"botadmin/internal/config"
	"botadmin/internal/database"
	"botadmin/internal/syncer"
	"botadmin/internal/telegram"
)

// Engine is the sync-engine surface the handlers depend on.
type Engine interface {
	RegisterBot(ctx context.Context, token string) (*syncer.Result, error)
	RefreshBot(ctx context.Context, botID string) (*syncer.Result, error)
	UpdateSettings(ctx context.Context, botID, language string, patch database.SettingsPatch) error
	DeleteBot(ctx context.Context, botID string) error
}

// Handlers holds the settings API endpoints and their dependencies.
type Handlers struct {
	engine    Engine
	store     database.Store
	languages []config.Language
	staticDir string
	logger    *slog.Logger
}

// NewHandlers creates the settings API handler set. staticDir may be empty
// to disable UI serving.
func NewHandlers(
	engine Engine,
	store database.Store,
	languages []config.Language,
	staticDir string,
	logger *slog.Logger,
) *Handlers {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handlers{
		engine:    engine,
		store:     store,
		languages: languages,
		staticDir: staticDir,
		logger:    logger.With("component", "api"),
	}
}

// Register attaches all routes to the mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/languages", h.listLanguages)
	mux.HandleFunc("GET /api/bots", h.listBots)
	mux.HandleFunc("POST /api/bots", h.registerBot)
	mux.HandleFunc("GET /api/bots/{id}/settings", h.getBotSettings)
	mux.HandleFunc("POST /api/bots/{id}/settings", h.updateBotSettings)
	mux.HandleFunc("POST /api/bots/{id}/refresh", h.refreshBot)
	mux.HandleFunc("DELETE /api/bots/{id}", h.deleteBot)
	mux.HandleFunc("GET /api/health", h.health)

	if h.staticDir != "" {
		mux.Handle("/", newSPAHandler(h.staticDir))
	}
}

type botJSON struct {
	BotID    string     `json:"bot_id"`
	Username string     `json:"username"`
	LastSync *time.Time `json:"last_sync"`
}

type settingsJSON struct {
	Language         string `json:"language"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	ShortDescription string `json:"short_description"`
}

type syncResultJSON struct {
	Success  bool           `json:"success"`
	Bot      botJSON        `json:"bot"`
	Settings []settingsJSON `json:"settings"`
}

type successJSON struct {
	Success bool `json:"success"`
}

type errorJSON struct {
	Error string `json:"error"`
}

func toBotJSON(bot database.Bot) botJSON {
	out := botJSON{
		BotID:    bot.BotID,
		Username: bot.Username,
	}
	if bot.LastSync.Valid {
		t := bot.LastSync.Time
		out.LastSync = &t
	}
	return out
}

func toSettingsJSON(settings []database.BotSettings) []settingsJSON {
	out := make([]settingsJSON, 0, len(settings))
	for _, s := range settings {
		out = append(out, settingsJSON{
			Language:         s.Language,
			Name:             s.Name,
			Description:      s.Description,
			ShortDescription: s.ShortDescription,
		})
	}
	return out
}

func (h *Handlers) listLanguages(w http.ResponseWriter, r *http.Request) {
	langs := h.languages
	if langs == nil {
		langs = []config.Language{}
	}
	h.writeJSON(w, r, http.StatusOK, langs)
}

func (h *Handlers) listBots(w http.ResponseWriter, r *http.Request) {
	bots, err := h.store.ListBots(r.Context())
	if err != nil {
		h.writeError(w, r, err, http.StatusInternalServerError)
		return
	}

	out := make([]botJSON, 0, len(bots))
	for _, b := range bots {
		out = append(out, toBotJSON(b))
	}
	h.writeJSON(w, r, http.StatusOK, out)
}

func (h *Handlers) registerBot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, errorJSON{Error: "invalid request body"})
		return
	}
	if req.Token == "" {
		h.writeJSON(w, r, http.StatusBadRequest, errorJSON{Error: "bot token is required"})
		return
	}

	result, err := h.engine.RegisterBot(r.Context(), req.Token)
	if err != nil {
		h.writeError(w, r, err, http.StatusBadRequest)
		return
	}

	h.writeJSON(w, r, http.StatusOK, syncResultJSON{
		Success:  true,
		Bot:      toBotJSON(result.Bot),
		Settings: toSettingsJSON(result.Settings),
	})
}

func (h *Handlers) getBotSettings(w http.ResponseWriter, r *http.Request) {
	botID := r.PathValue("id")

	bot, err := h.store.GetBot(r.Context(), botID)
	if err != nil {
		h.writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	if bot == nil {
		h.writeJSON(w, r, http.StatusNotFound, errorJSON{Error: "bot not found"})
		return
	}

	settings, err := h.store.ListSettings(r.Context(), botID)
	if err != nil {
		h.writeError(w, r, err, http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, r, http.StatusOK, toSettingsJSON(settings))
}

func (h *Handlers) updateBotSettings(w http.ResponseWriter, r *http.Request) {
	botID := r.PathValue("id")

	var req struct {
		Language         string  `json:"language"`
		Name             *string `json:"name"`
		Description      *string `json:"description"`
		ShortDescription *string `json:"short_description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, errorJSON{Error: "invalid request body"})
		return
	}

	patch := database.SettingsPatch{
		Name:             req.Name,
		Description:      req.Description,
		ShortDescription: req.ShortDescription,
	}

	if err := h.engine.UpdateSettings(r.Context(), botID, req.Language, patch); err != nil {
		h.writeError(w, r, err, http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, r, http.StatusOK, successJSON{Success: true})
}

func (h *Handlers) refreshBot(w http.ResponseWriter, r *http.Request) {
	botID := r.PathValue("id")

	result, err := h.engine.RefreshBot(r.Context(), botID)
	if err != nil {
		h.writeError(w, r, err, http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, r, http.StatusOK, syncResultJSON{
		Success:  true,
		Bot:      toBotJSON(result.Bot),
		Settings: toSettingsJSON(result.Settings),
	})
}

func (h *Handlers) deleteBot(w http.ResponseWriter, r *http.Request) {
	botID := r.PathValue("id")

	if err := h.engine.DeleteBot(r.Context(), botID); err != nil {
		h.writeError(w, r, err, http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, r, http.StatusOK, successJSON{Success: true})
}

func (h *Handlers) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to encode response", "path", r.URL.Path, "error", err)
	}
}

// writeError maps domain errors to HTTP responses. Remote rejections surface
// the Telegram-reported reason verbatim; storage and other internal failures
// are logged in full but answered with a generic message.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error, fallback int) {
	switch {
	case errors.Is(err, syncer.ErrBotNotFound):
		h.writeJSON(w, r, http.StatusNotFound, errorJSON{Error: "bot not found"})

	case errors.Is(err, syncer.ErrInvalidToken), errors.Is(err, syncer.ErrDuplicateBot):
		h.writeJSON(w, r, http.StatusBadRequest, errorJSON{Error: err.Error()})

	case errors.Is(err, telegram.ErrRemoteAuth),
		errors.Is(err, telegram.ErrRemoteUpdate),
		errors.Is(err, telegram.ErrRemoteFetch):
		h.writeJSON(w, r, fallback, errorJSON{Error: err.Error()})

	default:
		h.logger.ErrorContext(r.Context(), "Internal error handling request",
			"path", r.URL.Path, "error", err)
		h.writeJSON(w, r, http.StatusInternalServerError, errorJSON{Error: "internal error"})
	}
}
