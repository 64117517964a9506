package database_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"botadmin/internal/database"
)

func newTestStore(t *testing.T) database.Store {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "bots.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })

	return database.NewStore(db, nil)
}

func strPtr(s string) *string {
	return &s
}

func TestSaveBotAndGetBot(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	bot := &database.Bot{BotID: "42", Token: "42:token", Username: "demo"}
	if err := store.SaveBot(ctx, bot); err != nil {
		t.Fatalf("SaveBot failed: %v", err)
	}

	got, err := store.GetBot(ctx, "42")
	if err != nil {
		t.Fatalf("GetBot failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected bot, got nil")
	}
	if got.BotID != "42" || got.Token != "42:token" || got.Username != "demo" {
		t.Errorf("unexpected bot: %+v", got)
	}
	if got.LastSync.Valid {
		t.Error("last_sync should be null before the first sync")
	}
}

func TestSaveBotDuplicate(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveBot(ctx, &database.Bot{BotID: "42", Token: "a", Username: "demo"}); err != nil {
		t.Fatalf("SaveBot failed: %v", err)
	}

	err := store.SaveBot(ctx, &database.Bot{BotID: "42", Token: "b", Username: "other"})
	if err == nil {
		t.Fatal("expected error for duplicate bot_id")
	}
	if !errors.Is(err, database.ErrBotExists) {
		t.Errorf("expected ErrBotExists, got %v", err)
	}

	bots, err := store.ListBots(ctx)
	if err != nil {
		t.Fatalf("ListBots failed: %v", err)
	}
	if len(bots) != 1 {
		t.Errorf("expected exactly one bot row, got %d", len(bots))
	}
}

func TestGetBotMissing(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	got, err := store.GetBot(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetBot failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing bot, got %+v", got)
	}
}

func TestListBotsInsertionOrder(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"3", "1", "2"} {
		if err := store.SaveBot(ctx, &database.Bot{BotID: id, Token: id + ":t", Username: "bot" + id}); err != nil {
			t.Fatalf("SaveBot(%s) failed: %v", id, err)
		}
	}

	bots, err := store.ListBots(ctx)
	if err != nil {
		t.Fatalf("ListBots failed: %v", err)
	}

	want := []string{"3", "1", "2"}
	if len(bots) != len(want) {
		t.Fatalf("expected %d bots, got %d", len(want), len(bots))
	}
	for i, id := range want {
		if bots[i].BotID != id {
			t.Errorf("position %d: expected bot_id %s, got %s", i, id, bots[i].BotID)
		}
	}
}

func TestTouchLastSync(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveBot(ctx, &database.Bot{BotID: "42", Token: "t", Username: "demo"}); err != nil {
		t.Fatalf("SaveBot failed: %v", err)
	}

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := store.TouchLastSync(ctx, "42", at); err != nil {
		t.Fatalf("TouchLastSync failed: %v", err)
	}

	got, err := store.GetBot(ctx, "42")
	if err != nil {
		t.Fatalf("GetBot failed: %v", err)
	}
	if !got.LastSync.Valid {
		t.Fatal("expected last_sync to be set")
	}
	if !got.LastSync.Time.Equal(at) {
		t.Errorf("expected last_sync %v, got %v", at, got.LastSync.Time)
	}
}

func TestUpsertSettingsMergesUnsuppliedFields(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	full := database.SettingsPatch{
		Name:             strPtr("Demo"),
		Description:      strPtr("A demo bot"),
		ShortDescription: strPtr("Demo"),
	}
	if err := store.UpsertSettings(ctx, "42", "en", full); err != nil {
		t.Fatalf("UpsertSettings failed: %v", err)
	}

	// Supplying only the name must retain description and short description.
	if err := store.UpsertSettings(ctx, "42", "en", database.SettingsPatch{Name: strPtr("X")}); err != nil {
		t.Fatalf("UpsertSettings failed: %v", err)
	}

	got, err := store.GetSettings(ctx, "42", "en")
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected settings row, got nil")
	}
	if got.Name != "X" {
		t.Errorf("expected name X, got %q", got.Name)
	}
	if got.Description != "A demo bot" {
		t.Errorf("expected description retained, got %q", got.Description)
	}
	if got.ShortDescription != "Demo" {
		t.Errorf("expected short description retained, got %q", got.ShortDescription)
	}
}

func TestUpsertSettingsSuppliedEmptyOverwrites(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.UpsertSettings(ctx, "42", "", database.SettingsPatch{Name: strPtr("Demo")}); err != nil {
		t.Fatalf("UpsertSettings failed: %v", err)
	}

	// A supplied empty string is a real value, not "unsupplied".
	if err := store.UpsertSettings(ctx, "42", "", database.SettingsPatch{Name: strPtr("")}); err != nil {
		t.Fatalf("UpsertSettings failed: %v", err)
	}

	got, err := store.GetSettings(ctx, "42", "")
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if got.Name != "" {
		t.Errorf("expected name cleared, got %q", got.Name)
	}
}

func TestUpsertSettingsScopedToLanguage(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.UpsertSettings(ctx, "42", "", database.SettingsPatch{Name: strPtr("Demo")}); err != nil {
		t.Fatalf("UpsertSettings failed: %v", err)
	}
	if err := store.UpsertSettings(ctx, "42", "en", database.SettingsPatch{Name: strPtr("Demo EN")}); err != nil {
		t.Fatalf("UpsertSettings failed: %v", err)
	}

	defaultRow, err := store.GetSettings(ctx, "42", "")
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if defaultRow.Name != "Demo" {
		t.Errorf("default row must be untouched by the en write, got name %q", defaultRow.Name)
	}

	enRow, err := store.GetSettings(ctx, "42", "en")
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if enRow.Name != "Demo EN" || enRow.Description != "" || enRow.ShortDescription != "" {
		t.Errorf("unexpected en row: %+v", enRow)
	}
}

func TestListSettingsInsertionOrder(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	for _, lang := range []string{"", "ru", "en"} {
		if err := store.UpsertSettings(ctx, "42", lang, database.SettingsPatch{Name: strPtr("n-" + lang)}); err != nil {
			t.Fatalf("UpsertSettings(%q) failed: %v", lang, err)
		}
	}

	settings, err := store.ListSettings(ctx, "42")
	if err != nil {
		t.Fatalf("ListSettings failed: %v", err)
	}

	want := []string{"", "ru", "en"}
	if len(settings) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(settings))
	}
	for i, lang := range want {
		if settings[i].Language != lang {
			t.Errorf("position %d: expected language %q, got %q", i, lang, settings[i].Language)
		}
	}
}

func TestDeleteBotAndSettings(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveBot(ctx, &database.Bot{BotID: "42", Token: "t", Username: "demo"}); err != nil {
		t.Fatalf("SaveBot failed: %v", err)
	}
	if err := store.UpsertSettings(ctx, "42", "", database.SettingsPatch{Name: strPtr("Demo")}); err != nil {
		t.Fatalf("UpsertSettings failed: %v", err)
	}

	if err := store.DeleteSettings(ctx, "42"); err != nil {
		t.Fatalf("DeleteSettings failed: %v", err)
	}
	if err := store.DeleteBot(ctx, "42"); err != nil {
		t.Fatalf("DeleteBot failed: %v", err)
	}

	bots, err := store.ListBots(ctx)
	if err != nil {
		t.Fatalf("ListBots failed: %v", err)
	}
	if len(bots) != 0 {
		t.Errorf("expected no bots, got %d", len(bots))
	}

	settings, err := store.ListSettings(ctx, "42")
	if err != nil {
		t.Fatalf("ListSettings failed: %v", err)
	}
	if len(settings) != 0 {
		t.Errorf("expected no settings, got %d", len(settings))
	}
}

func TestSettingsPatchIsEmpty(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		patch    database.SettingsPatch
		expected bool
	}{
		{name: "no fields", patch: database.SettingsPatch{}, expected: true},
		{name: "supplied empty strings", patch: database.SettingsPatch{Name: strPtr(""), Description: strPtr("")}, expected: true},
		{name: "non-empty name", patch: database.SettingsPatch{Name: strPtr("x")}, expected: false},
		{name: "non-empty short description", patch: database.SettingsPatch{ShortDescription: strPtr("x")}, expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := tc.patch.IsEmpty(); got != tc.expected {
				t.Errorf("IsEmpty() = %v, expected %v", got, tc.expected)
			}
		})
	}
}
