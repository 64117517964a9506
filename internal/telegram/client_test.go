package telegram_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"botadmin/internal/config"
	"botadmin/internal/telegram"
)

// fakeAPI is an httptest-backed Telegram Bot API. Method handlers are keyed
// by method name; unhandled methods answer an API error.
type fakeAPI struct {
	mu      sync.Mutex
	calls   map[string][]map[string]string
	methods map[string]func(params map[string]string) (any, *apiError)
}

type apiError struct {
	code        int
	description string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		calls:   make(map[string][]map[string]string),
		methods: make(map[string]func(params map[string]string) (any, *apiError)),
	}
}

func (f *fakeAPI) handle(method string, fn func(params map[string]string) (any, *apiError)) {
	f.methods[method] = fn
}

func (f *fakeAPI) callsFor(method string) []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Requests arrive as POST /bot<token>/<method>.
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if len(parts) != 2 || !strings.HasPrefix(parts[0], "bot") {
		http.NotFound(w, r)
		return
	}
	method := parts[1]

	params := make(map[string]string)
	if err := r.ParseMultipartForm(1 << 20); err == nil || errors.Is(err, http.ErrNotMultipart) {
		for key, values := range r.Form {
			if len(values) > 0 {
				params[key] = values[0]
			}
		}
	}

	f.mu.Lock()
	f.calls[method] = append(f.calls[method], params)
	fn := f.methods[method]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if fn == nil {
		json.NewEncoder(w).Encode(map[string]any{
			"ok": false, "error_code": 404, "description": "method not handled",
		})
		return
	}

	result, apiErr := fn(params)
	if apiErr != nil {
		json.NewEncoder(w).Encode(map[string]any{
			"ok": false, "error_code": apiErr.code, "description": apiErr.description,
		})
		return
	}
	json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
}

func newTestClient(t *testing.T, api *fakeAPI) telegram.ProfileClient {
	t.Helper()

	ts := httptest.NewServer(api)
	t.Cleanup(ts.Close)

	factory := telegram.NewClientFactory(config.TelegramConfig{
		APIURL:         ts.URL,
		RequestTimeout: 5 * time.Second,
	}, nil)

	client, err := factory("42:token")
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}

func ok(result any) func(map[string]string) (any, *apiError) {
	return func(map[string]string) (any, *apiError) {
		return result, nil
	}
}

func TestFactoryRejectsEmptyToken(t *testing.T) {
	t.Parallel()

	factory := telegram.NewClientFactory(config.TelegramConfig{}, nil)
	if _, err := factory(""); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestFetchIdentity(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	api.handle("getMe", ok(map[string]any{
		"id": 42, "is_bot": true, "first_name": "Demo", "username": "demo",
	}))
	client := newTestClient(t, api)

	identity, err := client.FetchIdentity(context.Background())
	if err != nil {
		t.Fatalf("FetchIdentity failed: %v", err)
	}
	if identity.ID != "42" || identity.Username != "demo" {
		t.Errorf("unexpected identity: %+v", identity)
	}
}

func TestFetchIdentityUnauthorized(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	api.handle("getMe", func(map[string]string) (any, *apiError) {
		return nil, &apiError{code: 401, description: "Unauthorized"}
	})
	client := newTestClient(t, api)

	_, err := client.FetchIdentity(context.Background())
	if !errors.Is(err, telegram.ErrRemoteAuth) {
		t.Fatalf("expected ErrRemoteAuth, got %v", err)
	}
}

func TestFetchProfileMergesThreeEndpoints(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	api.handle("getMyName", ok(map[string]any{"name": "Demo EN"}))
	api.handle("getMyDescription", ok(map[string]any{"description": "An english description"}))
	api.handle("getMyShortDescription", ok(map[string]any{"short_description": "Short"}))
	client := newTestClient(t, api)

	profile, err := client.FetchProfile(context.Background(), "en")
	if err != nil {
		t.Fatalf("FetchProfile failed: %v", err)
	}
	if profile.Name != "Demo EN" || profile.Description != "An english description" || profile.ShortDescription != "Short" {
		t.Errorf("unexpected profile: %+v", profile)
	}

	for _, method := range []string{"getMyName", "getMyDescription", "getMyShortDescription"} {
		calls := api.callsFor(method)
		if len(calls) != 1 {
			t.Fatalf("expected one %s call, got %d", method, len(calls))
		}
		if calls[0]["language_code"] != "en" {
			t.Errorf("%s: expected language_code en, got %q", method, calls[0]["language_code"])
		}
	}
}

func TestFetchProfileDefaultLanguageOmitsCode(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	api.handle("getMyName", ok(map[string]any{"name": "Demo"}))
	api.handle("getMyDescription", ok(map[string]any{"description": ""}))
	api.handle("getMyShortDescription", ok(map[string]any{"short_description": ""}))
	client := newTestClient(t, api)

	profile, err := client.FetchProfile(context.Background(), "")
	if err != nil {
		t.Fatalf("FetchProfile failed: %v", err)
	}
	if profile.Name != "Demo" {
		t.Errorf("unexpected profile: %+v", profile)
	}

	calls := api.callsFor("getMyName")
	if len(calls) != 1 {
		t.Fatalf("expected one getMyName call, got %d", len(calls))
	}
	if code, present := calls[0]["language_code"]; present && code != "" {
		t.Errorf("default language must not send a code, got %q", code)
	}
}

func TestFetchProfileFailureWrapped(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	api.handle("getMyName", ok(map[string]any{"name": "Demo"}))
	api.handle("getMyDescription", func(map[string]string) (any, *apiError) {
		return nil, &apiError{code: 429, description: "Too Many Requests"}
	})
	api.handle("getMyShortDescription", ok(map[string]any{"short_description": ""}))
	client := newTestClient(t, api)

	_, err := client.FetchProfile(context.Background(), "en")
	if !errors.Is(err, telegram.ErrRemoteFetch) {
		t.Fatalf("expected ErrRemoteFetch, got %v", err)
	}
}

func TestPushProfileSendsOnlySuppliedFields(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	api.handle("setMyName", ok(true))
	api.handle("setMyDescription", ok(true))
	api.handle("setMyShortDescription", ok(true))
	client := newTestClient(t, api)

	name := "Demo EN"
	err := client.PushProfile(context.Background(), "en", telegram.ProfileUpdate{Name: &name})
	if err != nil {
		t.Fatalf("PushProfile failed: %v", err)
	}

	nameCalls := api.callsFor("setMyName")
	if len(nameCalls) != 1 {
		t.Fatalf("expected one setMyName call, got %d", len(nameCalls))
	}
	if nameCalls[0]["name"] != "Demo EN" || nameCalls[0]["language_code"] != "en" {
		t.Errorf("unexpected setMyName params: %v", nameCalls[0])
	}

	if calls := api.callsFor("setMyDescription"); len(calls) != 0 {
		t.Errorf("unsupplied description must not be pushed, got %d calls", len(calls))
	}
	if calls := api.callsFor("setMyShortDescription"); len(calls) != 0 {
		t.Errorf("unsupplied short description must not be pushed, got %d calls", len(calls))
	}
}

func TestPushProfileEmptyStringClearsField(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	api.handle("setMyDescription", ok(true))
	client := newTestClient(t, api)

	empty := ""
	err := client.PushProfile(context.Background(), "", telegram.ProfileUpdate{Description: &empty})
	if err != nil {
		t.Fatalf("PushProfile failed: %v", err)
	}

	calls := api.callsFor("setMyDescription")
	if len(calls) != 1 {
		t.Fatalf("expected one setMyDescription call, got %d", len(calls))
	}
}

func TestPushProfileRejectionSurfacesReason(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	api.handle("setMyName", func(map[string]string) (any, *apiError) {
		return nil, &apiError{code: 400, description: "BOT_NAME_TOO_LONG"}
	})
	client := newTestClient(t, api)

	name := strings.Repeat("x", 100)
	err := client.PushProfile(context.Background(), "", telegram.ProfileUpdate{Name: &name})
	if !errors.Is(err, telegram.ErrRemoteUpdate) {
		t.Fatalf("expected ErrRemoteUpdate, got %v", err)
	}
	if !strings.Contains(err.Error(), "BOT_NAME_TOO_LONG") {
		t.Errorf("expected the remote reason in the error, got %v", err)
	}
}

func TestPushProfileNoFieldsIsNoop(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	client := newTestClient(t, api)

	if err := client.PushProfile(context.Background(), "en", telegram.ProfileUpdate{}); err != nil {
		t.Fatalf("expected no-op push to succeed, got %v", err)
	}

	for _, method := range []string{"setMyName", "setMyDescription", "setMyShortDescription"} {
		if calls := api.callsFor(method); len(calls) != 0 {
			t.Errorf("expected no %s calls, got %d", method, len(calls))
		}
	}
}
