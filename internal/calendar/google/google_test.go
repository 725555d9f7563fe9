package google_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/tidewatch/tidewatch/internal/calendar"
	"github.com/tidewatch/tidewatch/internal/calendar/google"
	"github.com/tidewatch/tidewatch/internal/calendar/tokenstore"
	"github.com/tidewatch/tidewatch/internal/source"
)

func fakeGoogle(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "fresh-token",
			"refresh_token": "refresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	})
	mux.HandleFunc("/calendars/primary", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer fresh-token", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "me@gmail.com", "summary": "me@gmail.com"})
	})
	mux.HandleFunc("/calendars/primary/events", func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer good":
		case "Bearer revoked":
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": 401, "message": "Invalid Credentials"}})
			return
		default:
			t.Errorf("unexpected authorization %q", r.Header.Get("Authorization"))
		}
		assert.Equal(t, "true", r.URL.Query().Get("singleEvents"))
		assert.Equal(t, "startTime", r.URL.Query().Get("orderBy"))
		assert.NotEmpty(t, r.URL.Query().Get("timeMin"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{
					"summary":  "Harbor meeting",
					"location": "Pier 1",
					"start":    map[string]string{"dateTime": "2025-01-15T09:00:00-08:00"},
					"end":      map[string]string{"dateTime": "2025-01-15T10:00:00-08:00"},
				},
				{
					"summary": "Holiday",
					"start":   map[string]string{"date": "2025-01-15"},
					"end":     map[string]string{"date": "2025-01-16"},
				},
				{
					"summary": "Cancelled",
					"status":  "cancelled",
					"start":   map[string]string{"date": "2025-01-15"},
				},
			},
		})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func oauthConfig(server *httptest.Server) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:  server.URL + "/auth",
			TokenURL: server.URL + "/token",
		},
	}
}

func validAccount(email, token string) *tokenstore.Account {
	return &tokenstore.Account{Email: email, AccessToken: token, TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}
}

func TestBackend_NoAccounts(t *testing.T) {
	server := fakeGoogle(t)
	backend := google.NewBackend(google.BackendConfig{
		OAuth:  oauthConfig(server),
		Store:  tokenstore.NewMemoryStore(),
		Logger: zerolog.Nop(),
	})

	_, err := backend.ListEvents(context.Background(), time.Now(), time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, calendar.ErrNoAccounts)
}

func TestBackend_ListEvents(t *testing.T) {
	server := fakeGoogle(t)
	store := tokenstore.NewMemoryStore()
	account := validAccount("me@gmail.com", "good")
	account.Color = "#ffa600"
	require.NoError(t, store.Save(context.Background(), account))

	backend := google.NewBackend(google.BackendConfig{
		OAuth:       oauthConfig(server),
		Store:       store,
		APIEndpoint: server.URL + "/",
		HTTPClient:  server.Client(),
		Logger:      zerolog.Nop(),
	})

	from := time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)
	events, err := backend.ListEvents(context.Background(), from, from.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, calendar.Event{
		Title:         "Harbor meeting",
		Start:         "2025-01-15T09:00:00-08:00",
		End:           "2025-01-15T10:00:00-08:00",
		Location:      "Pier 1",
		CalendarLabel: "me@gmail.com",
		CalendarColor: "#ffa600",
	}, events[0])
	assert.True(t, events[1].AllDay)
	assert.Equal(t, "2025-01-16", events[1].End)
}

func TestBackend_PartialAndTotalFailure(t *testing.T) {
	server := fakeGoogle(t)
	ctx := context.Background()

	newBackend := func(store tokenstore.Store) *google.Backend {
		return google.NewBackend(google.BackendConfig{
			OAuth:       oauthConfig(server),
			Store:       store,
			APIEndpoint: server.URL + "/",
			Logger:      zerolog.Nop(),
		})
	}

	mixed := tokenstore.NewMemoryStore()
	require.NoError(t, mixed.Save(ctx, validAccount("a@gmail.com", "good")))
	require.NoError(t, mixed.Save(ctx, validAccount("b@gmail.com", "revoked")))

	events, err := newBackend(mixed).ListEvents(ctx, time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, events, 2)

	revoked := tokenstore.NewMemoryStore()
	require.NoError(t, revoked.Save(ctx, validAccount("b@gmail.com", "revoked")))

	_, err = newBackend(revoked).ListEvents(ctx, time.Now(), time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.Equal(t, source.KindAuth, source.Classify(err).Kind)
}

func TestSignIn(t *testing.T) {
	server := fakeGoogle(t)
	store := tokenstore.NewMemoryStore()

	account, err := google.SignIn(context.Background(), google.SignInConfig{
		OAuth:       oauthConfig(server),
		Store:       store,
		ListenAddr:  "127.0.0.1:0",
		Timeout:     5 * time.Second,
		APIEndpoint: server.URL + "/",
		Label:       "Personal",
		OpenURL: func(authURL string) error {
			u, err := url.Parse(authURL)
			if err != nil {
				return err
			}
			redirect := u.Query().Get("redirect_uri") + "?code=the-code&state=" + url.QueryEscape(u.Query().Get("state"))
			go func() {
				resp, err := http.Get(redirect) //nolint:noctx // test callback
				if err == nil {
					resp.Body.Close()
				}
			}()
			return nil
		},
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	assert.Equal(t, "me@gmail.com", account.Email)
	assert.Equal(t, "fresh-token", account.AccessToken)
	assert.Equal(t, "refresh", account.RefreshToken)

	stored, err := store.Get(context.Background(), "me@gmail.com")
	require.NoError(t, err)
	assert.Equal(t, "Personal", stored.Label)
}

func TestSignIn_Denied(t *testing.T) {
	server := fakeGoogle(t)

	_, err := google.SignIn(context.Background(), google.SignInConfig{
		OAuth:      oauthConfig(server),
		ListenAddr: "127.0.0.1:0",
		Timeout:    5 * time.Second,
		OpenURL: func(authURL string) error {
			u, _ := url.Parse(authURL)
			redirect := u.Query().Get("redirect_uri") + "?error=access_denied&state=" + url.QueryEscape(u.Query().Get("state"))
			go func() {
				if resp, err := http.Get(redirect); err == nil { //nolint:noctx // test callback
					resp.Body.Close()
				}
			}()
			return nil
		},
		Logger: zerolog.Nop(),
	})
	assert.ErrorIs(t, err, google.ErrSignInDenied)
}

func TestSignIn_Timeout(t *testing.T) {
	server := fakeGoogle(t)

	start := time.Now()
	_, err := google.SignIn(context.Background(), google.SignInConfig{
		OAuth:      oauthConfig(server),
		ListenAddr: "127.0.0.1:0",
		Timeout:    50 * time.Millisecond,
		OpenURL:    func(string) error { return nil },
		Logger:     zerolog.Nop(),
	})
	assert.ErrorIs(t, err, google.ErrSignInTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestOAuthConfig(t *testing.T) {
	cfg := google.OAuthConfig("id", "secret")
	assert.Equal(t, "id", cfg.ClientID)
	assert.Equal(t, []string{"https://www.googleapis.com/auth/calendar.readonly"}, cfg.Scopes)
}
