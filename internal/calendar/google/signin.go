package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/tidewatch/tidewatch/internal/calendar/tokenstore"
)

// Sign-in errors.
var (
	ErrSignInTimeout = errors.New("sign-in timed out")
	ErrSignInDenied  = errors.New("sign-in was denied")
)

// DefaultSignInTimeout bounds the whole interactive flow.
const DefaultSignInTimeout = 30 * time.Second

// SignInConfig holds configuration for the interactive loopback sign-in.
type SignInConfig struct {
	// OAuth is the client configuration (required). RedirectURL is set to
	// the loopback listener.
	OAuth *oauth2.Config

	// Store receives the new account (optional).
	Store tokenstore.Store

	// ListenAddr is the loopback address for the redirect.
	// Default: 127.0.0.1:8089
	ListenAddr string

	// Timeout bounds the flow from start to stored token.
	// Default: 30 seconds
	Timeout time.Duration

	// OpenURL presents the consent URL to the user (required).
	OpenURL func(authURL string) error

	// APIEndpoint overrides the Calendar API base URL used to look up the
	// account address.
	APIEndpoint string

	HTTPClient *http.Client

	Label string
	Color string

	Logger zerolog.Logger
}

type callback struct {
	code string
	err  error
}

// SignIn runs the authorization code flow against a loopback redirect and
// returns the connected account. It resolves with the account, rejects with
// the provider or exchange error, or fails with ErrSignInTimeout; the
// listener is closed in every case.
func SignIn(ctx context.Context, cfg SignInConfig) (*tokenstore.Account, error) {
	if cfg.OAuth == nil || cfg.OpenURL == nil {
		return nil, errors.New("sign-in requires an oauth config and an OpenURL func")
	}
	addr := cfg.ListenAddr
	if addr == "" {
		addr = "127.0.0.1:8089"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultSignInTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for redirect: %w", err)
	}

	oauthCfg := *cfg.OAuth
	oauthCfg.RedirectURL = "http://" + ln.Addr().String() + "/callback"
	state := uuid.NewString()

	results := make(chan callback, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var cb callback
		switch {
		case q.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		case q.Get("error") != "":
			cb.err = fmt.Errorf("%w: %s", ErrSignInDenied, q.Get("error"))
		case q.Get("code") == "":
			cb.err = errors.New("callback carried no code")
		default:
			cb.code = q.Get("code")
		}
		if cb.err != nil {
			http.Error(w, "Sign-in failed. You may close this window.", http.StatusBadRequest)
		} else {
			fmt.Fprint(w, "Sign-in complete. You may close this window.")
		}
		select {
		case results <- cb:
		default:
		}
	})

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = server.Serve(ln) }()
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
		defer done()
		_ = server.Shutdown(shutdownCtx)
	}()

	authURL := oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	if err := cfg.OpenURL(authURL); err != nil {
		return nil, fmt.Errorf("presenting consent url: %w", err)
	}
	cfg.Logger.Info().Str("redirect", oauthCfg.RedirectURL).Msg("waiting for sign-in callback")

	var cb callback
	select {
	case cb = <-results:
	case <-ctx.Done():
		return nil, ErrSignInTimeout
	}
	if cb.err != nil {
		return nil, cb.err
	}

	exchangeCtx := context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	tok, err := oauthCfg.Exchange(exchangeCtx, cb.code)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrSignInTimeout
		}
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	account := &tokenstore.Account{Label: cfg.Label, Color: cfg.Color}
	account.SetToken(tok)

	email, err := primaryCalendarID(ctx, &oauthCfg, account, httpClient, cfg.APIEndpoint, cfg.Logger)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrSignInTimeout
		}
		return nil, fmt.Errorf("look up account: %w", err)
	}
	account.Email = email

	if cfg.Store != nil {
		if err := cfg.Store.Save(ctx, account); err != nil {
			return nil, fmt.Errorf("store account: %w", err)
		}
	}
	cfg.Logger.Info().Str("account", email).Msg("calendar account connected")
	return account, nil
}

// primaryCalendarID returns the primary calendar's id, which is the account address.
func primaryCalendarID(ctx context.Context, oauth *oauth2.Config, account *tokenstore.Account,
	base *http.Client, endpoint string, logger zerolog.Logger,
) (string, error) {
	srv, err := newService(ctx, oauth, account, nil, base, endpoint, logger)
	if err != nil {
		return "", err
	}
	cal, err := srv.Calendars.Get("primary").Context(ctx).Do()
	if err != nil {
		return "", classify(err)
	}
	return cal.Id, nil
}
