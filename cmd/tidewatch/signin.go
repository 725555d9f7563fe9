package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/tidewatch/tidewatch/internal/calendar/google"
)

var (
	signinLabel string
	signinColor string
)

var signinCmd = &cobra.Command{
	Use:   "signin",
	Short: "Connect a Google Calendar account",
	Long: `Runs the OAuth consent flow for a Google account and saves its token in
the configured token store. Open the printed URL in a browser on this
machine; the redirect is received on calendar.google.listen_addr.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runSignin(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	signinCmd.Flags().StringVar(&signinLabel, "label", "", "label shown next to this account's events")
	signinCmd.Flags().StringVar(&signinColor, "color", "", "color for this account's events")
}

func runSignin(ctx context.Context, out io.Writer) error {
	g := settings.Calendar.Google
	if g.ClientID == "" || g.ClientSecret == "" {
		return errors.New("calendar.google.client_id and client_secret must be set")
	}

	a := &app{}
	defer a.close()
	store, err := a.tokenStore(ctx, settings)
	if err != nil {
		return err
	}

	account, err := google.SignIn(ctx, google.SignInConfig{
		OAuth:      google.OAuthConfig(g.ClientID, g.ClientSecret),
		Store:      store,
		ListenAddr: g.ListenAddr,
		OpenURL: func(authURL string) error {
			_, err := fmt.Fprintf(out, "Open this URL to connect your calendar:\n\n  %s\n\n", authURL)
			return err
		},
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Label:      signinLabel,
		Color:      signinColor,
		Logger:     log,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Connected %s.\n", account.Email)
	return nil
}
