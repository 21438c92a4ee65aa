package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/desertthunder/coaster/internal/server"
	"github.com/desertthunder/coaster/internal/services"
	"github.com/desertthunder/coaster/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// AuthSpotify performs the OAuth2 authorization code flow for Spotify.
//
// Starts a local HTTP server, opens the browser for user authorization, and
// exchanges the auth code for tokens which are saved to the config file.
func (r *Runner) AuthSpotify(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	config := r.reloadConfig(cmd)

	if config.Credentials.Spotify.ClientID == "" || config.Credentials.Spotify.ClientSecret == "" {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s",
			shared.ErrMissingCredentials, configPath)
	}

	spotifyService, err := services.NewSpotifyService(config.Credentials.Spotify.Map())
	if err != nil {
		return fmt.Errorf("failed to create Spotify service: %w", err)
	}

	token, err := r.doOAuth(config, spotifyService, "authorization")
	if err != nil {
		return err
	}

	if err := config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}

	if err := shared.SaveConfig(configPath, config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n\n", configPath)
	r.writePlain("You can now run: coaster watch\n")

	return nil
}

// AuthTidal performs the device-code flow for Tidal.
//
// Prints a verification URL and user code, then polls the token endpoint
// until the listener confirms or the grant expires.
func (r *Runner) AuthTidal(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	config := r.reloadConfig(cmd)

	if config.Credentials.Tidal.ClientID == "" {
		return fmt.Errorf("%w: Tidal client_id must be set in %s",
			shared.ErrMissingCredentials, configPath)
	}

	tidalService, err := services.NewTidalService(config.Credentials.Tidal.Map())
	if err != nil {
		return fmt.Errorf("failed to create Tidal service: %w", err)
	}

	auth, err := tidalService.StartDeviceAuth(ctx)
	if err != nil {
		return fmt.Errorf("%w: device authorization failed: %v", shared.ErrAuthFailed, err)
	}

	verifyURL := "https://" + auth.VerificationURIComplete
	r.writePlain("→ Open %s in your browser\n", verifyURL)
	r.writePlain("→ Or go to https://%s and enter code: %s\n", auth.VerificationURI, auth.UserCode)

	if err := shared.OpenBrowser(verifyURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
	}

	r.writePlain("→ Waiting for confirmation (%ds timeout)...\n", auth.ExpiresIn)

	token, err := tidalService.PollDeviceToken(ctx, auth)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	tidal := &config.Credentials.Tidal
	tidal.AccessToken = token.AccessToken
	tidal.RefreshToken = token.RefreshToken
	tidal.UserID = strconv.FormatInt(token.User.UserID, 10)
	if token.User.CountryCode != "" {
		tidal.CountryCode = token.User.CountryCode
	}
	if token.ExpiresIn > 0 {
		tidal.TokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second).Format(time.RFC3339)
	}

	if err := shared.SaveConfig(configPath, config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n\n", configPath)
	r.writePlain("You can now run: coaster watch --service tidal\n")

	return nil
}

// AuthStatus verifies stored credentials by resolving the current user.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	config := r.reloadConfig(cmd)
	if name := cmd.String("service"); name != "" {
		config.Service = name
	}

	svc, err := r.resolveService(cmd)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}

	if err := r.authenticateService(ctx, svc, config); err != nil {
		r.writePlain("✗ %s: not authenticated\n", svc.Name())
		return err
	}

	user, err := svc.CurrentUser(ctx)
	if err != nil {
		r.writePlain("✗ %s: stored token rejected\n", svc.Name())
		return fmt.Errorf("%w: %v", shared.ErrNotAuthenticated, err)
	}

	r.writePlain("✓ %s: authenticated as %s (%s)\n", svc.Name(), user.DisplayName, user.ID)
	return nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(config *shared.Config, oauthSrv services.OAuthService, prefix string) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL := oauthSrv.GetAuthURL(state)
	oauthHandler := server.NewOAuthHandler(oauthSrv.GetOAuthConfig(), state)
	router := server.NewBasicRouter()
	router.Use(server.Logging(r.logger))
	router.Handler(oauthHandler)

	serverAddr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server for %s at %v", prefix, serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for %s...\n", prefix)
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(2 * time.Minute)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return nil, result.Error()
	}

	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}

	return result.Token, nil
}
