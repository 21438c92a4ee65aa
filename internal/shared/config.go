package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
//
// The [scraping] table can be overridden by SCRAPE_* environment variables,
// and the service selection by the SERVICE variable.
type Config struct {
	Service     string            `toml:"service"`
	Debug       bool              `toml:"debug"`
	Credentials CredentialsConfig `toml:"credentials"`
	Scraping    ScrapingConfig    `toml:"scraping"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	Tidal   TidalConfig   `toml:"tidal"`
}

// SpotifyConfig contains Spotify API credentials and stored OAuth tokens.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	AccessToken  string `toml:"access_token"`
	RefreshToken string `toml:"refresh_token"`
	TokenExpiry  string `toml:"token_expiry"`
}

// Map returns the credentials as a string map for service construction.
func (s *SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
		"access_token":  s.AccessToken,
		"refresh_token": s.RefreshToken,
	}
}

// Update stores an OAuth token's fields on the config for persistence.
func (s *SpotifyConfig) Update(token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty token", ErrInvalidCredentials)
	}
	s.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		s.RefreshToken = token.RefreshToken
	}
	if !token.Expiry.IsZero() {
		s.TokenExpiry = token.Expiry.Format(time.RFC3339)
	}
	return nil
}

// Token reconstructs an [oauth2.Token] from the stored fields.
func (s *SpotifyConfig) Token() *oauth2.Token {
	token := &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
	}
	if s.TokenExpiry != "" {
		if expiry, err := time.Parse(time.RFC3339, s.TokenExpiry); err == nil {
			token.Expiry = expiry
		}
	}
	return token
}

// TidalConfig contains Tidal API credentials and stored session tokens.
type TidalConfig struct {
	ClientID     string `toml:"client_id"`
	AccessToken  string `toml:"access_token"`
	RefreshToken string `toml:"refresh_token"`
	TokenExpiry  string `toml:"token_expiry"`
	UserID       string `toml:"user_id"`
	CountryCode  string `toml:"country_code"`
}

// Map returns the credentials as a string map for service construction.
func (t *TidalConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     t.ClientID,
		"access_token":  t.AccessToken,
		"refresh_token": t.RefreshToken,
		"user_id":       t.UserID,
		"country_code":  t.CountryCode,
	}
}

// ScrapingConfig controls when and how liked collaboration tracks trigger
// top-track queueing.
type ScrapingConfig struct {
	MinArtists            int  `toml:"min_artists"`
	TopTracksLimit        int  `toml:"top_tracks_limit"`
	SkipKnownArtists      bool `toml:"skip_known_artists"`
	PollIntervalSeconds   int  `toml:"poll_interval_seconds"`
	KnownArtistsScanLimit int  `toml:"known_artists_scan_limit"`
	UseCache              bool `toml:"use_cache"`
}

// PollInterval returns the poll cadence as a [time.Duration].
func (s ScrapingConfig) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalSeconds) * time.Second
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains OAuth callback server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LoadConfig reads and parses a TOML configuration file from the specified
// path, then applies environment variable overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.ApplyEnv()
	return &config, nil
}

// SaveConfig writes the configuration back to the specified path as TOML.
func SaveConfig(path string, config *Config) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the
// embedded example config, with environment overrides applied.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	config.ApplyEnv()
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides configuration values from environment variables.
//
// SERVICE selects the streaming service; SCRAPE_* variables override the
// [scraping] table and form the configuration contract of the watcher core.
func (c *Config) ApplyEnv() {
	if v, ok := os.LookupEnv("SERVICE"); ok && v != "" {
		c.Service = v
	}
	if v, ok := lookupInt("SCRAPE_MIN_ARTISTS"); ok {
		c.Scraping.MinArtists = v
	}
	if v, ok := lookupInt("SCRAPE_TOP_TRACKS_LIMIT"); ok {
		c.Scraping.TopTracksLimit = v
	}
	if v, ok := lookupBool("SCRAPE_SKIP_KNOWN_ARTISTS"); ok {
		c.Scraping.SkipKnownArtists = v
	}
	if v, ok := lookupInt("SCRAPE_POLL_INTERVAL_SECONDS"); ok {
		c.Scraping.PollIntervalSeconds = v
	}
	if v, ok := lookupInt("SCRAPE_KNOWN_ARTISTS_SCAN_LIMIT"); ok {
		c.Scraping.KnownArtistsScanLimit = v
	}
}

// Validate checks the scraping limits and service selection.
//
// Violations are fatal at startup: an invalid threshold would either
// suppress every trigger or fire on every liked track.
func (c *Config) Validate() error {
	if c.Service != "spotify" && c.Service != "tidal" {
		return fmt.Errorf("%w: unknown service %q", ErrInvalidConfig, c.Service)
	}
	if c.Scraping.MinArtists < 1 {
		return fmt.Errorf("%w: min_artists must be >= 1, got %d", ErrInvalidConfig, c.Scraping.MinArtists)
	}
	if c.Scraping.TopTracksLimit < 1 {
		return fmt.Errorf("%w: top_tracks_limit must be >= 1, got %d", ErrInvalidConfig, c.Scraping.TopTracksLimit)
	}
	if c.Scraping.PollIntervalSeconds < 0 {
		return fmt.Errorf("%w: poll_interval_seconds must be >= 0, got %d", ErrInvalidConfig, c.Scraping.PollIntervalSeconds)
	}
	if c.Scraping.KnownArtistsScanLimit < 0 {
		return fmt.Errorf("%w: known_artists_scan_limit must be >= 0, got %d", ErrInvalidConfig, c.Scraping.KnownArtistsScanLimit)
	}
	return nil
}

func lookupInt(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func lookupBool(key string) (bool, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}
