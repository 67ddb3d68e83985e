package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConfigurationError marks settings problems the process cannot start with.
// It is the only error class treated as fatal to the whole run.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// Config defines runtime settings loaded from an env file plus the process
// environment.
type Config struct {
	// APIURL is the platform REST base URL.
	APIURL string
	// UserID and AccessToken authenticate directly; Email and Password are
	// the login fallback when no token is configured.
	UserID      int64
	AccessToken string
	Email       string
	Password    string
	// UserAgent may contain a %version% placeholder filled from AppVersion.
	UserAgent  string
	AppVersion string
	// GroupID optionally restricts the run to one group's messages.
	GroupID int64
	// DownloadFolder is the archive root; MonthlyFolders switches the date
	// segment from per-day to per-month.
	DownloadFolder string
	MonthlyFolders bool
	// PayForUserIDs lists artists whose messages are always paid for.
	PayForUserIDs []int64
	DecryptAll    bool
	PayOnFallback bool
	// DBPath locates the seen-message database.
	DBPath string
	// NamesFile optionally overrides the built-in artist name book.
	NamesFile string
	// Jobs controls maximum parallel message processing.
	Jobs int
	// Timeout bounds each API request.
	Timeout time.Duration
	// WatchInterval, when positive, keeps the process polling for new
	// messages instead of exiting after one pass.
	WatchInterval time.Duration
}

// Load reads, validates, and normalizes config from an env file path. A
// missing file is not an error; plain environment variables still apply.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}

	c := Config{
		APIURL:         strings.TrimSpace(v.GetString("API_URL")),
		UserID:         v.GetInt64("FAB_USER_ID"),
		AccessToken:    v.GetString("FAB_ACCESS_TOKEN"),
		Email:          v.GetString("FAB_EMAIL"),
		Password:       v.GetString("FAB_PASSWORD"),
		UserAgent:      v.GetString("FAB_USER_AGENT"),
		AppVersion:     v.GetString("FAB_VERSION"),
		GroupID:        v.GetInt64("GROUP_ID"),
		DownloadFolder: v.GetString("DOWNLOAD_FOLDER"),
		MonthlyFolders: v.GetBool("MONTHLY_FOLDERS"),
		DecryptAll:     v.GetBool("DECRYPT_ALL"),
		PayOnFallback:  v.GetBool("PAY_ON_FALLBACK"),
		DBPath:         v.GetString("DB_PATH"),
		NamesFile:      v.GetString("NAMES_FILE"),
		Jobs:           v.GetInt("JOBS"),
	}

	ids, err := parseIDList(v.GetString("PAY_FOR_USER_IDS"))
	if err != nil {
		return Config{}, &ConfigurationError{Reason: "PAY_FOR_USER_IDS: " + err.Error()}
	}
	c.PayForUserIDs = ids

	if c.APIURL == "" {
		return Config{}, &ConfigurationError{Reason: "API_URL must be set"}
	}
	hasToken := c.UserID > 0 && c.AccessToken != ""
	hasLogin := c.Email != "" && c.Password != ""
	if !hasToken && !hasLogin {
		return Config{}, &ConfigurationError{Reason: "set FAB_USER_ID and FAB_ACCESS_TOKEN, or FAB_EMAIL and FAB_PASSWORD"}
	}

	// Keep defaults centralized so callers can rely on normalized values.
	if c.DownloadFolder == "" {
		c.DownloadFolder = "downloads"
	}
	if c.DBPath == "" {
		c.DBPath = "data/fabfetch.db"
	}
	if c.Jobs <= 0 {
		c.Jobs = 2
	}
	c.Timeout = 45 * time.Second
	if secs := v.GetInt("TIMEOUT_SECONDS"); secs > 0 {
		c.Timeout = time.Duration(secs) * time.Second
	}
	if secs := v.GetInt("WATCH_SECONDS"); secs > 0 {
		c.WatchInterval = time.Duration(secs) * time.Second
	}
	return c, nil
}

// parseIDList splits a comma-separated id list, tolerating blanks.
func parseIDList(raw string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a numeric id", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
