// Package google provides Google API client initialization for LifeHub
package google

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const (
	envEnabled  = "GOOGLE_CALENDAR_ENABLED"
	envKeyFile  = "GOOGLE_SERVICE_ACCOUNT_KEY_FILE"
	defaultFile = "../google_calendar.json" // repo root, alongside .env
)

// IsEnabled returns true if Google Calendar sync is enabled via environment variable
func IsEnabled() bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(envEnabled)))
	return val == "true" || val == "1"
}

// NewCalendarClient creates a new Google Calendar API client using service
// account credentials. Returns nil, nil if Google Calendar sync is disabled
// (graceful degradation).
func NewCalendarClient(ctx context.Context) (*calendar.Service, error) {
	if !IsEnabled() {
		return nil, nil
	}

	credJSON, err := getCredentialsJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to get credentials: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credJSON, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}

	client := config.Client(ctx)

	srv, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return srv, nil
}

// getCredentialsJSON retrieves the service account credentials JSON.
// Reads from file specified by GOOGLE_SERVICE_ACCOUNT_KEY_FILE env var,
// defaulting to "google_calendar.json" in the working directory.
func getCredentialsJSON() ([]byte, error) {
	keyFile := strings.TrimSpace(os.Getenv(envKeyFile))
	if keyFile == "" {
		keyFile = defaultFile
	}

	data, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file %s: %w", keyFile, err)
	}
	return data, nil
}
