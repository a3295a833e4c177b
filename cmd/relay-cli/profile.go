package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/janhq/jan-relay/pkg/relay/api"
)

const defaultAPIURL = "http://localhost:8190"

// Profile holds connection settings. Flags override environment variables,
// which override the profile file.
type Profile struct {
	APIURL       string        `yaml:"api_url"`
	UserID       string        `yaml:"user_id"`
	Token        string        `yaml:"token,omitempty"`
	Timeout      time.Duration `yaml:"timeout,omitempty"`
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
}

func defaultProfilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "relay-cli", "profile.yaml")
}

func readProfile(path string) (Profile, error) {
	var p Profile
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return p, nil
		}
		return p, fmt.Errorf("read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return p, nil
}

func (p *Profile) applyEnv(getenv func(string) string) {
	if v := getenv("RELAY_API_URL"); v != "" {
		p.APIURL = v
	}
	if v := getenv("RELAY_USER_ID"); v != "" {
		p.UserID = v
	}
	if v := getenv("RELAY_TOKEN"); v != "" {
		p.Token = v
	}
}

func (p *Profile) applyFlags(cmd *cobra.Command) {
	if v, _ := cmd.Flags().GetString("api-url"); v != "" {
		p.APIURL = v
	}
	if v, _ := cmd.Flags().GetString("user"); v != "" {
		p.UserID = v
	}
	if v, _ := cmd.Flags().GetString("token"); v != "" {
		p.Token = v
	}
}

func (p *Profile) validate() error {
	if p.APIURL == "" {
		p.APIURL = defaultAPIURL
	}
	p.APIURL = strings.TrimRight(p.APIURL, "/")
	if p.UserID == "" && p.Token == "" {
		return errors.New("no identity configured: set --user, RELAY_USER_ID or user_id in the profile")
	}
	if p.Timeout <= 0 {
		p.Timeout = 30 * time.Second
	}
	return nil
}

func loadProfile(cmd *cobra.Command) (Profile, error) {
	path, _ := cmd.Flags().GetString("profile")
	if path == "" {
		path = defaultProfilePath()
	}
	p, err := readProfile(path)
	if err != nil {
		return p, err
	}
	p.applyEnv(os.Getenv)
	p.applyFlags(cmd)
	return p, p.validate()
}

func newLogger(cmd *cobra.Command) zerolog.Logger {
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			Level(zerolog.DebugLevel).With().Timestamp().Logger()
	}
	return zerolog.Nop()
}

func newClient(cmd *cobra.Command) (*api.Client, Profile, error) {
	p, err := loadProfile(cmd)
	if err != nil {
		return nil, p, err
	}
	client := api.New(api.Options{
		BaseURL: p.APIURL,
		UserID:  p.UserID,
		Token:   p.Token,
		Timeout: p.Timeout,
		Logger:  newLogger(cmd),
	})
	return client, p, nil
}
