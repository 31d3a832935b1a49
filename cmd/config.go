// Package cmd — configuration.
// Flags, BOOKPIPE_* environment variables and an optional bookpipe.yaml are
// merged by viper into one config value.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gaurav-prasanna/bookpipe/core/fetch"
	"github.com/gaurav-prasanna/bookpipe/core/platform"
	"github.com/gaurav-prasanna/bookpipe/core/retry"
	"github.com/gaurav-prasanna/bookpipe/core/session"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultTimeout = 30 * time.Second
	// noIndex means the book is chosen interactively.
	noIndex = -1
)

type config struct {
	Cookies     []string
	WorkDir     string
	OutputDir   string
	Title       string
	Index       int
	Concurrency int
	Attempts    int
	Timeout     time.Duration
	Verbose     bool
	ShelfURL    string

	// Only used to tell the operator that password login is not done.
	Username string
	Password string
}

// loadConfig resolves the configuration of cmd. Flags set on the command
// line win over the environment, which wins over bookpipe.yaml.
func loadConfig(cmd *cobra.Command) (config, error) {
	v := viper.New()
	v.SetEnvPrefix("BOOKPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("index", noIndex)
	v.SetDefault("shelf_url", session.DefaultShelfURL)
	// The names the tool has always read, next to the prefixed ones.
	_ = v.BindEnv("index", "BOOKPIPE_INDEX", "BOOK_INDEX")
	_ = v.BindEnv("cookies", "BOOKPIPE_COOKIES", "DIGI4SCHOOL_COOKIES")
	_ = v.BindEnv("username", "DIGI4SCHOOL_USERNAME")
	_ = v.BindEnv("password", "DIGI4SCHOOL_PASSWORD")

	v.SetConfigName("bookpipe")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config{}, fmt.Errorf("reading config: %w", err)
		}
	}
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return config{}, fmt.Errorf("binding flags: %w", err)
	}

	cfg := config{
		WorkDir:     v.GetString("workdir"),
		OutputDir:   v.GetString("output_dir"),
		Title:       v.GetString("title"),
		Index:       v.GetInt("index"),
		Concurrency: v.GetInt("concurrency"),
		Attempts:    v.GetInt("attempts"),
		Timeout:     v.GetDuration("timeout"),
		Verbose:     v.GetBool("verbose"),
		ShelfURL:    v.GetString("shelf_url"),
		Username:    v.GetString("username"),
		Password:    v.GetString("password"),
	}

	// A repeated flag does not survive viper's string conversion, so it is
	// read from the flag set directly.
	if cookies, ok := changedArray(cmd.Flags(), "cookie"); ok {
		cfg.Cookies = cookies
	} else if raw := v.GetString("cookies"); raw != "" {
		cfg.Cookies = []string{raw}
	}
	return cfg, nil
}

// changedArray returns the values of a string array flag set on the
// command line.
func changedArray(fs *pflag.FlagSet, name string) ([]string, bool) {
	if f := fs.Lookup(name); f == nil || !f.Changed {
		return nil, false
	}
	values, err := fs.GetStringArray(name)
	return values, err == nil
}

// policy returns the retry policy of every request.
func (c config) policy() retry.Policy {
	p := retry.DefaultPolicy()
	if c.Attempts > 0 {
		p.MaxAttempts = c.Attempts
	}
	if c.Timeout > 0 {
		p.AttemptTimeout = c.Timeout
	}
	return p
}

// fetcher builds the retrying, cookie-carrying fetcher of a run.
func (c config) fetcher(logger *slog.Logger) (*fetch.Retrying, error) {
	if c.Username != "" || c.Password != "" {
		logger.Warn("DIGI4SCHOOL_USERNAME/DIGI4SCHOOL_PASSWORD are ignored; bookpipe does not log in. Export the cookies of a browser session instead.")
	}
	cookies, err := session.ParseCookies(c.Cookies...)
	if err != nil {
		return nil, fmt.Errorf("%w: pass --cookie or set DIGI4SCHOOL_COOKIES", err)
	}
	base, err := fetch.New(cookies, platform.Domains()...)
	if err != nil {
		return nil, err
	}
	return &fetch.Retrying{Fetcher: base, Policy: c.policy(), Logger: logger}, nil
}
