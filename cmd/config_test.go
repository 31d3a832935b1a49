package cmd

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "test"}
	c.Flags().StringArray("cookie", nil, "")
	c.Flags().Int("index", noIndex, "")
	c.Flags().Int("attempts", 5, "")
	c.Flags().Duration("timeout", defaultTimeout, "")
	require.NoError(t, c.Flags().Parse(args))
	return c
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("BOOK_INDEX", "3")
	t.Setenv("DIGI4SCHOOL_COOKIES", "a=1; b=2")
	t.Setenv("DIGI4SCHOOL_USERNAME", "schueler")

	cfg, err := loadConfig(testCommand(t))

	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Index)
	assert.Equal(t, []string{"a=1; b=2"}, cfg.Cookies)
	assert.Equal(t, "schueler", cfg.Username)
}

func TestLoadConfig_FlagsWin(t *testing.T) {
	t.Setenv("BOOK_INDEX", "3")
	t.Setenv("DIGI4SCHOOL_COOKIES", "a=1")

	cfg, err := loadConfig(testCommand(t, "--cookie", "x=1", "--cookie", "y=2", "--index", "1", "--attempts", "2", "--timeout", "5s"))

	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Index)
	assert.Equal(t, []string{"x=1", "y=2"}, cfg.Cookies)

	p := cfg.policy()
	assert.Equal(t, 2, p.MaxAttempts)
	assert.Equal(t, 5*time.Second, p.AttemptTimeout)
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("BOOK_INDEX", "")
	t.Setenv("DIGI4SCHOOL_COOKIES", "")

	cfg, err := loadConfig(testCommand(t))

	require.NoError(t, err)
	assert.Equal(t, noIndex, cfg.Index)
	assert.Empty(t, cfg.Cookies)
	assert.Equal(t, 5, cfg.policy().MaxAttempts)
}
