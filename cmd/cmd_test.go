// File: cmd/cmd_test.go
package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs before the version test: flag values stick to the shared command
// instance across executions, so --version must not have been parsed yet.
func TestRootCmd_NoArgsShowsHelp(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{})

	err := rootCmd.ExecuteContext(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out.String(), "navigation lifecycle")
}

func TestRootCmd_VersionFlag(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"--version"})

	err := rootCmd.ExecuteContext(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out.String(), Version)
}

func TestAttachCmd_Registered(t *testing.T) {
	cmd, _, err := rootCmd.Find([]string{"attach"})
	require.NoError(t, err)
	require.Equal(t, attachCmd, cmd)

	for _, flag := range []string{"devtools-url", "goto", "until", "timeout"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q must be registered", flag)
	}
	assert.Equal(t, "allContentLoaded", cmd.Flags().Lookup("until").DefValue)
}
