package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	// Verify expected subcommands are registered.
	expected := []string{"import", "process", "insights"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "insight-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.Equal(t, version, rootCmd.Version)
}

func TestImportCommand_Flags(t *testing.T) {
	flag := importCmd.Flags().Lookup("file")
	require.NotNil(t, flag, "import command should have --file flag")

	predFlag := importCmd.Flags().Lookup("predictor")
	require.NotNil(t, predFlag, "import command should have --predictor flag")
}

func TestProcessCommand_Flags(t *testing.T) {
	flag := processCmd.Flags().Lookup("batch-size")
	require.NotNil(t, flag, "process command should have --batch-size flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestInsightsCommand_HasSubcommands(t *testing.T) {
	cmds := insightsCmd.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"list", "show", "stats", "annotate"}
	for _, name := range expected {
		assert.True(t, names[name], "insights should have subcommand %q", name)
	}
}

func TestInsightsListCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"status", "type", "barcode", "limit"} {
		flag := insightsListCmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "insights list should have --%s flag", flagName)
	}

	limit := insightsListCmd.Flags().Lookup("limit")
	require.NotNil(t, limit)
	assert.Equal(t, "50", limit.DefValue)
}

func TestInsightsAnnotateCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"annotation", "user", "data"} {
		flag := insightsAnnotateCmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "insights annotate should have --%s flag", flagName)
	}
}
