package cmd

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnumValue(t *testing.T) {
	e := NewEnumValue("auto", map[string]string{
		"auto":   "Decide automatically",
		"always": "",
		"never":  "Never",
	})

	assert.Equal(t, "auto", e.Value())
	assert.Equal(t, "[always, auto, never]", e.HelpString())
	assert.Equal(t, "enum", e.Type())

	require.NoError(t, e.Set("never"))
	assert.Equal(t, "never", e.String())

	err := e.Set("sometimes")
	assert.EqualError(t, err, "must be one of: always, auto, never")
	assert.Equal(t, "never", e.Value())

	items, directive := e.CompletionFunc()(nil, nil, "")
	assert.Equal(t, []string{"always", "auto\tDecide automatically", "never\tNever"}, items)
	assert.Equal(t, cobra.ShellCompDirectiveDefault, directive)
}

func TestNewEnumValue_PanicsOnUnknownDefault(t *testing.T) {
	assert.Panics(t, func() {
		NewEnumValue("x", map[string]string{"y": ""})
	})
}

func TestTargetDir(t *testing.T) {
	assert.Equal(t, ".", targetDir(nil))
	assert.Equal(t, "proj", targetDir([]string{"proj"}))
}
