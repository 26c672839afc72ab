package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletion(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			var out bytes.Buffer
			completionCmd.SetOut(&out)
			t.Cleanup(func() { completionCmd.SetOut(nil) })

			require.NoError(t, runCompletion(completionCmd, []string{shell}))
			assert.Contains(t, out.String(), "extkit")
		})
	}
}

func TestCompletionRejectsUnknownShell(t *testing.T) {
	assert.Error(t, completionCmd.Args(completionCmd, []string{"tcsh"}))
	assert.Error(t, runCompletion(completionCmd, []string{"tcsh"}))
}
