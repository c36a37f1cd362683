package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionFlag(t *testing.T) {
	for _, flag := range []string{"--version", "-V"} {
		t.Run(flag, func(t *testing.T) {
			out := bytes.Buffer{}

			rootCmd.SetOut(&out)
			rootCmd.SetArgs([]string{flag})

			t.Cleanup(func() {
				rootCmd.SetOut(nil)
				rootCmd.SetArgs(nil)
				_ = rootCmd.Flags().Set("version", "false")
			})

			err := rootCmd.Execute()
			require.NoError(t, err)

			assert.Equal(t, "gerrit-events version "+binaryVersion()+"\n", out.String())
			assert.Nil(t, conf, "no config is loaded to print the version")
		})
	}
}
