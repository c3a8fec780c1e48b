package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStopCommand(t *testing.T) {
	t.Run("help text", func(t *testing.T) {
		out, err := execute(t, "", "stop", "--help")
		require.NoError(t, err)

		assert.Contains(t, out, "Stop the webhook server")
		assert.Contains(t, out, "timeout")
	})

	t.Run("not running", func(t *testing.T) {
		path := writeConfig(t, map[string]interface{}{})

		_, err := execute(t, "", "stop", "--config", path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not running")
	})
}
