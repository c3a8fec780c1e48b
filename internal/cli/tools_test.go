package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/knocktoolkit/pkg/knock"
	"github.com/harun/knocktoolkit/pkg/pattern"
)

func TestToolsListCommand(t *testing.T) {
	path := writeConfig(t, map[string]interface{}{
		"service_token": "sk_test_0123456789abcdef",
		"tools":         []string{"tenants.*"},
	})

	t.Run("table", func(t *testing.T) {
		out, err := execute(t, "", "tools", "list", "--config", path)
		require.NoError(t, err)

		assert.Contains(t, out, "CATEGORY")
		for _, method := range []string{"listTenants", "getTenant", "setTenant"} {
			assert.Contains(t, out, method)
		}
		assert.Contains(t, out, "3 tools")
	})

	t.Run("json", func(t *testing.T) {
		out, err := execute(t, "", "tools", "list", "--config", path, "--json")
		require.NoError(t, err)

		var infos []toolInfo
		require.NoError(t, json.Unmarshal([]byte(out), &infos))
		require.Len(t, infos, 3)
		for _, info := range infos {
			assert.Equal(t, "tenants", info.Category)
			assert.NotEmpty(t, info.Description)
			assert.Equal(t, "object", info.Parameters["type"])
		}
	})

	t.Run("flags override the file", func(t *testing.T) {
		out, err := execute(t, "", "tools", "list", "--config", path, "--json", "--tools", "users.getUser")
		require.NoError(t, err)

		var infos []toolInfo
		require.NoError(t, json.Unmarshal([]byte(out), &infos))
		require.Len(t, infos, 1)
		assert.Equal(t, "getUser", infos[0].Method)
		assert.Equal(t, "users", infos[0].Category)
	})

	t.Run("approval notice", func(t *testing.T) {
		gated := writeConfig(t, map[string]interface{}{
			"service_token": "sk_test_0123456789abcdef",
			"tools":         []string{"tenants.*"},
			"hitl": map[string]interface{}{
				"methods":    []string{"setTenant"},
				"workflow":   "approve-tool-call",
				"recipients": []string{"admin_1"},
			},
		})

		out, err := execute(t, "", "tools", "list", "--config", gated, "--json")
		require.NoError(t, err)

		var infos []toolInfo
		require.NoError(t, json.Unmarshal([]byte(out), &infos))
		for _, info := range infos {
			if info.Method == "setTenant" {
				assert.Contains(t, info.Description, "human approval")
			} else {
				assert.NotContains(t, info.Description, "human approval")
			}
		}
	})

	t.Run("missing service token", func(t *testing.T) {
		empty := writeConfig(t, map[string]interface{}{"tools": []string{"tenants.*"}})

		_, err := execute(t, "", "tools", "list", "--config", empty)
		assert.ErrorIs(t, err, knock.ErrMissingServiceToken)
	})

	t.Run("no tools selected", func(t *testing.T) {
		bare := writeConfig(t, map[string]interface{}{"service_token": "sk_test_0123456789abcdef"})

		out, err := execute(t, "", "tools", "list", "--config", bare)
		require.NoError(t, err)
		assert.Contains(t, out, "0 tools")
	})

	t.Run("unknown pattern", func(t *testing.T) {
		_, err := execute(t, "", "tools", "list", "--config", path, "--tools", "users.nope")
		assert.Error(t, err)
	})

	t.Run("pattern selecting nothing", func(t *testing.T) {
		_, err := execute(t, "", "tools", "list", "--config", path, "--tools", " ")
		assert.ErrorIs(t, err, pattern.ErrNoPatternProvided)
	})
}
