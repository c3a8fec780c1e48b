package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	toolsFlags  toolkitFlags
	toolsAsJSON bool
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect the tools an agent would receive",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the resolved tools",
	Long: `List the tools selected by --tools patterns, or by the permission grant
in the config file when no pattern is given.`,
	RunE: runToolsList,
}

func init() {
	toolsFlags.register(toolsListCmd)
	toolsListCmd.Flags().BoolVar(&toolsAsJSON, "json", false, "print tools as JSON")
	toolsCmd.AddCommand(toolsListCmd)
	rootCmd.AddCommand(toolsCmd)
}

// toolInfo is one row of the tools list output
type toolInfo struct {
	Method      string                 `json:"method"`
	Name        string                 `json:"name"`
	Category    string                 `json:"category"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

func runToolsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	toolsFlags.apply(cfg)

	l, err := setupLogging(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer l.Close()

	tk, err := buildToolkit(commandContext(cmd), cfg, l.Component("tools"))
	if err != nil {
		return err
	}

	var infos []toolInfo
	for _, category := range tk.Categories() {
		tools, err := tk.ToolsForCategory(category)
		if err != nil {
			return err
		}
		for _, t := range tools {
			info := toolInfo{
				Method:      t.Method(),
				Name:        t.Name(),
				Category:    category,
				Description: t.Description(),
			}
			if toolsAsJSON {
				info.Parameters = t.Schema()
			}
			infos = append(infos, info)
		}
	}

	out := cmd.OutOrStdout()
	if toolsAsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tMETHOD\tNAME")
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%s\t%s\n", info.Category, info.Method, info.Name)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d tools\n", len(infos))
	return nil
}
