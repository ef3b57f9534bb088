package cli

import (
	"github.com/spf13/cobra"
)

var templatesOverwrite bool

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manage offer templates",
}

var templatesSaveCmd = &cobra.Command{
	Use:   "save <name> <offer-uuid>",
	Short: "Save a cached offer as a template",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SaveTemplate(cmd.Context(), args[0], args[1])
	},
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ListTemplates(cmd.Context())
	},
}

var templatesDeleteCmd = &cobra.Command{
	Use:     "delete <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().DeleteTemplate(cmd.Context(), args[0])
	},
}

var templatesUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Publish an offer from a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().CreateFromTemplate(cmd.Context(), args[0])
	},
}

var templatesExportCmd = &cobra.Command{
	Use:   "export <file.yaml>",
	Short: "Write templates to a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ExportTemplates(cmd.Context(), args[0])
	},
}

var templatesImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Load templates from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ImportTemplates(cmd.Context(), args[0], templatesOverwrite)
	},
}

func init() {
	templatesImportCmd.Flags().BoolVar(&templatesOverwrite, "overwrite", false, "Replace templates with the same name")

	templatesCmd.AddCommand(templatesSaveCmd, templatesListCmd, templatesDeleteCmd, templatesUseCmd, templatesExportCmd, templatesImportCmd)
}
