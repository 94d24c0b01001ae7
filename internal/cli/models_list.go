// internal/cli/models_list.go
package dromos

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mwiater/dromos/internal/modelzoo"
	"github.com/spf13/cobra"
)

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the models dromos can benchmark",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		catalog := modelzoo.NewCatalog()
		if cfg.Registry != "" {
			if err := catalog.LoadRegistry(cfg.Registry); err != nil {
				return err
			}
		}

		nameStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))
		detailStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

		for _, name := range catalog.Names() {
			model, _ := catalog.Lookup(name)
			fmt.Println(nameStyle.Render(name))
			fmt.Println(detailStyle.Render(fmt.Sprintf("  family: %-5s opset: %-3d inputs: %s",
				model.Family, model.OpsetVersion, strings.Join(model.InputNames, ", "))))
		}
		return nil
	},
}

func init() {
	modelsCmd.AddCommand(modelsListCmd)
}
