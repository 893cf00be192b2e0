package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/deskpilot/deskpilot/runtime/tools"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")).Padding(0, 1)
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
	categoryStyle = cellStyle.Foreground(lipgloss.Color("#888888"))
)

func newToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools offered to the model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			reg, err := buildRegistry(cfg.ToolsDir)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTools(reg.Descriptors()))
			return nil
		},
	}
}

// renderTools formats descriptors as a table grouped by category.
func renderTools(descs []*tools.ToolDescriptor) string {
	rows := make([][]string, 0, len(descs))
	for _, d := range descs {
		rows = append(rows, []string{d.Name, d.Category, d.Description})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("NAME", "CATEGORY", "DESCRIPTION").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 1:
				return categoryStyle
			default:
				return cellStyle
			}
		})
	return t.String() + fmt.Sprintf("\n%d tools", len(descs))
}
