package cmd

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"maintflow/internal/bootstrap"
	"maintflow/internal/errs"
	"maintflow/internal/usecase/board"
	"maintflow/internal/usecase/lifecycle"
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Open the interactive work order board",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *lifecycle.Service) error {
		discipline, _ := cmd.Flags().GetString("discipline")
		technician, _ := cmd.Flags().GetString("technician")
		team, _ := cmd.Flags().GetString("team")
		refreshInterval, _ := cmd.Flags().GetDuration("refresh-interval")

		model := board.NewBoardModel(commandContext(cmd), svc, board.Options{
			Actor:           actorFlag(cmd),
			Discipline:      discipline,
			TechnicianID:    technician,
			TeamID:          team,
			RefreshInterval: refreshInterval,
		})

		program := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run work order board")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(boardCmd)
	boardCmd.Flags().String("actor", "", "Acting user id for board actions")
	boardCmd.Flags().String("discipline", "", "Optional discipline filter (maintenance|quality)")
	boardCmd.Flags().String("technician", "", "Optional technician filter")
	boardCmd.Flags().String("team", "", "Optional team filter")
	boardCmd.Flags().Duration("refresh-interval", 5*time.Second, "Auto refresh interval")
}
