package cmd

import (
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/fmuoria/agent-studio/internal/finance"
)

var financeCmd = &cobra.Command{
	Use:   "finance [query]",
	Short: "Financial analysis with an agent team or a single agent",
	Long:  "Financial analysis with an agent team or a single agent. Without a query an example can be picked from a menu.",
	RunE:  runFinance,
}

func init() {
	rootCmd.AddCommand(financeCmd)
	financeCmd.Flags().StringP("mode", "m", string(finance.ModeTeam), "team or single")
}

func runFinance(cmd *cobra.Command, args []string) error {
	modeFlag, _ := cmd.Flags().GetString("mode")
	mode, err := finance.ParseMode(modeFlag)
	if err != nil {
		return err
	}

	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		pick := promptui.Select{Label: "Example query", Items: finance.Examples}
		if _, query, err = pick.Run(); err != nil {
			return err
		}
	}

	rt, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	answer, err := finance.New(rt.catalog, rt.invoker, rt.log).Analyze(cmd.Context(), query, mode)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), answer)
	return nil
}
