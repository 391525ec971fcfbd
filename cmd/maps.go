package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fmuoria/agent-studio/internal/maps"
)

var mapsCmd = &cobra.Command{
	Use:   "maps [question]",
	Short: "Answer geographic questions through the maps tool server",
	RunE:  runMaps,
}

func init() {
	rootCmd.AddCommand(mapsCmd)
}

func runMaps(cmd *cobra.Command, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		question = maps.ExampleQuestion
		fmt.Fprintln(cmd.ErrOrStderr(), "No question given, asking:", question)
	}

	rt, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	answer, err := maps.New(rt.cfg, rt.catalog, rt.invoker, version, rt.log).Run(cmd.Context(), question)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), answer)
	return nil
}
