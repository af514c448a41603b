package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Create, transition and delete a throwaway issue",
	Long: `Proves the configured account can create issues in the project. The test
issue is moved through the configured resolve and open transitions and then
deleted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}

		svc := newService()
		cfg, err := validConfiguration(cmd.Context(), svc)
		if err != nil {
			return err
		}

		result, err := svc.TestConnection(cmd.Context(), cfg)
		if err != nil {
			printFieldErrors(err)
			if result.CreatedTestIssueKey != "" {
				fmt.Println(renderMuted("  test issue " + result.CreatedTestIssueKey + " was created before the failure"))
			}
			return err
		}

		fmt.Printf("%s %s\n", renderPass(iconPass), result.StatusMessage)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(testCmd)
}
