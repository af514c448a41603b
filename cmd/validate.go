package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the issue settings against JIRA",
	Long:  `Looks up the configured project, issue type and creator in JIRA and reports every invalid setting at once.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}

		cfg, err := validConfiguration(cmd.Context(), newService())
		if err != nil {
			return err
		}

		fmt.Printf("%s Project %s (%s), issue type %s, creator %s\n",
			renderPass(iconPass), cfg.ProjectName, cfg.ProjectKey, cfg.IssueType, cfg.IssueCreator)
		if cfg.CommentOnIssues {
			fmt.Println(renderMuted("  comments enabled"))
		} else {
			fmt.Println(renderMuted("  comments disabled; long descriptions will be truncated"))
		}
		for _, t := range []struct{ label, name string }{
			{"open", cfg.OpenTransition},
			{"resolve", cfg.ResolveTransition},
		} {
			if t.name == "" {
				fmt.Printf("%s no %s transition configured\n", renderWarn(iconWarn), t.label)
				continue
			}
			fmt.Printf("%s %s transition %q\n", renderPass(iconPass), t.label, t.name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
