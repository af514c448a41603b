package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dt-pm-tools/issuetracker-jira/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configure JIRA connection and issue settings",
	Long: `Interactively set up the JIRA URL, email, API token and the settings used
when creating issues. Settings are saved to ~/.issuetracker-jira.yaml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reader := bufio.NewReader(os.Stdin)

		// Load existing config for defaults
		existing, _ := config.Load(cfgFile)

		url := prompt(reader, "JIRA URL (e.g., https://your-org.atlassian.net)", existing.URL)
		email := prompt(reader, "Email", existing.Email)

		// Token (masked input)
		fmt.Print("API Token (input hidden): ")
		tokenBytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println() // newline after hidden input
		if err != nil {
			return fmt.Errorf("reading token: %w", err)
		}
		token := strings.TrimSpace(string(tokenBytes))
		if token == "" {
			token = existing.Token
		}

		issue := config.IssueSettings{
			Project: prompt(reader, "Project name or key", existing.Issue.Project),
			Type:    prompt(reader, "Issue type", orDefault(existing.Issue.Type, "Bug")),
			Creator: prompt(reader, "Issue creator (email)", orDefault(existing.Issue.Creator, email)),
		}
		comment := prompt(reader, "Add comments to issues (true/false)", strconv.FormatBool(existing.Issue.CommentOnIssues))
		issue.CommentOnIssues, err = strconv.ParseBool(comment)
		if err != nil {
			return fmt.Errorf("invalid answer %q for comments: %w", comment, err)
		}
		issue.OpenTransition = optional(prompt(reader, "Transition that reopens issues (empty for none)", deref(existing.Issue.OpenTransition)))
		issue.ResolveTransition = optional(prompt(reader, "Transition that resolves issues (empty for none)", deref(existing.Issue.ResolveTransition)))

		cfg := config.Config{
			URL:   url,
			Email: email,
			Token: token,
			Issue: issue,
		}

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		path := cfgFile
		if path == "" {
			path = config.DefaultPath()
		}

		if err := config.Save(cfg, path); err != nil {
			return err
		}

		fmt.Printf("Configuration saved to %s\n", path)
		fmt.Println("Run 'issuetracker-jira validate' to check the issue settings against JIRA.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

// prompt reads one line, falling back to def when the answer is empty.
func prompt(reader *bufio.Reader, label, def string) string {
	if def != "" {
		fmt.Printf("%s [%s]: ", label, def)
	} else {
		fmt.Printf("%s: ", label)
	}
	answer, _ := reader.ReadString('\n')
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return def
	}
	return answer
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
