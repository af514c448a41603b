package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dt-pm-tools/issuetracker-jira/internal/issuesync"
)

// Config holds JIRA connection settings and the issue settings used by sync.
type Config struct {
	URL   string        `yaml:"url"   mapstructure:"url"`
	Email string        `yaml:"email" mapstructure:"email"`
	Token string        `yaml:"token" mapstructure:"token"`
	Issue IssueSettings `yaml:"issue" mapstructure:"issue"`
}

// IssueSettings describe where and how issues are created. They are checked
// against the live JIRA instance by the validate command, not by Validate.
type IssueSettings struct {
	Project         string `yaml:"project"           mapstructure:"project"`
	Type            string `yaml:"type"              mapstructure:"type"`
	Creator         string `yaml:"creator"           mapstructure:"creator"`
	CommentOnIssues bool   `yaml:"comment_on_issues" mapstructure:"comment_on_issues"`
	// Transition names are optional; nil means not configured.
	OpenTransition    *string `yaml:"open_transition,omitempty"    mapstructure:"open_transition"`
	ResolveTransition *string `yaml:"resolve_transition,omitempty" mapstructure:"resolve_transition"`
}

// Raw returns the settings as unvalidated engine input.
func (s IssueSettings) Raw() issuesync.RawConfiguration {
	return issuesync.RawConfiguration{
		ProjectName:       s.Project,
		IssueType:         s.Type,
		IssueCreator:      s.Creator,
		CommentOnIssues:   s.CommentOnIssues,
		OpenTransition:    s.OpenTransition,
		ResolveTransition: s.ResolveTransition,
	}
}

// DefaultPath returns the default config file path (~/.issuetracker-jira.yaml).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".issuetracker-jira.yaml"
	}
	return filepath.Join(home, ".issuetracker-jira.yaml")
}

var envBindings = map[string]string{
	"url":                      "JIRA_URL",
	"email":                    "JIRA_EMAIL",
	"token":                    "JIRA_TOKEN",
	"issue.project":            "JIRA_PROJECT",
	"issue.type":               "JIRA_ISSUE_TYPE",
	"issue.creator":            "JIRA_ISSUE_CREATOR",
	"issue.comment_on_issues":  "JIRA_COMMENT_ON_ISSUES",
	"issue.open_transition":    "JIRA_OPEN_TRANSITION",
	"issue.resolve_transition": "JIRA_RESOLVE_TRANSITION",
}

// Load reads config from the YAML file and applies env var overrides.
// configPath may be empty to use the default path.
func Load(configPath string) (Config, error) {
	v := viper.New()

	if configPath == "" {
		configPath = DefaultPath()
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	// Read the config file (ignore "not found" errors so env vars still work)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required connection fields are present.
func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("JIRA URL is required (set in config file or JIRA_URL env var)")
	}
	if c.Email == "" {
		return fmt.Errorf("JIRA email is required (set in config file or JIRA_EMAIL env var)")
	}
	if c.Token == "" {
		return fmt.Errorf("JIRA token is required (set in config file or JIRA_TOKEN env var)")
	}
	return nil
}

// Save writes the config to the given path (or default path if empty).
func Save(cfg Config, configPath string) error {
	if configPath == "" {
		configPath = DefaultPath()
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
