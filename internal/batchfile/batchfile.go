// Package batchfile loads sync request batches from YAML, TOML or JSON files.
package batchfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/dt-pm-tools/issuetracker-jira/internal/issuesync"
)

// File is the on-disk shape of a batch.
type File struct {
	Requests []Request `yaml:"requests" toml:"requests" json:"requests"`
}

// Request is one entry of a batch file.
type Request struct {
	Operation  string     `yaml:"operation"  toml:"operation"  json:"operation"`
	Properties Properties `yaml:"properties" toml:"properties" json:"properties"`
	Content    Content    `yaml:"content"    toml:"content"    json:"content"`
}

// Properties mirror issuesync.CorrelationProperties.
type Properties struct {
	Provider          string `yaml:"provider"          toml:"provider"          json:"provider"`
	ProviderURL       string `yaml:"providerUrl"       toml:"providerUrl"       json:"providerUrl"`
	TopicName         string `yaml:"topicName"         toml:"topicName"         json:"topicName"`
	TopicValue        string `yaml:"topicValue"        toml:"topicValue"        json:"topicValue"`
	SubTopicName      string `yaml:"subTopicName"      toml:"subTopicName"      json:"subTopicName"`
	SubTopicValue     string `yaml:"subTopicValue"     toml:"subTopicValue"     json:"subTopicValue"`
	Category          string `yaml:"category"          toml:"category"          json:"category"`
	ComponentName     string `yaml:"componentName"     toml:"componentName"     json:"componentName"`
	ComponentValue    string `yaml:"componentValue"    toml:"componentValue"    json:"componentValue"`
	SubComponentName  string `yaml:"subComponentName"  toml:"subComponentName"  json:"subComponentName"`
	SubComponentValue string `yaml:"subComponentValue" toml:"subComponentValue" json:"subComponentValue"`
	AdditionalKey     string `yaml:"additionalKey"     toml:"additionalKey"     json:"additionalKey"`
}

// Content mirrors issuesync.Content.
type Content struct {
	Title               string   `yaml:"title"               toml:"title"               json:"title"`
	Description         string   `yaml:"description"         toml:"description"         json:"description"`
	DescriptionComments []string `yaml:"descriptionComments" toml:"descriptionComments" json:"descriptionComments"`
	AdditionalComments  []string `yaml:"additionalComments"  toml:"additionalComments"  json:"additionalComments"`
}

// Load reads a batch file, picking the format from its extension.
func Load(path string) ([]issuesync.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading batch file: %w", err)
	}
	requests, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return requests, nil
}

// Parse decodes a batch in the format named by ext (".yaml", ".yml", ".toml"
// or ".json") and converts it to engine requests.
func Parse(data []byte, ext string) ([]issuesync.Request, error) {
	var f File
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("yaml: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &f); err != nil {
			return nil, fmt.Errorf("toml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("json: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported batch file extension %q (use .yaml, .toml or .json)", ext)
	}
	return f.toRequests()
}

func (f File) toRequests() ([]issuesync.Request, error) {
	out := make([]issuesync.Request, 0, len(f.Requests))
	for i, r := range f.Requests {
		op, err := issuesync.ParseOperation(r.Operation)
		if err != nil {
			return nil, fmt.Errorf("request %d: %w", i+1, err)
		}
		out = append(out, issuesync.Request{
			Operation:  op,
			Properties: issuesync.CorrelationProperties(r.Properties),
			Content: issuesync.Content{
				Title:               r.Content.Title,
				Description:         r.Content.Description,
				DescriptionComments: r.Content.DescriptionComments,
				AdditionalComments:  r.Content.AdditionalComments,
			},
		})
	}
	return out, nil
}
