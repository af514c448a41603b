package batchfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dt-pm-tools/issuetracker-jira/internal/issuesync"
)

const yamlBatch = `requests:
  - operation: create
    properties:
      provider: scanner
      topicName: Project
      topicValue: web-app
      subComponentValue: "1.1.1"
    content:
      title: Vulnerable openssl
      description: |
        CVE-2024-0001
        affects openssl
      additionalComments:
        - first
        - second
  - operation: Resolve
    properties:
      provider: scanner
      topicValue: web-app
`

const tomlBatch = `
[[requests]]
operation = "create"

[requests.properties]
provider = "scanner"
topicValue = "web-app"

[requests.content]
title = "Vulnerable openssl"
descriptionComments = ["overflow"]

[[requests]]
operation = "comment"

[requests.properties]
provider = "scanner"
topicValue = "web-app"

[requests.content]
additionalComments = ["still present"]
`

func TestParse_YAML(t *testing.T) {
	requests, err := Parse([]byte(yamlBatch), ".yml")
	require.NoError(t, err)
	require.Len(t, requests, 2)

	assert.Equal(t, issuesync.OperationCreate, requests[0].Operation)
	assert.Equal(t, "1.1.1", requests[0].Properties.SubComponentValue)
	assert.Equal(t, "CVE-2024-0001\naffects openssl\n", requests[0].Content.Description)
	assert.Equal(t, []string{"first", "second"}, requests[0].Content.AdditionalComments)
	assert.Equal(t, issuesync.OperationResolve, requests[1].Operation)
}

func TestParse_TOML(t *testing.T) {
	requests, err := Parse([]byte(tomlBatch), ".toml")
	require.NoError(t, err)
	require.Len(t, requests, 2)

	assert.Equal(t, "scanner", requests[0].Properties.Provider)
	assert.Equal(t, []string{"overflow"}, requests[0].Content.DescriptionComments)
	assert.Equal(t, issuesync.OperationComment, requests[1].Operation)
	assert.Equal(t, []string{"still present"}, requests[1].Content.AdditionalComments)
}

func TestParse_JSON(t *testing.T) {
	requests, err := Parse([]byte(`{"requests":[{"operation":"reopen","properties":{"additionalKey":"k"}}]}`), ".JSON")
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, issuesync.OperationReopen, requests[0].Operation)
	assert.Equal(t, "k", requests[0].Properties.AdditionalKey)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("requests:\n  - operation: delete\n"), ".yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request 1")

	_, err = Parse([]byte("x"), ".csv")
	assert.ErrorContains(t, err, "unsupported batch file extension")

	_, err = Parse([]byte("[[requests]\n"), ".toml")
	assert.ErrorContains(t, err, "toml")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlBatch), 0600))

	requests, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, requests, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading batch file")
}
