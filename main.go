package main

import "github.com/dt-pm-tools/issuetracker-jira/cmd"

func main() {
	cmd.Execute()
}
