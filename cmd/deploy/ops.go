package main

import (
	"github.com/spf13/cobra"

	"github.com/isotopp/deploy/internal/site"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <project>",
	Short: "Delete a project descriptor",
	Args:  cobra.ExactArgs(1),
	RunE:  runBare(site.OpDelete, false),
}

var showCmd = &cobra.Command{
	Use:   "show <project>",
	Short: "Show a project descriptor, or all of them",
	Long: `Show prints the stored descriptor for a project. The special project
name "projects" lists every descriptor in the store.`,
	Args: cobra.ExactArgs(1),
	RunE: runBare(site.OpShow, false),
}

var startCmd = &cobra.Command{
	Use:   "start <project>",
	Short: "Start a project's services",
	Args:  cobra.ExactArgs(1),
	RunE:  runBare(site.OpStart, false),
}

var stopCmd = &cobra.Command{
	Use:   "stop <project>",
	Short: "Stop a project's services",
	Args:  cobra.ExactArgs(1),
	RunE:  runBare(site.OpStop, false),
}

var restartCmd = &cobra.Command{
	Use:   "restart <project>",
	Short: "Restart a project's services",
	Args:  cobra.ExactArgs(1),
	RunE:  runBare(site.OpRestart, false),
}

var updateCmd = &cobra.Command{
	Use:   "update <project>",
	Short: "Update a project's host configuration",
	Args:  cobra.ExactArgs(1),
	RunE:  runBare(site.OpUpdate, false),
}

var logsCmd = &cobra.Command{
	Use:   "logs <project>",
	Short: "Show recent deploy history for a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runBare(site.OpLogs, true),
}

var codeCmd = &cobra.Command{
	Use:   "code <project>",
	Short: "Deploy the latest code for a project",
	Long: `Code runs the project's checkout command as its unix user inside the
project directory, then the restart command. A failed checkout aborts the
deploy and the restart step is skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runBare(site.OpCode, true),
}
