package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/isotopp/deploy/internal/site"
)

var fieldFlags site.Fields

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a project of a given site type",
	Long: `Create a new project. The site type selects which fields are required;
hostname, username, and project directory default from the project name
where the type allows it.`,
}

func init() {
	createCmd.AddCommand(
		newCreateTypeCmd(site.TypeStatic, "Deploy a static site, content from GitHub",
			flagGitHub, flagHostname, flagUsername, flagProjectDir, flagCommands),
		newCreateTypeCmd(site.TypeRedirect, "Redirect to another hostname",
			flagHostname, flagToHostname),
		newCreateTypeCmd(site.TypeWSGI, "Deploy a Python WSGI site",
			flagGitHub, flagHostname, flagUsername, flagProjectDir, flagCommands),
		newCreateTypeCmd(site.TypeDiscord, "Deploy a Discord bot",
			flagGitHub, flagUsername, flagProjectDir, flagCommands),
		newCreateTypeCmd(site.TypeCompiled, "Compile and deploy a service behind a reverse proxy",
			flagGitHub, flagPort, flagHostname, flagUsername, flagProjectDir, flagCommands),
		newCreateTypeCmd(site.TypeProxy, "Deploy a reverse proxy to a local port",
			flagHostname, flagPort),
	)
}

// newCreateTypeCmd builds the subcommand for one site type. Required
// fields are not enforced by the flag parser: the config model validates
// them and reports every missing field at once.
func newCreateTypeCmd(tag site.Type, short string, flags ...func(*cobra.Command)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   fmt.Sprintf("%s <project>", tag),
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := site.Parse(commonOptions(site.OpCreate, args[0]), tag, fieldFlags, cfg.Domain)
			if err != nil {
				return err
			}
			return newDispatcher(false).Dispatch(cmd.Context(), parsed)
		},
	}
	for _, addFlag := range flags {
		addFlag(cmd)
	}
	return cmd
}

func flagGitHub(cmd *cobra.Command) {
	cmd.Flags().StringVar(&fieldFlags.Repo, "github", "", "GitHub repository starting with git@github.com:...")
}

func flagHostname(cmd *cobra.Command) {
	cmd.Flags().StringVar(&fieldFlags.Hostname, "hostname", "", "Hostname, defaults to <project>.<domain>")
}

func flagUsername(cmd *cobra.Command) {
	cmd.Flags().StringVar(&fieldFlags.Username, "username", "", "Unix user, defaults to <project>")
}

func flagProjectDir(cmd *cobra.Command) {
	cmd.Flags().StringVar(&fieldFlags.ProjectDir, "project-dir", "", "Project directory, defaults to <project>")
}

func flagToHostname(cmd *cobra.Command) {
	cmd.Flags().StringVar(&fieldFlags.Target, "to-hostname", "", "Hostname to redirect to")
}

func flagPort(cmd *cobra.Command) {
	cmd.Flags().IntVar(&fieldFlags.Port, "port", 0, "Local port the service listens on")
}

func flagCommands(cmd *cobra.Command) {
	cmd.Flags().StringVar(&fieldFlags.CheckoutCmd, "checkout-cmd", "", "Override the checkout command")
	cmd.Flags().StringVar(&fieldFlags.RestartCmd, "restart-cmd", "", "Override the restart command")
}
