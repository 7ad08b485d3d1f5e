package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	projectFields  []string
	workItemFields []string
)

// projectsCmd groups the project shortcuts
var projectsCmd = &cobra.Command{
	Use:     "projects",
	Aliases: []string{"project"},
	Short:   "Query Zymmr projects",
}

var activeProjectsCmd = &cobra.Command{
	Use:   "active",
	Short: "List active projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		docs, err := client.Projects().Active(cmd.Context(), projectFields...)
		if err != nil {
			return fmt.Errorf("failed to list active projects: %w", err)
		}

		printer, err := newPrinter(projectFields)
		if err != nil {
			return err
		}
		return printer.PrintList(docs)
	},
}

var projectsByLeadCmd = &cobra.Command{
	Use:   "by-lead <email>",
	Short: "List projects led by a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		docs, err := client.Projects().ByLead(cmd.Context(), args[0], projectFields...)
		if err != nil {
			return fmt.Errorf("failed to list projects of %s: %w", args[0], err)
		}

		printer, err := newPrinter(projectFields)
		if err != nil {
			return err
		}
		return printer.PrintList(docs)
	},
}

var projectGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Fetch a project by its key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := client.Projects().ByKey(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get project %s: %w", args[0], err)
		}

		printer, err := newPrinter(projectFields)
		if err != nil {
			return err
		}
		return printer.PrintDocument(project.Document)
	},
}

// workItemsCmd groups the work item shortcuts
var workItemsCmd = &cobra.Command{
	Use:     "workitems",
	Aliases: []string{"workitem", "wi"},
	Short:   "Query Zymmr work items",
}

var workItemsByProjectCmd = &cobra.Command{
	Use:   "by-project <project-key>",
	Short: "List the work items of a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		docs, err := client.WorkItems().ByProject(cmd.Context(), args[0], workItemFields...)
		if err != nil {
			return fmt.Errorf("failed to list work items of %s: %w", args[0], err)
		}

		docs, err = applyClientFilter(cmd.Context(), docs)
		if err != nil {
			return err
		}

		printer, err := newPrinter(workItemFields)
		if err != nil {
			return err
		}
		return printer.PrintList(docs)
	},
}

var workItemGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Fetch a work item by its key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		item, err := client.WorkItems().ByKey(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get work item %s: %w", args[0], err)
		}

		printer, err := newPrinter(workItemFields)
		if err != nil {
			return err
		}
		return printer.PrintDocument(item.Document)
	},
}

func init() {
	projectsCmd.PersistentFlags().StringSliceVarP(&projectFields, "fields", "F", nil, "fields to return (comma separated)")
	projectsCmd.AddCommand(activeProjectsCmd, projectsByLeadCmd, projectGetCmd)

	workItemsCmd.PersistentFlags().StringSliceVarP(&workItemFields, "fields", "F", nil, "fields to return (comma separated)")
	workItemsByProjectCmd.Flags().StringVarP(&whereExpr, "where", "w", "", "client-side filter expression")
	workItemsByProjectCmd.Flags().StringVarP(&preset, "preset", "p", "", "use a filter preset from config")
	workItemsByProjectCmd.MarkFlagsMutuallyExclusive("where", "preset")
	workItemsCmd.AddCommand(workItemsByProjectCmd, workItemGetCmd)

	rootCmd.AddCommand(projectsCmd, workItemsCmd)
}
