package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/s0up4200/zymmr/filter"
	"github.com/s0up4200/zymmr/output"
	"github.com/s0up4200/zymmr/zymmr"
)

var (
	// list flags
	listFields  []string
	listFilters []string
	orderBy     string
	limit       int
	offset      int
	fetchAll    bool
	whereExpr   string
	preset      string

	// get flags
	getFields []string
	byKey     bool

	// insert/update flags
	dataArg string

	// delete flags
	noConfirm bool
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list <doctype>",
	Short: "List documents of a DocType",
	Long: `List documents of any DocType.

Server-side filters are given with --filter as field=value or
field:operator:value, e.g. --filter "status=Open" --filter "story_point:>=:3".
Supported operators: =, !=, >, <, >=, <=, in, not in, like, not like, between, is.

The result can be narrowed further on the client with an expression
(--where) or a preset from the config file (--preset), for example:
  --where 'status == "Open" && daysSince(dateOf("modified")) > 14'`,
	Example: `  zymmr list Project --fields name,title,status
  zymmr list "Work Item" --filter project=ZMR --all --where 'num("story_point") >= 5'`,
	Args: cobra.ExactArgs(1),
	RunE: runList,
}

// getCmd represents the get command
var getCmd = &cobra.Command{
	Use:   "get <doctype> <name>",
	Short: "Fetch a single document",
	Long:  `Fetch a single document by its name, or by its key field with --by-key.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runGet,
}

// insertCmd represents the insert command
var insertCmd = &cobra.Command{
	Use:   "insert <doctype>",
	Short: "Create a document",
	Long: `Create a document from a JSON object.

--data takes the JSON inline, @file to read it from a file or @- to read stdin.`,
	Example: `  zymmr insert Project --data '{"title": "Website", "key": "WEB"}'`,
	Args:    cobra.ExactArgs(1),
	RunE:    runInsert,
}

// updateCmd represents the update command
var updateCmd = &cobra.Command{
	Use:   "update <doctype> <name>",
	Short: "Update fields of a document",
	Long: `Update a document with the fields of a JSON object. Fields not given are left unchanged.

--data takes the JSON inline, @file to read it from a file or @- to read stdin.`,
	Example: `  zymmr update "Work Item" WI-0042 --data '{"status": "Done"}'`,
	Args:    cobra.ExactArgs(2),
	RunE:    runUpdate,
}

// deleteCmd represents the delete command
var deleteCmd = &cobra.Command{
	Use:   "delete <doctype> <name>...",
	Short: "Delete one or more documents",
	Long:  `Delete documents by name. Several documents are deleted concurrently; a failure does not stop the others.`,
	Args:  cobra.MinimumNArgs(2),
	RunE:  runDelete,
}

func init() {
	listCmd.Flags().StringSliceVarP(&listFields, "fields", "F", nil, "fields to return (comma separated)")
	listCmd.Flags().StringArrayVarP(&listFilters, "filter", "f", nil, "server-side filter, field=value or field:operator:value (repeatable)")
	listCmd.Flags().StringVar(&orderBy, "order-by", "", `sort order, e.g. "modified desc"`)
	listCmd.Flags().IntVarP(&limit, "limit", "l", 0, "maximum number of documents (0 = server default)")
	listCmd.Flags().IntVar(&offset, "offset", 0, "number of documents to skip")
	listCmd.Flags().BoolVarP(&fetchAll, "all", "a", false, "fetch every matching document page by page")
	listCmd.Flags().StringVarP(&whereExpr, "where", "w", "", "client-side filter expression")
	listCmd.Flags().StringVarP(&preset, "preset", "p", "", "use a filter preset from config")
	listCmd.MarkFlagsMutuallyExclusive("where", "preset")

	getCmd.Flags().StringSliceVarP(&getFields, "fields", "F", nil, "fields to print (comma separated)")
	getCmd.Flags().BoolVar(&byKey, "by-key", false, "look the document up by its key field")

	insertCmd.Flags().StringVarP(&dataArg, "data", "d", "", "document fields as JSON, @file or @-")
	updateCmd.Flags().StringVarP(&dataArg, "data", "d", "", "fields to change as JSON, @file or @-")

	deleteCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "skip confirmation prompt")

	rootCmd.AddCommand(listCmd, getCmd, insertCmd, updateCmd, deleteCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	doctype := args[0]

	filters, err := parseFilters(listFilters)
	if err != nil {
		return err
	}

	opts := zymmr.ListOptions{
		Fields:  listFields,
		Filters: filters,
		OrderBy: orderBy,
		Limit:   limit,
		Offset:  offset,
	}

	logger.Debug().
		Str("doctype", doctype).
		Strs("fields", listFields).
		Int("filters", len(filters)).
		Bool("all", fetchAll).
		Msg("Listing documents")

	var docs zymmr.DocumentList
	if fetchAll {
		docs, err = client.ListAll(ctx, doctype, opts)
	} else {
		docs, err = client.List(ctx, doctype, opts)
	}
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", doctype, err)
	}

	docs, err = applyClientFilter(ctx, docs)
	if err != nil {
		return err
	}

	printer, err := newPrinter(listFields)
	if err != nil {
		return err
	}
	return printer.PrintList(docs)
}

// applyClientFilter narrows docs with --where or --preset
func applyClientFilter(ctx context.Context, docs zymmr.DocumentList) (zymmr.DocumentList, error) {
	var (
		matched []filter.Record
		err     error
	)

	switch {
	case whereExpr != "":
		compiled, cerr := filterCompiler.Compile(whereExpr)
		if cerr != nil {
			return nil, fmt.Errorf("invalid filter expression: %w", cerr)
		}
		matched, err = filterEvaluator.Evaluate(ctx, compiled, docs.Records())
	case preset != "":
		matched, err = filterManager.EvaluateFilter(ctx, strings.ToLower(preset), docs.Records())
	default:
		return docs, nil
	}
	if err != nil {
		return nil, err
	}

	logger.Debug().Int("before", len(docs)).Int("after", len(matched)).Msg("Applied client-side filter")
	return zymmr.DocumentsFromRecords(matched), nil
}

func runGet(cmd *cobra.Command, args []string) error {
	var (
		doc zymmr.Document
		err error
	)
	if byKey {
		doc, err = client.GetByKey(cmd.Context(), args[0], args[1])
	} else {
		doc, err = client.Get(cmd.Context(), args[0], args[1])
	}
	if err != nil {
		return fmt.Errorf("failed to get %s %s: %w", args[0], args[1], err)
	}

	printer, err := newPrinter(getFields)
	if err != nil {
		return err
	}
	return printer.PrintDocument(doc)
}

func runInsert(cmd *cobra.Command, args []string) error {
	data, err := parseData(dataArg, os.Stdin)
	if err != nil {
		return err
	}

	doc, err := client.Insert(cmd.Context(), args[0], data)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", args[0], err)
	}

	logger.Info().Str("doctype", args[0]).Str("name", doc.Name()).Msg("Document created")

	printer, err := newPrinter(nil)
	if err != nil {
		return err
	}
	return printer.PrintDocument(doc)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	data, err := parseData(dataArg, os.Stdin)
	if err != nil {
		return err
	}

	doc, err := client.Update(cmd.Context(), args[0], args[1], data)
	if err != nil {
		return fmt.Errorf("failed to update %s %s: %w", args[0], args[1], err)
	}

	logger.Info().Str("doctype", args[0]).Str("name", doc.Name()).Strs("fields", data.Fields()).Msg("Document updated")

	printer, err := newPrinter(nil)
	if err != nil {
		return err
	}
	return printer.PrintDocument(doc)
}

func runDelete(cmd *cobra.Command, args []string) error {
	doctype, names := args[0], args[1:]

	if !noConfirm {
		fmt.Print(output.NewConsoleFormatter().FormatDocumentsToDelete(doctype, names))
		ok, err := confirm(os.Stdin, os.Stdout, "Are you sure you want to delete these documents?")
		if err != nil {
			return err
		}
		if !ok {
			logger.Info().Msg("Deletion cancelled")
			return nil
		}
	}

	summary := client.BatchDelete(cmd.Context(), doctype, names)

	printer, err := newPrinter(nil)
	if err != nil {
		return err
	}
	if err := printer.PrintBatchSummary("Deleted", summary); err != nil {
		return err
	}
	return summary.Err()
}
