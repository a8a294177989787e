package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atomicdeploy/pandata/pkg/converter"
	"github.com/atomicdeploy/pandata/pkg/pandata"
	"github.com/atomicdeploy/pandata/pkg/server"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Version information
	Version   = "1.0.0"
	BuildDate = "unknown"

	// Global flags
	outputFormat string
	fieldList    string
	inlineArrays string
	rawString    bool
	verbose      bool

	// Color definitions (user-facing output goes to stderr so stdout stays parseable)
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	warningColor = color.New(color.FgYellow)
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		warningColor.Fprintf(os.Stderr, "⚠️  Failed to load .env file: %v\n", err)
	}

	if err := newRootCmd().Execute(); err != nil {
		errorColor.Fprintf(os.Stderr, "❌ Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pandata",
		Short: "📦 Query a JSON array of records from the command line",
		Long: `
Loads a JSON file holding an array of objects and answers equality
lookups, removals and single-key sorts against it.

VALUE arguments are read as JSON literals: 1 is a number, true a bool,
null a JSON null and "1" (quoted) a string. Anything else is taken as a
plain string. Use --string to force a plain string.

The input file is never modified.
`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "json", "Output format (json or csv)")
	rootCmd.PersistentFlags().StringVar(&fieldList, "fields", "", "Comma separated CSV columns (default: all keys)")
	rootCmd.PersistentFlags().StringVar(&inlineArrays, "inline", "", "Comma separated fields whose numeric arrays print on one line")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	allCmd := &cobra.Command{
		Use:   "all [json-file]",
		Short: "📋 Print every record",
		Args:  cobra.ExactArgs(1),
		RunE:  runAll,
	}

	findCmd := &cobra.Command{
		Use:   "find [json-file] [key] [value]",
		Short: "🔍 Print every record whose key equals value",
		Args:  cobra.ExactArgs(3),
		RunE:  runFind,
	}

	firstCmd := &cobra.Command{
		Use:   "first [json-file] [key] [value]",
		Short: "🎯 Print the first record whose key equals value",
		Args:  cobra.ExactArgs(3),
		RunE:  runFirst,
	}

	removeCmd := &cobra.Command{
		Use:   "remove [json-file] [key] [value]",
		Short: "🗑️  Print the records left after removing every match",
		Args:  cobra.ExactArgs(3),
		RunE:  runRemove,
	}

	for _, cmd := range []*cobra.Command{findCmd, firstCmd, removeCmd} {
		cmd.Flags().BoolVarP(&rawString, "string", "s", false, "Treat value as a plain string")
	}

	sortCmd := &cobra.Command{
		Use:   "sort [json-file] [key]",
		Short: "🔢 Print records sorted numerically by key",
		Args:  cobra.ExactArgs(2),
		RunE:  runSort,
	}
	sortCmd.Flags().Bool("desc", false, "Sort in descending order")
	sortCmd.Flags().Bool("text", false, "Compare values as text instead of numbers")

	infoCmd := &cobra.Command{
		Use:   "info [json-file]",
		Short: "ℹ️  Show record count and keys",
		Args:  cobra.ExactArgs(1),
		RunE:  runInfo,
	}

	serveCmd := &cobra.Command{
		Use:   "serve [json-file]",
		Short: "🌐 Start REST API and WebSocket server",
		Args:  cobra.ExactArgs(1),
		RunE:  runServe,
	}
	serveCmd.Flags().StringP("addr", "a", envOr("PANDATA_ADDR", ":8080"), "Server address (env PANDATA_ADDR)")
	serveCmd.Flags().BoolP("watch", "w", true, "Watch file for changes and broadcast updates")
	serveCmd.Flags().StringP("debounce", "d", "500ms", "Debounce duration for watch mode (e.g., 0s, 500ms, 1s)")
	serveCmd.Flags().StringSlice("origin", nil, "Extra allowed WebSocket origins")

	rootCmd.AddCommand(allCmd, findCmd, firstCmd, removeCmd, sortCmd, infoCmd, serveCmd)
	return rootCmd
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// loadCollection opens the JSON file and reports what was found
func loadCollection(path string) (*pandata.Collection, error) {
	if verbose {
		infoColor.Fprintf(os.Stderr, "🔍 Loading: %s\n", filepath.Base(path))
	}

	items, err := pandata.New().LoadJSON(path)
	if err != nil {
		return nil, err
	}

	if verbose {
		infoColor.Fprintf(os.Stderr, "📊 Found %d records\n", items.Len())
	}
	return items, nil
}

func parseValueArg(s string) any {
	if rawString {
		return s
	}
	return pandata.ParseValue(s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func newExporter() *converter.Exporter {
	return converter.NewExporter(converter.WithInlineArrays(splitList(inlineArrays)...))
}

func printRecords(w io.Writer, records []pandata.Record) error {
	format, err := converter.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	return newExporter().Export(format, records, splitList(fieldList), w)
}

func runAll(cmd *cobra.Command, args []string) error {
	items, err := loadCollection(args[0])
	if err != nil {
		return err
	}
	return printRecords(cmd.OutOrStdout(), items.GetAll())
}

func runFind(cmd *cobra.Command, args []string) error {
	items, err := loadCollection(args[0])
	if err != nil {
		return err
	}

	matches := items.GetByKeyValue(args[1], parseValueArg(args[2]))
	if verbose {
		infoColor.Fprintf(os.Stderr, "✅ %d matching records\n", len(matches))
	}
	return printRecords(cmd.OutOrStdout(), matches)
}

func runFirst(cmd *cobra.Command, args []string) error {
	items, err := loadCollection(args[0])
	if err != nil {
		return err
	}

	value := parseValueArg(args[2])
	record, ok := items.GetFirstByKeyValue(args[1], value)
	if !ok {
		return fmt.Errorf("no record with %s = %v", args[1], args[2])
	}

	format, err := converter.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	if format == converter.FormatCSV {
		return printRecords(cmd.OutOrStdout(), []pandata.Record{record})
	}
	return newExporter().ExportRecordToJSONWriter(record, cmd.OutOrStdout())
}

func runRemove(cmd *cobra.Command, args []string) error {
	items, err := loadCollection(args[0])
	if err != nil {
		return err
	}

	removed := items.RemoveByKeyValue(args[1], parseValueArg(args[2]))
	if removed == 0 {
		warningColor.Fprintf(os.Stderr, "⚠️  No records matched %s = %s\n", args[1], args[2])
	} else if verbose {
		successColor.Fprintf(os.Stderr, "✅ Removed %d records, %d left\n", removed, items.Len())
	}
	return printRecords(cmd.OutOrStdout(), items.GetAll())
}

func runSort(cmd *cobra.Command, args []string) error {
	desc, _ := cmd.Flags().GetBool("desc")
	text, _ := cmd.Flags().GetBool("text")

	items, err := loadCollection(args[0])
	if err != nil {
		return err
	}

	var opts []pandata.SortOption
	if text {
		opts = append(opts, pandata.WithComparator(compareText))
	}

	sorted := items.DelegateAllByKeySorted(args[1], opts...).Get(!desc)
	return printRecords(cmd.OutOrStdout(), sorted)
}

// compareText orders values by their text form; missing fields sort first
func compareText(a, b any) int {
	return strings.Compare(textOf(a), textOf(b))
}

func textOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	}
	if pandata.StrictEqual(v, pandata.Undefined) {
		return ""
	}
	return fmt.Sprint(v)
}

func runInfo(cmd *cobra.Command, args []string) error {
	items, err := loadCollection(args[0])
	if err != nil {
		return err
	}

	keys := items.Keys()
	out := cmd.OutOrStdout()

	fmt.Fprintln(out)
	successColor.Fprintln(out, "📋 Collection Information")
	fmt.Fprintln(out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	infoColor.Fprintf(out, "📁 File: %s\n", filepath.Base(args[0]))
	infoColor.Fprintf(out, "📊 Records: %d\n", items.Len())
	infoColor.Fprintf(out, "📝 Keys: %d\n", len(keys))
	fmt.Fprintln(out)

	successColor.Fprintln(out, "🗂️  Keys")
	fmt.Fprintln(out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	for i, key := range keys {
		present := items.Len() - len(items.GetByKeyValue(key, pandata.Undefined))
		fmt.Fprintf(out, "%2d. %-24s (in %d records)\n", i+1, key, present)
	}
	fmt.Fprintln(out)
	return nil
}

// parseDebounceDuration parses and validates a debounce duration string
func parseDebounceDuration(durationStr string) (time.Duration, error) {
	duration, err := time.ParseDuration(durationStr)
	if err != nil {
		return 0, fmt.Errorf("invalid debounce duration '%s' (valid examples: 0s, 500ms, 1s, 5s): %w", durationStr, err)
	}
	if duration < 0 {
		return 0, fmt.Errorf("invalid debounce duration '%s': must not be negative", durationStr)
	}
	return duration, nil
}

func init() {
	// Set up logging
	log.SetFlags(0)
	log.SetOutput(os.Stderr)
}

func runServe(cmd *cobra.Command, args []string) error {
	path := args[0]
	addr, _ := cmd.Flags().GetString("addr")
	watchFile, _ := cmd.Flags().GetBool("watch")
	debounceStr, _ := cmd.Flags().GetString("debounce")
	origins, _ := cmd.Flags().GetStringSlice("origin")

	srv, err := server.NewServer(path, server.WithAllowedOrigins(origins...))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer srv.Close()

	if watchFile {
		debounce, err := parseDebounceDuration(debounceStr)
		if err != nil {
			return err
		}
		if err := srv.StartWatching(debounce); err != nil {
			return fmt.Errorf("failed to start file watching: %w", err)
		}
	}

	successColor.Fprintf(os.Stderr, "🌐 Server running at http://localhost%s\n", addr)
	infoColor.Fprintln(os.Stderr, "📝 Press Ctrl+C to stop the server")

	if err := srv.Start(addr); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
