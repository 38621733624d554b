// Command firewatch is the operator CLI for the FireWatch engine: submit
// reports, inspect them, and drive lifecycle transitions from a terminal.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/firewatch-ph/firewatch/pkg/client"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	engineURL  string
	operatorID string
	cfgFile    string
	outputJSON bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "firewatch",
	Short: "FireWatch report lifecycle CLI",
	Long: `firewatch is the command-line interface for the FireWatch engine.

It submits fire incident and hazard reports, inspects their lifecycle
state, and drives operator transitions: severity overrides, routing,
info requests, resolution, and rejection.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.firewatch")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if engineURL == "" {
			engineURL = viper.GetString("engine_url")
		}
		if engineURL == "" {
			engineURL = "http://localhost:8080"
		}
		if operatorID == "" {
			operatorID = viper.GetString("operator_id")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.firewatch/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&engineURL, "engine", "", "FireWatch engine URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&operatorID, "operator", "", "operator identity for transition commands")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output raw JSON instead of text")

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(severityCmd)
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(requestInfoCmd)
	rootCmd.AddCommand(supplementCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(rejectCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(versionCmd)
}

func apiClient() *client.Client {
	opts := []client.Option{client.WithTimeout(15 * time.Second)}
	if operatorID != "" {
		opts = append(opts, client.WithOperatorID(operatorID))
	}
	return client.New(engineURL, opts...)
}

// ── submit ───────────────────────────────────────────────────────────────────

var (
	submitKind     string
	submitLat      float64
	submitLng      float64
	submitWhere    string
	submitReporter string
	submitMedia    []string
)

var submitCmd = &cobra.Command{
	Use:   "submit <description>",
	Short: "Submit a fire incident or hazard report",
	Long: `Submit sends a citizen report to the engine. Classification runs in
the background; the command returns as soon as intake is acknowledged:

  firewatch submit --kind urgent_incident --where "Barangay Malanday, corner store" \
      --reporter juan.dc "Kitchen fire, flames visible from the street"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := apiClient().SubmitReport(context.Background(), client.SubmitRequest{
			Kind:        submitKind,
			Description: args[0],
			Location:    client.Location{Lat: submitLat, Lng: submitLng, Description: submitWhere},
			MediaRefs:   submitMedia,
			ReporterID:  submitReporter,
		})
		if err != nil {
			return err
		}
		return printReport(r)
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitKind, "kind", "hazard_report", "report kind: urgent_incident or hazard_report")
	submitCmd.Flags().Float64Var(&submitLat, "lat", 0, "latitude")
	submitCmd.Flags().Float64Var(&submitLng, "lng", 0, "longitude")
	submitCmd.Flags().StringVar(&submitWhere, "where", "", "location description (street, barangay)")
	submitCmd.Flags().StringVar(&submitReporter, "reporter", "", "reporter identity")
	submitCmd.Flags().StringSliceVar(&submitMedia, "media", nil, "media reference URLs")
	_ = submitCmd.MarkFlagRequired("reporter")
}

// ── get / list ───────────────────────────────────────────────────────────────

var getCmd = &cobra.Command{
	Use:   "get <report-id>",
	Short: "Show a report's full lifecycle state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := apiClient().GetReport(context.Background(), args[0])
		if err != nil {
			return err
		}
		return printReport(r)
	},
}

var (
	listKind     string
	listSearch   string
	listStatus   []string
	listSeverity []string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List reports, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		reports, err := apiClient().ListReports(context.Background(), client.ListFilter{
			Kind:       listKind,
			Search:     listSearch,
			Statuses:   listStatus,
			Severities: listSeverity,
		})
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(reports)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tSEVERITY\tSTATUS\tROUTED TO\tLOCATION")
		for _, r := range reports {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				shortID(r.ID), r.Kind, r.Severity, r.Status, r.RoutedTo, truncate(r.Location.Description, 40))
		}
		return w.Flush()
	},
}

func init() {
	listCmd.Flags().StringVar(&listKind, "kind", "", "filter by kind: urgent_incident or hazard_report")
	listCmd.Flags().StringVar(&listSearch, "search", "", "free-text search over description and location")
	listCmd.Flags().StringSliceVar(&listStatus, "status", nil, "filter by status (repeatable)")
	listCmd.Flags().StringSliceVar(&listSeverity, "severity", nil, "filter by severity (repeatable)")
}

// ── transitions ──────────────────────────────────────────────────────────────

var severityReason string

var severityCmd = &cobra.Command{
	Use:   "severity <report-id> <minor|major>",
	Short: "Override a report's severity label",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireOperator(); err != nil {
			return err
		}
		r, err := apiClient().OverrideSeverity(context.Background(), args[0], args[1], severityReason)
		if err != nil {
			return err
		}
		return printReport(r)
	},
}

var routeReason string

var routeCmd = &cobra.Command{
	Use:   "route <report-id> <barangay_officials|bfp>",
	Short: "Dispatch a report to a responder class",
	Long: `Route dispatches a pending report. Departing from the engine's routing
recommendation requires a reason code via --reason:
local_knowledge, misclassification, resource_shortage, or other.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireOperator(); err != nil {
			return err
		}
		r, err := apiClient().Route(context.Background(), args[0], args[1], routeReason)
		if err != nil {
			return err
		}
		return printReport(r)
	},
}

func init() {
	severityCmd.Flags().StringVar(&severityReason, "reason", "", "free-text reason for the override")
	routeCmd.Flags().StringVar(&routeReason, "reason", "", "override reason code when departing from the recommendation")
}

var requestInfoCmd = &cobra.Command{
	Use:   "request-info <report-id>",
	Short: "Ask the reporter for additional details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireOperator(); err != nil {
			return err
		}
		r, err := apiClient().RequestInfo(context.Background(), args[0])
		if err != nil {
			return err
		}
		return printReport(r)
	},
}

var supplementCmd = &cobra.Command{
	Use:   "supplement <report-id> <note>",
	Short: "Record the reporter's additional details",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := apiClient().Supplement(context.Background(), args[0], args[1])
		if err != nil {
			return err
		}
		return printReport(r)
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <report-id>",
	Short: "Close a dispatched report as handled",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireOperator(); err != nil {
			return err
		}
		r, err := apiClient().Resolve(context.Background(), args[0])
		if err != nil {
			return err
		}
		return printReport(r)
	},
}

var rejectReason string

var rejectCmd = &cobra.Command{
	Use:   "reject <report-id>",
	Short: "Close a report as a false alarm",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireOperator(); err != nil {
			return err
		}
		r, err := apiClient().Reject(context.Background(), args[0], rejectReason)
		if err != nil {
			return err
		}
		return printReport(r)
	},
}

func init() {
	rejectCmd.Flags().StringVar(&rejectReason, "reason", "", "why the report is a false alarm")
}

// ── audit / version ──────────────────────────────────────────────────────────

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show and verify the transition audit chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		c := apiClient()

		ov, err := c.AuditChain(ctx)
		if err != nil {
			return err
		}
		valid, verr, err := c.VerifyAudit(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Entries: %d\n", ov.Entries)
		fmt.Printf("Root:    %s\n", ov.Root)
		if valid {
			fmt.Println("Chain:   intact")
		} else {
			fmt.Printf("Chain:   BROKEN — %s\n", verr)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("firewatch", version)
	},
}

// ── output helpers ───────────────────────────────────────────────────────────

func requireOperator() error {
	if operatorID == "" {
		return fmt.Errorf("this command needs an operator identity: pass --operator or set operator_id in the config")
	}
	return nil
}

func printReport(r *client.Report) error {
	if outputJSON {
		return printJSON(r)
	}

	fmt.Printf("ID:          %s\n", r.ID)
	fmt.Printf("Kind:        %s\n", r.Kind)
	fmt.Printf("Status:      %s\n", r.Status)
	if r.Confidence != nil {
		fmt.Printf("Severity:    %s (confidence %.2f)\n", r.Severity, *r.Confidence)
	} else {
		fmt.Printf("Severity:    %s\n", r.Severity)
	}
	fmt.Printf("Routed to:   %s\n", r.RoutedTo)
	fmt.Printf("Classifier:  %s\n", r.ClassifierState)
	fmt.Printf("Reporter:    %s\n", r.ReporterID)
	fmt.Printf("Location:    %s (%.5f, %.5f)\n", r.Location.Description, r.Location.Lat, r.Location.Lng)
	fmt.Printf("Description: %s\n", strings.ReplaceAll(r.Description, "\n", "\n             "))

	if len(r.History) > 0 {
		fmt.Println("\nHistory:")
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, h := range r.History {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", h.At.Local().Format(time.RFC3339), h.Status, h.Actor, h.Note)
		}
		w.Flush()
	}
	if len(r.Deliveries) > 0 {
		fmt.Println("\nDeliveries:")
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, d := range r.Deliveries {
			line := fmt.Sprintf("  %s\t%s\t%s\tattempts=%d", d.Channel, d.Event, d.State, d.Attempts)
			if d.LastError != "" {
				line += "\t" + d.LastError
			}
			fmt.Fprintln(w, line)
		}
		w.Flush()
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
