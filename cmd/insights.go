package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/pantrybase/insight-cli/internal/insights"
	"github.com/pantrybase/insight-cli/internal/model"
	"github.com/pantrybase/insight-cli/internal/store"
)

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Inspect and annotate stored insights",
	Long:  "Commands for listing, viewing, summarizing, and manually annotating insights.",
}

// -- insights list --

var insightsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List insights",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		status, _ := cmd.Flags().GetString("status")
		itype, _ := cmd.Flags().GetString("type")
		barcode, _ := cmd.Flags().GetString("barcode")
		limit, _ := cmd.Flags().GetInt("limit")

		annotated, err := parseStatusFilter(status)
		if err != nil {
			return err
		}

		filter := store.InsightFilter{
			Barcode:   barcode,
			Type:      model.InsightType(itype),
			Annotated: annotated,
			Limit:     limit,
		}

		list, err := st.ListInsights(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "insights list")
		}

		if len(list) == 0 {
			fmt.Fprintln(os.Stderr, "No insights found.")
			return nil
		}

		formatInsightsList(os.Stdout, list)
		return nil
	},
}

// -- insights show --

var insightsShowCmd = &cobra.Command{
	Use:   "show <insight-id>",
	Short: "Show full details of an insight",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		insight, err := st.GetInsight(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "insights show")
		}
		if insight == nil {
			return eris.Errorf("insight not found: %s", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(insight)
	},
}

// -- insights stats --

var insightsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate insight statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		filter := store.InsightFilter{Limit: 10000} // high limit for stats

		list, err := st.ListInsights(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "insights stats")
		}

		stats := computeInsightStats(list)
		formatInsightStats(os.Stdout, stats)
		return nil
	},
}

// -- insights annotate --

var insightsAnnotateCmd = &cobra.Command{
	Use:   "annotate <insight-id>",
	Short: "Record a decision on an insight",
	Long:  "Records an annotation (1 accept, 0 skip, -1 refuse) on an insight. Accepting applies the edit to the product catalog.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		annotation, _ := cmd.Flags().GetInt("annotation")
		username, _ := cmd.Flags().GetString("user")
		rawData, _ := cmd.Flags().GetString("data")

		var data map[string]any
		if rawData != "" {
			if err := json.Unmarshal([]byte(rawData), &data); err != nil {
				return eris.Wrap(err, "parse --data")
			}
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		engine := insights.NewProcessor(st, insights.NewRegistry(initCatalog(), st), initNotifier(), cfg.Engine.BatchSize)

		result, err := engine.Annotate(ctx, args[0], annotation, data, username, false)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	insightsListCmd.Flags().String("status", "", "filter by status (pending, annotated)")
	insightsListCmd.Flags().String("type", "", "filter by insight type (category, brand, ...)")
	insightsListCmd.Flags().String("barcode", "", "filter by product barcode")
	insightsListCmd.Flags().Int("limit", 50, "max number of insights to display")

	insightsAnnotateCmd.Flags().Int("annotation", 0, "decision: 1 accept, 0 skip, -1 refuse (required)")
	insightsAnnotateCmd.Flags().String("user", "", "reviewer username recorded with the decision")
	insightsAnnotateCmd.Flags().String("data", "", "JSON object with corrected values, for types that accept edits")
	_ = insightsAnnotateCmd.MarkFlagRequired("annotation")

	insightsCmd.AddCommand(insightsListCmd)
	insightsCmd.AddCommand(insightsShowCmd)
	insightsCmd.AddCommand(insightsStatsCmd)
	insightsCmd.AddCommand(insightsAnnotateCmd)
	rootCmd.AddCommand(insightsCmd)
}

// parseStatusFilter maps the --status flag onto the annotated filter.
func parseStatusFilter(status string) (*bool, error) {
	switch status {
	case "":
		return nil, nil
	case "pending":
		f := false
		return &f, nil
	case "annotated":
		t := true
		return &t, nil
	default:
		return nil, eris.Errorf("unknown status %q (want pending or annotated)", status)
	}
}

// insightStats holds aggregate statistics computed from a set of insights.
type insightStats struct {
	Total     int
	Pending   int
	Annotated int
	Automatic int
	ByType    map[model.InsightType]int
}

// computeInsightStats computes aggregate statistics from a list of insights.
func computeInsightStats(list []model.ProductInsight) insightStats {
	s := insightStats{ByType: make(map[model.InsightType]int)}
	s.Total = len(list)

	for _, ins := range list {
		if ins.Annotated() {
			s.Annotated++
		} else {
			s.Pending++
		}
		if ins.AutomaticProcessing {
			s.Automatic++
		}
		s.ByType[ins.Type]++
	}
	return s
}

// formatInsightsList writes a tabular list of insights to w.
func formatInsightsList(out io.Writer, list []model.ProductInsight) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tBARCODE\tTYPE\tVALUE\tAUTO\tSTATUS\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t-------\t----\t-----\t----\t------\t-------")

	for _, ins := range list {
		value := ins.ValueTag
		if value == "" {
			value = ins.Value
		}
		if len(value) > 30 {
			value = value[:27] + "..."
		}

		auto := "no"
		if ins.AutomaticProcessing {
			auto = "yes"
		}

		status := "pending"
		if ins.Annotated() {
			status = fmt.Sprintf("annotated(%d)", *ins.Annotation)
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(ins.ID),
			ins.Barcode,
			ins.Type,
			value,
			auto,
			status,
			ins.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatInsightStats writes aggregate stats to w.
func formatInsightStats(out io.Writer, s insightStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total insights:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Pending:\t%d\n", s.Pending)
	_, _ = fmt.Fprintf(w, "Annotated:\t%d\n", s.Annotated)
	_, _ = fmt.Fprintf(w, "Automatic:\t%d\n", s.Automatic)

	types := make([]string, 0, len(s.ByType))
	for t := range s.ByType {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		_, _ = fmt.Fprintf(w, "  %s:\t%d\n", t, s.ByType[model.InsightType(t)])
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
