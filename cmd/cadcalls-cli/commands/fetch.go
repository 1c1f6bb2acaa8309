package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jaisonv/cad-calls/lib/artifact"
	"github.com/jaisonv/cad-calls/lib/configutil"
	"github.com/jaisonv/cad-calls/lib/restyutil"
	"github.com/jaisonv/cad-calls/lib/scrapers/policetocitizen"

	"dario.cat/mergo"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type ApiConfig struct {
	VerifySsl     bool   `json:"verify_ssl"`
	Timeout       int    `json:"timeout"`
	UserAgent     string `json:"user_agent"`
	RequestMethod string `json:"request_method"`
}

type DefaultParams struct {
	IncludeOpen   bool   `json:"include_open"`
	IncludeClosed bool   `json:"include_closed"`
	Take          int    `json:"take"`
	Skip          int    `json:"skip"`
	SearchText    string `json:"search_text"`
}

type Config struct {
	BaseUrl   string                      `json:"base_url"`
	AgencyId  int                         `json:"agency_id"`
	Api       ApiConfig                   `json:"api"`
	Defaults  DefaultParams               `json:"defaults"`
	OutputDir string                      `json:"output_dir"`
	Fields    *policetocitizen.FieldNames `json:"fields"`
}

var fetchAgencyId *int
var fetchOpen *bool
var fetchClosed *bool
var fetchTake *int
var fetchSkip *int
var fetchSearch *string
var fetchOutput *string
var fetchWireDump *string

func init() {
	fetchAgencyId = fetchCmd.Flags().Int("agency-id", 0, "Agency ID to fetch data for (overrides config).")
	fetchOpen = fetchCmd.Flags().Bool("open", false, "Include open/active calls.")
	fetchClosed = fetchCmd.Flags().Bool("closed", false, "Include closed/resolved calls.")
	fetchTake = fetchCmd.Flags().Int("take", 0, "Number of records to retrieve.")
	fetchSkip = fetchCmd.Flags().Int("skip", 0, "Number of records to skip (pagination).")
	fetchSearch = fetchCmd.Flags().String("search", "", "Search text to filter calls.")
	fetchOutput = fetchCmd.Flags().StringP("output", "o", "", "Write the result to this exact path instead of a generated name.")
	fetchWireDump = fetchCmd.Flags().String("wire-dump", "", "Directory to dump raw request/response pairs into.")
	rootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetches one page of CAD call records and writes it to a JSON file.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := configutil.ReadConfig[Config]("config.json5")
		if err != nil {
			slog.Error("failed to read config", "err", err)
			os.Exit(exitInvalidParams)
		}

		agencyId := cfg.AgencyId
		if cmd.Flags().Changed("agency-id") {
			agencyId = *fetchAgencyId
		}
		includeOpen := cfg.Defaults.IncludeOpen
		if cmd.Flags().Changed("open") {
			includeOpen = *fetchOpen
		}
		includeClosed := cfg.Defaults.IncludeClosed
		if cmd.Flags().Changed("closed") {
			includeClosed = *fetchClosed
		}
		take := cfg.Defaults.Take
		if cmd.Flags().Changed("take") {
			take = *fetchTake
		}
		skip := cfg.Defaults.Skip
		if cmd.Flags().Changed("skip") {
			skip = *fetchSkip
		}
		searchText := cfg.Defaults.SearchText
		if cmd.Flags().Changed("search") {
			searchText = *fetchSearch
		}

		method, err := policetocitizen.ParseTransport(cfg.Api.RequestMethod)
		if err != nil {
			slog.Error("invalid config", "err", err)
			os.Exit(exitInvalidParams)
		}

		spec, err := policetocitizen.BuildRequestSpec(
			agencyId, includeOpen, includeClosed, take, skip, searchText, method,
		)
		if err != nil {
			slog.Error("invalid parameters", "err", err)
			os.Exit(exitInvalidParams)
		}

		fields := policetocitizen.DefaultFieldNames()
		if cfg.Fields != nil {
			err = mergo.Merge(&fields, *cfg.Fields, mergo.WithOverride)
			if err != nil {
				slog.Error("invalid field name overrides", "err", err)
				os.Exit(exitInvalidParams)
			}
		}

		client, err := policetocitizen.NewClient(policetocitizen.ClientOptions{
			BaseUrl:   cfg.BaseUrl,
			VerifySsl: cfg.Api.VerifySsl,
			Timeout:   time.Second * time.Duration(cfg.Api.Timeout),
			UserAgent: cfg.Api.UserAgent,
			Fields:    &fields,
		})
		if err != nil {
			slog.Error("invalid config", "err", err)
			os.Exit(exitInvalidParams)
		}
		if *fetchWireDump != "" {
			client.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(*fetchWireDump))
		}

		outputDir := cfg.OutputDir
		if outputDir == "" {
			outputDir = "cadcalls_results"
		}
		writer, err := artifact.NewWriter(outputDir)
		if err != nil {
			slog.Error("failed to create output directory", "dir", outputDir, "err", err)
			os.Exit(exitWriteFailed)
		}

		slog.Info(
			"fetching CAD calls",
			"site", client.Site(),
			"agency_id", spec.AgencyId,
			"take", spec.Take,
			"skip", spec.Skip,
		)

		set, err := client.FetchCalls(cmd.Context(), spec)
		if err != nil {
			var failure *policetocitizen.Failure
			if !errors.As(err, &failure) {
				slog.Error("fetch failed", "err", err)
				os.Exit(exitFetchFailed)
			}

			path, werr := writer.WriteDebug(client.Site(), spec, failure)
			if werr != nil {
				slog.Error("failed to write debug bundle", "err", werr)
				os.Exit(exitWriteFailed)
			}
			reportFailure(failure, path)
			os.Exit(exitFetchFailed)
		}

		path, err := writer.WriteResult(set, *fetchOutput)
		if err != nil {
			slog.Error("failed to write result file", "err", err)
			os.Exit(exitWriteFailed)
		}

		if !*quiet {
			displayCalls(set)
		}
		slog.Info(
			"CAD calls retrieved",
			"records", len(set.Calls),
			"total", set.Total,
			"file", path,
		)
	},
}

// reportFailure maps a classified failure to remediation advice.
// Blocked is called out separately from generic HTTP errors because
// retrying will not help against a WAF.
func reportFailure(failure *policetocitizen.Failure, bundlePath string) {
	switch failure.Kind {
	case policetocitizen.Blocked:
		slog.Error(
			"the portal's bot protection rejected the request; direct API access "+
				"is likely unsuitable for this deployment",
			"reason", failure.Reason,
			"debug_bundle", bundlePath,
		)
	case policetocitizen.Timeout:
		slog.Error(
			"the portal did not respond in time, consider raising the configured timeout",
			"reason", failure.Reason,
			"debug_bundle", bundlePath,
		)
	default:
		slog.Error(
			"fetch failed",
			"kind", string(failure.Kind),
			"status", failure.Status,
			"reason", failure.Reason,
			"debug_bundle", bundlePath,
		)
	}
}

// display columns, the field set the portal's own frontend shows
var displayColumns = []struct {
	header string
	field  string
}{
	{"Status", "CallType"},
	{"Time", "StartTime"},
	{"Nature", "Nature"},
	{"Address", "Address"},
	{"Agency", "Agency"},
	{"Incident", "IncidentId"},
}

func displayCalls(set *policetocitizen.ResultSet) {
	fmt.Printf("\n=== CAD Calls (%d total) ===\n\n", set.Total)
	if len(set.Calls) == 0 {
		fmt.Println("No calls found matching your criteria.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)

	header := table.Row{"#"}
	for _, col := range displayColumns {
		header = append(header, col.header)
	}
	t.AppendHeader(header)

	for i, call := range set.Calls {
		row := table.Row{i + 1}
		for _, col := range displayColumns {
			value := call.Text(col.field)
			if value == "" {
				value = "Unknown"
			} else if col.field == "StartTime" {
				value = formatStartTime(value)
			}
			row = append(row, value)
		}
		t.AppendRow(row)
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
}

// formatStartTime flattens the portal's ISO timestamps
// ("2006-01-02T15:04:05-05:00") for display.
func formatStartTime(value string) string {
	datePart, timePart, found := strings.Cut(value, "T")
	if !found {
		return value
	}
	if idx := strings.IndexAny(timePart, "-+"); idx >= 0 {
		timePart = timePart[:idx]
	}
	return fmt.Sprintf("%s %s", datePart, timePart)
}
