package cli

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"workforce/internal/domain/compliance"
	"workforce/internal/platform/config"
)

type evaluateInput struct {
	AsOf   string                   `json:"asOf"`
	Window *int                     `json:"window"`
	Rows   []compliance.ClassifyRow `json:"rows"`
}

type evaluateOutput struct {
	AsOf    compliance.Date    `json:"asOf"`
	Primary string             `json:"primary"`
	Counts  map[string]int     `json:"counts"`
	Rows    []evaluatedRow     `json:"rows"`
	Summary compliance.Summary `json:"summary"`
}

type evaluatedRow struct {
	Key      string `json:"key"`
	Status   string `json:"status"`
	DaysLeft *int   `json:"daysLeft"`
}

func cmdEvaluate(cfg *config.Config) *cli.Command {
	var (
		input       string
		asOf        string
		window      int
		top         int
		statusNames string
	)

	return &cli.Command{
		Name:      "evaluate",
		Usage:     "Classify compliance rows from a JSON document without a database",
		ArgsUsage: "[file]",
		Flags: joinFlags(complianceFlags(cfg), []cli.Flag{
			&cli.StringFlag{
				Name:        "input",
				Aliases:     []string{"i"},
				Usage:       "JSON file with {asOf, window, rows}; - reads stdin",
				Value:       "-",
				Destination: &input,
			},
			&cli.StringFlag{
				Name:        "as-of",
				Usage:       "Evaluation date (YYYY-MM-DD); defaults to today in the org timezone",
				Destination: &asOf,
			},
			&cli.IntFlag{
				Name:        "window",
				Usage:       "Warning window override in days",
				Destination: &window,
			},
			&cli.IntFlag{
				Name:        "top",
				Usage:       "Top-risk entries to report",
				Destination: &top,
			},
			&cli.StringFlag{
				Name:        "status-names",
				Usage:       "Status spelling (canonical, legacy)",
				Value:       "canonical",
				Destination: &statusNames,
			},
		}),
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Present() {
				input = c.Args().First()
			}
			raw, err := readInput(input)
			if err != nil {
				return err
			}

			var doc evaluateInput
			if err := json.Unmarshal(raw, &doc); err != nil {
				return goerr.Wrap(err, "failed to decode input", goerr.V("input", input))
			}

			var opts compliance.Options
			if asOf == "" {
				asOf = strings.TrimSpace(doc.AsOf)
			}
			if asOf != "" {
				d, err := compliance.ParseDate(asOf)
				if err != nil {
					return err
				}
				opts.AsOf = &d
			}
			opts.Window = doc.Window
			if c.IsSet("window") {
				opts.Window = &window
			}
			if top == 0 {
				top = cfg.ComplianceTopN
			}

			if cfg.ComplianceWarningDays < 0 {
				return goerr.Wrap(compliance.ErrInvalidWarningWindow, "invalid default window", goerr.V("days", cfg.ComplianceWarningDays))
			}
			loc, err := time.LoadLocation(cfg.OrgTimezone)
			if err != nil {
				return goerr.Wrap(err, "unknown timezone", goerr.V("timezone", cfg.OrgTimezone))
			}
			svc := compliance.NewService(nil, nil, loc, cfg.ComplianceWarningDays, cfg.ComplianceTopN)
			report, err := svc.ClassifyRows(opts, doc.Rows, top)
			if err != nil {
				return err
			}

			out := labelReport(report, compliance.ParseNameStyle(statusNames))
			enc := json.NewEncoder(c.Root().Writer)
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return goerr.Wrap(err, "failed to write report")
			}
			return nil
		},
	}
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read stdin")
		}
		return raw, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read input", goerr.V("path", path))
	}
	return raw, nil
}

func labelReport(report compliance.ClassifyReport, style compliance.NameStyle) evaluateOutput {
	out := evaluateOutput{
		AsOf:    report.AsOf,
		Primary: report.Primary.Label(style),
		Counts:  report.Counts.Labeled(style),
		Rows:    make([]evaluatedRow, 0, len(report.Rows)),
		Summary: report.Summary,
	}
	for _, row := range report.Rows {
		out.Rows = append(out.Rows, evaluatedRow{
			Key:      row.Key,
			Status:   row.Result.Status.Label(style),
			DaysLeft: row.Result.DaysLeft,
		})
	}
	return out
}
