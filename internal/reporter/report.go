package reporter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"tdr-agent/internal/batch"
	"tdr-agent/internal/config"
	"tdr-agent/internal/types"
)

// Report summarizes one batch resolution run
type Report struct {
	RunID         string          `json:"run_id" yaml:"run_id"`
	Timestamp     time.Time       `json:"timestamp" yaml:"timestamp"`
	TotalQueries  int             `json:"total_queries" yaml:"total_queries"`
	RuleBased     int             `json:"rule_based" yaml:"rule_based"`
	ModelAssisted int             `json:"model_assisted" yaml:"model_assisted"`
	Failed        int             `json:"failed" yaml:"failed"`
	Mismatched    int             `json:"mismatched" yaml:"mismatched"`
	Duration      time.Duration   `json:"duration" yaml:"duration"`
	Results       []batch.Outcome `json:"results" yaml:"results"`
}

// NewReport counts outcomes by processing method
func NewReport(outcomes []batch.Outcome, duration time.Duration) Report {
	report := Report{
		RunID:        uuid.NewString(),
		Timestamp:    time.Now(),
		TotalQueries: len(outcomes),
		Duration:     duration,
		Results:      outcomes,
	}

	for _, o := range outcomes {
		switch o.Result.ProcessingMethod {
		case types.MethodRuleBased:
			report.RuleBased++
		case types.MethodModel:
			report.ModelAssisted++
		default:
			report.Failed++
		}
		if o.Matched != nil && !*o.Matched {
			report.Mismatched++
		}
	}
	return report
}

// Reporter writes batch reports
type Reporter struct {
	config config.ReportingConfig
}

// NewReporter creates a new instance of Reporter
func NewReporter(cfg config.ReportingConfig) *Reporter {
	return &Reporter{
		config: cfg,
	}
}

// Write writes the report in every configured format and returns the paths
// written
func (r *Reporter) Write(report Report) ([]string, error) {
	if err := os.MkdirAll(r.config.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	base := filepath.Join(r.config.OutputDir, fmt.Sprintf("report_%s", report.Timestamp.Format("20060102_150405")))

	var paths []string
	for _, format := range r.config.Format {
		var (
			data []byte
			err  error
			path string
		)
		switch format {
		case "json":
			path = base + ".json"
			data, err = json.MarshalIndent(report, "", "  ")
		case "yaml", "yml":
			path = base + ".yaml"
			data, err = yaml.Marshal(report)
		default:
			return paths, fmt.Errorf("unsupported report format: %s", format)
		}
		if err != nil {
			return paths, fmt.Errorf("failed to generate %s report: %w", format, err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return paths, fmt.Errorf("failed to write %s report: %w", format, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
