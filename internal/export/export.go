// internal/export/export.go
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/monofi/monofid/internal/allocation"
)

// ExportFormat represents the export file format
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// ExportOptions configures the export behavior
type ExportOptions struct {
	Format        ExportFormat
	StartTime     time.Time
	EndTime       time.Time
	StatusFilter  allocation.SubmissionStatus // filter by lifecycle status
	OnlyConfirmed bool
	OutputDir     string
}

// SubmissionExporter writes submission history to disk.
type SubmissionExporter struct {
	logger *zap.Logger
}

func NewSubmissionExporter(logger *zap.Logger) *SubmissionExporter {
	return &SubmissionExporter{
		logger: logger,
	}
}

// ExportSubmissions exports records based on the provided options and
// returns the path of the written file.
func (se *SubmissionExporter) ExportSubmissions(records []*allocation.SubmissionRecord, options ExportOptions) (string, error) {
	filtered := se.filterRecords(records, options)

	if len(filtered) == 0 {
		return "", fmt.Errorf("no submissions match the export criteria")
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
	})

	filename := se.generateFilename(options)
	outputPath := filepath.Join(options.OutputDir, filename)

	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	switch options.Format {
	case FormatCSV:
		err = se.exportToCSV(filtered, outputPath)
	case FormatJSON:
		err = se.exportToJSON(filtered, outputPath)
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}

	if err != nil {
		return "", err
	}

	se.logger.Info("Submissions exported",
		zap.String("file", outputPath),
		zap.Int("count", len(filtered)),
		zap.String("format", string(options.Format)))

	return outputPath, nil
}

func (se *SubmissionExporter) filterRecords(records []*allocation.SubmissionRecord, options ExportOptions) []*allocation.SubmissionRecord {
	var filtered []*allocation.SubmissionRecord

	for _, record := range records {
		if !options.StartTime.IsZero() && record.CreatedAt.Before(options.StartTime) {
			continue
		}
		if !options.EndTime.IsZero() && record.CreatedAt.After(options.EndTime) {
			continue
		}
		if options.StatusFilter != "" && record.Status != options.StatusFilter {
			continue
		}
		if options.OnlyConfirmed && record.Status != allocation.StatusConfirmed {
			continue
		}
		filtered = append(filtered, record)
	}

	return filtered
}

func (se *SubmissionExporter) generateFilename(options ExportOptions) string {
	timestamp := time.Now().Format("20060102_150405")

	prefix := "submissions_all"
	if options.StatusFilter != "" {
		prefix = fmt.Sprintf("submissions_%s", options.StatusFilter)
	} else if options.OnlyConfirmed {
		prefix = "submissions_confirmed"
	}

	return fmt.Sprintf("%s_%s.%s", prefix, timestamp, options.Format)
}

func (se *SubmissionExporter) exportToCSV(records []*allocation.SubmissionRecord, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(allocation.CSVHeaders()); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, record := range records {
		if err := writer.Write(record.ToCSV()); err != nil {
			return fmt.Errorf("failed to write submission: %w", err)
		}
	}

	return nil
}

func (se *SubmissionExporter) exportToJSON(records []*allocation.SubmissionRecord, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	exportData := struct {
		ExportTime      time.Time                      `json:"export_time"`
		SubmissionCount int                            `json:"submission_count"`
		Submissions     []*allocation.SubmissionRecord `json:"submissions"`
		Summary         ExportSummary                  `json:"summary"`
	}{
		ExportTime:      time.Now(),
		SubmissionCount: len(records),
		Submissions:     records,
		Summary:         se.calculateSummary(records),
	}

	if err := encoder.Encode(exportData); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}

func (se *SubmissionExporter) calculateSummary(records []*allocation.SubmissionRecord) ExportSummary {
	summary := ExportSummary{
		TotalSubmissions: len(records),
	}

	if len(records) == 0 {
		return summary
	}

	summary.StartDate = records[0].CreatedAt
	summary.EndDate = records[len(records)-1].CreatedAt

	for _, record := range records {
		switch record.Status {
		case allocation.StatusConfirmed:
			summary.ConfirmedCount++
		case allocation.StatusFailed:
			summary.FailedCount++
		default:
			summary.PendingCount++
		}
	}

	if terminal := summary.ConfirmedCount + summary.FailedCount; terminal > 0 {
		summary.SuccessRate = float64(summary.ConfirmedCount) / float64(terminal) * 100
	}

	return summary
}

// ExportSummary contains summary statistics for exported submissions
type ExportSummary struct {
	TotalSubmissions int       `json:"total_submissions"`
	ConfirmedCount   int       `json:"confirmed_count"`
	FailedCount      int       `json:"failed_count"`
	PendingCount     int       `json:"pending_count"`
	SuccessRate      float64   `json:"success_rate"`
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`
}
