// Package report renders finished probe sessions into their artifacts:
// a machine readable JSON report, a self contained HTML report, and the
// raw session log.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/molkabha/telegram-bot-automation-testing/pkg/logger"
	"github.com/molkabha/telegram-bot-automation-testing/pkg/probe"
	"github.com/molkabha/telegram-bot-automation-testing/pkg/session"
)

const (
	// DefaultDir is where report artifacts land when no directory is
	// configured.
	DefaultDir = "reports"

	fileStampFormat   = "20060102_150405"
	generatedAtFormat = "2006-01-02T15:04:05"
)

// Document is the JSON report payload. Struct field order is the wire
// order.
type Document struct {
	Metadata Metadata       `json:"report_metadata"`
	Results  []ResultRecord `json:"test_results"`
}

// Metadata summarizes the session a report was generated from.
type Metadata struct {
	GeneratedAt          string `json:"generated_at"`
	TotalTests           int    `json:"total_tests"`
	Passed               int    `json:"passed"`
	Failed               int    `json:"failed"`
	Errors               int    `json:"errors"`
	SuccessRate          string `json:"success_rate"`
	AverageExecutionTime string `json:"average_execution_time"`
}

// ResultRecord is a single probe result as it appears in reports.
type ResultRecord struct {
	TestName       string                 `json:"test_name"`
	Status         string                 `json:"status"`
	ExecutionTime  float64                `json:"execution_time"`
	Timestamp      string                 `json:"timestamp"`
	ErrorMessage   string                 `json:"error_message"`
	ScreenshotPath string                 `json:"screenshot_path"`
	Details        map[string]interface{} `json:"details"`
}

// Generator writes session reports into a directory.
type Generator struct {
	log           *logrus.Logger
	outDir        string
	screenshotDir string
	metrics       *Metrics
}

// NewGenerator creates a generator writing into outDir. Relative
// screenshot paths in results are resolved against screenshotDir when
// embedding images into HTML.
func NewGenerator(log *logrus.Logger, outDir, screenshotDir string, metrics *Metrics) *Generator {
	if outDir == "" {
		outDir = DefaultDir
	}

	return &Generator{
		log:           log,
		outDir:        outDir,
		screenshotDir: screenshotDir,
		metrics:       metrics,
	}
}

// Dir returns the directory reports are written into.
func (g *Generator) Dir() string {
	return g.outDir
}

// WriteJSON writes the machine readable report and returns its path.
func (g *Generator) WriteJSON(s *session.Session) (string, error) {
	now := time.Now()

	doc := g.document(s, now)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	path, err := g.write(fmt.Sprintf("test_report_%s.json", now.Format(fileStampFormat)), data)
	if err != nil {
		return "", err
	}

	g.log.WithFields(logrus.Fields{
		"session": s.ID(),
		"path":    path,
		"results": s.Len(),
	}).Info("Wrote JSON report")

	g.metrics.ObserveArtifact("json", len(data))

	return path, nil
}

// WriteSessionLog dumps the buffered session log next to the reports.
func (g *Generator) WriteSessionLog(sessionLog *logger.SessionLogger) (string, error) {
	data := sessionLog.Contents()

	path, err := g.write(fmt.Sprintf("test_log_%s.log", time.Now().Format(fileStampFormat)), data)
	if err != nil {
		return "", err
	}

	g.log.WithFields(logrus.Fields{
		"session": sessionLog.GetID(),
		"path":    path,
	}).Info("Wrote session log")

	g.metrics.ObserveArtifact("log", len(data))

	return path, nil
}

func (g *Generator) document(s *session.Session, now time.Time) Document {
	sum := s.Summary()
	results := s.Results()

	records := make([]ResultRecord, len(results))
	for i, r := range results {
		records[i] = newResultRecord(r)
	}

	return Document{
		Metadata: Metadata{
			GeneratedAt:          now.Format(generatedAtFormat),
			TotalTests:           sum.Total,
			Passed:               sum.Passed,
			Failed:               sum.Failed,
			Errors:               sum.Errors,
			SuccessRate:          formatSuccessRate(sum),
			AverageExecutionTime: fmt.Sprintf("%.2fs", sum.AvgExecutionTime.Seconds()),
		},
		Results: records,
	}
}

func newResultRecord(r probe.Result) ResultRecord {
	details := r.Details
	if details == nil {
		details = map[string]interface{}{}
	}

	return ResultRecord{
		TestName:       r.TestName,
		Status:         string(r.Status),
		ExecutionTime:  r.ExecutionTime.Seconds(),
		Timestamp:      r.Timestamp.Format(time.RFC3339),
		ErrorMessage:   r.ErrorMessage,
		ScreenshotPath: r.ScreenshotPath,
		Details:        details,
	}
}

// formatSuccessRate keeps the short zero form when the session ran
// nothing.
func formatSuccessRate(sum session.Summary) string {
	if sum.Total == 0 {
		return "0%"
	}

	return fmt.Sprintf("%.1f%%", sum.SuccessRate)
}

func (g *Generator) write(name string, data []byte) (string, error) {
	if err := os.MkdirAll(g.outDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	path := filepath.Join(g.outDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}

	return path, nil
}
