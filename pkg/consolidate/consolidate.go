// Package consolidate merges heterogeneous test artifacts scattered
// across a directory tree (JUnit XML, harness JSON reports, HTML pages,
// screenshots, logs) into one dashboard and one machine readable
// summary for CI gating.
package consolidate

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/molkabha/telegram-bot-automation-testing/pkg/probe"
	"github.com/molkabha/telegram-bot-automation-testing/pkg/report"
)

const (
	// ReportFileName is the consolidated dashboard output. Scans skip
	// it so reruns do not consume their own output.
	ReportFileName = "consolidated-report.html"
	// SummaryFileName is the machine readable output.
	SummaryFileName = "test-summary.json"

	maxCasesPerSource     = 10
	maxGalleryScreenshots = 12
	maxLogExcerpts        = 5
	logTailBytes          = 2048
)

// SourceReport is one parsed JUnit artifact. Totals carry the suite
// attributes as reported, cases carry the per-test detail.
type SourceReport struct {
	Name     string
	Tests    int
	Failures int
	Errors   int
	Skipped  int
	Time     float64
	Cases    []TestCase
}

// TestCase is a single testcase row from a JUnit report.
type TestCase struct {
	Name      string
	ClassName string
	Time      float64
	Status    string
	Detail    string
}

// Summary is the test-summary.json payload.
type Summary struct {
	GeneratedAt        string               `json:"generated_at"`
	Sources            SourceCounts         `json:"sources"`
	TotalTests         int                  `json:"total_tests"`
	Passed             int                  `json:"passed"`
	Failed             int                  `json:"failed"`
	Errors             int                  `json:"errors"`
	Skipped            int                  `json:"skipped"`
	SuccessRate        float64              `json:"success_rate"`
	TotalExecutionTime float64              `json:"total_execution_time"`
	Categories         map[string]*Category `json:"categories"`
}

// HasFailures reports whether the consolidated totals should gate CI.
func (s Summary) HasFailures() bool {
	return s.Failed > 0 || s.Errors > 0
}

// SourceCounts is the artifact inventory.
type SourceCounts struct {
	JUnitReports int `json:"junit_reports"`
	JSONReports  int `json:"json_reports"`
	HTMLReports  int `json:"html_reports"`
	Screenshots  int `json:"screenshots"`
	Logs         int `json:"logs"`
}

// Category accumulates counters for one name-derived test category.
type Category struct {
	Tests  int     `json:"tests"`
	Passed int     `json:"passed"`
	Failed int     `json:"failed"`
	Errors int     `json:"errors"`
	Time   float64 `json:"time"`
}

// Config holds consolidation inputs and outputs.
type Config struct {
	// ArtifactsDir is the tree to scan.
	ArtifactsDir string
	// OutputDir is where the two outputs land, the working directory
	// when empty.
	OutputDir string
}

// Consolidator scans an artifacts directory and renders the combined
// outputs.
type Consolidator struct {
	log *logrus.Logger
	cfg Config
}

// NewConsolidator creates a consolidator for the given directories.
func NewConsolidator(log *logrus.Logger, cfg Config) *Consolidator {
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}

	return &Consolidator{
		log: log,
		cfg: cfg,
	}
}

// Run scans, aggregates, and writes both outputs. The returned summary
// drives the caller's exit code.
func (c *Consolidator) Run() (Summary, error) {
	info, err := os.Stat(c.cfg.ArtifactsDir)
	if err != nil {
		return Summary{}, fmt.Errorf("artifacts directory %s: %w", c.cfg.ArtifactsDir, err)
	}

	if !info.IsDir() {
		return Summary{}, fmt.Errorf("%s is not a directory", c.cfg.ArtifactsDir)
	}

	c.log.WithField("dir", c.cfg.ArtifactsDir).Info("Collecting test artifacts")

	set := c.collect()
	sum := c.summarize(set, time.Now())

	if err := os.MkdirAll(c.cfg.OutputDir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	htmlPath := filepath.Join(c.cfg.OutputDir, ReportFileName)
	if err := c.writeHTML(htmlPath, sum, set); err != nil {
		return Summary{}, err
	}

	jsonPath := filepath.Join(c.cfg.OutputDir, SummaryFileName)
	if err := c.writeSummary(jsonPath, sum); err != nil {
		return Summary{}, err
	}

	c.log.WithFields(logrus.Fields{
		"total":        sum.TotalTests,
		"passed":       sum.Passed,
		"failed":       sum.Failed,
		"errors":       sum.Errors,
		"success_rate": fmt.Sprintf("%.1f%%", sum.SuccessRate),
		"html":         htmlPath,
		"summary":      jsonPath,
	}).Info("Consolidated report generated")

	return sum, nil
}

type artifactSet struct {
	junit       []SourceReport
	harness     []harnessReport
	htmlReports []fileRef
	screenshots []fileRef
	logs        []fileRef
}

type harnessReport struct {
	Name string
	Doc  report.Document
}

type fileRef struct {
	Name string
	Path string
	Rel  string
	Size int64
}

func (c *Consolidator) collect() artifactSet {
	var set artifactSet

	_ = filepath.WalkDir(c.cfg.ArtifactsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			c.log.WithError(err).WithField("path", path).Warn("Skipping unreadable entry")
			return nil
		}

		if d.IsDir() {
			return nil
		}

		c.bucket(&set, path, d.Name())

		return nil
	})

	return set
}

// bucket classifies one file by name pattern. Malformed files are
// logged and excluded, never fatal to the scan.
func (c *Consolidator) bucket(set *artifactSet, path, name string) {
	rel, err := filepath.Rel(c.cfg.ArtifactsDir, path)
	if err != nil {
		rel = name
	}

	switch {
	case strings.Contains(name, "junit") && strings.HasSuffix(name, ".xml"):
		parsed, err := parseJUnitFile(path)
		if err != nil {
			c.log.WithError(err).WithField("file", rel).Warn("Skipping malformed JUnit report")
			return
		}

		parsed.Name = stem(name)
		set.junit = append(set.junit, parsed)

	case strings.HasPrefix(name, "test_report_") && strings.HasSuffix(name, ".json"):
		doc, err := parseHarnessFile(path)
		if err != nil {
			c.log.WithError(err).WithField("file", rel).Warn("Skipping malformed JSON report")
			return
		}

		set.harness = append(set.harness, harnessReport{Name: stem(name), Doc: doc})

	case strings.HasSuffix(name, ".html"):
		if name == ReportFileName {
			return
		}

		set.htmlReports = append(set.htmlReports, fileRef{Name: name, Path: path, Rel: rel})

	case strings.HasSuffix(name, ".png"):
		set.screenshots = append(set.screenshots, fileRef{Name: name, Path: path, Rel: rel, Size: fileSize(path)})

	case strings.HasSuffix(name, ".log"):
		set.logs = append(set.logs, fileRef{Name: name, Path: path, Rel: rel, Size: fileSize(path)})
	}
}

// summarize folds the JUnit totals and buckets them by category.
// Harness JSON results appear in the detail panels only, their numbers
// are already covered by whichever runner produced them.
func (c *Consolidator) summarize(set artifactSet, now time.Time) Summary {
	sum := Summary{
		GeneratedAt: now.Format("2006-01-02 15:04:05"),
		Categories:  map[string]*Category{},
		Sources: SourceCounts{
			JUnitReports: len(set.junit),
			JSONReports:  len(set.harness),
			HTMLReports:  len(set.htmlReports),
			Screenshots:  len(set.screenshots),
			Logs:         len(set.logs),
		},
	}

	for _, parsed := range set.junit {
		passed := parsed.Tests - parsed.Failures - parsed.Errors

		sum.TotalTests += parsed.Tests
		sum.Passed += passed
		sum.Failed += parsed.Failures
		sum.Errors += parsed.Errors
		sum.Skipped += parsed.Skipped
		sum.TotalExecutionTime += parsed.Time

		key := probe.DeriveCategory(parsed.Name)

		cat := sum.Categories[key]
		if cat == nil {
			cat = &Category{}
			sum.Categories[key] = cat
		}

		cat.Tests += parsed.Tests
		cat.Passed += passed
		cat.Failed += parsed.Failures
		cat.Errors += parsed.Errors
		cat.Time += parsed.Time
	}

	if sum.TotalTests > 0 {
		sum.SuccessRate = float64(sum.Passed) / float64(sum.TotalTests) * 100
	}

	return sum
}

func (c *Consolidator) writeSummary(path string, sum Summary) error {
	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", SummaryFileName, err)
	}

	return nil
}

func parseHarnessFile(path string) (report.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return report.Document{}, err
	}

	var doc report.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return report.Document{}, err
	}

	return doc, nil
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}

	return info.Size()
}
