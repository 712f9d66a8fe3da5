package report

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/molkabha/telegram-bot-automation-testing/pkg/probe"
	"github.com/molkabha/telegram-bot-automation-testing/pkg/session"
)

// WriteHTML writes the self contained HTML report and returns its path.
// Screenshots are inlined as base64 so the file can be shipped around on
// its own.
func (g *Generator) WriteHTML(s *session.Session) (string, error) {
	now := time.Now()

	data, err := g.renderHTML(s, now)
	if err != nil {
		return "", fmt.Errorf("failed to render HTML report: %w", err)
	}

	path, err := g.write(fmt.Sprintf("test_report_%s.html", now.Format(fileStampFormat)), data)
	if err != nil {
		return "", err
	}

	g.log.WithFields(logrus.Fields{
		"session": s.ID(),
		"path":    path,
		"results": s.Len(),
	}).Info("Wrote HTML report")

	g.metrics.ObserveArtifact("html", len(data))

	return path, nil
}

type htmlData struct {
	Title       string
	GeneratedAt string
	Metadata    Metadata
	Results     []htmlResult
}

type htmlResult struct {
	Name           string
	Status         string
	StatusClass    string
	Duration       string
	Timestamp      string
	Error          string
	Details        []htmlDetail
	Screenshot     template.URL
	ScreenshotNote string
}

type htmlDetail struct {
	Key   string
	Value string
}

func (g *Generator) renderHTML(s *session.Session, now time.Time) ([]byte, error) {
	doc := htmlData{
		Title:       "Telegram Bot Test Report",
		GeneratedAt: now.Format("2006-01-02 15:04:05"),
		Metadata:    g.document(s, now).Metadata,
	}

	for _, r := range s.Results() {
		doc.Results = append(doc.Results, g.newHTMLResult(r))
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, doc); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (g *Generator) newHTMLResult(r probe.Result) htmlResult {
	hr := htmlResult{
		Name:        r.TestName,
		Status:      string(r.Status),
		StatusClass: statusClass(r.Status),
		Duration:    fmt.Sprintf("%.2fs", r.ExecutionTime.Seconds()),
		Timestamp:   r.Timestamp.Format("2006-01-02 15:04:05 MST"),
		Error:       r.ErrorMessage,
		Details:     sortedDetails(r.Details),
	}

	if r.ScreenshotPath == "" {
		return hr
	}

	if uri := g.loadScreenshot(r.ScreenshotPath); uri != "" {
		hr.Screenshot = template.URL(uri)
	} else {
		hr.ScreenshotNote = fmt.Sprintf("screenshot %s could not be read", filepath.Base(r.ScreenshotPath))
	}

	return hr
}

// loadScreenshot reads a result screenshot as a data URI. Relative paths
// are retried against the configured screenshot directory. A missing
// file returns the empty string, never an error.
func (g *Generator) loadScreenshot(path string) string {
	candidates := []string{path}
	if g.screenshotDir != "" && !filepath.IsAbs(path) {
		candidates = append(candidates, filepath.Join(g.screenshotDir, path))
	}

	for _, candidate := range candidates {
		if uri := InlineImage(candidate); uri != "" {
			return uri
		}
	}

	return ""
}

// InlineImage reads a PNG screenshot into a base64 data URI suitable
// for embedding. An unreadable file yields the empty string.
func InlineImage(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}

func statusClass(status probe.Status) string {
	switch status {
	case probe.StatusPassed:
		return "passed"
	case probe.StatusFailed:
		return "failed"
	default:
		return "error"
	}
}

func sortedDetails(details map[string]interface{}) []htmlDetail {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	out := make([]htmlDetail, 0, len(keys))
	for _, k := range keys {
		out = append(out, htmlDetail{Key: k, Value: fmt.Sprintf("%v", details[k])})
	}

	return out
}

var reportTemplate = template.Must(template.New("report").Parse(htmlTemplate))

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; margin: 0; background: #f5f6f8; color: #1f2933; line-height: 1.5; }
        .container { max-width: 960px; margin: 24px auto; padding: 0 16px; }
        .header { background: #fff; border: 1px solid #e4e7eb; border-radius: 8px; padding: 20px 24px; margin-bottom: 16px; }
        .header h1 { margin: 0 0 4px; font-size: 22px; }
        .generated { color: #6b7280; font-size: 13px; }
        .summary { display: grid; grid-template-columns: repeat(auto-fit, minmax(130px, 1fr)); gap: 12px; margin-bottom: 16px; }
        .stat-card { background: #fff; border: 1px solid #e4e7eb; border-radius: 8px; padding: 14px; text-align: center; }
        .stat-number { font-size: 26px; font-weight: 600; }
        .stat-number.passed { color: #22a06b; }
        .stat-number.failed { color: #de350b; }
        .stat-number.error { color: #ff8b00; }
        .stat-label { font-size: 12px; color: #6b7280; text-transform: uppercase; letter-spacing: 0.04em; }
        .result { background: #fff; border: 1px solid #e4e7eb; border-left: 4px solid #6b7280; border-radius: 6px; margin-bottom: 10px; }
        .result.passed { border-left-color: #22a06b; }
        .result.failed { border-left-color: #de350b; }
        .result.error { border-left-color: #ff8b00; }
        .result summary { display: flex; align-items: center; gap: 12px; padding: 12px 16px; cursor: pointer; }
        .badge { font-size: 11px; font-weight: 600; padding: 2px 8px; border-radius: 10px; color: #fff; background: #6b7280; }
        .badge.passed { background: #22a06b; }
        .badge.failed { background: #de350b; }
        .badge.error { background: #ff8b00; }
        .result-name { flex: 1; font-size: 14px; font-weight: 500; }
        .result-duration { font-size: 12px; color: #6b7280; }
        .result-body { padding: 0 16px 14px; border-top: 1px solid #e4e7eb; }
        .meta-row { display: flex; gap: 12px; margin-top: 10px; font-size: 13px; }
        .meta-label { color: #6b7280; min-width: 110px; }
        .meta-value { white-space: pre-wrap; word-break: break-word; }
        .error-box { margin-top: 10px; padding: 10px 12px; background: #ffebe6; border: 1px solid #de350b; border-radius: 6px; font-size: 13px; }
        .screenshot { display: block; max-width: 100%; margin-top: 12px; border: 1px solid #e4e7eb; border-radius: 6px; }
        .screenshot-note { margin-top: 12px; font-size: 12px; color: #6b7280; font-style: italic; }
        .empty { background: #fff; border: 1px dashed #e4e7eb; border-radius: 8px; padding: 32px; text-align: center; color: #6b7280; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>{{.Title}}</h1>
            <div class="generated">Generated at {{.GeneratedAt}}</div>
        </div>

        <div class="summary">
            <div class="stat-card"><div class="stat-number">{{.Metadata.TotalTests}}</div><div class="stat-label">Total</div></div>
            <div class="stat-card"><div class="stat-number passed">{{.Metadata.Passed}}</div><div class="stat-label">Passed</div></div>
            <div class="stat-card"><div class="stat-number failed">{{.Metadata.Failed}}</div><div class="stat-label">Failed</div></div>
            <div class="stat-card"><div class="stat-number error">{{.Metadata.Errors}}</div><div class="stat-label">Errors</div></div>
            <div class="stat-card"><div class="stat-number">{{.Metadata.SuccessRate}}</div><div class="stat-label">Success rate</div></div>
            <div class="stat-card"><div class="stat-number">{{.Metadata.AverageExecutionTime}}</div><div class="stat-label">Avg time</div></div>
        </div>

        {{range .Results}}
        <details class="result {{.StatusClass}}">
            <summary>
                <span class="badge {{.StatusClass}}">{{.Status}}</span>
                <span class="result-name">{{.Name}}</span>
                <span class="result-duration">{{.Duration}}</span>
            </summary>
            <div class="result-body">
                <div class="meta-row"><span class="meta-label">Executed</span><span class="meta-value">{{.Timestamp}}</span></div>
                {{range .Details}}
                <div class="meta-row"><span class="meta-label">{{.Key}}</span><span class="meta-value">{{.Value}}</span></div>
                {{end}}
                {{if .Error}}<div class="error-box">{{.Error}}</div>{{end}}
                {{if .Screenshot}}<img class="screenshot" src="{{.Screenshot}}" alt="screenshot for {{.Name}}">{{end}}
                {{if .ScreenshotNote}}<div class="screenshot-note">{{.ScreenshotNote}}</div>{{end}}
            </div>
        </details>
        {{else}}
        <div class="empty">No probes ran in this session.</div>
        {{end}}
    </div>
</body>
</html>
`
