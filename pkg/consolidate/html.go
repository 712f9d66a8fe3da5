package consolidate

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"sort"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/molkabha/telegram-bot-automation-testing/pkg/report"
)

var titleCaser = cases.Title(language.English)

func (c *Consolidator) writeHTML(path string, sum Summary, set artifactSet) error {
	data := c.dashboard(sum, set)

	var buf bytes.Buffer
	if err := dashboardTemplate.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", ReportFileName, err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", ReportFileName, err)
	}

	return nil
}

type dashboardData struct {
	Title       string
	GeneratedAt string
	TotalTests  int
	Passed      int
	Failed      int
	Errors      int
	SuccessRate string
	TotalTime   string
	Categories  []categoryView
	Inventory   SourceCounts
	HTMLReports []fileRef
	Screenshots []screenshotView
	Panels      []sourcePanel
	LogExcerpts []logExcerpt
}

type categoryView struct {
	Name    string
	Tests   int
	Passed  int
	Failed  int
	Errors  int
	Rate    string
	RatePct float64
	Time    string
}

type screenshotView struct {
	Name    string
	DataURI template.URL
}

type sourcePanel struct {
	Title string
	Total int
	Cases []caseView
}

type caseView struct {
	Name        string
	ClassName   string
	Time        string
	Status      string
	StatusClass string
	Detail      string
}

type logExcerpt struct {
	Name string
	Size string
	Tail string
}

func (c *Consolidator) dashboard(sum Summary, set artifactSet) dashboardData {
	data := dashboardData{
		Title:       "Telegram Bot Test Results",
		GeneratedAt: sum.GeneratedAt,
		TotalTests:  sum.TotalTests,
		Passed:      sum.Passed,
		Failed:      sum.Failed,
		Errors:      sum.Errors,
		SuccessRate: fmt.Sprintf("%.1f%%", sum.SuccessRate),
		TotalTime:   fmt.Sprintf("%.1fs", sum.TotalExecutionTime),
		Inventory:   sum.Sources,
		HTMLReports: set.htmlReports,
	}

	keys := make([]string, 0, len(sum.Categories))
	for key := range sum.Categories {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		cat := sum.Categories[key]

		var rate float64
		if cat.Tests > 0 {
			rate = float64(cat.Passed) / float64(cat.Tests) * 100
		}

		data.Categories = append(data.Categories, categoryView{
			Name:    titleCaser.String(key),
			Tests:   cat.Tests,
			Passed:  cat.Passed,
			Failed:  cat.Failed,
			Errors:  cat.Errors,
			Rate:    fmt.Sprintf("%.1f%%", rate),
			RatePct: rate,
			Time:    fmt.Sprintf("%.1fs", cat.Time),
		})
	}

	for i, shot := range set.screenshots {
		if i == maxGalleryScreenshots {
			break
		}

		uri := report.InlineImage(shot.Path)
		if uri == "" {
			c.log.WithField("file", shot.Rel).Warn("Skipping unreadable screenshot")
			continue
		}

		data.Screenshots = append(data.Screenshots, screenshotView{
			Name:    shot.Name,
			DataURI: template.URL(uri),
		})
	}

	for _, parsed := range set.junit {
		panel := sourcePanel{
			Title: titleCaser.String(parsed.Name),
			Total: len(parsed.Cases),
		}

		for i, tc := range parsed.Cases {
			if i == maxCasesPerSource {
				break
			}

			panel.Cases = append(panel.Cases, caseView{
				Name:        tc.Name,
				ClassName:   tc.ClassName,
				Time:        fmt.Sprintf("%.2fs", tc.Time),
				Status:      titleCaser.String(tc.Status),
				StatusClass: tc.Status,
				Detail:      tc.Detail,
			})
		}

		data.Panels = append(data.Panels, panel)
	}

	for _, h := range set.harness {
		panel := sourcePanel{
			Title: h.Name,
			Total: len(h.Doc.Results),
		}

		for i, r := range h.Doc.Results {
			if i == maxCasesPerSource {
				break
			}

			status := normalizeStatus(r.Status)

			panel.Cases = append(panel.Cases, caseView{
				Name:        r.TestName,
				Time:        fmt.Sprintf("%.2fs", r.ExecutionTime),
				Status:      titleCaser.String(status),
				StatusClass: status,
				Detail:      r.ErrorMessage,
			})
		}

		data.Panels = append(data.Panels, panel)
	}

	for i, logFile := range set.logs {
		if i == maxLogExcerpts {
			break
		}

		tail := tailOf(logFile.Path, logTailBytes)
		if tail == "" {
			continue
		}

		data.LogExcerpts = append(data.LogExcerpts, logExcerpt{
			Name: logFile.Name,
			Size: fmt.Sprintf("%.1f KB", float64(logFile.Size)/1024),
			Tail: tail,
		})
	}

	return data
}

// normalizeStatus maps harness statuses (PASSED, FAILED, ERROR) onto
// the lowercase classes the dashboard uses.
func normalizeStatus(status string) string {
	switch status {
	case "PASSED", CasePassed:
		return CasePassed
	case "FAILED", CaseFailed:
		return CaseFailed
	case "SKIPPED", CaseSkipped:
		return CaseSkipped
	default:
		return CaseError
	}
}

// tailOf returns the trailing portion of a log file, cut at a line
// boundary. Unreadable files yield the empty string.
func tailOf(path string, limit int) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}

	if len(data) > limit {
		data = data[len(data)-limit:]
		if idx := bytes.IndexByte(data, '\n'); idx >= 0 && idx+1 < len(data) {
			data = data[idx+1:]
		}
	}

	return string(data)
}

var dashboardTemplate = template.Must(template.New("dashboard").Parse(dashboardHTML))

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}} - Consolidated Report</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); min-height: 100vh; padding: 20px; }
        .container { max-width: 1200px; margin: 0 auto; background: white; border-radius: 20px; box-shadow: 0 20px 40px rgba(0,0,0,0.1); overflow: hidden; }
        .header { background: linear-gradient(45deg, #4CAF50, #45a049); color: white; padding: 30px; text-align: center; }
        .header h1 { font-size: 2.2em; margin-bottom: 10px; }
        .header .subtitle { font-size: 1.1em; opacity: 0.9; }
        .summary-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(160px, 1fr)); gap: 20px; padding: 30px; background: #f8f9fa; }
        .summary-card { background: white; padding: 22px; border-radius: 15px; text-align: center; box-shadow: 0 5px 15px rgba(0,0,0,0.08); }
        .summary-card .number { font-size: 2.2em; font-weight: bold; margin-bottom: 8px; }
        .summary-card .label { color: #666; font-size: 1em; }
        .passed { color: #4CAF50; }
        .failed { color: #f44336; }
        .errors { color: #ff9800; }
        .success-rate { color: #2196F3; }
        .content { padding: 30px; }
        .section { margin-bottom: 40px; }
        .section h2 { color: #333; margin-bottom: 20px; padding-bottom: 10px; border-bottom: 3px solid #4CAF50; font-size: 1.6em; }
        .categories-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(300px, 1fr)); gap: 20px; }
        .category-card { background: #fff; border: 1px solid #ddd; border-radius: 10px; padding: 20px; }
        .category-card h3 { color: #333; margin-bottom: 12px; }
        .progress-bar { width: 100%; height: 18px; background: #eee; border-radius: 9px; overflow: hidden; margin: 10px 0; }
        .progress-fill { height: 100%; background: linear-gradient(90deg, #4CAF50, #45a049); }
        .artifacts-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(250px, 1fr)); gap: 15px; }
        .artifact-item { background: #f8f9fa; padding: 16px; border-radius: 8px; border: 1px solid #ddd; }
        .artifact-item h4 { margin-bottom: 8px; }
        .artifact-item ul { margin: 8px 0 0 18px; font-size: 0.9em; }
        .screenshot-gallery { display: grid; grid-template-columns: repeat(auto-fill, minmax(200px, 1fr)); gap: 15px; }
        .screenshot-item { border: 1px solid #ddd; border-radius: 8px; overflow: hidden; background: white; }
        .screenshot-item img { width: 100%; height: 150px; object-fit: cover; }
        .screenshot-item .caption { padding: 10px; font-size: 0.85em; color: #666; word-break: break-all; }
        .source-panel { background: #f8f9fa; border-radius: 10px; padding: 20px; margin-bottom: 20px; }
        .source-panel h3 { margin-bottom: 12px; }
        .source-panel .shown { color: #666; font-size: 0.85em; margin-bottom: 10px; }
        .test-case { background: white; border-radius: 8px; padding: 12px 15px; margin: 8px 0; border-left: 4px solid #ddd; }
        .test-case.passed { border-left-color: #4CAF50; }
        .test-case.failed { border-left-color: #f44336; }
        .test-case.error { border-left-color: #ff9800; }
        .test-case.skipped { border-left-color: #9e9e9e; }
        .test-case .meta { color: #666; font-size: 0.85em; margin-top: 4px; }
        .test-case .detail { margin-top: 6px; font-size: 0.85em; color: #b71c1c; white-space: pre-wrap; word-break: break-word; }
        .log-excerpt { background: #263238; color: #eceff1; border-radius: 8px; padding: 15px; margin-bottom: 15px; font-family: 'SF Mono', Monaco, Consolas, monospace; font-size: 0.8em; overflow-x: auto; }
        .log-excerpt .log-name { color: #80cbc4; margin-bottom: 8px; font-weight: bold; }
        .log-excerpt pre { white-space: pre-wrap; word-break: break-word; }
        .footer { background: #333; color: white; text-align: center; padding: 18px; font-size: 0.9em; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>&#129302; {{.Title}}</h1>
            <div class="subtitle">Consolidated Report Generated on {{.GeneratedAt}}</div>
        </div>

        <div class="summary-grid">
            <div class="summary-card"><div class="number">{{.TotalTests}}</div><div class="label">Total Tests</div></div>
            <div class="summary-card"><div class="number passed">{{.Passed}}</div><div class="label">Passed</div></div>
            <div class="summary-card"><div class="number failed">{{.Failed}}</div><div class="label">Failed</div></div>
            <div class="summary-card"><div class="number errors">{{.Errors}}</div><div class="label">Errors</div></div>
            <div class="summary-card"><div class="number success-rate">{{.SuccessRate}}</div><div class="label">Success Rate</div></div>
            <div class="summary-card"><div class="number">{{.TotalTime}}</div><div class="label">Total Time</div></div>
        </div>

        <div class="content">
            {{if .Categories}}
            <div class="section">
                <h2>Test Categories</h2>
                <div class="categories-grid">
                    {{range .Categories}}
                    <div class="category-card">
                        <h3>{{.Name}} Tests</h3>
                        <p>Total: {{.Tests}} | Passed: {{.Passed}} | Failed: {{.Failed}} | Errors: {{.Errors}}</p>
                        <div class="progress-bar">
                            <div class="progress-fill" style="width: {{printf "%.1f" .RatePct}}%"></div>
                        </div>
                        <p>Success Rate: {{.Rate}} | Time: {{.Time}}</p>
                    </div>
                    {{end}}
                </div>
            </div>
            {{end}}

            <div class="section">
                <h2>Test Artifacts</h2>
                <div class="artifacts-grid">
                    <div class="artifact-item">
                        <h4>HTML Reports</h4>
                        <p>{{.Inventory.HTMLReports}} reports found</p>
                        <ul>
                            {{range .HTMLReports}}<li><a href="{{.Rel}}" target="_blank">{{.Name}}</a></li>{{end}}
                        </ul>
                    </div>
                    <div class="artifact-item">
                        <h4>Screenshots</h4>
                        <p>{{.Inventory.Screenshots}} screenshots captured</p>
                    </div>
                    <div class="artifact-item">
                        <h4>Log Files</h4>
                        <p>{{.Inventory.Logs}} log files collected</p>
                    </div>
                </div>
            </div>

            {{if .Screenshots}}
            <div class="section">
                <h2>Screenshots Gallery</h2>
                <div class="screenshot-gallery">
                    {{range .Screenshots}}
                    <div class="screenshot-item">
                        <img src="{{.DataURI}}" alt="{{.Name}}" loading="lazy">
                        <div class="caption">{{.Name}}</div>
                    </div>
                    {{end}}
                </div>
            </div>
            {{end}}

            {{if .Panels}}
            <div class="section">
                <h2>Detailed Results</h2>
                {{range .Panels}}
                <div class="source-panel">
                    <h3>{{.Title}} Results</h3>
                    {{if gt .Total (len .Cases)}}<div class="shown">Showing {{len .Cases}} of {{.Total}} test cases</div>{{end}}
                    {{range .Cases}}
                    <div class="test-case {{.StatusClass}}">
                        <strong>{{.Name}}</strong>
                        <div class="meta">{{if .ClassName}}Class: {{.ClassName}} | {{end}}Time: {{.Time}} | Status: {{.Status}}</div>
                        {{if .Detail}}<div class="detail">{{.Detail}}</div>{{end}}
                    </div>
                    {{end}}
                </div>
                {{end}}
            </div>
            {{end}}

            {{if .LogExcerpts}}
            <div class="section">
                <h2>Log Excerpts</h2>
                {{range .LogExcerpts}}
                <div class="log-excerpt">
                    <div class="log-name">{{.Name}} ({{.Size}})</div>
                    <pre>{{.Tail}}</pre>
                </div>
                {{end}}
            </div>
            {{end}}
        </div>

        <div class="footer">
            Generated by the Telegram Bot Automation Testing harness
        </div>
    </div>
</body>
</html>
`
