package consolidate

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"
)

// Per-case statuses as rendered in the consolidated report.
const (
	CasePassed  = "passed"
	CaseFailed  = "failed"
	CaseError   = "error"
	CaseSkipped = "skipped"
)

type junitSuites struct {
	XMLName  xml.Name     `xml:"testsuites"`
	Tests    int          `xml:"tests,attr"`
	Failures int          `xml:"failures,attr"`
	Errors   int          `xml:"errors,attr"`
	Time     float64      `xml:"time,attr"`
	Suites   []junitSuite `xml:"testsuite"`
}

type junitSuite struct {
	XMLName  xml.Name    `xml:"testsuite"`
	Name     string      `xml:"name,attr"`
	Tests    int         `xml:"tests,attr"`
	Failures int         `xml:"failures,attr"`
	Errors   int         `xml:"errors,attr"`
	Time     float64     `xml:"time,attr"`
	Cases    []junitCase `xml:"testcase"`
}

type junitCase struct {
	Name      string       `xml:"name,attr"`
	ClassName string       `xml:"classname,attr"`
	Time      float64      `xml:"time,attr"`
	Failure   *junitMarker `xml:"failure"`
	Error     *junitMarker `xml:"error"`
	Skipped   *junitMarker `xml:"skipped"`
}

type junitMarker struct {
	Message string `xml:"message,attr"`
	Text    string `xml:",chardata"`
}

func (m *junitMarker) detail() string {
	if m == nil {
		return ""
	}

	if text := strings.TrimSpace(m.Text); text != "" {
		return text
	}

	return m.Message
}

// parseJUnit reads a JUnit document with either a <testsuites> or a
// <testsuite> root. Totals come from the root attributes; a bare
// <testsuites> wrapper without its own counts falls back to summing its
// child suites.
func parseJUnit(data []byte) (SourceReport, error) {
	var wrapper junitSuites
	if err := xml.Unmarshal(data, &wrapper); err == nil {
		return wrapperReport(wrapper), nil
	}

	var suite junitSuite
	if err := xml.Unmarshal(data, &suite); err != nil {
		return SourceReport{}, fmt.Errorf("not a JUnit document: %w", err)
	}

	return suiteReport(suite), nil
}

func parseJUnitFile(path string) (SourceReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SourceReport{}, err
	}

	return parseJUnit(data)
}

func wrapperReport(wrapper junitSuites) SourceReport {
	report := SourceReport{
		Tests:    wrapper.Tests,
		Failures: wrapper.Failures,
		Errors:   wrapper.Errors,
		Time:     wrapper.Time,
	}

	bare := wrapper.Tests == 0 && wrapper.Failures == 0 && wrapper.Errors == 0

	for _, suite := range wrapper.Suites {
		if bare {
			report.Tests += suite.Tests
			report.Failures += suite.Failures
			report.Errors += suite.Errors
		}
		if wrapper.Time == 0 {
			report.Time += suite.Time
		}

		report.appendCases(suite.Cases)
	}

	return report
}

func suiteReport(suite junitSuite) SourceReport {
	report := SourceReport{
		Tests:    suite.Tests,
		Failures: suite.Failures,
		Errors:   suite.Errors,
		Time:     suite.Time,
	}

	report.appendCases(suite.Cases)

	return report
}

func (r *SourceReport) appendCases(cases []junitCase) {
	for _, c := range cases {
		status, detail := caseOutcome(c)
		if status == CaseSkipped {
			r.Skipped++
		}

		r.Cases = append(r.Cases, TestCase{
			Name:      c.Name,
			ClassName: c.ClassName,
			Time:      c.Time,
			Status:    status,
			Detail:    detail,
		})
	}
}

// caseOutcome resolves a testcase's nested markers, first match wins.
func caseOutcome(c junitCase) (string, string) {
	switch {
	case c.Failure != nil:
		return CaseFailed, c.Failure.detail()
	case c.Error != nil:
		return CaseError, c.Error.detail()
	case c.Skipped != nil:
		return CaseSkipped, c.Skipped.detail()
	default:
		return CasePassed, ""
	}
}
