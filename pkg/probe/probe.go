package probe

import (
	"fmt"
	"strings"
	"time"

	"github.com/molkabha/telegram-bot-automation-testing/pkg/channel"
)

// Result represents the outcome of a single probe.
type Result struct {
	TestName       string
	Status         Status
	ExecutionTime  time.Duration
	Timestamp      time.Time
	ErrorMessage   string
	ScreenshotPath string
	Details        map[string]interface{}
}

// Status represents the status of a probe.
type Status string

// Define the statuses.
const (
	StatusPassed Status = "PASSED"
	StatusFailed Status = "FAILED"
	StatusError  Status = "ERROR"
)

// Probe describes a single message exchange to validate.
type Probe struct {
	Name     string
	Category string
	Message  string
	// Keywords the reply must contain, matched case-insensitively. An
	// empty list accepts any non-empty reply.
	Keywords []string
	// MatchAll requires every keyword instead of any one of them.
	MatchAll bool
	// Channel names the kind this probe should run on. Empty means the
	// runner's default channel.
	Channel channel.Kind
	// Timeout overrides the executor's default when non-zero.
	Timeout time.Duration
}

// EffectiveCategory returns the probe's category, deriving one from the
// name when unset.
func (p Probe) EffectiveCategory() string {
	if p.Category != "" {
		return p.Category
	}

	return DeriveCategory(p.Name)
}

// DeriveCategory buckets a test name by its first dash-separated token.
// Names without a dash land in "general".
func DeriveCategory(name string) string {
	if i := strings.IndexByte(name, '-'); i > 0 {
		return strings.ToLower(name[:i])
	}

	return "general"
}

// ScreenshotName builds the file name for a probe's failure screenshot.
func ScreenshotName(name string, at time.Time) string {
	sanitized := strings.NewReplacer(" ", "_", "/", "-").Replace(name)

	return fmt.Sprintf("%s_%s.png", sanitized, at.Format("20060102_150405"))
}
