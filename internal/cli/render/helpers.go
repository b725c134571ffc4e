package render

import (
	"strings"

	"github.com/fatih/color"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	headerStyle    = color.New(color.FgCyan, color.Bold)
	sectionStyle   = color.New(color.Bold, color.FgHiWhite)
	nameStyle      = color.New(color.FgYellow)
	addressStyle   = color.New(color.FgWhite)
	faintStyle     = color.New(color.Faint)
	successStyle   = color.New(color.FgGreen)
	failureStyle   = color.New(color.FgRed)
	pendingStyle   = color.New(color.FgYellow)
	progressStyle  = color.New(color.FgBlue)
	recommendStyle = color.New(color.FgCyan)
)

var titleCaser = cases.Title(language.English)

// StatusLabel title-cases a status, e.g. "in_progress" -> "In Progress"
func StatusLabel(status string) string {
	return titleCaser.String(strings.ReplaceAll(status, "_", " "))
}

// colorStatus renders a deployment status label in its color
func colorStatus(status models.DeploymentStatus) string {
	label := StatusLabel(string(status))
	switch status {
	case models.StatusCompleted:
		return successStyle.Sprint(label)
	case models.StatusFailed:
		return failureStyle.Sprint(label)
	case models.StatusInProgress, models.StatusInitialized:
		return progressStyle.Sprint(label)
	default:
		return pendingStyle.Sprint(label)
	}
}

func colorStepStatus(status models.StepStatus) string {
	label := StatusLabel(string(status))
	switch status {
	case models.StepSucceeded:
		return successStyle.Sprint(label)
	case models.StepFailed:
		return failureStyle.Sprint(label)
	default:
		return pendingStyle.Sprint(label)
	}
}

// FormatWarning formats a warning message with the warning icon
func FormatWarning(message string) string {
	return color.New(color.FgYellow).Sprintf("⚠️  %s", message)
}

// FormatError formats an error message with the error icon
func FormatError(message string) string {
	if len(message) > 0 {
		message = strings.ToUpper(message[:1]) + message[1:]
	}
	return color.New(color.FgRed).Sprintf("❌ %s", message)
}

// FormatSuccess formats a success message with the success icon
func FormatSuccess(message string) string {
	return color.New(color.FgGreen).Sprintf("✅ %s", message)
}

// ShortID abbreviates a deployment id for tables
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
