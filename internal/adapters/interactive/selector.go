package interactive

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"github.com/sahilm/fuzzy"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
)

// ErrNonInteractive is returned when a prompt is needed but prompts are disabled
var ErrNonInteractive = errors.New("interactive prompt required; pass the value explicitly or drop --non-interactive")

// Selector handles interactive prompts
type Selector struct {
	nonInteractive bool
}

// NewSelector creates a new selector. With nonInteractive set every prompt
// fails with ErrNonInteractive.
func NewSelector(nonInteractive bool) *Selector {
	return &Selector{nonInteractive: nonInteractive}
}

// Confirm asks a yes/no question, defaulting to no
func (s *Selector) Confirm(label string) (bool, error) {
	if s.nonInteractive {
		return false, ErrNonInteractive
	}

	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, fmt.Errorf("confirmation cancelled: %w", err)
	}
	return true, nil
}

// SelectDeployment lets the user pick one of records with fuzzy search
func (s *Selector) SelectDeployment(label string, records []*models.DeploymentRecord) (*models.DeploymentRecord, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no deployments to choose from")
	}
	if len(records) == 1 {
		return records[0], nil
	}
	if s.nonInteractive {
		return nil, ErrNonInteractive
	}

	options := formatDeploymentOptions(records)
	keys := searchKeys(records)

	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "▸ {{ . | cyan }}",
		Inactive: "  {{ . | faint }}",
		Selected: "✓ {{ . | green }}",
		Help:     color.New(color.FgYellow).Sprint("Use arrow keys to navigate, type to search, Enter to select"),
	}

	promptSelect := promptui.Select{
		Label:             label,
		Items:             options,
		Templates:         templates,
		Size:              10,
		StartInSearchMode: true,
		Searcher:          createFuzzySearchFunc(keys),
	}

	index, _, err := promptSelect.Run()
	if err != nil {
		return nil, fmt.Errorf("selection cancelled: %w", err)
	}

	return records[index], nil
}

// formatDeploymentOptions renders "group [status] network id"
func formatDeploymentOptions(records []*models.DeploymentRecord) []string {
	options := make([]string, len(records))
	for i, rec := range records {
		status := color.New(color.FgYellow).Sprint(rec.Status)
		switch rec.Status {
		case models.StatusCompleted:
			status = color.New(color.FgGreen).Sprint(rec.Status)
		case models.StatusFailed:
			status = color.New(color.FgRed).Sprint(rec.Status)
		}

		options[i] = fmt.Sprintf("%s [%s] %s %s",
			color.New(color.FgWhite, color.Bold).Sprint(rec.Group),
			status,
			color.New(color.FgBlue).Sprint(rec.Network),
			color.New(color.Faint).Sprint(shortID(rec.ID)),
		)
	}
	return options
}

// searchKeys are the uncolored strings the searcher matches against
func searchKeys(records []*models.DeploymentRecord) []string {
	keys := make([]string, len(records))
	for i, rec := range records {
		keys[i] = strings.ToLower(strings.Join([]string{rec.Group, string(rec.Status), rec.Network, rec.ID}, " "))
	}
	return keys
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// createFuzzySearchFunc creates a fuzzy search function for promptui
func createFuzzySearchFunc(items []string) func(input string, index int) bool {
	return func(input string, index int) bool {
		// Empty search shows all items
		if input == "" {
			return true
		}

		input = strings.ToLower(input)
		item := items[index]

		if strings.Contains(item, input) {
			return true
		}

		return len(fuzzy.Find(input, []string{item})) > 0
	}
}
