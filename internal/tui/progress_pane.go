package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/scoobyjava/cherry-scheduler/internal/events"
)

// ProgressPaneModel displays scheduler-wide status counts and a progress bar.
type ProgressPaneModel struct {
	total     int
	blocked   int
	ready     int
	running   int
	completed int
	failed    int
	skipped   int
	width     int
	height    int
	focused   bool
}

// NewProgressPaneModel creates a new progress pane model.
func NewProgressPaneModel() ProgressPaneModel {
	return ProgressPaneModel{}
}

// Update handles messages for the progress pane.
func (m ProgressPaneModel) Update(msg tea.Msg) (ProgressPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case events.ProgressEvent:
		m.total = msg.Total
		m.blocked = msg.Blocked
		m.ready = msg.Ready
		m.running = msg.Running
		m.completed = msg.Completed
		m.failed = msg.Failed
		m.skipped = msg.Skipped
	}

	return m, nil
}

// View renders the progress pane.
func (m ProgressPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Scheduler Progress")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("Total:     %d\n", m.total))
	b.WriteString(fmt.Sprintf("Completed: %s\n", StyleStatusComplete.Render(fmt.Sprintf("%d", m.completed))))
	b.WriteString(fmt.Sprintf("Running:   %s\n", StyleStatusRunning.Render(fmt.Sprintf("%d", m.running))))
	b.WriteString(fmt.Sprintf("Failed:    %s\n", StyleStatusFailed.Render(fmt.Sprintf("%d", m.failed))))
	b.WriteString(fmt.Sprintf("Skipped:   %s\n", StyleStatusSkipped.Render(fmt.Sprintf("%d", m.skipped))))
	b.WriteString(fmt.Sprintf("Ready:     %s\n", StyleStatusPending.Render(fmt.Sprintf("%d", m.ready))))
	b.WriteString(fmt.Sprintf("Blocked:   %s\n", StyleStatusPending.Render(fmt.Sprintf("%d", m.blocked))))

	b.WriteString("\n")

	terminal := m.completed + m.failed + m.skipped
	if m.total > 0 {
		barWidth := minInt(m.width-4, 40)
		completedWidth := (m.completed * barWidth) / m.total
		failedWidth := ((m.failed + m.skipped) * barWidth) / m.total
		runningWidth := (m.running * barWidth) / m.total
		restWidth := barWidth - completedWidth - failedWidth - runningWidth

		bar := StyleStatusComplete.Render(strings.Repeat("=", maxInt(0, completedWidth)))
		bar += StyleStatusFailed.Render(strings.Repeat("!", maxInt(0, failedWidth)))
		bar += StyleStatusRunning.Render(strings.Repeat("-", maxInt(0, runningWidth)))
		bar += StyleStatusPending.Render(strings.Repeat(".", maxInt(0, restWidth)))

		b.WriteString(fmt.Sprintf("[%s]  %d/%d\n", bar, terminal, m.total))
	}

	content := b.String()

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

// SetSize updates the pane dimensions.
func (m *ProgressPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *ProgressPaneModel) SetFocused(focused bool) {
	m.focused = focused
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
