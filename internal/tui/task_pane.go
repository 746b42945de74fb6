package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/scoobyjava/cherry-scheduler/internal/events"
)

// TaskState tracks the display state of one scheduled task.
type TaskState struct {
	ID        string
	Name      string
	Status    string
	Attempt   int
	Priority  int
	Log       []string // Lifecycle lines shown in the detail viewport
	StartTime time.Time
	Duration  time.Duration
}

// TaskPaneModel renders the task list and a detail viewport for the selection.
type TaskPaneModel struct {
	tasks       map[string]*TaskState // taskID -> state
	taskOrder   []string              // insertion order for display
	selectedIdx int
	viewport    viewport.Model
	width       int
	height      int
	focused     bool
}

// NewTaskPaneModel creates a new task pane model.
func NewTaskPaneModel() TaskPaneModel {
	vp := viewport.New(0, 0)
	return TaskPaneModel{
		tasks:    make(map[string]*TaskState),
		viewport: vp,
	}
}

// Update handles messages for the task pane.
func (m TaskPaneModel) Update(msg tea.Msg) (TaskPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()

	case tea.KeyMsg:
		if !m.focused {
			break
		}
		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.taskOrder)-1 {
				m.selectedIdx++
				m.updateViewportContent()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.updateViewportContent()
			}
		default:
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.TaskQueuedEvent:
		state := &TaskState{
			ID:       msg.ID,
			Name:     msg.Name,
			Status:   "blocked",
			Priority: msg.Priority,
		}
		if !msg.Blocked {
			state.Status = "ready"
		}
		state.Log = append(state.Log, fmt.Sprintf("queued (priority %d)", msg.Priority))
		m.tasks[msg.ID] = state
		m.taskOrder = append(m.taskOrder, msg.ID)
		m.updateViewportContent()

	case events.TaskReadyEvent:
		m.transition(msg.ID, "ready", "dependencies satisfied")

	case events.TaskStartedEvent:
		if state, ok := m.tasks[msg.ID]; ok {
			state.Status = "running"
			state.Attempt = msg.Attempt
			state.StartTime = msg.Timestamp
			state.Log = append(state.Log, fmt.Sprintf("started (attempt %d)", msg.Attempt))
			m.updateViewportContent()
		}

	case events.TaskDeferredEvent:
		m.transition(msg.ID, "deferred", "deferred: "+msg.Reason)

	case events.TaskRetriedEvent:
		m.transition(msg.ID, "pending", fmt.Sprintf("attempt %d failed: %v", msg.Attempt, msg.Err))

	case events.TaskCompletedEvent:
		if state, ok := m.tasks[msg.ID]; ok {
			state.Status = "completed"
			state.Duration = msg.Duration
			state.Log = append(state.Log, fmt.Sprintf("completed in %s", msg.Duration.Round(time.Millisecond)))
			m.updateViewportContent()
		}

	case events.TaskFailedEvent:
		m.transition(msg.ID, "failed", fmt.Sprintf("failed permanently after %d attempts: %v", msg.Attempts, msg.Err))

	case events.TaskSkippedEvent:
		m.transition(msg.ID, "skipped", "skipped: dependency "+msg.FailedDep+" failed")
	}

	return m, cmd
}

func (m *TaskPaneModel) transition(taskID, status, line string) {
	if state, ok := m.tasks[taskID]; ok {
		state.Status = status
		state.Log = append(state.Log, line)
		m.updateViewportContent()
	}
}

// View renders the task list next to the detail viewport.
func (m TaskPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	listWidth := m.width / 3
	var list strings.Builder
	list.WriteString(StyleTitle.Render("Tasks"))
	list.WriteString("\n\n")

	for i, id := range m.taskOrder {
		state := m.tasks[id]
		marker := "  "
		if i == m.selectedIdx {
			marker = "> "
		}
		name := state.Name
		if name == "" {
			name = state.ID
		}
		line := fmt.Sprintf("%s%s %s", marker, statusStyle(state.Status).Render(statusGlyph(state.Status)), name)
		if lipgloss.Width(line) > listWidth-2 {
			line = line[:listWidth-2]
		}
		list.WriteString(line)
		list.WriteString("\n")
	}

	listPane := lipgloss.NewStyle().Width(listWidth).Render(list.String())
	detail := m.viewport.View()

	content := lipgloss.JoinHorizontal(lipgloss.Top, listPane, detail)

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

// updateViewportContent refreshes the detail viewport for the selected task.
func (m *TaskPaneModel) updateViewportContent() {
	if m.selectedIdx >= len(m.taskOrder) {
		m.viewport.SetContent("")
		return
	}
	state := m.tasks[m.taskOrder[m.selectedIdx]]

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Task: %s\n", state.ID))
	if state.Name != "" {
		b.WriteString(fmt.Sprintf("Name: %s\n", state.Name))
	}
	b.WriteString(fmt.Sprintf("Status: %s\n", state.Status))
	b.WriteString(fmt.Sprintf("Priority: %d\n\n", state.Priority))
	for _, line := range state.Log {
		b.WriteString(line)
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m *TaskPaneModel) resizeViewport() {
	listWidth := m.width / 3
	m.viewport.Width = m.width - listWidth - 4
	m.viewport.Height = m.height - 4
	m.updateViewportContent()
}

// SetSize updates the pane dimensions.
func (m *TaskPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *TaskPaneModel) SetFocused(focused bool) {
	m.focused = focused
}

func statusGlyph(status string) string {
	switch status {
	case "completed":
		return "+"
	case "failed":
		return "!"
	case "running":
		return "*"
	case "skipped":
		return "x"
	default:
		return "."
	}
}

func statusStyle(status string) lipgloss.Style {
	switch status {
	case "completed":
		return StyleStatusComplete
	case "failed":
		return StyleStatusFailed
	case "running":
		return StyleStatusRunning
	case "skipped":
		return StyleStatusSkipped
	default:
		return StyleStatusPending
	}
}
