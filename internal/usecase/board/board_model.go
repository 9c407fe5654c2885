package board

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"maintflow/internal/bootstrap/logging"
	"maintflow/internal/domain/workorder"
	"maintflow/internal/usecase/lifecycle"
)

const maxShownEntries = 5
const maxAuditLines = 8

// Backend is the slice of the lifecycle service the board drives.
type Backend interface {
	ListQueue(ctx context.Context, input lifecycle.ListQueueInput) ([]workorder.WorkOrder, error)
	Timeline(ctx context.Context, ref string) (lifecycle.Timeline, error)
	Approve(ctx context.Context, input lifecycle.ApproveInput) (lifecycle.Result, error)
	StartExecution(ctx context.Context, input lifecycle.ExecutionInput) (lifecycle.Result, error)
	Pause(ctx context.Context, input lifecycle.ExecutionInput) (lifecycle.Result, error)
	Resume(ctx context.Context, input lifecycle.ExecutionInput) (lifecycle.Result, error)
	Verify(ctx context.Context, input lifecycle.ExecutionInput) (lifecycle.Result, error)
	Close(ctx context.Context, input lifecycle.ExecutionInput) (lifecycle.Result, error)
}

type Options struct {
	Actor           string
	Discipline      string
	TechnicianID    string
	TeamID          string
	RefreshInterval time.Duration
}

type boardModel struct {
	ctx             context.Context
	backend         Backend
	actor           string
	filter          lifecycle.ListQueueInput
	refreshInterval time.Duration

	orders        []workorder.WorkOrder
	selectedIndex int
	timeline      lifecycle.Timeline
	hasTimeline   bool
	status        string
	auditLogs     []string
}

type queueLoadedMsg struct {
	items []workorder.WorkOrder
	err   error
}

type timelineLoadedMsg struct {
	ref      string
	timeline lifecycle.Timeline
	err      error
}

type tickMsg struct{}

type actionDoneMsg struct {
	action string
	ref    string
	result string
	err    error
}

func NewBoardModel(ctx context.Context, backend Backend, options Options) tea.Model {
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &boardModel{
		ctx:     ctx,
		backend: backend,
		actor:   strings.TrimSpace(options.Actor),
		filter: lifecycle.ListQueueInput{
			Discipline:   strings.TrimSpace(options.Discipline),
			TechnicianID: strings.TrimSpace(options.TechnicianID),
			TeamID:       strings.TrimSpace(options.TeamID),
		},
		refreshInterval: interval,
		status:          "loading",
	}
}

func (m *boardModel) Init() tea.Cmd {
	return tea.Batch(m.loadQueueCmd(), m.tickCmd())
}

func (m *boardModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		return m, tea.Batch(m.loadQueueCmd(), m.tickCmd())
	case queueLoadedMsg:
		if msg.err != nil {
			m.status = "refresh failed: " + msg.err.Error()
			return m, nil
		}
		m.orders = msg.items
		if len(m.orders) == 0 {
			m.selectedIndex = 0
			m.hasTimeline = false
			m.status = "queue is empty"
			return m, nil
		}
		m.selectedIndex = min(max(m.selectedIndex, 0), len(m.orders)-1)
		m.status = fmt.Sprintf("refreshed, %d open", len(m.orders))
		return m, m.loadTimelineCmd()
	case timelineLoadedMsg:
		selected, ok := m.selectedOrder()
		if !ok || selected.Number != msg.ref {
			return m, nil
		}
		if msg.err != nil {
			m.hasTimeline = false
			m.status = "timeline failed: " + msg.err.Error()
			return m, nil
		}
		m.timeline = msg.timeline
		m.hasTimeline = true
		return m, nil
	case actionDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
			m.appendAuditLog(msg.action, msg.ref, "failed", msg.err)
		} else {
			m.status = fmt.Sprintf("%s done: %s", msg.action, msg.result)
			m.appendAuditLog(msg.action, msg.ref, msg.result, nil)
		}
		return m, m.loadQueueCmd()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "g":
			m.status = "refreshing"
			return m, m.loadQueueCmd()
		case "up", "k":
			if m.selectedIndex > 0 {
				m.selectedIndex--
				return m, m.loadTimelineCmd()
			}
			return m, nil
		case "down", "j":
			if m.selectedIndex < len(m.orders)-1 {
				m.selectedIndex++
				return m, m.loadTimelineCmd()
			}
			return m, nil
		case "a":
			return m, m.approveCmd()
		case "s":
			return m, m.executionCmd("start", m.backend.StartExecution)
		case "p":
			return m, m.pauseOrResumeCmd()
		case "v":
			return m, m.executionCmd("verify", m.backend.Verify)
		case "x":
			return m, m.executionCmd("close", m.backend.Close)
		}
	}
	return m, nil
}

func (m *boardModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("Work Order Board"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf(
		"actor=%s discipline=%s technician=%s team=%s refresh=%s",
		firstNonEmpty(m.actor, "-"),
		firstNonEmpty(m.filter.Discipline, "all"),
		firstNonEmpty(m.filter.TechnicianID, "-"),
		firstNonEmpty(m.filter.TeamID, "-"),
		m.refreshInterval,
	)))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Queue"))
	builder.WriteString("\n")
	if len(m.orders) == 0 {
		builder.WriteString(dimStyle.Render("- no open work orders"))
		builder.WriteString("\n\n")
	} else {
		for index, wo := range m.orders {
			line := fmt.Sprintf(
				"%s [%s] %s/%d assignee=%s est=%s %s",
				wo.Number,
				wo.Status,
				wo.Priority,
				wo.PriorityScore,
				assigneeLabel(wo.Assignment),
				wo.Estimated.TotalCost,
				wo.Title,
			)
			if index == m.selectedIndex {
				builder.WriteString(selectedStyle.Render("> " + line))
			} else {
				builder.WriteString("  " + line)
			}
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Detail"))
	builder.WriteString("\n")
	if !m.hasTimeline {
		builder.WriteString(dimStyle.Render("- no detail"))
		builder.WriteString("\n\n")
	} else {
		wo := m.timeline.WorkOrder
		builder.WriteString(fmt.Sprintf("Number: %s (v%d)\n", wo.Number, wo.Version))
		builder.WriteString(fmt.Sprintf("Target: %s %s @ %s\n", wo.Target.Kind, wo.Target.ID, locationLabel(wo.Location)))
		builder.WriteString(fmt.Sprintf("Status: %s\n", wo.Status))
		builder.WriteString(fmt.Sprintf("Costs: estimated=%s actual=%s\n", wo.Estimated.TotalCost, wo.Actual.TotalCost))
		builder.WriteString(fmt.Sprintf("Path: %s\n", pathLabel(m.timeline.Path)))
		builder.WriteString("\nRecent History:\n")
		entries := m.timeline.Entries
		if len(entries) == 0 {
			builder.WriteString("- none\n")
		} else {
			start := max(len(entries)-maxShownEntries, 0)
			for _, entry := range entries[start:] {
				builder.WriteString(fmt.Sprintf("- #%d %s -> %s by %s %s\n",
					entry.Seq, entry.FromLabel(), entry.To, entry.Actor, firstNonEmpty(entry.Reason, "")))
			}
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Status"))
	builder.WriteString("\n")
	builder.WriteString("- " + firstNonEmpty(m.status, "ready"))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Actions"))
	builder.WriteString("\n")
	builder.WriteString("- a approve\n")
	builder.WriteString("- s start execution\n")
	builder.WriteString("- p pause/resume\n")
	builder.WriteString("- v verify\n")
	builder.WriteString("- x close\n")
	builder.WriteString("\n")

	builder.WriteString(sectionStyle.Render("Audit Log"))
	builder.WriteString("\n")
	if len(m.auditLogs) == 0 {
		builder.WriteString(dimStyle.Render("- no actions"))
		builder.WriteString("\n\n")
	} else {
		for _, line := range m.auditLogs {
			builder.WriteString("- " + line)
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(dimStyle.Render("Keys: ↑/k ↓/j move  g refresh  a/s/p/v/x actions  q quit"))
	return builder.String()
}

func (m *boardModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *boardModel) loadQueueCmd() tea.Cmd {
	filter := m.filter
	return func() tea.Msg {
		items, err := m.backend.ListQueue(m.ctx, filter)
		return queueLoadedMsg{items: items, err: err}
	}
}

func (m *boardModel) loadTimelineCmd() tea.Cmd {
	selected, ok := m.selectedOrder()
	if !ok {
		return nil
	}
	ref := selected.Number
	return func() tea.Msg {
		timeline, err := m.backend.Timeline(m.ctx, ref)
		return timelineLoadedMsg{ref: ref, timeline: timeline, err: err}
	}
}

func (m *boardModel) approveCmd() tea.Cmd {
	selected, ok := m.actionTarget("approve")
	if !ok {
		return nil
	}
	ref, version := selected.Number, selected.Version
	return func() tea.Msg {
		res, err := m.backend.Approve(m.ctx, lifecycle.ApproveInput{
			Ref:             ref,
			Actor:           m.actor,
			ExpectedVersion: &version,
		})
		if err != nil {
			return actionDoneMsg{action: "approve", ref: ref, err: err}
		}
		if res.Escalation != nil {
			return actionDoneMsg{action: "approve", ref: ref, result: "escalated: " + res.Escalation.Reason()}
		}
		return actionDoneMsg{action: "approve", ref: ref, result: string(res.WorkOrder.Status)}
	}
}

func (m *boardModel) pauseOrResumeCmd() tea.Cmd {
	selected, ok := m.selectedOrder()
	if ok && selected.Status == workorder.StatusPaused {
		return m.executionCmd("resume", m.backend.Resume)
	}
	return m.executionCmd("pause", m.backend.Pause)
}

func (m *boardModel) executionCmd(action string, op func(context.Context, lifecycle.ExecutionInput) (lifecycle.Result, error)) tea.Cmd {
	selected, ok := m.actionTarget(action)
	if !ok {
		return nil
	}
	ref, version := selected.Number, selected.Version
	return func() tea.Msg {
		res, err := op(m.ctx, lifecycle.ExecutionInput{
			Ref:             ref,
			Actor:           m.actor,
			ExpectedVersion: &version,
		})
		if err != nil {
			return actionDoneMsg{action: action, ref: ref, err: err}
		}
		return actionDoneMsg{action: action, ref: ref, result: string(res.WorkOrder.Status)}
	}
}

// actionTarget reports the selection and sets the status line when no action can run.
func (m *boardModel) actionTarget(action string) (workorder.WorkOrder, bool) {
	selected, ok := m.selectedOrder()
	if !ok {
		m.status = action + ": nothing selected"
		return workorder.WorkOrder{}, false
	}
	if m.actor == "" {
		m.status = action + ": start the board with --actor"
		return workorder.WorkOrder{}, false
	}
	m.status = fmt.Sprintf("%s %s...", action, selected.Number)
	return selected, true
}

func (m *boardModel) selectedOrder() (workorder.WorkOrder, bool) {
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.orders) {
		return workorder.WorkOrder{}, false
	}
	return m.orders[m.selectedIndex], true
}

func (m *boardModel) appendAuditLog(action string, ref string, result string, err error) {
	line := fmt.Sprintf("%s %s %s by %s -> %s",
		time.Now().Format("15:04:05"), action, ref, firstNonEmpty(m.actor, "-"), result)
	if err != nil {
		line += ": " + err.Error()
		logging.Error(m.ctx, "board action failed",
			slog.String("action", action),
			slog.String("work_order", ref),
			slog.String("err", err.Error()),
		)
	}
	m.auditLogs = append(m.auditLogs, line)
	if len(m.auditLogs) > maxAuditLines {
		m.auditLogs = m.auditLogs[len(m.auditLogs)-maxAuditLines:]
	}
}

func assigneeLabel(a workorder.Assignment) string {
	switch {
	case a.TechnicianID != "":
		return a.TechnicianID
	case a.TeamID != "":
		return "team:" + a.TeamID
	}
	return "-"
}

func locationLabel(loc workorder.Location) string {
	parts := []string{loc.PlantID, loc.AreaID, loc.SectorID}
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return "-"
	}
	return strings.Join(out, "/")
}

func pathLabel(path []workorder.Status) string {
	if len(path) == 0 {
		return "-"
	}
	out := make([]string, len(path))
	for i, s := range path {
		out[i] = string(s)
	}
	return strings.Join(out, " > ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
