package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"maintflow/internal/domain/workorder"
	"maintflow/internal/ports"
	"maintflow/internal/usecase/lifecycle"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	cellStyle    = lipgloss.NewStyle().PaddingRight(2)
)

var statusColors = map[workorder.Status]lipgloss.Color{
	workorder.StatusRequested:  lipgloss.Color("111"),
	workorder.StatusApproved:   lipgloss.Color("79"),
	workorder.StatusRejected:   lipgloss.Color("203"),
	workorder.StatusPlanned:    lipgloss.Color("147"),
	workorder.StatusScheduled:  lipgloss.Color("183"),
	workorder.StatusInProgress: lipgloss.Color("220"),
	workorder.StatusPaused:     lipgloss.Color("208"),
	workorder.StatusCompleted:  lipgloss.Color("114"),
	workorder.StatusVerified:   lipgloss.Color("78"),
	workorder.StatusClosed:     lipgloss.Color("245"),
	workorder.StatusCancelled:  lipgloss.Color("241"),
}

func statusLabel(status workorder.Status) string {
	return lipgloss.NewStyle().Foreground(statusColors[status]).Render(string(status))
}

// renderTable pads columns by rendered width so colored cells still line up.
func renderTable(w io.Writer, header []string, rows [][]string) error {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	line := func(cells []string, style lipgloss.Style) string {
		out := make([]string, len(cells))
		for i, cell := range cells {
			out[i] = cellStyle.Width(widths[i] + 2).Render(style.Render(cell))
		}
		return strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, out...), " ")
	}

	if _, err := fmt.Fprintln(w, line(header, titleStyle)); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(w, line(row, lipgloss.NewStyle())); err != nil {
			return err
		}
	}
	return nil
}

func renderQueue(w io.Writer, items []workorder.WorkOrder) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, dimStyle.Render("no work orders"))
		return err
	}
	rows := make([][]string, 0, len(items))
	for _, wo := range items {
		rows = append(rows, []string{
			wo.Number,
			statusLabel(wo.Status),
			fmt.Sprintf("%s/%d", wo.Priority, wo.PriorityScore),
			formatDate(wo.RequestedDueDate),
			assignmentLabel(wo.Assignment),
			wo.Title,
		})
	}
	return renderTable(w, []string{"NUMBER", "STATUS", "PRIORITY", "DUE", "ASSIGNED", "TITLE"}, rows)
}

func renderDetails(w io.Writer, d lifecycle.Details) error {
	wo := d.WorkOrder
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s  v%d\n", titleStyle.Render(wo.Number+" "+wo.Title), statusLabel(wo.Status), wo.Version)
	fmt.Fprintf(&b, "%s %s/%s  priority %s (%d)\n", dimStyle.Render("discipline"), wo.Discipline, wo.Type, wo.Priority, wo.PriorityScore)
	fmt.Fprintf(&b, "%s %s %s @ %s\n", dimStyle.Render("target"), wo.Target.Kind, wo.Target.ID, locationLabel(wo.Location))
	fmt.Fprintf(&b, "%s %s by %s\n", dimStyle.Render("requested"), wo.Requested.At.Format(time.RFC3339), wo.Requested.Actor)
	if wo.Schedule != nil {
		fmt.Fprintf(&b, "%s %s -> %s  %s\n", dimStyle.Render("window"),
			wo.Schedule.Start.Format(time.RFC3339), wo.Schedule.End.Format(time.RFC3339), assignmentLabel(wo.Assignment))
	}
	if wo.Safety.PermitRequired || wo.Safety.LockoutTagout {
		fmt.Fprintf(&b, "%s permit=%t lockout=%t %s\n", warnStyle.Render("safety"),
			wo.Safety.PermitRequired, wo.Safety.LockoutTagout, strings.Join(wo.Safety.PPE, ","))
	}
	if wo.RejectionReason != "" {
		fmt.Fprintf(&b, "%s %s\n", warnStyle.Render("rejected"), wo.RejectionReason)
	}
	if wo.CancellationReason != "" {
		fmt.Fprintf(&b, "%s %s\n", warnStyle.Render("cancelled"), wo.CancellationReason)
	}

	b.WriteString(sectionStyle.Render("costs") + "\n")
	fmt.Fprintf(&b, "  estimated %.2fh labor %s parts %s total %s\n",
		wo.Estimated.Hours, wo.Estimated.LaborCost, wo.Estimated.PartsCost, wo.Estimated.TotalCost)
	fmt.Fprintf(&b, "  actual    %.2fh labor %s parts %s total %s\n",
		wo.Actual.Hours, wo.Actual.LaborCost, wo.Actual.PartsCost, wo.Actual.TotalCost)

	if exec := d.Execution; exec != nil {
		b.WriteString(sectionStyle.Render("execution") + "\n")
		fmt.Fprintf(&b, "  %s executor=%s pauses=%d paused=%s actual=%s\n",
			exec.Status, exec.Executor, exec.PauseCount, exec.TotalPause, exec.ActualDuration)
		if exec.DurationAnomaly {
			b.WriteString("  " + warnStyle.Render("duration anomaly") + "\n")
		}
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}

	if len(d.Parts) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, sectionStyle.Render("parts")); err != nil {
		return err
	}
	rows := make([][]string, 0, len(d.Parts))
	for _, line := range d.Parts {
		catalog := "-"
		if line.CatalogPartID != nil {
			catalog = fmt.Sprintf("%d", *line.CatalogPartID)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", line.ID),
			catalog,
			line.Description,
			string(line.Status),
			fmt.Sprintf("%d/%d/%d/%d", line.EstimatedQty, line.ReservedQty, line.UsedQty, line.ReturnedQty),
			line.UnitCost.String(),
			line.TotalCost.String(),
		})
	}
	return renderTable(w, []string{"LINE", "CATALOG", "DESCRIPTION", "STATUS", "EST/RES/USED/RET", "UNIT", "TOTAL"}, rows)
}

func renderTimeline(w io.Writer, tl lifecycle.Timeline) error {
	header := fmt.Sprintf("%s  %s", titleStyle.Render(tl.WorkOrder.Number), dimStyle.Render(pathLabel(tl.Path)))
	if _, err := fmt.Fprintln(w, header); err != nil {
		return err
	}
	rows := make([][]string, 0, len(tl.Entries))
	for _, entry := range tl.Entries {
		rows = append(rows, []string{
			fmt.Sprintf("%d", entry.Seq),
			entry.OccurredAt.Format(time.RFC3339),
			entry.FromLabel(),
			statusLabel(entry.To),
			entry.Actor,
			entry.Reason,
		})
	}
	return renderTable(w, []string{"SEQ", "AT", "FROM", "TO", "ACTOR", "REASON"}, rows)
}

func renderCatalog(w io.Writer, parts []ports.CatalogPart) error {
	rows := make([][]string, 0, len(parts))
	for _, part := range parts {
		rows = append(rows, []string{
			fmt.Sprintf("%d", part.ID),
			part.SKU,
			part.Name,
			part.UnitCost.String(),
			fmt.Sprintf("%d", part.AvailableQty),
		})
	}
	return renderTable(w, []string{"ID", "SKU", "NAME", "UNIT", "AVAILABLE"}, rows)
}

func renderResult(w io.Writer, verb string, res lifecycle.Result) error {
	if res.Escalation != nil {
		_, err := fmt.Fprintf(w, "%s %s stays %s: %s\n",
			warnStyle.Render("escalated"), res.WorkOrder.Number, res.WorkOrder.Status, res.Escalation.Reason())
		return err
	}
	_, err := fmt.Fprintf(w, "%s %s -> %s (v%d)\n", verb, res.WorkOrder.Number, statusLabel(res.WorkOrder.Status), res.WorkOrder.Version)
	return err
}

func pathLabel(path []workorder.Status) string {
	labels := make([]string, len(path))
	for i, status := range path {
		labels[i] = string(status)
	}
	return strings.Join(labels, " > ")
}

func assignmentLabel(a workorder.Assignment) string {
	switch {
	case a.TechnicianID != "" && a.TeamID != "":
		return a.TechnicianID + "@" + a.TeamID
	case a.TechnicianID != "":
		return a.TechnicianID
	case a.TeamID != "":
		return "team:" + a.TeamID
	}
	return "-"
}

func locationLabel(loc workorder.Location) string {
	parts := make([]string, 0, 3)
	for _, id := range []string{loc.PlantID, loc.AreaID, loc.SectorID} {
		if id != "" {
			parts = append(parts, id)
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, "/")
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}
