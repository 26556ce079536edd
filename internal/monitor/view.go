package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"

	"github.com/oactree/jobmon/internal/model"
)

const timeFormat = "15:04:05.000"

// View implements tea.Model.
func (m Model) View() string {
	h := m.handler
	job := h.Job()

	var b strings.Builder
	b.WriteString(titleStyle.Render(job.Name))
	b.WriteString("  ")
	b.WriteString(jobStateStyle(h.State()).Render(job.Status()))
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render("Instructions"))
	b.WriteString("\n")
	b.WriteString(m.renderTree())

	if vars := job.Variables(); len(vars) > 0 {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("Variables"))
		b.WriteString("\n")
		b.WriteString(renderVariables(vars))
	}

	b.WriteString("\n")
	b.WriteString(logBorderStyle.Width(m.width).Render(m.logView.View()))
	b.WriteString("\n")
	b.WriteString(m.statusBar())
	return b.String()
}

func (m Model) renderTree() string {
	next := make(map[string]bool)
	for _, item := range m.handler.NextLeaves() {
		next[item.ID] = true
	}

	var b strings.Builder
	for i, item := range m.handler.Job().Flatten() {
		cursor := "  "
		if i == m.selected {
			cursor = "> "
		}
		marker := " "
		switch item.Breakpoint() {
		case model.BreakpointSet:
			marker = "●"
		case model.BreakpointHit:
			marker = "◆"
		}
		if next[item.ID] {
			marker += "→"
		} else {
			marker += " "
		}

		name := strings.Repeat("  ", item.Depth()) + item.DisplayName()
		if i == m.selected {
			name = selectedStyle.Render(name)
		}
		status := instructionStatusStyle(item.Status()).Render(item.Status())
		line := fmt.Sprintf("%s%s %s  %s", cursor, marker, name, status)
		b.WriteString(ansi.Truncate(line, m.width, "…"))
		b.WriteByte('\n')
	}
	return b.String()
}

func renderVariables(vars []*model.VariableItem) string {
	width := 0
	for _, v := range vars {
		width = max(width, runewidth.StringWidth(v.Name))
	}
	var b strings.Builder
	for _, v := range vars {
		value := v.DisplayValue()
		if !v.Available() {
			value = mutedStyle.Render(value + " (unavailable)")
		}
		fmt.Fprintf(&b, "  %s = %s\n", runewidth.FillRight(v.Name, width), value)
	}
	return b.String()
}

// renderLog formats records one per line, truncated to width columns.
func renderLog(records []model.LogRecord, width int) string {
	if len(records) == 0 {
		return mutedStyle.Render("no log records")
	}
	lines := make([]string, 0, len(records))
	for _, rec := range records {
		sev := severityStyle(rec.Severity).Render(fmt.Sprintf("%-7s", rec.Severity.String()))
		line := fmt.Sprintf("%s %s %s", rec.Time.Format(timeFormat), sev, rec.Message)
		if rec.Source != "" {
			line = fmt.Sprintf("%s %s [%s] %s", rec.Time.Format(timeFormat), sev, rec.Source, rec.Message)
		}
		lines = append(lines, ansi.Truncate(line, width, "…"))
	}
	return strings.Join(lines, "\n")
}

func renderDebugLog(lines []string, width int) string {
	if len(lines) == 0 {
		return mutedStyle.Render("no debug log entries")
	}
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, ansi.Truncate(line, width, "…"))
	}
	return strings.Join(out, "\n")
}

func (m Model) statusBar() string {
	switch {
	case m.err != nil:
		return errorStyle.Render("error: " + m.err.Error())
	case m.notice != "":
		return noticeStyle.Render(m.notice) + "  " + m.help.View(m.keys)
	default:
		return m.help.View(m.keys)
	}
}
