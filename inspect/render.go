package inspect

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/outofforest/nvs/blocks"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C6C6C"))
	dumpStyle   = lipgloss.NewStyle().PaddingLeft(2)
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)

	stateStyles = map[blocks.PageState]lipgloss.Style{
		blocks.UninitializedPageState: lipgloss.NewStyle().Foreground(lipgloss.Color("#6C6C6C")),
		blocks.ActivePageState:        lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")),
		blocks.FullPageState:          lipgloss.NewStyle().Foreground(lipgloss.Color("#3C91E6")),
		blocks.FreeingPageState:       lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB000")),
		blocks.CorruptPageState:       lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Bold(true),
		blocks.InvalidPageState:       lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true),
	}
)

// Summary renders geometry, aggregated stats and one line per page.
func Summary(r Report) string {
	b := &strings.Builder{}
	b.WriteString(titleStyle.Render("NVS partition") + "\n")
	fmt.Fprintf(b, "%s %d bytes, %s %d, %s %d\n",
		labelStyle.Render("sector:"), r.Geometry.SectorSize,
		labelStyle.Render("entries per page:"), r.Geometry.EntryCount,
		labelStyle.Render("pages:"), len(r.Pages))
	fmt.Fprintf(b, "%s used=%d free=%d total=%d\n\n",
		labelStyle.Render("entries:"), r.Stats.UsedEntries, r.Stats.FreeEntries, r.Stats.TotalEntries)

	b.WriteString(headerStyle.Render(fmt.Sprintf("%-6s %-15s %-10s %-6s %-6s %-8s %-8s",
		"sector", "state", "seq", "used", "erased", "next", "tailroom")) + "\n")
	for _, p := range r.Pages {
		seq := "-"
		if p.Initialized {
			seq = fmt.Sprintf("%d", p.SeqNumber)
		}
		state := p.State.String()
		if p.NewerVersionPage {
			state += "*"
		}
		fmt.Fprintf(b, "%-6d %s %-10s %-6d %-6d %-8d %-8d\n", p.Sector,
			stateStyle(p.State).Render(fmt.Sprintf("%-15s", state)), seq, p.UsedEntries, p.ErasedEntries,
			p.NextFreeEntry, p.VarDataTailroom)
	}
	return b.String()
}

// Full renders summary followed by the content of every page holding entries.
func Full(r Report) string {
	b := &strings.Builder{}
	b.WriteString(Summary(r))
	for _, p := range r.Pages {
		if p.Dump == "" {
			continue
		}
		b.WriteString("\n" + titleStyle.Render(fmt.Sprintf("Sector %d", p.Sector)) + "\n")
		b.WriteString(dumpStyle.Render(strings.TrimSuffix(p.Dump, "\n")) + "\n")
	}
	return b.String()
}

func stateStyle(state blocks.PageState) lipgloss.Style {
	if s, exists := stateStyles[state]; exists {
		return s
	}
	return lipgloss.NewStyle()
}
