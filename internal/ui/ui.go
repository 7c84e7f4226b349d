// Package ui is the terminal presentation layer. It is a pure consumer of
// the sampler handle: it pulls Current and History on a redraw cadence and
// forwards user actions (kill, export, refresh) back through the handle.
package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sysglance/sysglance/internal/config"
	"github.com/sysglance/sysglance/internal/export"
	"github.com/sysglance/sysglance/internal/model"
	"github.com/sysglance/sysglance/internal/sampler"
)

const killTimeout = 3 * time.Second

// Model renders live samples pulled from the sampler handle.
type Model struct {
	cfg    config.Config
	handle *sampler.Handle

	latest  model.Sample
	history []model.HistoryPoint

	tbl       table.Model
	filter    textinput.Model
	filtering bool
	sortCol   model.SortColumn
	sortDesc  bool
	energy    bool

	status string
	width  int
	height int
}

func New(h *sampler.Handle, cfg config.Config) *Model {
	filter := textinput.New()
	filter.Placeholder = "process name"
	filter.Prompt = "filter: "
	filter.CharLimit = 64
	filter.SetValue(cfg.Filter)

	tbl := table.New(
		table.WithColumns(processColumns(100)),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).Foreground(lipgloss.Color("81")).
		BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(lipgloss.Color("60"))
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	tbl.SetStyles(styles)

	m := &Model{
		cfg:      cfg,
		handle:   h,
		tbl:      tbl,
		filter:   filter,
		sortCol:  model.ParseSortColumn(cfg.Sort),
		sortDesc: cfg.Descending,
		energy:   cfg.EnergySaving,
		width:    120,
		height:   40,
	}
	return m
}

func processColumns(width int) []table.Column {
	// Proportions follow the classic process-table split, name widest.
	w := func(frac float64) int { return int(float64(width) * frac) }
	return []table.Column{
		{Title: "Name", Width: w(0.26)},
		{Title: "PID", Width: 7},
		{Title: "CPU%", Width: 7},
		{Title: "Memory", Width: 10},
		{Title: "Status", Width: w(0.10)},
		{Title: "User", Width: w(0.12)},
		{Title: "Command", Width: w(0.28)},
	}
}

type tickMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second/5, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m *Model) Init() tea.Cmd { return tickCmd() }

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.tbl.SetColumns(processColumns(m.width - 6))
		m.tbl.SetWidth(m.width - 4)

	case tea.FocusMsg:
		m.handle.SetFocused(true)
	case tea.BlurMsg:
		m.handle.SetFocused(false)

	case tea.KeyMsg:
		if m.filtering {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "q", "ctrl+c":
			m.handle.Stop()
			return m, tea.Quit
		case "/":
			m.filtering = true
			m.filter.Focus()
			return m, textinput.Blink
		case "s":
			m.sortCol = nextSortColumn(m.sortCol)
			m.status = "sort: " + string(m.sortCol)
		case "d":
			m.sortDesc = !m.sortDesc
		case "r":
			m.handle.Refresh()
			m.status = "refresh requested"
		case "z":
			m.energy = !m.energy
			m.handle.SetEnergySaving(m.energy)
			if m.energy {
				m.status = "energy saving on"
			} else {
				m.status = "energy saving off"
			}
		case "k":
			m.killSelected()
		case "e":
			m.exportSnapshot()
		default:
			var cmd tea.Cmd
			m.tbl, cmd = m.tbl.Update(msg)
			return m, cmd
		}

	case tickMsg:
		m.latest = m.handle.Current()
		m.history = m.handle.History()
		m.tbl.SetRows(m.processRows())
		return m, tickCmd()
	}
	return m, nil
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.filtering = false
		m.filter.Blur()
		m.tbl.SetRows(m.processRows())
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	return m, cmd
}

func nextSortColumn(c model.SortColumn) model.SortColumn {
	switch c {
	case model.SortByName:
		return model.SortByCPU
	case model.SortByCPU:
		return model.SortByMemory
	case model.SortByMemory:
		return model.SortByStatus
	default:
		return model.SortByName
	}
}

// visibleProcesses applies the filter and sort order to the latest sample.
func (m *Model) visibleProcesses() []model.ProcessInfo {
	ps := model.FilterProcesses(m.latest.Processes, m.filter.Value())
	sorted := make([]model.ProcessInfo, len(ps))
	copy(sorted, ps)
	model.SortProcesses(sorted, m.sortCol, m.sortDesc)
	return sorted
}

func (m *Model) processRows() []table.Row {
	ps := m.visibleProcesses()
	rows := make([]table.Row, len(ps))
	for i, p := range ps {
		name := p.Name
		if name == "" {
			name = "PID: " + strconv.Itoa(int(p.PID))
		}
		rows[i] = table.Row{
			name,
			strconv.Itoa(int(p.PID)),
			fmt.Sprintf("%.1f", p.CPUPercent),
			formatBytes(p.MemoryBytes),
			p.Status,
			p.Owner,
			p.CommandLine,
		}
	}
	return rows
}

func (m *Model) selectedPID() (int32, bool) {
	row := m.tbl.SelectedRow()
	if len(row) < 2 {
		return 0, false
	}
	pid, err := strconv.Atoi(row[1])
	if err != nil {
		return 0, false
	}
	return int32(pid), true
}

func (m *Model) killSelected() {
	pid, ok := m.selectedPID()
	if !ok {
		m.status = "no process selected"
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), killTimeout)
	defer cancel()
	err := m.handle.TerminateProcess(ctx, pid)
	switch {
	case err == nil:
		m.status = fmt.Sprintf("terminate requested for pid %d", pid)
		m.handle.Refresh()
	case sampler.IsNotFound(err):
		m.status = fmt.Sprintf("pid %d already gone", pid)
	case sampler.IsPermissionDenied(err):
		m.status = fmt.Sprintf("permission denied for pid %d", pid)
	default:
		m.status = "terminate failed: " + err.Error()
	}
}

func (m *Model) exportSnapshot() {
	now := time.Now()
	path := export.DefaultFilename(now)
	if err := export.WriteFile(path, m.latest, m.history, m.handle.SessionID(), now); err != nil {
		m.status = "export failed: " + err.Error()
		return
	}
	m.status = "saved to " + path
}

// Styles
var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("45"))
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	gaugeFill   = "█"
	gaugeEmpty  = "░"
	cardStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("60")).
			Padding(0, 1).
			MarginRight(1)
)

func card(title, body string) string {
	titleStr := labelStyle.Render(title)
	content := titleStr + "\n" + body
	return cardStyle.Render(content)
}

func (m *Model) View() string {
	s := m.latest

	mode := ""
	if m.energy {
		mode = "  " + warnStyle.Render("[energy saving]")
	}
	stamp := "waiting for first sample"
	if !s.Timestamp.IsZero() {
		stamp = s.Timestamp.Format("Mon Jan 2 15:04:05")
	}
	header := titleStyle.Render("sysglance") + "  " + subtleStyle.Render(stamp) + mode

	memPct := pct(s.Memory.UsedBytes, s.Memory.TotalBytes)
	cpuCard := card("CPU", gaugeBar(s.CPU.TotalPercent, 28)+"\n"+coreStrip(s.CPU.PerCorePercent))
	memCard := card("Memory",
		fmt.Sprintf("%s\n%s / %s", gaugeBar(memPct, 28),
			formatBytes(s.Memory.UsedBytes), formatBytes(s.Memory.TotalBytes)))
	sysCard := card("System",
		fmt.Sprintf("up %s\n%d processes", formatUptime(s.Host.UptimeSeconds), s.Host.ProcessCount))

	chartCard := card("History",
		"cpu "+sparkline(historyCPU(m.history), 40)+"\n"+
			"mem "+sparkline(historyMem(m.history, s.Memory.TotalBytes), 40))

	line1 := lipgloss.JoinHorizontal(lipgloss.Top, cpuCard, memCard, sysCard, chartCard)

	diskCard := card("Disks", renderDisks(s.Disks))

	sortNote := string(m.sortCol)
	if m.sortDesc {
		sortNote += " desc"
	}
	tableCard := card(fmt.Sprintf("Processes (%s)", sortNote), m.tbl.View())

	footer := m.footer()

	parts := []string{header, line1, diskCard}
	if m.filtering || m.filter.Value() != "" {
		parts = append(parts, m.filter.View())
	}
	parts = append(parts, tableCard, footer)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) footer() string {
	help := subtleStyle.Render("q quit · / filter · s sort · d reverse · k kill · e export · r refresh · z energy")
	out := help
	if m.status != "" {
		out = m.status + "\n" + help
	}
	if len(m.latest.Warnings) > 0 {
		out = warnStyle.Render("⚠ "+strings.Join(m.latest.Warnings, "; ")) + "\n" + out
	}
	return out
}

// Helpers

func gaugeBar(p float64, width int) string {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	filled := int((p / 100) * float64(width))
	if filled > width {
		filled = width
	}
	return fmt.Sprintf("[%s%s] %5.1f%%",
		strings.Repeat(gaugeFill, filled),
		strings.Repeat(gaugeEmpty, width-filled),
		p)
}

// coreStrip renders one block character per core.
func coreStrip(cores []float64) string {
	if len(cores) == 0 {
		return subtleStyle.Render("per-core n/a")
	}
	return "cores " + sparkline(cores, len(cores))
}

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// sparkline maps values in [0,100] onto block characters, keeping the last
// width points.
func sparkline(values []float64, width int) string {
	if len(values) == 0 {
		return subtleStyle.Render(strings.Repeat("·", width))
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}
	var b strings.Builder
	for _, v := range values {
		if v < 0 {
			v = 0
		}
		if v > 100 {
			v = 100
		}
		idx := int(v / 100 * float64(len(sparkBlocks)-1))
		b.WriteRune(sparkBlocks[idx])
	}
	return b.String()
}

func historyCPU(hist []model.HistoryPoint) []float64 {
	out := make([]float64, len(hist))
	for i, p := range hist {
		out[i] = p.CPUPercent
	}
	return out
}

func historyMem(hist []model.HistoryPoint, total uint64) []float64 {
	out := make([]float64, len(hist))
	for i, p := range hist {
		out[i] = pct(p.MemoryUsedBytes, total)
	}
	return out
}

func renderDisks(disks []model.DiskInfo) string {
	if len(disks) == 0 {
		return subtleStyle.Render("no volumes")
	}
	rows := make([]string, 0, len(disks))
	for _, d := range disks {
		rows = append(rows, fmt.Sprintf("%-14s %-8s %-4s %s  %s / %s",
			truncate(d.Mountpoint, 14), d.Filesystem, d.MediaType,
			gaugeBar(d.UsedPercent, 16),
			formatBytes(d.UsedBytes), formatBytes(d.TotalBytes)))
	}
	return strings.Join(rows, "\n")
}

func formatBytes(b uint64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GiB", float64(b)/(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

func formatUptime(seconds uint64) string {
	d := time.Duration(seconds) * time.Second
	days := int(d.Hours()) / 24
	if days > 0 {
		return fmt.Sprintf("%dd %dh", days, int(d.Hours())%24)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func pct(used, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(used) * 100 / float64(total)
}

// Run starts the Bubble Tea program over an already-started sampler handle.
// Focus reporting feeds the adaptive polling policy.
func Run(h *sampler.Handle, cfg config.Config) error {
	prog := tea.NewProgram(New(h, cfg), tea.WithAltScreen(), tea.WithReportFocus())
	_, err := prog.Run()
	return err
}
