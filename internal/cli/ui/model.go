package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/stackvity/activity-logger/internal/cli/hooks"
	"github.com/stackvity/activity-logger/pkg/converter"
)

const listHeightMargin = 4

// Model is the bubbletea model for the run monitor. Update runs on the
// program goroutine only, so the model needs no locking.
type Model struct {
	list    list.Model
	spinner spinner.Model
	width   int
	height  int
	// initialized tracks if the model has received initial dimensions.
	initialized bool

	version    string
	outputPath string

	fileItems    []listItem
	itemMap      map[string]int
	summary      Summary
	phaseMessage string
	fatalError   string
	quitting     bool
	done         bool

	// listGen invalidates pending list refreshes when a newer one is scheduled.
	listGen int
}

// listItem represents a single input file in the TUI list.
type listItem struct {
	path     string
	status   converter.Status
	message  string
	duration time.Duration
}

// Summary holds the aggregated statistics displayed in the TUI footer.
type Summary struct {
	TotalFilesScanned int
	ProcessedCount    int
	LinesWritten      int
	SkippedCount      int
	ErrorCount        int
	StartTime         time.Time
}

// Init starts the spinner.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles key input, window changes and hook messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		listHeight := m.height - listHeightMargin
		if listHeight < 1 {
			listHeight = 1
		}
		m.list.SetSize(m.width, listHeight)
		m.initialized = true

	case tea.KeyMsg:
		if m.quitting {
			return m, nil
		}
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}
		var listCmd tea.Cmd
		m.list, listCmd = m.list.Update(msg)
		cmds = append(cmds, listCmd)

	case spinner.TickMsg:
		if m.quitting || m.done {
			return m, nil
		}
		var spinnerCmd tea.Cmd
		m.spinner, spinnerCmd = m.spinner.Update(msg)
		cmds = append(cmds, spinnerCmd)

	case hooks.FileDiscoveredMsg:
		if _, exists := m.itemMap[msg.Path]; !exists {
			m.fileItems = append(m.fileItems, listItem{path: msg.Path, status: converter.StatusPending})
			m.itemMap[msg.Path] = len(m.fileItems) - 1
			m.summary.TotalFilesScanned++
			cmds = append(cmds, m.scheduleListUpdate())
		}
		if !m.quitting && m.phaseMessage == "Initializing..." {
			m.phaseMessage = "Scanning..."
		}

	case hooks.FileStatusUpdateMsg:
		idx, ok := m.itemMap[msg.Path]
		if !ok {
			m.fileItems = append(m.fileItems, listItem{path: msg.Path, status: converter.StatusPending})
			idx = len(m.fileItems) - 1
			m.itemMap[msg.Path] = idx
			m.summary.TotalFilesScanned++
		}
		item := &m.fileItems[idx]
		if isFinalStatus(msg.Status) && !isFinalStatus(item.status) {
			m.incrementSummaryCount(msg.Status)
		}
		item.status = msg.Status
		item.message = msg.Message
		item.duration = msg.Duration
		cmds = append(cmds, m.scheduleListUpdate())

		if !m.quitting && msg.Status == converter.StatusProcessing {
			m.phaseMessage = "Converting..."
		}

	case hooks.RunCompleteMsg:
		s := msg.Report.Summary
		m.done = true
		m.phaseMessage = "Complete"
		m.summary.TotalFilesScanned = s.TotalFilesScanned
		m.summary.ProcessedCount = s.ProcessedCount
		m.summary.LinesWritten = s.LinesWritten
		m.summary.SkippedCount = s.SkippedCount
		m.summary.ErrorCount = s.ErrorCount
		if s.FatalErrorOccurred {
			m.fatalError = "Run halted due to fatal error."
			for _, e := range msg.Report.Errors {
				if e.IsFatal {
					m.fatalError = fmt.Sprintf("Fatal Error: %s (%s)", e.Error, e.Path)
					break
				}
			}
		}
		cmds = append(cmds, m.refreshList(), tea.Quit)

	case UpdateListMsg:
		if msg.gen == m.listGen {
			cmds = append(cmds, m.refreshList())
		}
	}

	return m, tea.Batch(cmds...)
}

// View renders header, file list, optional fatal error and footer.
func (m *Model) View() string {
	if m.quitting {
		return "Exiting...\n"
	}
	if !m.initialized {
		return "Initializing..."
	}

	headerLeft := fmt.Sprintf("Activity Logger %s", m.version)
	if m.outputPath != "" {
		headerLeft += " → " + filepath.Base(m.outputPath)
	}
	headerRight := m.phaseMessage
	if !m.done && m.phaseMessage != "Initializing..." {
		headerRight = m.spinner.View() + " " + m.phaseMessage
	}
	header := HeaderStyle.Width(m.width).Render(spread(m.width-HeaderStyle.GetHorizontalFrameSize(), headerLeft, headerRight))

	elapsed := time.Since(m.summary.StartTime).Round(time.Millisecond)
	summaryText := fmt.Sprintf(
		"Written: %d | Skipped: %d | Failed: %d | Scanned: %d | Elapsed: %s",
		m.summary.LinesWritten,
		m.summary.SkippedCount,
		m.summary.ErrorCount,
		m.summary.TotalFilesScanned,
		elapsed,
	)
	footer := FooterStyle.Width(m.width).Render(spread(m.width-FooterStyle.GetHorizontalFrameSize(), summaryText, "q: quit"))

	parts := []string{header, m.list.View()}
	if m.fatalError != "" {
		parts = append(parts, StatusStyleFailed.Render(m.fatalError))
	}
	parts = append(parts, footer)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// spread places left and right at the edges of a line of the given width.
func spread(width int, left, right string) string {
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	center := ""
	if gap > 0 {
		center = lipgloss.PlaceHorizontal(gap, lipgloss.Center, " ")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, left, center, right)
}

// NewModel creates the initial model for the TUI.
func NewModel(version, outputPath string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ColorStatusProcessing)

	delegate := list.NewDefaultDelegate()
	delegate.SetSpacing(0)
	delegate.ShowDescription = true
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(ColorSelectedFg).
		Background(ColorSelectedBg).
		Bold(true).
		Padding(0, 0, 0, 1)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(ColorSelectedDescFg).
		Background(ColorSelectedBg).
		Padding(0, 0, 0, 1)
	delegate.Styles.NormalTitle = delegate.Styles.NormalTitle.
		Foreground(ColorNormalFg).Padding(0, 0, 0, 1)
	delegate.Styles.NormalDesc = delegate.Styles.NormalDesc.
		Foreground(ColorNormalDescFg).Padding(0, 0, 0, 1)

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetShowTitle(false)
	l.SetShowFilter(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	return Model{
		list:         l,
		spinner:      s,
		version:      version,
		outputPath:   outputPath,
		summary:      Summary{StartTime: time.Now()},
		phaseMessage: "Initializing...",
		fileItems:    make([]listItem, 0, 256),
		itemMap:      make(map[string]int),
	}
}

// Done reports whether the run-complete message has been received.
func (m *Model) Done() bool { return m.done }

func isFinalStatus(status converter.Status) bool {
	return status == converter.StatusSuccess ||
		status == converter.StatusFailed ||
		status == converter.StatusSkipped
}

func (m *Model) incrementSummaryCount(status converter.Status) {
	switch status {
	case converter.StatusSuccess:
		m.summary.ProcessedCount++
		m.summary.LinesWritten++
	case converter.StatusSkipped:
		m.summary.SkippedCount++
	case converter.StatusFailed:
		m.summary.ErrorCount++
	}
}

// FilterValue implements the list.Item interface.
func (i listItem) FilterValue() string { return i.path }

// Title implements the list.Item interface.
func (i listItem) Title() string { return i.path }

// Description implements the list.Item interface.
func (i listItem) Description() string {
	var statusStyle lipgloss.Style
	var statusIcon string
	switch i.status {
	case converter.StatusSuccess:
		statusStyle, statusIcon = StatusStyleSuccess, "✓"
	case converter.StatusFailed:
		statusStyle, statusIcon = StatusStyleFailed, "✗"
	case converter.StatusSkipped:
		statusStyle, statusIcon = StatusStyleSkipped, "S"
	case converter.StatusProcessing:
		statusStyle, statusIcon = StatusStyleProcessing, "…"
	default:
		statusStyle, statusIcon = StatusStylePending, " "
	}

	details := ""
	switch i.status {
	case converter.StatusFailed:
		details = i.message
	case converter.StatusSkipped:
		details = strings.TrimSpace(strings.SplitN(i.message, ":", 2)[0])
	case converter.StatusSuccess:
		details = formatDuration(i.duration)
	}
	return fmt.Sprintf("%s %s", statusStyle.Render(fmt.Sprintf("[%s]", statusIcon)), details)
}

func formatDuration(d time.Duration) string {
	switch {
	case d == 0:
		return ""
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}

// UpdateListMsg asks the model to copy its items into the list component.
type UpdateListMsg struct{ gen int }

const listUpdateDebounceDuration = 50 * time.Millisecond

// scheduleListUpdate coalesces bursts of hook messages into one list refresh.
func (m *Model) scheduleListUpdate() tea.Cmd {
	m.listGen++
	gen := m.listGen
	return tea.Tick(listUpdateDebounceDuration, func(time.Time) tea.Msg {
		return UpdateListMsg{gen: gen}
	})
}

func (m *Model) refreshList() tea.Cmd {
	items := make([]list.Item, len(m.fileItems))
	for i, item := range m.fileItems {
		items[i] = item
	}
	return m.list.SetItems(items)
}

const (
	ColorHeaderFg = lipgloss.Color("252")
	ColorHeaderBg = lipgloss.Color("62")

	ColorFooterFg = lipgloss.Color("252")
	ColorFooterBg = lipgloss.Color("56")

	ColorNormalFg     = lipgloss.Color("250")
	ColorNormalDescFg = lipgloss.Color("244")

	ColorSelectedFg     = lipgloss.Color("255")
	ColorSelectedBg     = lipgloss.Color("56")
	ColorSelectedDescFg = lipgloss.Color("248")

	ColorStatusSuccess    = lipgloss.Color("40")
	ColorStatusFailed     = lipgloss.Color("196")
	ColorStatusSkipped    = lipgloss.Color("214")
	ColorStatusPending    = lipgloss.Color("244")
	ColorStatusProcessing = lipgloss.Color("205")
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorHeaderFg).
			Background(ColorHeaderBg).
			Padding(0, 1)

	FooterStyle = lipgloss.NewStyle().
			Foreground(ColorFooterFg).
			Background(ColorFooterBg).
			Padding(0, 1)

	StatusStyleSuccess    = lipgloss.NewStyle().Foreground(ColorStatusSuccess)
	StatusStyleFailed     = lipgloss.NewStyle().Foreground(ColorStatusFailed)
	StatusStyleSkipped    = lipgloss.NewStyle().Foreground(ColorStatusSkipped)
	StatusStylePending    = lipgloss.NewStyle().Foreground(ColorStatusPending)
	StatusStyleProcessing = lipgloss.NewStyle().Foreground(ColorStatusProcessing)
)
