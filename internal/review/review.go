package review

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/brockwebb/arnold-sub002/internal/recovery"
)

// #region port

// Port is what the review screen needs from persistence. Review records take
// effect on the next reprocess; nothing here mutates intervals directly.
type Port interface {
	Intervals(ctx context.Context) ([]recovery.Interval, error)
	Samples(ctx context.Context) ([]recovery.Sample, error)
	SaveAdjustment(ctx context.Context, adj recovery.PeakAdjustment) error
	SaveOverride(ctx context.Context, ov recovery.QualityOverride) error
	SaveJudgment(ctx context.Context, j recovery.HumanJudgment) error
}

// #endregion port

// #region messages

type loadedMsg struct {
	intervals []recovery.Interval
	samples   []recovery.Sample
	err       error
}

type savedMsg struct {
	what string
	err  error
}

// #endregion messages

// #region styles

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	flagStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	rejectStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	borderStyle = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder())
)

func statusStyle(s recovery.Status) lipgloss.Style {
	switch s {
	case recovery.StatusPass:
		return passStyle
	case recovery.StatusFlagged:
		return flagStyle
	default:
		return rejectStyle
	}
}

// #endregion styles

// #region list-item

type intervalItem struct {
	iv recovery.Interval
}

func (i intervalItem) Title() string {
	return fmt.Sprintf("#%d  %s  peak %.0f", i.iv.IntervalOrder,
		i.iv.StartTime.Format("15:04:05"), i.iv.PeakHR)
}

func (i intervalItem) Description() string {
	desc := string(i.iv.QualityStatus)
	if i.iv.AutoRejectReason != "" {
		desc += "  " + i.iv.AutoRejectReason
	}
	return desc
}

func (i intervalItem) FilterValue() string {
	return fmt.Sprintf("%d %s %s", i.iv.IntervalOrder, i.iv.QualityStatus, i.iv.AutoRejectReason)
}

// #endregion list-item

// #region model

type mode int

const (
	modeBrowse mode = iota
	modeAdjust
	modeOverride
	modeJudge
)

// prompt sequences per input mode, answered one field at a time.
var prompts = map[mode][]string{
	modeAdjust:   {"shift seconds (+later/-earlier)", "reason"},
	modeOverride: {"status (pass/flagged/rejected)", "reason", "notes"},
	modeJudge:    {"judgment (confirmed/false_positive/false_negative/override)", "notes"},
}

// Model is the interval review screen for one session.
type Model struct {
	port      Port
	sessionID string

	list    list.Model
	detail  viewport.Model
	input   textinput.Model
	mode    mode
	answers []string

	intervals []recovery.Interval
	samples   []recovery.Sample
	status    string
	loading   bool
	width     int
	height    int
}

// New builds the review model for a session.
func New(port Port, sessionID string) Model {
	delegate := list.NewDefaultDelegate()
	l := list.New(nil, delegate, 0, 0)
	l.Title = "Recovery intervals: " + sessionID
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.SetShowHelp(false)

	vp := viewport.New(0, 0)

	ti := textinput.New()
	ti.CharLimit = 120

	return Model{
		port:      port,
		sessionID: sessionID,
		list:      l,
		detail:    vp,
		input:     ti,
		loading:   true,
	}
}

func (m Model) Init() tea.Cmd {
	return m.loadCmd()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case loadedMsg:
		m.loading = false
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}
		m.intervals = msg.intervals
		m.samples = msg.samples
		items := make([]list.Item, len(msg.intervals))
		for i, iv := range msg.intervals {
			items[i] = intervalItem{iv: iv}
		}
		cmds = append(cmds, m.list.SetItems(items))
		m.refreshDetail()

	case savedMsg:
		if msg.err != nil {
			m.status = "save failed: " + msg.err.Error()
		} else {
			m.status = msg.what + " recorded; takes effect on next reprocess"
		}

	case tea.KeyMsg:
		if m.mode != modeBrowse {
			return m.updateInput(msg)
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "a":
			if m.selected() != nil {
				return m.startInput(modeAdjust), nil
			}
		case "o":
			if m.selected() != nil {
				return m.startInput(modeOverride), nil
			}
		case "j":
			if m.selected() != nil {
				return m.startInput(modeJudge), nil
			}
		}
	}

	if !m.loading && m.mode == modeBrowse {
		var lCmd tea.Cmd
		prevIdx := m.list.Index()
		m.list, lCmd = m.list.Update(msg)
		cmds = append(cmds, lCmd)
		if m.list.Index() != prevIdx {
			m.refreshDetail()
		}

		var vCmd tea.Cmd
		m.detail, vCmd = m.detail.Update(msg)
		cmds = append(cmds, vCmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.loading {
		return "loading intervals…"
	}

	listW := m.width * 4 / 10
	detailW := m.width - listW
	bodyH := m.height - 2

	listPane := lipgloss.NewStyle().Width(listW).Height(bodyH).Render(m.list.View())
	detailPane := borderStyle.Width(detailW - 2).Height(bodyH - 2).Render(m.detail.View())
	body := lipgloss.JoinHorizontal(lipgloss.Top, listPane, detailPane)

	var footer string
	if m.mode == modeBrowse {
		footer = mutedStyle.Render("a: adjust peak  o: override status  j: judge  q: quit")
		if m.status != "" {
			footer += "  " + m.status
		}
	} else {
		step := len(m.answers)
		footer = fmt.Sprintf("%s: %s", prompts[m.mode][step], m.input.View())
	}
	return body + "\n" + footer
}

// #endregion model

// #region input-flow

func (m Model) startInput(md mode) Model {
	m.mode = md
	m.answers = nil
	m.status = ""
	m.input.SetValue("")
	m.input.Focus()
	return m
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeBrowse
		m.input.Blur()
		return m, nil
	case "enter":
		m.answers = append(m.answers, strings.TrimSpace(m.input.Value()))
		m.input.SetValue("")
		if len(m.answers) < len(prompts[m.mode]) {
			return m, nil
		}
		md := m.mode
		answers := m.answers
		m.mode = modeBrowse
		m.input.Blur()
		return m, m.saveCmd(md, answers)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) saveCmd(md mode, answers []string) tea.Cmd {
	iv := m.selected()
	if iv == nil {
		return nil
	}
	target := *iv
	port := m.port
	now := time.Now().UTC()

	return func() tea.Msg {
		ctx := context.Background()
		switch md {
		case modeAdjust:
			shift, err := strconv.Atoi(answers[0])
			if err != nil {
				return savedMsg{what: "adjustment", err: fmt.Errorf("bad shift %q: %w", answers[0], err)}
			}
			err = port.SaveAdjustment(ctx, recovery.PeakAdjustment{
				SessionID:     target.SessionID,
				IntervalOrder: target.IntervalOrder,
				ShiftSeconds:  shift,
				Reason:        answers[1],
				CreatedAt:     now,
			})
			return savedMsg{what: "adjustment", err: err}

		case modeOverride:
			status := recovery.Status(answers[0])
			switch status {
			case recovery.StatusPass, recovery.StatusFlagged, recovery.StatusRejected:
			default:
				return savedMsg{what: "override", err: fmt.Errorf("bad status %q", answers[0])}
			}
			err := port.SaveOverride(ctx, recovery.QualityOverride{
				SessionID:     target.SessionID,
				IntervalOrder: target.IntervalOrder,
				ForcedStatus:  status,
				Reason:        answers[1],
				Notes:         answers[2],
				CreatedAt:     now,
			})
			return savedMsg{what: "override", err: err}

		case modeJudge:
			switch answers[0] {
			case recovery.JudgmentConfirmed, recovery.JudgmentFalsePositive,
				recovery.JudgmentFalseNegative, recovery.JudgmentOverride:
			default:
				return savedMsg{what: "judgment", err: fmt.Errorf("bad judgment %q", answers[0])}
			}
			err := port.SaveJudgment(ctx, recovery.HumanJudgment{
				SessionID:     target.SessionID,
				IntervalOrder: target.IntervalOrder,
				NominalStart:  target.StartTime,
				Judgment:      answers[0],
				Notes:         answers[1],
				CreatedAt:     now,
			})
			return savedMsg{what: "judgment", err: err}
		}
		return savedMsg{}
	}
}

// #endregion input-flow

// #region detail

func (m *Model) refreshDetail() {
	iv := m.selected()
	if iv == nil {
		m.detail.SetContent(mutedStyle.Render("no intervals"))
		return
	}
	m.detail.SetContent(m.renderDetail(*iv))
}

func (m *Model) renderDetail(iv recovery.Interval) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("Interval #%d", iv.IntervalOrder)) + "\n\n")
	sb.WriteString(mutedStyle.Render("window:  ") +
		fmt.Sprintf("%s → %s  (%ds)\n",
			iv.StartTime.Format("15:04:05"), iv.EndTime.Format("15:04:05"), iv.DurationS))
	sb.WriteString(mutedStyle.Render("peak:    ") + fmt.Sprintf("%.0f bpm\n", iv.PeakHR))
	sb.WriteString(mutedStyle.Render("onset:   ") +
		fmt.Sprintf("+%ds (%s)\n", iv.OnsetDelayS, iv.OnsetConfidence))
	sb.WriteString(mutedStyle.Render("status:  ") +
		statusStyle(iv.QualityStatus).Render(string(iv.QualityStatus)))
	if iv.AutoStatus != iv.QualityStatus {
		sb.WriteString(mutedStyle.Render(fmt.Sprintf("  (auto: %s)", iv.AutoStatus)))
	}
	sb.WriteString("\n")
	if iv.AutoRejectReason != "" {
		sb.WriteString(mutedStyle.Render("reason:  ") + iv.AutoRejectReason + "\n")
	}
	if len(iv.QualityFlags) > 0 {
		sb.WriteString(mutedStyle.Render("flags:   ") + strings.Join(iv.QualityFlags, ", ") + "\n")
	}
	sb.WriteString(mutedStyle.Render("tau:     ") + fmt.Sprintf("%.0f s", iv.Tau))
	if iv.TauClipped {
		sb.WriteString(" (clipped)")
	}
	sb.WriteString("\n\n")

	offsets := make([]int, 0, len(iv.HRRAbs))
	for off := range iv.HRRAbs {
		offsets = append(offsets, off)
	}
	sort.Ints(offsets)
	for _, off := range offsets {
		sb.WriteString(fmt.Sprintf("  hrr%-4d %5.1f bpm\n", off, iv.HRRAbs[off]))
	}
	sb.WriteString("\n")

	names := make([]string, 0, len(iv.R2))
	for name := range iv.R2 {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sb.WriteString(fmt.Sprintf("  r2 %-6s %.3f\n", name, iv.R2[name]))
	}

	if spark := m.sparkline(iv); spark != "" {
		sb.WriteString("\n" + mutedStyle.Render("hr trace (±30s):") + "\n" + spark + "\n")
	}
	return sb.String()
}

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// sparkline renders the HR trace around the interval, downsampled to the
// detail pane width.
func (m *Model) sparkline(iv recovery.Interval) string {
	from := iv.StartTime.Add(-30 * time.Second)
	to := iv.EndTime.Add(30 * time.Second)

	var window []float64
	for _, s := range m.samples {
		if s.Timestamp.Before(from) || s.Timestamp.After(to) {
			continue
		}
		window = append(window, s.HR)
	}
	if len(window) < 2 {
		return ""
	}

	width := m.width - m.width*4/10 - 6
	if width < 20 {
		width = 20
	}
	if width > len(window) {
		width = len(window)
	}

	lo, hi := window[0], window[0]
	for _, v := range window {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	var sb strings.Builder
	for i := 0; i < width; i++ {
		v := window[i*len(window)/width]
		level := int((v - lo) / span * float64(len(sparkLevels)-1))
		sb.WriteRune(sparkLevels[level])
	}
	return sb.String() + mutedStyle.Render(fmt.Sprintf("  %.0f–%.0f bpm", lo, hi))
}

// #endregion detail

// #region helpers

func (m *Model) selected() *recovery.Interval {
	item, ok := m.list.SelectedItem().(intervalItem)
	if !ok {
		return nil
	}
	for i := range m.intervals {
		if m.intervals[i].IntervalOrder == item.iv.IntervalOrder {
			return &m.intervals[i]
		}
	}
	return nil
}

func (m *Model) resize() {
	listW := m.width * 4 / 10
	m.list.SetSize(listW, m.height-2)
	m.detail.Width = m.width - listW - 4
	m.detail.Height = m.height - 6
}

func (m Model) loadCmd() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		intervals, err := m.port.Intervals(ctx)
		if err != nil {
			return loadedMsg{err: err}
		}
		samples, err := m.port.Samples(ctx)
		if err != nil {
			return loadedMsg{err: err}
		}
		return loadedMsg{intervals: intervals, samples: samples}
	}
}

// #endregion helpers
