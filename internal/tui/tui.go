// Package tui provides the Bubble Tea models for browsing the feed and
// driving the camera shutter.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/bazarteer/bazaar/internal/feed"
	"github.com/bazarteer/bazaar/internal/session"
)

// ── Styles ────────────

var (
	// Title bar at the very top
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	sectionHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	priceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("178")).
			Bold(true)

	videoBadgeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	slideBadgeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)
)

// ── Messages ────────────

type loadedMsg struct{ err error }

type moreMsg struct {
	n   int
	err error
}

// SessionMsg reports that the persisted session changed underneath the
// browser.
type SessionMsg struct{ LoggedIn bool }

// ── Model ────────────────────

// Model is the feed browser. It shows one item at a time and asks the feed
// for more as the cursor nears the end.
type Model struct {
	ctx      context.Context
	feed     *feed.Feed
	log      *zap.Logger
	cursor   int
	slide    int
	spinner  spinner.Model
	viewport viewport.Model
	width    int
	height   int
	ready    bool
	status   string
}

// New creates the browser for f. Fetches run under ctx.
func New(ctx context.Context, f *feed.Feed, log *zap.Logger) Model {
	if log == nil {
		log = zap.NewNop()
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{ctx: ctx, feed: f, log: log, spinner: sp}
}

func (m Model) load() tea.Cmd {
	return func() tea.Msg {
		return loadedMsg{err: m.feed.Load(m.ctx)}
	}
}

func (m Model) fetchMore() tea.Cmd {
	return func() tea.Msg {
		n, err := m.feed.FetchMore(m.ctx)
		return moreMsg{n: n, err: err}
	}
}

// ── Bubble Tea interface ───────────────

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.load())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "down", "j":
			if m.cursor < m.feed.Len()-1 {
				m.cursor++
				m.slide = 0
				m.refresh()
			}
			return m, m.maybeFetchMore()
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
				m.slide = 0
				m.refresh()
			}
			return m, nil
		case "right", "l":
			if it, ok := m.current(); ok && it.Kind == feed.KindSlideshow && m.slide < len(it.Images)-1 {
				m.slide++
				m.refresh()
			}
			return m, nil
		case "left", "h":
			if m.slide > 0 {
				m.slide--
				m.refresh()
			}
			return m, nil
		case "r":
			if st, _ := m.feed.State(); st == feed.StateErrored {
				m.cursor, m.slide = 0, 0
				m.refresh()
				return m, tea.Batch(m.spinner.Tick, m.load())
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// title(1) + statusBar(1)
		vpHeight := m.height - 2
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.refresh()
		return m, nil

	case loadedMsg:
		m.refresh()
		return m, m.maybeFetchMore()

	case moreMsg:
		// A failed fetch-more is not shown; the next cursor move retries.
		if msg.err != nil {
			m.log.Debug("fetch-more failed", zap.Error(msg.err))
		}
		m.refresh()
		return m, nil

	case SessionMsg:
		if !msg.LoggedIn {
			m.status = "Logged out"
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		if st, _ := m.feed.State(); st != feed.StateLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd
	}
	return m, nil
}

func (m Model) maybeFetchMore() tea.Cmd {
	if m.feed.ShouldFetchMore(m.cursor) {
		return m.fetchMore()
	}
	return nil
}

func (m Model) current() (feed.Item, bool) {
	items := m.feed.Items()
	if m.cursor < 0 || m.cursor >= len(items) {
		return feed.Item{}, false
	}
	return items[m.cursor], true
}

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}
	title := titleStyle.Width(m.width).Render("  bazaar  For you")

	hint := "  ↑/↓ item  ←/→ photo  q quit"
	if st, _ := m.feed.State(); st == feed.StateErrored {
		hint = "  r retry  q quit"
	}
	pos := ""
	if n := m.feed.Len(); n > 0 {
		pos = fmt.Sprintf("%d/%d", m.cursor+1, n)
		if m.feed.Fetching() {
			pos = "… " + pos
		}
	}
	if m.status != "" {
		pos = m.status
	}
	pad := m.width - lipgloss.Width(hint) - lipgloss.Width(pos) - 2
	if pad < 1 {
		pad = 1
	}
	statusBar := statusBarStyle.Width(m.width).Render(hint + strings.Repeat(" ", pad) + pos)

	return lipgloss.JoinVertical(lipgloss.Left, title, m.viewport.View(), statusBar)
}

// refresh re-renders the current item into the viewport.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderBody())
	m.viewport.GotoTop()
}

func (m *Model) renderBody() string {
	st, err := m.feed.State()
	switch st {
	case feed.StateIdle, feed.StateLoading:
		return "\n  " + m.spinner.View() + " Loading feed…\n"
	case feed.StateErrored:
		msg := "Failed to fetch content"
		if err != nil {
			msg = err.Error()
		}
		return "\n  " + errorStyle.Render(msg) + "\n\n  " + dimStyle.Render("Press r to retry.") + "\n"
	}

	it, ok := m.current()
	if !ok {
		return "\n  " + dimStyle.Render("No products available") + "\n"
	}
	return renderItem(it, m.slide, m.width)
}

func renderItem(it feed.Item, slide, width int) string {
	l := it.Listing
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString(sectionHeader.Render("  "+l.Name) + "  " + priceStyle.Render("€"+l.PriceString()) + "\n\n")

	row := func(label, value string) {
		if value == "" {
			return
		}
		sb.WriteString(labelStyle.Render(fmt.Sprintf("  %-10s", label)) + "  " + value + "\n")
	}
	if l.OwnerUsername != "" {
		row("Seller:", "@"+l.OwnerUsername)
	}
	row("Location:", l.Location)
	row("Condition:", l.Condition)
	row("ID:", l.ID.String())
	sb.WriteString("\n")

	switch it.Kind {
	case feed.KindVideo:
		sb.WriteString("  " + videoBadgeStyle.Render("[VIDEO]") + "  " + it.VideoURL + "\n")
	default:
		if len(it.Images) == 0 {
			sb.WriteString("  " + dimStyle.Render("(no media)") + "\n")
			break
		}
		badge := slideBadgeStyle.Render(fmt.Sprintf("[%d/%d]", slide+1, len(it.Images)))
		sb.WriteString("  " + badge + "  " + it.Images[slide] + "\n")
		dots := make([]string, len(it.Images))
		for i := range dots {
			dots[i] = "○"
			if i == slide {
				dots[i] = "●"
			}
		}
		sb.WriteString("  " + dimStyle.Render(strings.Join(dots, " ")) + "\n")
	}

	if l.Description != "" {
		sb.WriteString("\n" + wrap(l.Description, width-4, "  ") + "\n")
	}

	e := it.Engagement
	sb.WriteString("\n  " + dimStyle.Render(fmt.Sprintf("♥ %d   💬 %d   ↗ %d", e.Likes, e.Comments, e.Shares)) + "\n")
	if l.OwnerID != "" {
		sb.WriteString("\n  " + dimStyle.Render("bazaar order --product "+l.ID.String()+" --seller "+l.OwnerID.String()) + "\n")
	}
	return sb.String()
}

// wrap breaks s into lines of at most width runes on word boundaries.
func wrap(s string, width int, prefix string) string {
	if width < 10 {
		width = 10
	}
	var lines []string
	for _, para := range strings.Split(s, "\n") {
		line := ""
		for _, w := range strings.Fields(para) {
			if line != "" && len([]rune(line))+1+len([]rune(w)) > width {
				lines = append(lines, prefix+line)
				line = ""
			}
			if line != "" {
				line += " "
			}
			line += w
		}
		lines = append(lines, prefix+line)
	}
	return strings.Join(lines, "\n")
}

// SessionWatcher reports changes to the persisted session.
type SessionWatcher interface {
	Watch(ctx context.Context, onChange func(session.Session, bool)) error
}

// Run starts the feed browser. When w is non-nil the browser quits as soon
// as the session is cleared from another process.
func Run(ctx context.Context, f *feed.Feed, w SessionWatcher, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(New(ctx, f, log), tea.WithAltScreen(), tea.WithContext(ctx))
	if w != nil {
		go func() {
			err := w.Watch(ctx, func(s session.Session, ok bool) {
				p.Send(SessionMsg{LoggedIn: ok && s.Valid()})
			})
			if err != nil && log != nil {
				log.Warn("session watch stopped", zap.Error(err))
			}
		}()
	}
	final, err := p.Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(Model); ok && fm.status == "Logged out" {
		return session.ErrNoSession
	}
	return nil
}
