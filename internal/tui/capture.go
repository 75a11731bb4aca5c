package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bazarteer/bazaar/internal/capture"
)

// ErrCancelled is returned by RunCapture when the user leaves without
// capturing anything.
var ErrCancelled = errors.New("capture cancelled")

// Shutter is the camera side of the capture screen.
type Shutter interface {
	TakeSnapshot(ctx context.Context) (capture.Media, error)
	Record(ctx context.Context, stop <-chan struct{}) (capture.Result, error)
}

var (
	recordingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
	shutterStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Bold(true)
)

type recordingMsg struct{}

type capturedMsg struct {
	result capture.Result
	err    error
}

// CaptureModel maps the terminal onto the shutter button. Terminals report
// key presses but not releases, so space presses the shutter and a second
// space releases it. Releasing before the hold threshold takes a photo;
// holding past it records until release.
type CaptureModel struct {
	gesture *capture.Gesture
	events  chan tea.Msg
	spinner spinner.Model

	pressed   bool
	recording bool
	busy      bool
	done      bool
	result    capture.Result
	err       error
}

// NewCapture returns the capture screen. after is the timer source for the
// gesture and may be nil.
func NewCapture(ctx context.Context, s Shutter, threshold time.Duration, after capture.AfterFunc) CaptureModel {
	events := make(chan tea.Msg, 4)
	g := capture.NewGesture(threshold, capture.GestureHandlers{
		Tap: func() {
			go func() {
				media, err := s.TakeSnapshot(ctx)
				events <- capturedMsg{result: capture.Result{Media: media}, err: err}
			}()
		},
		Hold: func(stop <-chan struct{}) {
			events <- recordingMsg{}
			res, err := s.Record(ctx, stop)
			events <- capturedMsg{result: res, err: err}
		},
	}, after)

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	return CaptureModel{gesture: g, events: events, spinner: sp}
}

func (m CaptureModel) wait() tea.Cmd {
	return func() tea.Msg { return <-m.events }
}

func (m CaptureModel) Init() tea.Cmd {
	return tea.Batch(m.wait(), m.spinner.Tick)
}

func (m CaptureModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case " ", "enter":
			if m.busy && !m.pressed {
				return m, nil
			}
			if !m.pressed {
				m.pressed = true
				m.busy = true
				m.gesture.Press()
			} else {
				m.pressed = false
				m.gesture.Release()
			}
			return m, nil
		case "q", "esc", "ctrl+c":
			if m.busy {
				return m, nil
			}
			m.err = ErrCancelled
			return m, tea.Quit
		}
		return m, nil

	case recordingMsg:
		m.recording = true
		return m, m.wait()

	case capturedMsg:
		m.recording = false
		m.busy = false
		m.done = true
		m.result, m.err = msg.result, msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m CaptureModel) View() string {
	title := titleStyle.Render("  bazaar  New listing")
	var body string
	switch {
	case m.recording:
		body = recordingStyle.Render("● REC") + "  press space to stop"
	case m.pressed:
		body = shutterStyle.Render("◉") + "  release now for a photo, keep holding to record"
	case m.busy:
		body = m.spinner.View() + " capturing…"
	default:
		body = shutterStyle.Render("○") + "  space: shutter   q: cancel"
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, "", "  "+body, "")
}

// Outcome returns what the screen captured.
func (m CaptureModel) Outcome() (capture.Result, error) {
	if !m.done && m.err == nil {
		return capture.Result{}, ErrCancelled
	}
	return m.result, m.err
}

// RunCapture shows the capture screen until a photo or video is taken.
func RunCapture(ctx context.Context, s Shutter, threshold time.Duration) (capture.Result, error) {
	p := tea.NewProgram(NewCapture(ctx, s, threshold, nil), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return capture.Result{}, err
	}
	return final.(CaptureModel).Outcome()
}
