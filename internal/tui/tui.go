// Package tui provides a Bubble Tea terminal user interface for the downloader.
package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jsildura/cloudstream-sub000/internal/app"
	"github.com/jsildura/cloudstream-sub000/internal/config"
	"github.com/jsildura/cloudstream-sub000/internal/download"
	ioutils "github.com/jsildura/cloudstream-sub000/internal/io"
	"github.com/jsildura/cloudstream-sub000/internal/model"
	"go.uber.org/zap"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#4ECDC4")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)

	albumStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8B500"))
)

var errCancelled = errors.New("cancelled by user")

// qualities is the cycle order of the quality toggle.
var qualities = []model.Quality{
	model.QualityLossless,
	model.QualityHiResLossless,
	model.QualityHigh,
	model.QualityLow,
}

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateResolving
	StateDownloading
	StateComplete
	StateError
)

// LogEntry represents a log message in the UI.
type LogEntry struct {
	Message string
	Level   download.ProgressLevel
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state     State
	textInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model
	settings  *config.Settings
	app       *app.App
	tracker   *tracker
	err       error

	// Download context
	ctx    context.Context
	cancel context.CancelFunc

	// Current job
	ref    app.Ref
	coll   model.Collection
	tracks []*model.Track
	result *download.BulkResult
	dir    string

	// Latest tracker snapshot
	snap snapshot

	// Options
	quality  model.Quality
	playlist bool
	cover    bool
	mp3      bool
	verbose  bool

	width  int
	height int
}

// newModel creates a TUI model over a wired pipeline.
func newModel(a *app.App, tr *tracker) Model {
	ti := textinput.New()
	ti.Placeholder = "album:12345 or https://tidal.com/browse/album/12345"
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ECDC4"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	ctx, cancel := context.WithCancel(context.Background())

	settings := config.DefaultSettings()
	if a != nil {
		settings = a.Settings
	}
	if tr == nil {
		tr = newTracker()
	}

	return Model{
		state:     StateInput,
		textInput: ti,
		spinner:   sp,
		progress:  prog,
		settings:  settings,
		app:       a,
		tracker:   tr,
		ctx:       ctx,
		cancel:    cancel,
		quality:   settings.Quality(),
		playlist:  settings.CreatePlaylist,
		cover:     settings.DownloadCoverSeparately,
		mp3:       settings.ConvertAACToMP3,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Message types
type (
	// ResolvedMsg is sent when the reference has been looked up.
	ResolvedMsg struct {
		Collection model.Collection
		Tracks     []*model.Track
		Err        error
	}

	// DownloadDoneMsg is sent when the bulk job finishes.
	DownloadDoneMsg struct {
		Result *download.BulkResult
		Err    error
	}

	// TickMsg is for periodic progress updates.
	TickMsg struct{}
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(max(msg.Width-20, 20), 80)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			return m, tea.Quit

		case "esc":
			if m.state == StateInput {
				return m, tea.Quit
			}
			if m.state == StateDownloading || m.state == StateResolving {
				m.cancel()
				m.state = StateError
				m.err = errCancelled
			}

		case "enter":
			if m.state == StateInput && m.textInput.Value() != "" {
				ref, err := app.ParseRef(m.textInput.Value())
				if err != nil {
					m.err = err
					return m, nil
				}
				m.ref = ref
				m.err = nil
				m.state = StateResolving
				return m, tea.Batch(m.resolve(), m.spinner.Tick)
			}

		case "tab":
			if m.state == StateInput {
				m.quality = nextQuality(m.quality)
				return m, nil
			}

		case "ctrl+p":
			if m.state == StateInput {
				m.playlist = !m.playlist
			}

		case "ctrl+o":
			if m.state == StateInput {
				m.cover = !m.cover
			}

		case "ctrl+t":
			if m.state == StateInput {
				m.mp3 = !m.mp3
			}

		case "ctrl+g":
			if m.state == StateInput {
				m.verbose = !m.verbose
			}

		case "q":
			if m.state == StateComplete || m.state == StateError {
				return m, tea.Quit
			}

		case "r":
			if m.state == StateComplete || m.state == StateError {
				// Reset for a new download
				m.state = StateInput
				m.err = nil
				m.result = nil
				m.tracks = nil
				m.coll = model.Collection{}
				m.snap = snapshot{}
				m.tracker.reset(nil)
				m.ctx, m.cancel = context.WithCancel(context.Background())
				m.textInput.SetValue("")
				m.textInput.Focus()
				return m, nil
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case ResolvedMsg:
		if m.state != StateResolving {
			return m, nil
		}
		if msg.Err != nil {
			m.state = StateError
			m.err = msg.Err
			return m, nil
		}
		if len(msg.Tracks) == 0 {
			m.state = StateError
			m.err = fmt.Errorf("%s has no tracks", m.ref)
			return m, nil
		}
		m.coll = msg.Collection
		m.tracks = msg.Tracks
		m.dir = filepath.Join(m.settings.DownloadsPath, msg.Collection.BaseName())
		m.tracker.reset(msg.Tracks)
		m.state = StateDownloading
		cmds = append(cmds, m.startDownload(), m.tickProgress())

	case DownloadDoneMsg:
		m.result = msg.Result
		m.snap = m.tracker.snapshot(m.verbose)
		switch {
		case m.ctx.Err() != nil:
			m.state = StateError
			m.err = errCancelled
		case msg.Err != nil:
			m.state = StateError
			m.err = msg.Err
		default:
			m.state = StateComplete
		}

	case TickMsg:
		if m.state == StateDownloading {
			m.snap = m.tracker.snapshot(m.verbose)
			var percent float64
			if m.snap.total > 0 {
				percent = float64(m.snap.completed) / float64(m.snap.total)
			}
			cmds = append(cmds, m.progress.SetPercent(percent), m.tickProgress())
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	if m.state == StateInput {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func nextQuality(q model.Quality) model.Quality {
	for i, candidate := range qualities {
		if candidate == q {
			return qualities[(i+1)%len(qualities)]
		}
	}
	return qualities[0]
}

// tickProgress returns a command to tick progress updates.
func (m Model) tickProgress() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("♪ cloudstream"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Lossless downloads from community mirrors"))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateResolving:
		b.WriteString(m.viewResolving())
	case StateDownloading:
		b.WriteString(m.viewDownloading())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.helpText()))

	return b.String()
}

func check(on bool) string {
	if on {
		return "[x]"
	}
	return "[ ]"
}

func (m Model) viewInput() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Enter a track, album or playlist:"))
	b.WriteString("\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()))
		b.WriteString("\n\n")
	}

	b.WriteString(infoStyle.Render("Options:"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  Quality: %s (tab)\n", m.quality)
	fmt.Fprintf(&b, "  %s Create playlist (ctrl+p)\n", check(m.playlist))
	fmt.Fprintf(&b, "  %s Save cover.jpg (ctrl+o)\n", check(m.cover))
	fmt.Fprintf(&b, "  %s Convert AAC to MP3 (ctrl+t)\n", check(m.mp3))
	fmt.Fprintf(&b, "  %s Verbose output (ctrl+g)\n", check(m.verbose))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Download path: %s", m.settings.DownloadsPath)))
	b.WriteString("\n")

	return b.String()
}

func (m Model) viewResolving() string {
	var b strings.Builder
	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(subtitleStyle.Render(fmt.Sprintf("Looking up %s...", m.ref)))
	b.WriteString("\n")
	return b.String()
}

func (m Model) viewDownloading() string {
	var b strings.Builder

	b.WriteString(albumStyle.Render(fmt.Sprintf("♪ %s", m.coll.BaseName())))
	b.WriteString("\n\n")

	var percent float64
	if m.snap.total > 0 {
		percent = float64(m.snap.completed) / float64(m.snap.total)
	}
	b.WriteString(m.progress.ViewAs(percent))
	b.WriteString("\n")

	b.WriteString(infoStyle.Render(fmt.Sprintf(
		"Tracks: %d/%d | Downloaded: %.2f MB",
		m.snap.completed,
		m.snap.total,
		float64(m.snap.received)/1024/1024,
	)))
	b.WriteString("\n")
	if cur := m.snap.current; cur != nil && cur.State == model.TaskDownloading {
		line := fmt.Sprintf("%s %s", m.spinner.View(), cur.Filename)
		if cur.TotalBytes > 0 {
			line += fmt.Sprintf(" (%d%%)", cur.ReceivedBytes*100/cur.TotalBytes)
		}
		b.WriteString(dimStyle.Render(line))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewComplete() string {
	var b strings.Builder

	succeeded, failed := 0, 0
	if m.result != nil {
		succeeded, failed = m.result.SuccessCount, m.result.FailedCount
	}
	b.WriteString(boxStyle.Render(fmt.Sprintf(
		"Download complete\n\n"+
			"Tracks: %d\n"+
			"Failed: %d\n"+
			"Size: %.2f MB\n"+
			"Saved to: %s",
		succeeded,
		failed,
		float64(m.snap.received)/1024/1024,
		m.dir,
	)))
	b.WriteString("\n")
	if m.result != nil {
		for _, f := range m.result.Failures {
			b.WriteString(errorStyle.Render(fmt.Sprintf("✗ %s: %v", f.Track.FullTitle(), f.Err)))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("Error occurred:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
	}

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, log := range m.snap.logs {
		var style lipgloss.Style
		prefix := "•"
		switch log.Level {
		case download.LevelError:
			style = errorStyle
			prefix = "✗"
		case download.LevelWarning:
			style = warningStyle
			prefix = "!"
		case download.LevelSuccess:
			style = successStyle
			prefix = "✓"
		case download.LevelInfo:
			style = infoStyle
			prefix = "›"
		default:
			style = dimStyle
		}
		b.WriteString(style.Render(prefix + " " + log.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) helpText() string {
	switch m.state {
	case StateInput:
		return "enter: start • tab: quality • ctrl+p/o/t/g: toggle options • esc: quit"
	case StateResolving, StateDownloading:
		return "esc: cancel"
	case StateComplete, StateError:
		return "r: new download • q: quit"
	}
	return ""
}

// resolve looks up the entered reference.
func (m Model) resolve() tea.Cmd {
	a, ctx, ref := m.app, m.ctx, m.ref
	return func() tea.Msg {
		if a == nil {
			return ResolvedMsg{Err: errors.New("pipeline not configured")}
		}
		coll, tracks, err := a.Resolve(ctx, ref)
		return ResolvedMsg{Collection: coll, Tracks: tracks, Err: err}
	}
}

// startDownload runs the bulk job in the background.
func (m Model) startDownload() tea.Cmd {
	a, ctx, tr := m.app, m.ctx, m.tracker
	coll, tracks, quality, dir := m.coll, m.tracks, m.quality, m.dir
	opts := download.BulkOptions{
		OnTrackProgress:   tr.trackProgress,
		OnTrackDownloaded: tr.trackDone,
		Save:              ioutils.DirSaver(ctx, dir),
		DownloadCover:     m.cover,
		Playlist:          m.playlist,
		ConvertToMP3:      m.mp3,
		EmbedMetadata:     m.settings.EmbedMetadata,
	}
	return func() tea.Msg {
		if a == nil {
			return DownloadDoneMsg{Err: errors.New("pipeline not configured")}
		}
		res, err := a.Manager.DownloadBulk(ctx, coll, tracks, quality, model.BulkIndividual, opts)
		return DownloadDoneMsg{Result: res, Err: err}
	}
}

// Run starts the TUI application.
func Run(settings *config.Settings, log *zap.Logger) error {
	tr := newTracker()
	a, err := app.New(settings, log, tr.event)
	if err != nil {
		return err
	}
	defer a.Close()

	p := tea.NewProgram(newModel(a, tr), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
