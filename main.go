package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/llehouerou/ptui/internal/config"
	"github.com/llehouerou/ptui/internal/decode"
	"github.com/llehouerou/ptui/internal/errmsg"
	"github.com/llehouerou/ptui/internal/icons"
	"github.com/llehouerou/ptui/internal/keymap"
	"github.com/llehouerou/ptui/internal/logging"
	"github.com/llehouerou/ptui/internal/metrics"
	"github.com/llehouerou/ptui/internal/notify"
	"github.com/llehouerou/ptui/internal/preview"
	"github.com/llehouerou/ptui/internal/render"
	"github.com/llehouerou/ptui/internal/slideshow"
	"github.com/llehouerou/ptui/internal/state"
	"github.com/llehouerou/ptui/internal/stderr"
)

const (
	tickInterval = 30 * time.Millisecond
	statusHeight = 1
)

var (
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

var imageExts = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

type tickMsg time.Time

type model struct {
	store     *config.Store
	scheduler *preview.Scheduler
	show      *slideshow.Controller
	keys      *keymap.Resolver
	notifier  notify.Notifier
	nav       state.Interface
	spinner   spinner.Model
	width     int
	height    int
	version   uint64

	// inline holds an inline-graphics payload to send with the next frame.
	inline   string
	shown    string
	status   string
	showHelp bool
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.spinner.Tick)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.show.Resize(m.width, m.previewHeight(), time.Now())
		return m, nil

	case tea.KeyMsg:
		now := time.Now()
		m.status = ""
		switch m.keys.Resolve(msg.String()) {
		case keymap.ActionQuit:
			remember(m.nav, m.show.Path(), m.show.Playing(), now)
			return m, tea.Quit
		case keymap.ActionHelp:
			m.showHelp = !m.showHelp
			return m, nil
		case keymap.ActionNext:
			m.show.Next(now)
		case keymap.ActionPrev:
			m.show.Prev(now)
		case keymap.ActionFirst:
			m.show.Show(0, now)
		case keymap.ActionLast:
			m.show.Show(m.show.Len()-1, now)
		case keymap.ActionToggleSlideshow:
			m.show.Toggle(now)
		case keymap.ActionSaveASCII:
			m.saveASCII()
			return m, nil
		default:
			return m, nil
		}
		remember(m.nav, m.show.Path(), m.show.Playing(), now)
		return m, nil

	case tickMsg:
		m.onTick(time.Time(msg))
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *model) onTick(now time.Time) {
	if snap := m.store.Current(); snap.Version != m.version {
		m.version = snap.Version
		m.show.Reload(now)
	}
	for _, res := range m.scheduler.Drain() {
		if !m.show.Deliver(res, now) {
			logging.Debug("ptui: dropped result for %s (generation %d)", res.Request.Path, res.Generation)
		}
	}
	prev := m.show.State().CurrentIndex
	m.show.Tick(now)
	if m.show.State().CurrentIndex != prev {
		remember(m.nav, m.show.Path(), m.show.Playing(), now)
	}
	m.syncInline()
}

// syncInline queues an inline-graphics payload once per displayed entry.
// The payload rides along with the frames rendered until the next tick.
func (m *model) syncInline() {
	m.inline = ""
	e := m.show.Current()
	if e == nil || !e.Backend.Inline() {
		if m.shown != "" {
			m.inline = render.KittyDeleteAll
		}
		m.shown = ""
		return
	}
	if screen := m.show.Screen(); screen != m.shown {
		m.shown = screen
		m.inline = screen
	}
}

func (m *model) saveASCII() {
	e := m.show.Current()
	if e == nil {
		return
	}
	path, err := preview.SaveASCII(e, m.show.Path())
	if err != nil {
		m.status = errorStyle.Render(errmsg.FormatWith(errmsg.OpASCIISave, filepath.Base(m.show.Path()), err))
		return
	}
	m.status = icons.Saved() + "saved " + filepath.Base(path)
	if _, err := m.notifier.Notify(notify.ASCIISaved(path, m.show.Path())); err != nil {
		logging.Debug("notify: %v", err)
	}
}

func (m model) previewHeight() int {
	return max(m.height-statusHeight, 1)
}

func (m model) View() string {
	if m.width == 0 {
		return ""
	}

	var body string
	if e := m.show.Current(); e != nil && !e.Backend.Inline() {
		body = m.show.Screen()
	}
	footer := m.statusBar()
	height := m.previewHeight()
	if m.showHelp && height > 1 {
		// The help line covers the bottom row of the preview.
		footer = dimStyle.Width(m.width).MaxWidth(m.width).Render(m.keys.Help(" · ")) + "\n" + footer
		height--
	}
	view := enforceHeight(body, height) + "\n" + footer

	if m.inline != "" {
		view = m.inline + view
	}
	return view
}

func (m model) statusBar() string {
	var parts []string
	if m.show.Loading() {
		parts = append(parts, m.spinner.View())
	}
	parts = append(parts, fmt.Sprintf("%d/%d %s", m.show.State().CurrentIndex+1, m.show.Len(), icons.FormatImage(filepath.Base(m.show.Path()))))

	if e := m.show.Current(); e != nil {
		if e.Placeholder {
			parts = append(parts, errorStyle.Render(icons.Failed()+"no preview"))
		} else {
			info := fmt.Sprintf("%dx%d %s", e.DecodedWidth, e.DecodedHeight, e.Backend)
			if e.Backend != e.Requested {
				info = icons.Fallback() + info + " (wanted " + string(e.Requested) + ")"
			}
			parts = append(parts, dimStyle.Render(info))
		}
	}
	if m.show.Playing() {
		parts = append(parts, icons.Slideshow(true)+"slideshow")
	}
	st := m.scheduler.Cache().Stats()
	parts = append(parts, dimStyle.Render(fmt.Sprintf("cache %s/%s", humanize.IBytes(uint64(st.Bytes)), humanize.IBytes(uint64(st.Budget)))))
	if m.status != "" {
		parts = append(parts, m.status)
	}

	line := strings.Join(parts, "  ")
	return statusStyle.Width(m.width).MaxWidth(m.width).Render(line)
}

// enforceHeight pads or truncates view to exactly height lines.
func enforceHeight(view string, height int) string {
	lines := strings.Split(view, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// collectImages expands args into image files. Directories contribute
// their image files in name order.
func collectImages(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() || !slices.Contains(imageExts, strings.ToLower(filepath.Ext(e.Name()))) {
				continue
			}
			out = append(out, filepath.Join(arg, e.Name()))
		}
	}
	return out, nil
}

func run() error {
	args := os.Args[1:]
	if len(args) == 0 {
		args = []string{"."}
	}
	images, err := collectImages(args)
	if err != nil {
		return err
	}
	if len(images) == 0 {
		return errors.New("no images found")
	}

	env, err := config.LoadEnv()
	if err != nil {
		return err
	}
	icons.Init(env.Icons)

	if created, err := config.WriteDefault(config.DefaultPath()); err != nil {
		logging.Warn("%s", errmsg.Format(errmsg.OpConfigWrite, err))
	} else if created {
		logging.Info("wrote default config to %s", config.DefaultPath())
	}

	store, err := config.Open()
	if err != nil {
		return errors.New(errmsg.Format(errmsg.OpConfigLoad, err))
	}
	defer store.Close()
	if err := store.Watch(); err != nil {
		logging.Warn("%s", errmsg.Format(errmsg.OpConfigReload, err))
	}

	decode.StartVips()
	defer decode.ShutdownVips()

	caps := render.EnvProbe{Override: env.ImageProtocol}.Probe()
	logging.Info("terminal protocols %v, cell %dx%d", caps.Protocols, caps.CellWidth, caps.CellHeight)

	scheduler, err := preview.NewScheduler(preview.Options{
		Workers:       env.Workers,
		PrefetchDepth: env.PrefetchDepth,
		Cache:         preview.NewCache(env.CacheBytes),
		Config:        store,
		Decoder:       decode.NewSelector(decode.VipsDecoder{}),
		Capabilities:  caps,
	})
	if err != nil {
		return errors.New(errmsg.Format(errmsg.OpInitialize, err))
	}
	defer scheduler.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if env.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, env.MetricsAddr); err != nil {
				logging.Warn("metrics server: %v", err)
			}
		}()
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	var nav state.Interface
	if env.Resume {
		mgr, err := state.Open()
		if err != nil {
			logging.Warn("%s", errmsg.Format(errmsg.OpStateLoad, err))
		} else {
			defer mgr.Close()
			nav = mgr
		}
	}

	notifier := notify.Disabled()
	if env.Notify {
		if n, err := notify.New(); err != nil {
			logging.Debug("notifications unavailable: %v", err)
		} else {
			notifier = n
		}
	}

	now := time.Now()
	show := slideshow.New(scheduler, store, images, max(caps.Cols, 1), max(caps.Rows-statusHeight, 1))
	start, playing := resume(nav, images)
	show.Show(start, now)
	if playing {
		show.Toggle(now)
	}

	m := model{
		store:     store,
		scheduler: scheduler,
		show:      show,
		keys:      keymap.NewResolver(keymap.All),
		notifier:  notifier,
		nav:       nav,
		spinner:   sp,
		version:   store.Current().Version,
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func main() {
	if path, err := logging.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	} else {
		defer logging.Close()
		logging.Debug("logging to %s", path)
	}

	// libvips writes straight to fd 2, which would corrupt the screen.
	if err := stderr.Start(func(line string) {
		logging.Warn("stderr: %s", line)
	}); err != nil {
		logging.Warn("stderr capture: %v", err)
	}

	err := run()
	if err != nil {
		stderr.WriteOriginal(fmt.Sprintf("Error: %v\n", err))
	}
	stderr.Stop()
	if err != nil {
		os.Exit(1)
	}
}
