package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/insight/internal/otel"
	"github.com/abelbrown/insight/internal/segment"
)

// AppConfig holds the command factories the App dispatches. Every field is
// optional; a nil factory means that effect is skipped.
// IMPORTANT: App does NOT hold the HTTP client or the store. Effects happen
// inside the returned Cmds and come back as messages.
type AppConfig struct {
	Workflow segment.AlgorithmConfig

	LoadCatalog     func() tea.Cmd
	RunSegmentation func(req segment.RunRequest) tea.Cmd
	FetchBoxplot    func(req segment.BoxplotRequest) tea.Cmd
	ExportBoxplot   func(runID, feature, image string) tea.Cmd
	SaveRun         func(res segment.Result) tea.Cmd
	SaveBoxplot     func(o segment.BoxplotOutcome) tea.Cmd

	Events          *otel.Logger
	ShowAssignments bool
}

// row is a focusable form row.
type row int

const (
	rowAlgorithm row = iota
	rowFeatures
	rowNClusters
	rowEps
	rowMinSamples
	rowBoxplot
)

const epsStep = 0.1

// App is the root Bubble Tea model. All workflow state lives in the
// controller; App only tracks focus and transient UI notices.
type App struct {
	cfg  AppConfig
	ctrl *segment.Controller

	focus         row
	featureCursor int
	notice        string
	noticeErr     bool

	boxplotStarted time.Time

	spinner spinner.Model
	help    help.Model
	width   int
	height  int
	ready   bool
}

// NewApp creates the App with a fresh controller seeded from cfg.Workflow.
func NewApp(cfg AppConfig) App {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorHighlight)

	return App{
		cfg:     cfg,
		ctrl:    segment.NewController(cfg.Workflow),
		focus:   rowAlgorithm,
		spinner: s,
		help:    help.New(),
	}
}

// Init loads the feature catalog and starts the spinner.
func (a App) Init() tea.Cmd {
	cmds := []tea.Cmd{a.spinner.Tick}
	if a.cfg.LoadCatalog != nil {
		cmds = append(cmds, a.cfg.LoadCatalog())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if otel.TraceEnabled() {
		a.cfg.Events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindMsgReceived, Comp: "ui", Msg: fmt.Sprintf("%T", msg)})
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		a.ready = true
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case CatalogLoaded:
		a.ctrl.ApplyCatalog(msg.Catalog)
		kind := otel.KindCatalogLoad
		if msg.Catalog.Fallback() {
			kind = otel.KindCatalogFallback
		}
		a.cfg.Events.Emit(otel.Event{Level: otel.LevelInfo, Kind: kind, Comp: "ui", Count: msg.Catalog.Len()})
		a.clampCursor()
		return a, nil

	case RunFinished:
		return a.handleRunFinished(msg.Result)

	case BoxplotFetched:
		return a.handleBoxplotFetched(msg.Outcome)

	case BoxplotExported:
		if msg.Err != nil {
			a.setNotice("Export failed: "+msg.Err.Error(), true)
		} else {
			a.setNotice("Saved "+msg.Path, false)
			a.cfg.Events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindBoxplotExport, Comp: "ui", Msg: msg.Path})
		}
		return a, nil

	case HistorySaved:
		if msg.Err != nil {
			a.setNotice("History not saved: "+msg.Err.Error(), true)
			a.cfg.Events.Emit(otel.Event{Level: otel.LevelError, Kind: otel.KindStoreError, Comp: "ui", RunID: msg.RunID, Err: msg.Err.Error()})
		}
		return a, nil
	}

	return a, nil
}

func (a App) handleRunFinished(res segment.Result) (tea.Model, tea.Cmd) {
	boxReq, applied := a.ctrl.ApplyResult(res)
	if !applied {
		a.cfg.Events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindRunStale, Comp: "ui", Gen: res.Gen, RunID: res.RunID})
		return a, nil
	}

	ev := otel.Event{
		Kind:      otel.KindRunComplete,
		Level:     otel.LevelInfo,
		Comp:      "ui",
		Gen:       res.Gen,
		RunID:     res.RunID,
		Algorithm: string(res.Algorithm),
		Features:  res.Features,
		Dur:       res.Elapsed,
		Count:     len(res.Stats),
	}
	if res.Failed() {
		ev.Kind, ev.Level, ev.Err = otel.KindRunError, otel.LevelError, res.Err
	}
	a.cfg.Events.Emit(ev)

	var cmds []tea.Cmd
	if a.cfg.SaveRun != nil {
		cmds = append(cmds, a.cfg.SaveRun(res))
	}
	cmds = append(cmds, a.fetchBoxplot(boxReq))
	return a, tea.Batch(cmds...)
}

func (a App) handleBoxplotFetched(o segment.BoxplotOutcome) (tea.Model, tea.Cmd) {
	if !a.ctrl.ApplyBoxplot(o) {
		a.cfg.Events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindBoxplotStale, Comp: "ui", Gen: o.Gen, Feature: o.Feature})
		return a, nil
	}

	ev := otel.Event{Level: otel.LevelInfo, Kind: otel.KindBoxplotComplete, Comp: "ui", Gen: o.Gen, RunID: o.RunID, Feature: o.Feature}
	if !a.boxplotStarted.IsZero() {
		ev.Dur = time.Since(a.boxplotStarted)
	}
	if o.Err != "" {
		ev.Kind, ev.Level, ev.Err = otel.KindBoxplotError, otel.LevelWarn, o.Err
		a.cfg.Events.Emit(ev)
		return a, nil
	}
	a.cfg.Events.Emit(ev)

	if a.cfg.SaveBoxplot != nil {
		return a, a.cfg.SaveBoxplot(o)
	}
	return a, nil
}

// handleKeyMsg processes keyboard input.
func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a.notice = ""

	switch {
	case key.Matches(msg, keys.Quit):
		return a, tea.Quit

	case key.Matches(msg, keys.Help):
		a.help.ShowAll = !a.help.ShowAll
		return a, nil

	case key.Matches(msg, keys.Next):
		a.moveFocus(1)
		return a, nil

	case key.Matches(msg, keys.Prev):
		a.moveFocus(-1)
		return a, nil

	case key.Matches(msg, keys.Submit):
		return a.submit()

	case key.Matches(msg, keys.Export):
		return a.export()

	case key.Matches(msg, keys.Up):
		if a.focus == rowFeatures {
			if a.featureCursor > 0 {
				a.featureCursor--
			}
		} else {
			a.moveFocus(-1)
		}
		return a, nil

	case key.Matches(msg, keys.Down):
		if a.focus == rowFeatures {
			if a.featureCursor < a.ctrl.Catalog().Len()-1 {
				a.featureCursor++
			}
		} else {
			a.moveFocus(1)
		}
		return a, nil

	case key.Matches(msg, keys.Toggle):
		if a.focus != rowFeatures {
			return a, nil
		}
		feats := a.ctrl.Catalog().Features()
		if a.featureCursor >= len(feats) {
			return a, nil
		}
		req := a.ctrl.ToggleFeature(feats[a.featureCursor].Value)
		a.fixFocus()
		cmd := a.fetchBoxplot(req)
		return a, cmd

	case key.Matches(msg, keys.Dec):
		return a.adjust(-1)

	case key.Matches(msg, keys.Inc):
		return a.adjust(1)
	}

	return a, nil
}

// adjust steps the focused row's value by dir (-1 or +1).
func (a App) adjust(dir int) (tea.Model, tea.Cmd) {
	cfg := a.ctrl.Config()
	var req *segment.BoxplotRequest

	switch a.focus {
	case rowAlgorithm:
		req = a.ctrl.SetAlgorithm(cycle(segment.Algorithms, cfg.Algorithm, dir))
		a.fixFocus()

	case rowNClusters:
		req = a.ctrl.SetKMeansParams(cfg.KMeans.NClusters + dir)

	case rowEps:
		eps := math.Round((cfg.DBSCAN.Eps+float64(dir)*epsStep)*10) / 10
		req = a.ctrl.SetDBSCANParams(eps, cfg.DBSCAN.MinSamples)

	case rowMinSamples:
		req = a.ctrl.SetDBSCANParams(cfg.DBSCAN.Eps, cfg.DBSCAN.MinSamples+dir)

	case rowBoxplot:
		opts := []string{""}
		for _, f := range a.ctrl.BoxplotOptions() {
			opts = append(opts, f.Value)
		}
		var err error
		req, err = a.ctrl.SetBoxplotFeature(cycle(opts, a.ctrl.BoxplotFeature(), dir))
		if err != nil {
			a.setNotice(err.Error(), true)
			return a, nil
		}
	}

	cmd := a.fetchBoxplot(req)
	return a, cmd
}

func (a App) submit() (tea.Model, tea.Cmd) {
	req, err := a.ctrl.Submit()
	if err != nil {
		return a, nil
	}
	a.cfg.Events.Emit(otel.Event{
		Level:     otel.LevelInfo,
		Kind:      otel.KindRunSubmit,
		Comp:      "ui",
		Gen:       req.Gen,
		Algorithm: string(req.Algorithm),
		Features:  req.Features,
	})
	if a.cfg.RunSegmentation == nil {
		return a, nil
	}
	return a, a.cfg.RunSegmentation(*req)
}

func (a App) export() (tea.Model, tea.Cmd) {
	st := a.ctrl.Boxplot()
	if st.Image == "" {
		a.setNotice("No boxplot to export.", true)
		return a, nil
	}
	if a.cfg.ExportBoxplot == nil {
		return a, nil
	}
	runID := ""
	if res := a.ctrl.Result(); res != nil {
		runID = res.RunID
	}
	return a, a.cfg.ExportBoxplot(runID, st.Feature, st.Image)
}

// fetchBoxplot turns a controller request into a Cmd. nil-safe.
func (a *App) fetchBoxplot(req *segment.BoxplotRequest) tea.Cmd {
	if req == nil || a.cfg.FetchBoxplot == nil {
		return nil
	}
	a.boxplotStarted = time.Now()
	a.cfg.Events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindBoxplotStart, Comp: "ui", Gen: req.Gen, RunID: req.RunID, Feature: req.Feature})
	return a.cfg.FetchBoxplot(*req)
}

func (a *App) setNotice(s string, isErr bool) {
	a.notice = s
	a.noticeErr = isErr
}

// rows lists the rows currently shown, in focus order.
func (a App) rows() []row {
	rs := []row{rowAlgorithm, rowFeatures}
	switch a.ctrl.Config().Algorithm {
	case segment.KMeans:
		rs = append(rs, rowNClusters)
	case segment.DBSCAN:
		rs = append(rs, rowEps, rowMinSamples)
	}
	if a.ctrl.BoxplotSelectorVisible() {
		rs = append(rs, rowBoxplot)
	}
	return rs
}

func (a *App) moveFocus(dir int) {
	a.focus = cycle(a.rows(), a.focus, dir)
}

// fixFocus moves focus back to the feature list if its row disappeared.
func (a *App) fixFocus() {
	for _, r := range a.rows() {
		if r == a.focus {
			return
		}
	}
	a.focus = rowFeatures
}

func (a *App) clampCursor() {
	n := a.ctrl.Catalog().Len()
	if a.featureCursor >= n {
		a.featureCursor = n - 1
	}
	if a.featureCursor < 0 {
		a.featureCursor = 0
	}
}

// cycle returns the element dir steps from cur, wrapping. An absent cur
// behaves as if it were at index 0.
func cycle[T comparable](xs []T, cur T, dir int) T {
	if len(xs) == 0 {
		return cur
	}
	i := 0
	for j, x := range xs {
		if x == cur {
			i = j
			break
		}
	}
	i = ((i+dir)%len(xs) + len(xs)) % len(xs)
	return xs[i]
}

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}

	header := TitleStyle.Render("Customer Segmentation") + " " + StatusBar.Render(a.statusLine())

	form := a.renderForm()
	results := RenderDisplay(a.ctrl.Display(), a.resultsWidth(), a.spinner.View())
	if extra := a.renderAssignments(); extra != "" {
		results += "\n\n" + extra
	}

	var body string
	if a.width >= 110 {
		body = lipgloss.JoinHorizontal(lipgloss.Top,
			Panel.Width(44).Render(form),
			Panel.Width(a.width-48).Render(results),
		)
	} else {
		body = lipgloss.JoinVertical(lipgloss.Left, Panel.Render(form), Panel.Render(results))
	}

	footer := HelpStyle.Render(a.help.View(keys))
	if a.notice != "" {
		style := SuccessStyle
		if a.noticeErr {
			style = ErrorStyle
		}
		footer = style.Render(a.notice) + "\n" + footer
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (a App) resultsWidth() int {
	if a.width >= 110 {
		return a.width - 52
	}
	return a.width - 4
}

func (a App) statusLine() string {
	s := a.ctrl.Status().String()
	if a.ctrl.Status() == segment.StatusLoading {
		s = a.spinner.View() + " " + s
	}
	return s
}

func (a App) label(r row, text string) string {
	if a.focus == r {
		return FormLabelFocused.Render(text)
	}
	return FormLabel.Render(text)
}

func (a App) renderForm() string {
	cfg := a.ctrl.Config()
	var lines []string

	lines = append(lines, a.label(rowAlgorithm, "Algorithm")+FormValue.Render("< "+cfg.Algorithm.Label()+" >"))
	lines = append(lines, "")

	lines = append(lines, a.label(rowFeatures, "Features"))
	if !a.ctrl.CatalogReady() {
		lines = append(lines, MessageStyle.Render("  loading features..."))
	}
	for i, f := range a.ctrl.Catalog().Features() {
		mark := "[ ]"
		if cfg.Features.Contains(f.Value) {
			mark = "[x]"
		}
		text := fmt.Sprintf("%s %s", mark, f.Label)
		if a.focus == rowFeatures && i == a.featureCursor {
			text = FeatureCursor.Render(text)
		}
		lines = append(lines, "  "+text+" "+FeatureType.Render("("+string(f.Type)+")"))
	}
	lines = append(lines, "")

	switch cfg.Algorithm {
	case segment.KMeans:
		lines = append(lines, a.label(rowNClusters, "N clusters")+FormValue.Render(fmt.Sprintf("< %d >", cfg.KMeans.NClusters)))
	case segment.DBSCAN:
		lines = append(lines, a.label(rowEps, "Eps")+FormValue.Render(fmt.Sprintf("< %.1f >", cfg.DBSCAN.Eps)))
		lines = append(lines, a.label(rowMinSamples, "Min samples")+FormValue.Render(fmt.Sprintf("< %d >", cfg.DBSCAN.MinSamples)))
	}

	if a.ctrl.BoxplotSelectorVisible() {
		choice := a.ctrl.BoxplotFeature()
		if choice == "" {
			choice = "none"
		}
		lines = append(lines, a.label(rowBoxplot, "Boxplot")+FormValue.Render("< "+choice+" >"))
		if len(a.ctrl.BoxplotOptions()) == 0 {
			lines = append(lines, MessageStyle.Render("  select a numeric feature to chart"))
		}
	}

	if msg := a.ctrl.ValidationMessage(); msg != "" {
		lines = append(lines, "", ValidationStyle.Render(msg))
	}
	return strings.Join(lines, "\n")
}

func (a App) renderAssignments() string {
	if !a.cfg.ShowAssignments || a.ctrl.Status() != segment.StatusSuccess {
		return ""
	}
	res := a.ctrl.Result()
	if res == nil || len(res.Assignments) == 0 {
		return ""
	}
	labels := segment.DisplayLabels(segment.SortedClusterIDs(res.Stats))
	const preview = 5
	var parts []string
	for i := 0; i < preview; i++ {
		id, ok := res.Assignments[i]
		if !ok {
			break
		}
		name := id
		if l, ok := labels[id]; ok {
			name = ClusterTitle(l)
		}
		parts = append(parts, fmt.Sprintf("#%d→%s", i, name))
	}
	return SectionHeader.Render("Assignments") + fmt.Sprintf("\n%d records  %s", len(res.Assignments), strings.Join(parts, "  "))
}

// Controller exposes the workflow state (for testing).
func (a App) Controller() *segment.Controller {
	return a.ctrl
}

// Focus returns the focused row index (for testing).
func (a App) Focus() int {
	return int(a.focus)
}

// Notice returns the transient footer message (for testing).
func (a App) Notice() string {
	return a.notice
}
