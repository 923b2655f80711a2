package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/abelbrown/insight/internal/logging"
	"github.com/abelbrown/insight/internal/otel"
	"github.com/abelbrown/insight/internal/segment"
	"github.com/abelbrown/insight/internal/store"
	"github.com/abelbrown/insight/internal/ui"
)

func runTUI(cmd *cobra.Command, _ []string) error {
	e, err := setup(nil)
	if err != nil {
		return err
	}
	defer logging.Close()

	st, err := e.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	events, err := otel.Open(e.dataDir)
	if err != nil {
		logging.Warn("event log unavailable", "err", err)
		events = otel.NewNullLogger()
	}
	defer events.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindStartup, Comp: "main", Msg: e.client.BaseURL()})

	app := ui.NewApp(appConfig(ctx, e, st, events))
	program := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))

	_, err = program.Run()
	events.Info(otel.KindShutdown, "main", "")
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		logging.Error("program exited", "err", err)
		return err
	}
	return nil
}

// appConfig binds the App's effect factories to the dispatcher, the store
// and the export directory.
func appConfig(ctx context.Context, e *env, st *store.Store, events *otel.Logger) ui.AppConfig {
	exportDir := e.cfg.ExportDir(e.dataDir)

	return ui.AppConfig{
		Workflow:        e.cfg.Workflow(),
		Events:          events,
		ShowAssignments: e.cfg.UI.ShowAssignments,

		LoadCatalog: func() tea.Cmd {
			return func() tea.Msg {
				return ui.CatalogLoaded{Catalog: e.dispatcher.LoadCatalog(ctx)}
			}
		},
		RunSegmentation: func(req segment.RunRequest) tea.Cmd {
			return func() tea.Msg {
				return ui.RunFinished{Result: e.dispatcher.Run(ctx, req)}
			}
		},
		FetchBoxplot: func(req segment.BoxplotRequest) tea.Cmd {
			return func() tea.Msg {
				return ui.BoxplotFetched{Outcome: e.dispatcher.Boxplot(ctx, req)}
			}
		},
		ExportBoxplot: func(runID, feature, image string) tea.Cmd {
			return func() tea.Msg {
				path := filepath.Join(exportDir, segment.BoxplotFileName(runID, feature))
				if err := segment.WriteBoxplot(path, image); err != nil {
					return ui.BoxplotExported{Err: err}
				}
				return ui.BoxplotExported{Path: path}
			}
		},
		SaveRun: func(res segment.Result) tea.Cmd {
			return func() tea.Msg {
				run := store.RunFromResult(res, time.Now())
				return ui.HistorySaved{RunID: run.ID, Err: st.SaveRun(run)}
			}
		},
		SaveBoxplot: func(o segment.BoxplotOutcome) tea.Cmd {
			return func() tea.Msg {
				err := st.SaveBoxplot(store.Boxplot{
					RunID:       o.RunID,
					Feature:     o.Feature,
					ImageBase64: o.Image,
					CreatedAt:   time.Now(),
				})
				return ui.HistorySaved{RunID: o.RunID, Err: err}
			}
		},
	}
}
