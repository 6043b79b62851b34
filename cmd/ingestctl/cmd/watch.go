package cmd

import (
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/docflow/ingest-console/internal/core/domain"
	"github.com/docflow/ingest-console/internal/core/service"
	"github.com/docflow/ingest-console/internal/core/stream"
)

var watchDocuments bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow ingestion progress until interrupted",
	Long: `Shows the ingestion dashboard and refreshes it on every poll. With
--documents, follows the document list instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := restoredApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		area, err := pterm.DefaultArea.WithRemoveWhenDone(false).Start()
		if err != nil {
			return err
		}
		defer func() { _ = area.Stop() }()

		if watchDocuments {
			if err := a.enter(ctx, anyRole...); err != nil {
				return err
			}
			board := service.NewDocumentBoard(a.remote, a.engine, a.boards, log)
			if err := board.Activate(ctx); err != nil {
				return err
			}
			defer board.Deactivate()
			render(ctx.Done(), area, board.View(), renderDocuments)
			return nil
		}

		if err := a.enter(ctx, editorRole...); err != nil {
			return err
		}
		dash := service.NewIngestionDashboard(a.remote, a.engine, a.boards, log)
		dash.Activate(ctx)
		defer dash.Deactivate()
		render(ctx.Done(), area, dash.View(), renderDashboard)
		return nil
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchDocuments, "documents", false, "Follow the document list instead of the task dashboard")
}

// render redraws area with the newest value of view until done closes.
func render[T any](done <-chan struct{}, area *pterm.AreaPrinter, view stream.Stream[T], format func(T) string) {
	latest := make(chan T, 1)
	unsubscribe := view.Observe(func(v T) {
		select {
		case <-latest:
		default:
		}
		latest <- v
	})
	defer unsubscribe()

	for {
		select {
		case <-done:
			return
		case v := <-latest:
			area.Update(format(v))
		}
	}
}

func renderDocuments(v service.DocumentView) string {
	out := ""
	if len(v.Documents) == 0 {
		out = pterm.Info.Sprintln("No documents")
	} else {
		out, _ = pterm.DefaultTable.WithHasHeader().WithData(documentRows(v.Documents)).Srender()
	}
	return out + footer(v.Error)
}

func renderDashboard(v service.DashboardView) string {
	out := ""
	if len(v.Tasks) == 0 {
		out = pterm.Info.Sprintln("No ingestion tasks")
	} else {
		rows := pterm.TableData{{"TASK", "STATUS", "DETAIL"}}
		for _, id := range sortedIDs(v.Tasks) {
			entry := v.Tasks[id]
			rows = append(rows, []string{id.String(), statusText(entry.Status), entry.Detail})
		}
		out, _ = pterm.DefaultTable.WithHasHeader().WithData(rows).Srender()
	}
	return out + footer(v.Error)
}

func footer(syncErr string) string {
	if syncErr == "" {
		return "\n" + pterm.FgGray.Sprint("Ctrl+C to stop")
	}
	return "\n" + pterm.Warning.Sprint("Last refresh failed: "+syncErr)
}

func sortedIDs(m domain.StatusMap) []domain.EntityID {
	ids := make([]domain.EntityID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
