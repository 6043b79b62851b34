package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/docflow/ingest-console/internal/core/domain"
	"github.com/docflow/ingest-console/internal/infrastructure/queue"
)

var (
	anyRole    = []domain.Role{domain.RoleAdmin, domain.RoleEditor, domain.RoleViewer}
	editorRole = []domain.Role{domain.RoleAdmin, domain.RoleEditor}
)

var documentsCmd = &cobra.Command{
	Use:     "documents",
	Aliases: []string{"docs", "ls"},
	Short:   "List documents with their ingestion status",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := restoredApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.enter(ctx, anyRole...); err != nil {
			return err
		}

		docs, err := fetchDocuments(cmd, a)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			pterm.Info.Println("No documents")
			return nil
		}
		return pterm.DefaultTable.WithHasHeader().WithData(documentRows(docs)).Render()
	},
}

var (
	ingestAll     bool
	ingestWorkers int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [document-id...]",
	Short: "Start ingestion of one or more documents",
	Long: `Triggers ingestion of the given documents. With --all, every document that
has no ingestion status yet is triggered. Triggers run concurrently.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && !ingestAll {
			return errors.New("give at least one document id, or --all")
		}
		ctx := cmd.Context()
		a, err := restoredApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.enter(ctx, editorRole...); err != nil {
			return err
		}

		ids := make([]domain.EntityID, 0, len(args))
		for _, arg := range args {
			ids = append(ids, domain.EntityID(arg))
		}
		if ingestAll {
			docs, err := fetchDocuments(cmd, a)
			if err != nil {
				return err
			}
			for _, d := range docs {
				if d.Status == domain.StatusAbsent {
					ids = append(ids, d.ID)
				}
			}
		}
		if len(ids) == 0 {
			pterm.Info.Println("Nothing to ingest")
			return nil
		}

		results := queue.NewDispatcher(ingestWorkers, a.remote.TriggerIngestion, log).Run(ctx, ids)
		failed := 0
		for _, r := range results {
			if r.Err != nil {
				failed++
				pterm.Error.Printf("%s: %v\n", r.ID, r.Err)
				continue
			}
			pterm.Success.Printf("%s: %s\n", r.ID, domain.StatusPending)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d triggers failed", failed, len(results))
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestAll, "all", false, "Trigger every document without an ingestion status")
	ingestCmd.Flags().IntVar(&ingestWorkers, "workers", 4, "Concurrent triggers")
}

// fetchDocuments loads the list and merges one status snapshot into it.
func fetchDocuments(cmd *cobra.Command, a *app) ([]domain.Document, error) {
	ctx := cmd.Context()
	docs, err := a.remote.FetchDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	for i := range docs {
		docs[i].Status = domain.StatusAbsent
	}
	if len(docs) == 0 {
		return docs, nil
	}
	statuses, err := a.remote.FetchStatusMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("ingestion status: %w", err)
	}
	return domain.MergeStatuses(docs, statuses), nil
}

func documentRows(docs []domain.Document) pterm.TableData {
	rows := pterm.TableData{{"ID", "FILENAME", "STATUS", "UPLOADED"}}
	for _, d := range docs {
		uploaded := "-"
		if d.UploadedAt != nil {
			uploaded = d.UploadedAt.Local().Format(time.DateTime)
		}
		rows = append(rows, []string{d.ID.String(), d.Filename, statusText(d.Status), uploaded})
	}
	return rows
}

func statusText(s domain.IngestionStatus) string {
	switch s {
	case domain.StatusAbsent:
		return "-"
	case domain.StatusCompleted:
		return pterm.FgGreen.Sprint(s)
	case domain.StatusFailed:
		return pterm.FgRed.Sprint(s)
	case domain.StatusPending, domain.StatusRunning:
		return pterm.FgYellow.Sprint(s)
	default:
		return string(s)
	}
}
