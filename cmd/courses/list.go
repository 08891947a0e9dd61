package courses

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	cmdcommon "github.com/coursepulse/ingest/cmd/common"
	"github.com/coursepulse/ingest/internal/database"
	"github.com/coursepulse/ingest/internal/domain"
)

// defaultListLimit caps the table when --limit is not given.
const defaultListLimit = 50

// listCommand returns the courses list command.
func listCommand() *cobra.Command {
	var (
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored courses in a table",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := cmdcommon.NewCommandDeps()
			if err != nil {
				return err
			}

			db, err := database.NewPostgresConnection(deps.Config.Store.URL, deps.Config.Store.ServiceKey)
			if err != nil {
				return fmt.Errorf("failed to connect to course store: %w", err)
			}
			defer db.Close()

			repo := database.NewCourseRepository(db)

			records, err := repo.List(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}
			total, err := repo.Count(cmd.Context())
			if err != nil {
				return err
			}

			if len(records) == 0 {
				deps.Logger.Info("no courses stored yet")
				return nil
			}

			renderTable(records)
			fmt.Printf("\nShowing %d of %d courses\n", len(records), total)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", defaultListLimit, "maximum number of rows")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of rows to skip")

	return cmd
}

// renderTable prints course records as a formatted table.
func renderTable(records []*domain.CourseRecord) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Title", "Instructor", "Price (KRW)", "Rating", "Students", "Category", "Updated"})

	for _, record := range records {
		t.AppendRow(table.Row{
			record.Title,
			record.Instructor,
			formatPrice(record.OriginalPrice, record.SalePrice),
			formatRating(record.Rating),
			record.StudentCount,
			stringOrDash(record.Category),
			record.UpdatedAt.Format("2006-01-02 15:04"),
		})
	}

	t.Render()
}

// formatPrice renders "original" or "original > sale" when discounted.
func formatPrice(original, sale *int64) string {
	if original == nil {
		return "-"
	}
	if sale != nil && *sale < *original {
		return fmt.Sprintf("%d > %d", *original, *sale)
	}
	return fmt.Sprintf("%d", *original)
}

// formatRating renders the rating with one decimal, or a dash.
func formatRating(rating *float64) string {
	if rating == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *rating)
}

// stringOrDash renders an optional string.
func stringOrDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
