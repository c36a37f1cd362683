package cmd

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/gerritevents/gerrit-events/internal/domain/entity"
	"github.com/gerritevents/gerrit-events/internal/domain/repo/fetchhistory"
	"github.com/gerritevents/gerrit-events/internal/factory"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status [project...]",
	Short: "Print the last fetch of each project, per scheduler host",
	Long: `
Print the last fetch recorded by each scheduler host in the fetch history.
Without argument, every repository of the scheduler configuration is listed.
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		historyConf := conf.Scheduler.History

		if historyConf.Valkey.URL == "" {
			return fmt.Errorf("no fetch history configured")
		}

		projects := args
		if len(projects) == 0 {
			for _, repository := range conf.Scheduler.Repositories {
				projects = append(projects, repository.Name)
			}

			sort.Strings(projects)
		}

		client, closeClient, err := factory.CreateValkeyClient(cmd.Context(), historyConf.Valkey)
		if err != nil {
			return err
		}

		defer closeClient(cmd.Context()) //nolint:errcheck

		history := fetchhistory.NewValkeyRepo(client, historyConf.Expiration, historyConf.KeyPrefix)

		var records []entity.FetchRecord

		for _, project := range projects {
			projectRecords, err := history.GetFetchRecords(cmd.Context(), project)
			if err != nil {
				return fmt.Errorf("failed to get fetch records of %s: %w", project, err)
			}

			records = append(records, projectRecords...)
		}

		return printFetchRecords(cmd.OutOrStdout(), records, time.Now())
	},
}

func printFetchRecords(out io.Writer, records []entity.FetchRecord, now time.Time) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "PROJECT\tHOST\tSTARTED\tDURATION\tEXIT\tERROR")

	for _, record := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			record.Project,
			record.Host,
			humanize.RelTime(record.StartedAt, now, "ago", "from now"),
			record.Duration.Round(time.Millisecond),
			record.ExitCode,
			record.Error,
		)
	}

	return w.Flush()
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
