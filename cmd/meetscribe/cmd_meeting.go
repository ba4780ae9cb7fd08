package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/meetscribe/internal/minutes"
	"github.com/user/meetscribe/internal/store"
)

func init() {
	rootCmd.AddCommand(meetingCmd)
	meetingCmd.AddCommand(meetingListCmd, meetingShowCmd)

	meetingListCmd.Flags().Int("limit", 20, "maximum meetings to show")
}

var meetingCmd = &cobra.Command{
	Use:   "meeting",
	Short: "Inspect archived meetings",
}

func openDB() (*sql.DB, error) {
	cfg := loadConfig()
	db, err := store.Open(filepath.Join(cfg.DataDir, "meetscribe.db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := store.Migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

var meetingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent meetings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		meetings, err := store.NewMeetingStore(db).List(context.Background(), limit)
		if err != nil {
			return fmt.Errorf("list meetings: %w", err)
		}
		if len(meetings) == 0 {
			fmt.Println("No meetings recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tAPP\tSTARTED\tDURATION\tSTATUS\tTRANSCRIPTION")
		for _, m := range meetings {
			duration := "-"
			if m.DurationSeconds != nil {
				duration = (time.Duration(*m.DurationSeconds) * time.Second).String()
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
				m.ID, m.AppName, m.StartTime.Format("2006-01-02 15:04"),
				duration, m.Status, m.TranscriptionStatus)
		}
		return w.Flush()
	},
}

var meetingShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a meeting's minutes and transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid meeting id: %s", args[0])
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		ctx := context.Background()

		m, err := store.NewMeetingStore(db).Get(ctx, id)
		if err != nil {
			return fmt.Errorf("get meeting: %w", err)
		}

		fmt.Printf("Meeting %d: %s (%s)\n", m.ID, m.AppName, m.AppBundleID)
		fmt.Printf("Started: %s\n", m.StartTime.Format("2006-01-02 15:04:05"))
		if m.DurationSeconds != nil {
			fmt.Printf("Duration: %s\n", time.Duration(*m.DurationSeconds)*time.Second)
		}
		fmt.Printf("Status: %s, transcription: %s\n", m.Status, m.TranscriptionStatus)

		mins, err := store.NewMinutesStore(db).GetByMeeting(ctx, id)
		if err != nil {
			return fmt.Errorf("get minutes: %w", err)
		}
		if mins != nil {
			fmt.Printf("\nSummary (v%d):\n%s\n", mins.Version, mins.Summary)
			if len(mins.KeyPoints) > 0 {
				fmt.Println("\nKey points:")
				for _, kp := range mins.KeyPoints {
					fmt.Printf("  - %s\n", kp)
				}
			}
			if len(mins.Decisions) > 0 {
				fmt.Println("\nDecisions:")
				for _, d := range mins.Decisions {
					fmt.Printf("  - %s\n", d)
				}
			}
		}

		items, err := store.NewActionItemStore(db).ListByMeeting(ctx, id)
		if err != nil {
			return fmt.Errorf("list action items: %w", err)
		}
		if len(items) > 0 {
			fmt.Println("\nAction items:")
			for _, item := range items {
				marker := " "
				if item.Status == "completed" {
					marker = "x"
				}
				line := fmt.Sprintf("  [%s] #%d %s", marker, item.ID, item.Title)
				if item.Assignee != "" {
					line += fmt.Sprintf(" (%s)", item.Assignee)
				}
				fmt.Println(line)
			}
		}

		segs, err := store.NewSegmentStore(db).ListByMeeting(ctx, id)
		if err != nil {
			return fmt.Errorf("list segments: %w", err)
		}
		if len(segs) > 0 {
			fmt.Println("\nTranscript:")
			for _, seg := range segs {
				fmt.Printf("  [%s] %s\n", minutes.FormatOffset(seg.StartTime), seg.Text)
			}
		}
		return nil
	},
}
