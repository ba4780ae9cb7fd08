package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd, confirmCmd, dismissCmd, endCmd)
}

func controlURL(path string) string {
	cfg := loadConfig()
	addr := cfg.HTTP.Listen
	if addr == "" {
		addr = "127.0.0.1:8790"
	}
	return "http://" + addr + path
}

var controlClient = &http.Client{Timeout: 10 * time.Second}

func controlPost(path string) (map[string]any, error) {
	resp, err := controlClient.Post(controlURL(path), "application/json", nil)
	if err != nil {
		return nil, fmt.Errorf("is the daemon running? %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var payload map[string]any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
	}
	if resp.StatusCode >= 400 {
		if msg, ok := payload["error"].(string); ok {
			return nil, fmt.Errorf("%s", msg)
		}
		return nil, fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}
	return payload, nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the daemon's detection and recording state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := controlClient.Get(controlURL("/status"))
		if err != nil {
			return fmt.Errorf("is the daemon running? %w", err)
		}
		defer resp.Body.Close()

		var st struct {
			DetectorState string `json:"detector_state"`
			Pending       *struct {
				BundleID    string `json:"bundle_id"`
				Name        string `json:"name"`
				WindowTitle string `json:"window_title"`
			} `json:"pending,omitempty"`
			Recording       bool  `json:"recording"`
			ActiveMeetingID int64 `json:"active_meeting_id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
			return fmt.Errorf("decode status: %w", err)
		}

		fmt.Printf("Detector: %s\n", st.DetectorState)
		if st.Pending != nil {
			fmt.Printf("Pending: %s (%s)\n", st.Pending.Name, st.Pending.BundleID)
		}
		fmt.Printf("Recording: %v\n", st.Recording)
		if st.ActiveMeetingID != 0 {
			fmt.Printf("Active meeting: %d\n", st.ActiveMeetingID)
		}
		return nil
	},
}

var confirmCmd = &cobra.Command{
	Use:   "confirm",
	Short: "Confirm the pending meeting candidate and start recording",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := controlPost("/meetings/confirm")
		if err != nil {
			return err
		}
		if id, ok := resp["meeting_id"].(float64); ok {
			fmt.Printf("Meeting %d started.\n", int64(id))
		} else {
			fmt.Println("Meeting started.")
		}
		return nil
	},
}

var dismissCmd = &cobra.Command{
	Use:   "dismiss",
	Short: "Dismiss the pending meeting candidate and snooze the app",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := controlPost("/meetings/dismiss"); err != nil {
			return err
		}
		fmt.Println("Dismissed.")
		return nil
	},
}

var endCmd = &cobra.Command{
	Use:   "end",
	Short: "End the active meeting",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := controlPost("/meetings/end"); err != nil {
			return err
		}
		fmt.Println("Meeting ended. Finalizing transcription in the background.")
		return nil
	},
}
