package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/meetscribe/internal/audio"
	"github.com/user/meetscribe/internal/bus"
	"github.com/user/meetscribe/internal/coordinator"
	"github.com/user/meetscribe/internal/detector"
	"github.com/user/meetscribe/internal/export"
	"github.com/user/meetscribe/internal/httpapi"
	"github.com/user/meetscribe/internal/minutes"
	"github.com/user/meetscribe/internal/observer"
	"github.com/user/meetscribe/internal/store"
	"github.com/user/meetscribe/internal/telegram"
	"github.com/user/meetscribe/internal/types"
	"github.com/user/meetscribe/internal/whisper"
	"github.com/user/meetscribe/pkg/llm"
	"github.com/user/meetscribe/pkg/llm/openai"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the meetscribe daemon",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "meetscribe.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	// Storage
	db, err := store.Open(filepath.Join(cfg.DataDir, "meetscribe.db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := store.Migrate(context.Background(), db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	meetings := store.NewMeetingStore(db)
	segments := store.NewSegmentStore(db)
	minStore := store.NewMinutesStore(db)
	items := store.NewActionItemStore(db)

	logger := slog.Default()
	b := bus.New()

	// Detection
	heuristics, err := detector.NewHeuristics(cfg.Detector.MeetingApps, cfg.Detector.TitlePatterns)
	if err != nil {
		return fmt.Errorf("compile heuristics: %w", err)
	}
	snooze := detector.NewSnooze(time.Duration(cfg.Detector.SnoozeTTLSecs) * time.Second)
	apps := observer.New(cfg.Detector.ObserverCommand, logger)
	det := detector.New(apps, meetings, snooze, heuristics, b, cfg.Detector.PollSchedule, logger)

	// Minutes generation
	provider := openai.New(&llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})
	prompts, err := minutes.NewPromptBuilder(cfg.LLM.Model, cfg.LLM.MaxContextTokens, cfg.LLM.OutputReserve)
	if err != nil {
		return fmt.Errorf("create prompt builder: %w", err)
	}
	generator := minutes.NewGenerator(provider, minStore, prompts, cfg.LLM.Model,
		time.Duration(cfg.LLM.RequestTimeoutSecs)*time.Second, logger)

	// Capture and transcription
	recorder := audio.NewRecorder(audio.Config{
		FFmpegBin:   cfg.Audio.FFmpegBin,
		InputFormat: cfg.Audio.InputFormat,
		InputDevice: cfg.Audio.InputDevice,
		SampleRate:  cfg.Audio.SampleRate,
		Channels:    cfg.Audio.Channels,
		ChunkSecs:   cfg.Transcription.ChunkSecs,
		Dir:         filepath.Join(cfg.DataDir, "recordings"),
	}, logger)
	engine := whisper.New(whisper.Config{
		Bin:       cfg.Transcription.WhisperBin,
		ModelPath: cfg.Transcription.ModelPath,
		Language:  cfg.Transcription.Language,
	}, logger)
	coord := coordinator.New(recorder, engine, meetings, segments, items, generator, b, coordinator.Config{
		SegmentUpdateThreshold: cfg.Transcription.SegmentUpdateThreshold,
		LiveMinutes:            cfg.Transcription.LiveMinutes,
		LiveMinutesInterval:    time.Duration(cfg.Transcription.LiveMinutesIntervalSecs) * time.Second,
	}, logger)

	// Export sinks
	sinks := export.NewRegistry(logger)
	sinks.Register("markdown", export.Markdown(cfg.Export.MarkdownDir))
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		notifier, err := telegram.New(cfg.Telegram.Token, cfg.Telegram.ChatID, logger)
		if err != nil {
			return fmt.Errorf("create telegram notifier: %w", err)
		}
		sinks.Register("telegram", notifier.Sink())
		slog.Info("telegram notifier enabled")
	} else {
		slog.Warn("telegram notifier disabled (no token or chat id)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Lifecycle wiring: detector events drive the coordinator, completion
	// drives export.
	events := b.Subscribe(bus.TopicMeetingStarted, bus.TopicMeetingEnded, bus.TopicTranscriptionCompleted)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				switch ev.Topic {
				case bus.TopicMeetingStarted:
					if err := coord.Start(ctx, ev.Session.MeetingID); err != nil {
						slog.Error("failed to start transcription",
							"meeting_id", ev.Session.MeetingID, "error", err)
					}
				case bus.TopicMeetingEnded:
					if _, err := coord.Stop(ctx); err != nil {
						slog.Error("failed to stop transcription",
							"meeting_id", ev.Session.MeetingID, "error", err)
					}
				case bus.TopicTranscriptionCompleted:
					deliverExports(ctx, ev.Completion, meetings, segments, items, sinks)
				}
			}
		}
	}()

	if err := det.Start(); err != nil {
		return fmt.Errorf("start detector: %w", err)
	}
	defer det.Stop()

	// Control API
	if cfg.HTTP.Enabled {
		api := httpapi.NewServer(det, coord, meetings, segments, minStore, items, generator, logger)
		httpServer := &http.Server{
			Addr:    cfg.HTTP.Listen,
			Handler: api,
		}
		go func() {
			slog.Info("control API started", "listen", cfg.HTTP.Listen)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("control API error", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			httpServer.Close()
		}()
	}

	slog.Info("meetscribe started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"poll_schedule", cfg.Detector.PollSchedule,
		"llm_model", cfg.LLM.Model,
		"pid_file", pidPath,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			// End any running session cleanly before re-exec.
			if _, err := coord.Stop(ctx); err != nil {
				slog.Error("failed to stop transcription before restart", "error", err)
			}
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		// SIGINT or SIGTERM
		slog.Info("shutting down", "signal", sig)
		if _, err := coord.Stop(ctx); err != nil {
			slog.Error("failed to stop transcription on shutdown", "error", err)
		}
		return nil
	}
}

// deliverExports loads the finished meeting's artifacts and fans them out to
// the export sinks. Memory-only meetings (id 0) have nothing durable to load
// and are skipped.
func deliverExports(ctx context.Context, completion *bus.Completion, meetings types.MeetingStore, segments types.SegmentStore, items types.ActionItemStore, sinks *export.Registry) {
	if completion.MeetingID == 0 {
		slog.Warn("skipping export for memory-only meeting")
		return
	}
	m, err := meetings.Get(ctx, completion.MeetingID)
	if err != nil {
		slog.Error("failed to load meeting for export",
			"meeting_id", completion.MeetingID, "error", err)
		return
	}
	segs, err := segments.ListByMeeting(ctx, completion.MeetingID)
	if err != nil {
		slog.Warn("failed to load segments for export",
			"meeting_id", completion.MeetingID, "error", err)
	}
	actionItems, err := items.ListByMeeting(ctx, completion.MeetingID)
	if err != nil {
		slog.Warn("failed to load action items for export",
			"meeting_id", completion.MeetingID, "error", err)
	}
	sinks.DeliverAll(ctx, &export.Payload{
		Meeting:  m,
		Minutes:  completion.Minutes,
		Segments: segs,
		Items:    actionItems,
	})
}
