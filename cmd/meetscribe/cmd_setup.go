package main

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/meetscribe/internal/config"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive first-run configuration",
	Args:  cobra.NoArgs,
	RunE:  runSetup,
}

func prompt(scanner *bufio.Scanner, label, current string) string {
	if current != "" {
		fmt.Printf("%s [%s]: ", label, current)
	} else {
		fmt.Printf("%s: ", label)
	}
	if !scanner.Scan() {
		return current
	}
	input := strings.TrimSpace(scanner.Text())
	if input == "" {
		return current
	}
	return input
}

func runSetup(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Println("meetscribe setup")
	fmt.Println("Press Enter to keep the value in brackets.")
	fmt.Println()

	fmt.Println("-- Audio capture (ffmpeg) --")
	cfg.Audio.FFmpegBin = prompt(scanner, "ffmpeg binary", cfg.Audio.FFmpegBin)
	if _, err := exec.LookPath(cfg.Audio.FFmpegBin); err != nil {
		fmt.Printf("  warning: %s not found in PATH\n", cfg.Audio.FFmpegBin)
	}
	cfg.Audio.InputFormat = prompt(scanner, "input format (e.g. avfoundation, pulse)", cfg.Audio.InputFormat)
	cfg.Audio.InputDevice = prompt(scanner, "input device (e.g. :0, default)", cfg.Audio.InputDevice)

	fmt.Println()
	fmt.Println("-- Transcription (whisper.cpp) --")
	cfg.Transcription.WhisperBin = prompt(scanner, "whisper-cli binary", cfg.Transcription.WhisperBin)
	if _, err := exec.LookPath(cfg.Transcription.WhisperBin); err != nil {
		fmt.Printf("  warning: %s not found in PATH\n", cfg.Transcription.WhisperBin)
	}
	cfg.Transcription.ModelPath = prompt(scanner, "whisper model path", cfg.Transcription.ModelPath)
	if _, err := os.Stat(cfg.Transcription.ModelPath); err != nil {
		fmt.Printf("  warning: model file not found, download one with whisper.cpp's download-ggml-model.sh\n")
	}

	fmt.Println()
	fmt.Println("-- Minutes generation (OpenAI-compatible API) --")
	cfg.LLM.BaseURL = prompt(scanner, "API base URL", cfg.LLM.BaseURL)
	cfg.LLM.APIKey = prompt(scanner, "API key (or set OPENAI_API_KEY)", cfg.LLM.APIKey)
	cfg.LLM.Model = prompt(scanner, "model", cfg.LLM.Model)

	fmt.Println()
	fmt.Println("-- Telegram notifications (optional, Enter to skip) --")
	cfg.Telegram.Token = prompt(scanner, "bot token", cfg.Telegram.Token)
	if cfg.Telegram.Token != "" {
		chatID := prompt(scanner, "chat ID", strconv.FormatInt(cfg.Telegram.ChatID, 10))
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid chat ID: %s", chatID)
		}
		cfg.Telegram.ChatID = id
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Printf("\nConfiguration saved to %s\n", cfgPath)
	fmt.Println("Start the daemon with: meetscribe serve")
	return nil
}
