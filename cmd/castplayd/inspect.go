package main

import (
	"encoding/json"
	"fmt"
	"os"

	"castplayd/internal/cast"
	"castplayd/internal/player"
	"castplayd/internal/render"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var infoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "Show the header, duration and bookmarks of a recording",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

var screenCmd = &cobra.Command{
	Use:   "screen <file>",
	Short: "Print the terminal screen at a point of a recording",
	Args:  cobra.ExactArgs(1),
	RunE:  runScreen,
}

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write a recording in normalized form, with bookmarks",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var chaptersCmd = &cobra.Command{
	Use:   "chapters <file>",
	Short: "Print the bookmarks of a recording as a WebVTT chapter track",
	Args:  cobra.ExactArgs(1),
	RunE:  runChapters,
}

func init() {
	infoCmd.Flags().Bool("json", false, "Print JSON instead of YAML")
	screenCmd.Flags().Float64("position", 1, "Point in the recording, as a fraction of its duration")
	screenCmd.Flags().Bool("ansi", false, "Print escape sequences that redraw the screen")
	exportCmd.Flags().StringP("output", "o", "", "Output file (default stdout)")
}

func runInfo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rec, err := readRecording(args[0], cfg)
	if err != nil {
		return err
	}
	summary := cast.Summarize(rec)

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(summary)
}

func runScreen(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rec, err := readRecording(args[0], cfg)
	if err != nil {
		return err
	}
	position, _ := cmd.Flags().GetFloat64("position")
	ansi, _ := cmd.Flags().GetBool("ansi")

	cols, rows := rec.Header.Width, rec.Header.Height
	if cols <= 0 || rows <= 0 {
		cols, rows = cfg.Server.ScreenCols, cfg.Server.ScreenRows
	}
	screen := render.NewVT(cols, rows)
	p := player.New(rec, screen, newLogger(cfg, os.Stderr), player.Options{})
	defer p.Cleanup()
	if err := p.Init(nil); err != nil {
		return err
	}
	p.JumpToPosition(position)

	out := cmd.OutOrStdout()
	if ansi {
		_, err = out.Write(screen.Snapshot())
		return err
	}
	_, err = fmt.Fprintln(out, screen.Text())
	return err
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rec, err := readRecording(args[0], cfg)
	if err != nil {
		return err
	}
	content, err := cast.Export(rec)
	if err != nil {
		return err
	}

	if path, _ := cmd.Flags().GetString("output"); path != "" {
		return os.WriteFile(path, []byte(content), 0o644)
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), content)
	return err
}

func runChapters(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rec, err := readRecording(args[0], cfg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), cast.Chapters(rec))
	return err
}
