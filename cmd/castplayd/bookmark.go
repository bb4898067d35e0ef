package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"castplayd/internal/cast"

	"github.com/spf13/cobra"
)

var bookmarkCmd = &cobra.Command{
	Use:   "bookmark",
	Short: "Manage the bookmarks of a recording file",
}

var bookmarkListCmd = &cobra.Command{
	Use:   "list <file>",
	Short: "List bookmarked events",
	Args:  cobra.ExactArgs(1),
	RunE:  runBookmarkList,
}

var bookmarkAddCmd = &cobra.Command{
	Use:   "add <file> <event-index> <text>...",
	Short: "Set the bookmark text of an event",
	Args:  cobra.MinimumNArgs(3),
	RunE:  runBookmarkAdd,
}

var bookmarkRemoveCmd = &cobra.Command{
	Use:     "rm <file> <event-index>",
	Aliases: []string{"remove"},
	Short:   "Remove the bookmark of an event",
	Args:    cobra.ExactArgs(2),
	RunE:    runBookmarkRemove,
}

func init() {
	bookmarkCmd.AddCommand(bookmarkListCmd)
	bookmarkCmd.AddCommand(bookmarkAddCmd)
	bookmarkCmd.AddCommand(bookmarkRemoveCmd)
}

func runBookmarkList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rec, err := readRecording(args[0], cfg)
	if err != nil {
		return err
	}

	marks := rec.Bookmarks()
	if len(marks) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No bookmarks.")
		return nil
	}
	for _, evt := range marks {
		fmt.Fprintf(cmd.OutOrStdout(), "%6d  %10.3fs  %s\n",
			evt.EventIndex, evt.EventTime.Seconds(), strings.Join(evt.Bookmarks, " / "))
	}
	return nil
}

func runBookmarkAdd(cmd *cobra.Command, args []string) error {
	return editBookmarks(args[0], args[1], func(rec *cast.Recording, i int) {
		rec.AddBookmark(i, strings.Join(args[2:], " "))
	})
}

func runBookmarkRemove(cmd *cobra.Command, args []string) error {
	return editBookmarks(args[0], args[1], func(rec *cast.Recording, i int) {
		rec.RemoveBookmark(i)
	})
}

// editBookmarks applies edit to the frame with the given event index and rewrites the file.
func editBookmarks(path, eventIndex string, edit func(rec *cast.Recording, i int)) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(eventIndex)
	if err != nil {
		return fmt.Errorf("invalid event index %q", eventIndex)
	}
	rec, err := readRecording(path, cfg)
	if err != nil {
		return err
	}
	i, ok := rec.IndexOfEvent(id)
	if !ok {
		return fmt.Errorf("recording has no event %d", id)
	}

	edit(rec, i)
	content, err := cast.Export(rec)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, []byte(content))
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), path)
}
