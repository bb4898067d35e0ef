package player

import (
	"fmt"

	"castplayd/internal/cast"
	"castplayd/internal/models"
)

// AddBookmark replaces the bookmark text of frame i. Empty text removes it.
func (p *Player) AddBookmark(i int, text string) { p.rec.AddBookmark(i, text) }

func (p *Player) RemoveBookmark(i int) { p.rec.RemoveBookmark(i) }

func (p *Player) Bookmark(i int) []string { return p.rec.Bookmark(i) }

// Bookmarks lists the bookmarked frames in timeline order.
func (p *Player) Bookmarks() []models.TimelineEvent { return p.rec.Bookmarks() }

func (p *Player) AddBookmarkAtCursor(text string) {
	p.rec.AddBookmark(p.CurrentIndex(), text)
}

func (p *Player) RemoveBookmarkAtCursor() {
	p.rec.RemoveBookmark(p.CurrentIndex())
}

func (p *Player) BookmarkAtCursor() []string {
	return p.rec.Bookmark(p.CurrentIndex())
}

// Export serializes the recording with its current bookmarks.
func (p *Player) Export() (string, error) {
	return cast.Export(p.rec)
}

// CommitBookmarks exports the recording and hands it to the OnContentUpdate callback. A failed
// save is returned.
func (p *Player) CommitBookmarks() error {
	if p.rec.Err != nil {
		return fmt.Errorf("cannot commit bookmarks: %w", p.rec.Err)
	}
	out, err := p.Export()
	if err != nil {
		return err
	}
	if p.opts.OnContentUpdate != nil {
		if err := p.opts.OnContentUpdate([]byte(out)); err != nil {
			return fmt.Errorf("failed to save bookmarks: %w", err)
		}
	}
	return nil
}
