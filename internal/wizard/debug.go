package wizard

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"thsrbook/internal/browser"
)

// SaveSnapshot writes <label>.png and <label>.html into dir.
func SaveSnapshot(ctx context.Context, page browser.Page, dir, label string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	img, html, err := page.Snapshot(ctx)
	if img != nil {
		if werr := os.WriteFile(filepath.Join(dir, label+".png"), img, 0644); werr != nil {
			return werr
		}
	}
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", label, err)
	}
	return os.WriteFile(filepath.Join(dir, label+".html"), []byte(html), 0644)
}
