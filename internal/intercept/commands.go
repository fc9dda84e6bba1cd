package intercept

import (
	"context"
	"errors"
	"fmt"

	"github.com/ppiankov/affirmgate/internal/model"
)

// Host command names gated by default.
const (
	CmdDownload = "filebrowser:download"
	CmdCopyLink = "filebrowser:copy-download-link"
	CmdOpenTab  = "filebrowser:open-browser-tab"
	CmdExport   = "notebook:export-to-format"
)

// DefaultCommands maps each gated host command to its action kind.
var DefaultCommands = map[string]model.ActionKind{
	CmdDownload: model.KindDownload,
	CmdCopyLink: model.KindDownload,
	CmdOpenTab:  model.KindDownload,
	CmdExport:   model.KindDownload,
}

// ErrNoSelection is returned by commands that need exactly one selected
// file.
var ErrNoSelection = errors.New("select exactly one file")

// Item is one entry in a file browser.
type Item struct {
	Path string
	Dir  bool
}

// Selection reports the items selected in a file browser.
type Selection interface {
	Selected() []Item
}

// Contents resolves workspace paths to download URLs.
type Contents interface {
	DownloadURL(ctx context.Context, path string) (string, error)
}

// Downloader fetches a URL to the user's machine.
type Downloader interface {
	Download(ctx context.Context, url string) error
}

// Opener opens a URL in a new browser tab or window.
type Opener interface {
	Open(ctx context.Context, url string) error
}

// Clipboard holds copied text.
type Clipboard interface {
	Copy(text string) error
}

// Exporter converts the active document to another format.
type Exporter interface {
	Dirty() bool
	Save(ctx context.Context) error
	ExportURL(ctx context.Context, format string) (string, error)
}

// DownloadCommand downloads every selected file. Directories are skipped.
// It returns the number of files downloaded.
func DownloadCommand(sel Selection, c Contents, d Downloader) Command {
	return func(ctx context.Context, _ Args) (any, error) {
		n := 0
		for _, it := range sel.Selected() {
			if it.Dir {
				continue
			}
			u, err := c.DownloadURL(ctx, it.Path)
			if err != nil {
				return n, fmt.Errorf("resolve %s: %w", it.Path, err)
			}
			if err := d.Download(ctx, MarkURL(ctx, u)); err != nil {
				return n, fmt.Errorf("download %s: %w", it.Path, err)
			}
			n++
		}
		return n, nil
	}
}

// CopyLinkCommand copies the download link of the single selected file.
// It returns the copied URL.
func CopyLinkCommand(sel Selection, c Contents, cb Clipboard) Command {
	return func(ctx context.Context, _ Args) (any, error) {
		items := sel.Selected()
		if len(items) != 1 || items[0].Dir {
			return nil, ErrNoSelection
		}
		u, err := c.DownloadURL(ctx, items[0].Path)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", items[0].Path, err)
		}
		u = MarkURL(ctx, u)
		if err := cb.Copy(u); err != nil {
			return nil, fmt.Errorf("copy link: %w", err)
		}
		return u, nil
	}
}

// OpenTabCommand opens the file named by the "path" argument in a new tab.
// A failure to open is reported as *model.ReplayError.
func OpenTabCommand(c Contents, o Opener) Command {
	return func(ctx context.Context, args Args) (any, error) {
		path := args.String("path")
		if path == "" {
			return nil, errors.New("open tab: missing path")
		}
		u, err := c.DownloadURL(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", path, err)
		}
		u = MarkURL(ctx, u)
		if err := o.Open(ctx, u); err != nil {
			return nil, &model.ReplayError{URL: u, Err: err}
		}
		return u, nil
	}
}

// ExportCommand exports the active document to the "format" argument.
// Unsaved changes are saved first so the export reflects them.
func ExportCommand(e Exporter, d Downloader) Command {
	return func(ctx context.Context, args Args) (any, error) {
		format := args.String("format")
		if format == "" {
			return nil, errors.New("export: missing format")
		}
		if e.Dirty() {
			if err := e.Save(ctx); err != nil {
				return nil, fmt.Errorf("export: save: %w", err)
			}
		}
		u, err := e.ExportURL(ctx, format)
		if err != nil {
			return nil, fmt.Errorf("export: %w", err)
		}
		u = MarkURL(ctx, u)
		if err := d.Download(ctx, u); err != nil {
			return nil, fmt.Errorf("export: download: %w", err)
		}
		return u, nil
	}
}
