package launcher

import (
	"io"

	"github.com/pkg/browser"
)

// BrowserOpener opens a URL in the user's browser.
type BrowserOpener interface {
	Open(url string) error
}

// SystemBrowser opens URLs with the platform's default handler (open, xdg-open, or the
// Windows URL protocol handler).
type SystemBrowser struct{}

// NewSystemBrowser routes the opener command's own output to stdout and stderr.
func NewSystemBrowser(stdout, stderr io.Writer) SystemBrowser {
	browser.Stdout = stdout
	browser.Stderr = stderr
	return SystemBrowser{}
}

// Open implements BrowserOpener.
func (SystemBrowser) Open(url string) error {
	return browser.OpenURL(url)
}

// BrowserOpenerFunc adapts a function to BrowserOpener.
type BrowserOpenerFunc func(url string) error

// Open implements BrowserOpener.
func (f BrowserOpenerFunc) Open(url string) error {
	return f(url)
}
