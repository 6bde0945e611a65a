// Package pdfview decides how a book's PDF link is shown.
//
// A link is first handed to the native renderer. If that fails, links
// hosted on Google Drive or Docs fall back to an embedded preview frame,
// and anything else ends at a plain external link.
package pdfview

import (
	"net/url"
	"regexp"
	"strings"
)

// Mode is one way of showing a PDF.
type Mode string

const (
	ModeNative   Mode = "native"
	ModeIframe   Mode = "iframe"
	ModeExternal Mode = "external"
)

// Source is a mode paired with the URL it loads.
type Source struct {
	Mode Mode   `json:"mode"`
	URL  string `json:"url"`
}

var driveFileID = regexp.MustCompile(`/d/([A-Za-z0-9_-]+)`)

// DriveFileID extracts the file id from a drive.google.com/file/d/<id>
// link. ok is false for any other link.
func DriveFileID(link string) (id string, ok bool) {
	if !strings.Contains(link, "drive.google.com/file/d/") {
		return "", false
	}
	m := driveFileID.FindStringSubmatch(link)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// PreviewURL rewrites a Drive file link to its embeddable preview page.
// Other links are returned unchanged.
func PreviewURL(link string) string {
	if id, ok := DriveFileID(link); ok {
		return "https://drive.google.com/file/d/" + id + "/preview"
	}
	return link
}

// IsDriveHosted reports whether link points at Google Drive or Docs.
func IsDriveHosted(link string) bool {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Hostname()) {
	case "drive.google.com", "docs.google.com":
		return true
	}
	return false
}

// Chain is the ordered list of sources to try for one link.
type Chain []Source

// Plan builds the fallback chain for link. An empty link has no chain.
func Plan(link string) Chain {
	link = strings.TrimSpace(link)
	if link == "" {
		return nil
	}

	chain := Chain{{Mode: ModeNative, URL: link}}
	if IsDriveHosted(link) {
		chain = append(chain, Source{Mode: ModeIframe, URL: PreviewURL(link)})
	}
	return append(chain, Source{Mode: ModeExternal, URL: PreviewURL(link)})
}

// First returns the source to try first.
func (c Chain) First() (Source, bool) {
	if len(c) == 0 {
		return Source{}, false
	}
	return c[0], true
}

// Next returns the source to try after failed failed to render.
// ok is false once the external link has been reached.
func (c Chain) Next(failed Mode) (Source, bool) {
	for i, s := range c {
		if s.Mode == failed && i+1 < len(c) {
			return c[i+1], true
		}
	}
	return Source{}, false
}
