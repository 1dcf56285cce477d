package connectors

import (
	"context"
	"path"
	"strings"

	"polecheck/internal"
)

// MailConnector pulls raw messages from one mailbox provider.
type MailConnector interface {
	FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error)
}

var mapAttachmentExts = []string{".kml", ".kmz", ".xlsx"}

// MapAttachmentExts lists the attachment extensions worth downloading.
func MapAttachmentExts() []string {
	return append([]string(nil), mapAttachmentExts...)
}

// IsMapAttachment reports whether filename names a document the pipeline parses.
func IsMapAttachment(filename string) bool {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(filename)))
	for _, want := range mapAttachmentExts {
		if ext == want {
			return true
		}
	}
	return false
}
