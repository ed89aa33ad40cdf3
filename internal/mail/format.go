package mail

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

const previewLimit = 200

// FormatEmail renders one email as a text block between banner lines.
func FormatEmail(e Email) string {
	name := e.From.Name
	if name == "" {
		name = "Unknown"
	}
	address := e.From.Address
	if address == "" {
		address = "Unknown"
	}

	date := ""
	if !e.ReceivedAt.IsZero() {
		date = e.ReceivedAt.Format("2006-01-02 15:04:05")
	}

	subject := e.Subject
	if subject == "" {
		subject = "(No subject)"
	}

	read := "✗"
	if e.IsRead {
		read = "✓"
	}
	attachments := ""
	if e.HasAttachments {
		attachments = "📎"
	}

	preview := e.BodyPreview
	if runes := []rune(preview); len(runes) > previewLimit {
		preview = string(runes[:previewLimit]) + "..."
	}

	banner := strings.Repeat("=", 80)
	return fmt.Sprintf("\n%s\nFrom: %s <%s>\nDate: %s\nSubject: %s\nRead: %s %s\n---\n%s\n%s\n",
		banner, name, address, date, subject, read, attachments, preview, banner)
}

// JSON rendering uses dedicated structs so the key order is stable and the
// body key only appears on enriched messages.

type addressJSON struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type bodyJSON struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type emailJSON struct {
	ID               string        `json:"id"`
	Subject          string        `json:"subject"`
	From             addressJSON   `json:"from"`
	To               []addressJSON `json:"to"`
	ReceivedDateTime string        `json:"receivedDateTime"`
	IsRead           bool          `json:"isRead"`
	HasAttachments   bool          `json:"hasAttachments"`
	BodyPreview      string        `json:"bodyPreview"`
	Body             *bodyJSON     `json:"body,omitempty"`
}

// WriteJSON renders emails as a two-space indented JSON array. An empty
// result renders as []. HTML escaping is disabled so body content and
// non-ASCII subjects pass through unchanged.
func WriteJSON(w io.Writer, emails []Email) error {
	out := make([]emailJSON, 0, len(emails))
	for _, e := range emails {
		out = append(out, toEmailJSON(e))
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(out)
}

func toEmailJSON(e Email) emailJSON {
	received := ""
	if !e.ReceivedAt.IsZero() {
		received = e.ReceivedAt.UTC().Format(time.RFC3339)
	}

	to := make([]addressJSON, 0, len(e.To))
	for _, addr := range e.To {
		to = append(to, addressJSON{Name: addr.Name, Address: addr.Address})
	}

	out := emailJSON{
		ID:               e.ID,
		Subject:          e.Subject,
		From:             addressJSON{Name: e.From.Name, Address: e.From.Address},
		To:               to,
		ReceivedDateTime: received,
		IsRead:           e.IsRead,
		HasAttachments:   e.HasAttachments,
		BodyPreview:      e.BodyPreview,
	}
	if e.Body != nil {
		out.Body = &bodyJSON{ContentType: e.Body.ContentType, Content: e.Body.Content}
	}
	return out
}
