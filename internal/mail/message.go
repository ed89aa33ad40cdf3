// Package mail implements mailbox queries against Microsoft Graph:
// building list and search requests, fetching message bodies, filtering
// results and rendering them as text or JSON.
package mail

import (
	"time"

	"github.com/microsoftgraph/msgraph-sdk-go/models"
)

// EmailAddress is a display name and SMTP address pair.
type EmailAddress struct {
	Name    string
	Address string
}

// MessageBody holds the full message content. ContentType is the Graph
// body type, "text" or "html".
type MessageBody struct {
	ContentType string
	Content     string
}

// Email is the tool's view of a mailbox message. A nil Body means only the
// summary fields were fetched; enrichment fills Body from a per-message read.
type Email struct {
	ID             string
	Subject        string
	From           EmailAddress
	To             []EmailAddress
	ReceivedAt     time.Time
	BodyPreview    string
	IsRead         bool
	HasAttachments bool
	Body           *MessageBody
}

// fromMessageable converts a Graph SDK message into an Email, tolerating the
// SDK's nil getters for fields excluded by $select.
func fromMessageable(m models.Messageable) Email {
	var e Email

	if v := m.GetId(); v != nil {
		e.ID = *v
	}
	if v := m.GetSubject(); v != nil {
		e.Subject = *v
	}
	if from := m.GetFrom(); from != nil && from.GetEmailAddress() != nil {
		e.From = fromEmailAddressable(from.GetEmailAddress())
	}
	for _, r := range m.GetToRecipients() {
		if r.GetEmailAddress() != nil {
			e.To = append(e.To, fromEmailAddressable(r.GetEmailAddress()))
		}
	}
	if v := m.GetReceivedDateTime(); v != nil {
		e.ReceivedAt = *v
	}
	if v := m.GetBodyPreview(); v != nil {
		e.BodyPreview = *v
	}
	if v := m.GetIsRead(); v != nil {
		e.IsRead = *v
	}
	if v := m.GetHasAttachments(); v != nil {
		e.HasAttachments = *v
	}
	if body := m.GetBody(); body != nil {
		mb := &MessageBody{}
		if ct := body.GetContentType(); ct != nil {
			mb.ContentType = ct.String()
		}
		if c := body.GetContent(); c != nil {
			mb.Content = *c
		}
		e.Body = mb
	}

	return e
}

func fromEmailAddressable(addr models.EmailAddressable) EmailAddress {
	var ea EmailAddress
	if v := addr.GetName(); v != nil {
		ea.Name = *v
	}
	if v := addr.GetAddress(); v != nil {
		ea.Address = *v
	}
	return ea
}
