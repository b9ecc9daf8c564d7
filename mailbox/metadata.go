package mailbox

import (
	"encoding/base64"
	"log"
	"net/mail"
	"strings"
	"time"

	gmail "google.golang.org/api/gmail/v1"

	"mailpilot-cloud/triage"
)

// metadataFromMessage converts a full-format Gmail message into the
// pipeline's immutable metadata record.
func metadataFromMessage(msg *gmail.Message) triage.EmailMetadata {
	meta := triage.EmailMetadata{
		MessageID: msg.Id,
		ThreadID:  msg.ThreadId,
	}

	var dateHeader string
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch h.Name {
			case "Subject":
				meta.Subject = h.Value
			case "From":
				meta.Sender = h.Value
			case "To":
				meta.Recipients = append(meta.Recipients, splitAddressList(h.Value)...)
			case "Cc":
				meta.CC = append(meta.CC, splitAddressList(h.Value)...)
			case "Date":
				dateHeader = h.Value
			}
		}
	}

	meta.Body = extractPlainText(msg)
	if meta.Body == "" {
		meta.Body = msg.Snippet
	}

	if msg.InternalDate != 0 {
		meta.Date = time.UnixMilli(msg.InternalDate).UTC()
	} else if dateHeader != "" {
		if t, err := mail.ParseDate(dateHeader); err == nil {
			meta.Date = t.UTC()
		}
	}

	meta.HasAttachments = hasAttachments(msg.Payload)
	return meta
}

func splitAddressList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// extractPlainText walks the MIME tree and returns the first text/plain
// part.
func extractPlainText(msg *gmail.Message) string {
	if msg.Payload == nil {
		return ""
	}
	return extractFromPart(msg.Payload)
}

func extractFromPart(part *gmail.MessagePart) string {
	if part.MimeType == "text/plain" && part.Body != nil && len(part.Body.Data) > 0 {
		data, err := base64URLDecode(part.Body.Data)
		if err != nil {
			log.Printf("mailbox: failed to decode message body: %v", err)
			return ""
		}
		return string(data)
	}
	for _, child := range part.Parts {
		if text := extractFromPart(child); text != "" {
			return text
		}
	}
	return ""
}

func hasAttachments(part *gmail.MessagePart) bool {
	if part == nil {
		return false
	}
	if part.Filename != "" {
		return true
	}
	for _, child := range part.Parts {
		if hasAttachments(child) {
			return true
		}
	}
	return false
}

func base64URLDecode(data string) ([]byte, error) {
	for len(data)%4 != 0 {
		data += "="
	}
	return base64.URLEncoding.DecodeString(data)
}
