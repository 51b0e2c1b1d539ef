// Package message turns raw RFC 822 notification bytes into the canonical
// text form the source parsers work on.
package message

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"strings"
	"time"

	"github.com/fleetpay/ledgerd/internal/models"
)

// Message is a decoded notification.
type Message struct {
	// ID is the message source's id for the notification.
	ID      string
	From    string
	Subject string
	// MessageID is the Message-ID header without angle brackets.
	MessageID string
	Date      time.Time
	Header    mail.Header
	// Body is the preferred text part, decoded to UTF-8.
	Body string
}

// Decode parses raw bytes into a Message. It never fails: unreadable headers
// leave the header fields empty and the whole input is treated as the body,
// and a missing or malformed Date falls back to now.
func Decode(raw models.RawMessage, now time.Time) *Message {
	msg := &Message{ID: raw.ID, Date: now, Header: mail.Header{}}

	parsed, err := mail.ReadMessage(bytes.NewReader(raw.Raw))
	if err != nil {
		msg.Body = Clean(raw.Raw)
		return msg
	}
	msg.Header = parsed.Header
	msg.From = decodeHeader(parsed.Header.Get("From"))
	msg.Subject = decodeHeader(parsed.Header.Get("Subject"))
	msg.MessageID = strings.Trim(strings.TrimSpace(parsed.Header.Get("Message-Id")), "<>")
	if date, err := parsed.Header.Date(); err == nil {
		msg.Date = date
	}

	body, _ := io.ReadAll(parsed.Body)
	msg.Body = Clean(extractBody(textproto.MIMEHeader(parsed.Header), body))
	return msg
}

// SenderAddress returns the bare address from the From header, or the header
// text itself when it does not parse as an address.
func (m *Message) SenderAddress() string {
	addr, err := mail.ParseAddress(m.From)
	if err != nil {
		return m.From
	}
	return addr.Address
}

var wordDecoder = &mime.WordDecoder{CharsetReader: charsetReader}

func decodeHeader(v string) string {
	decoded, err := wordDecoder.DecodeHeader(v)
	if err != nil {
		return v
	}
	return decoded
}

// extractBody picks the text to hand to parsers: the first text/html part,
// else the first text/plain part, else the single body of a non-multipart
// message. Transfer and charset encodings are undone on the chosen part.
func extractBody(header textproto.MIMEHeader, body []byte) []byte {
	mediaType, params, err := mime.ParseMediaType(header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return decodePart(header, body)
	}

	var html, plain []byte
	walkParts(body, params["boundary"], func(h textproto.MIMEHeader, b []byte) bool {
		partType, _, _ := mime.ParseMediaType(h.Get("Content-Type"))
		switch partType {
		case "text/html":
			html = decodePart(h, b)
			return false
		case "text/plain":
			if plain == nil {
				plain = decodePart(h, b)
			}
		}
		return true
	})
	if html != nil {
		return html
	}
	if plain != nil {
		return plain
	}
	return nil
}

// walkParts visits leaf parts depth-first in document order until fn returns
// false. Malformed multipart bodies stop the walk without error.
func walkParts(body []byte, boundary string, fn func(textproto.MIMEHeader, []byte) bool) bool {
	if boundary == "" {
		return true
	}
	reader := multipart.NewReader(bytes.NewReader(body), boundary)
	for {
		part, err := reader.NextRawPart()
		if err != nil {
			return true
		}
		data, err := io.ReadAll(part)
		if err != nil && len(data) == 0 {
			return true
		}
		mediaType, params, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if strings.HasPrefix(mediaType, "multipart/") {
			if !walkParts(data, params["boundary"], fn) {
				return false
			}
			continue
		}
		if !fn(part.Header, data) {
			return false
		}
	}
}

func decodePart(header textproto.MIMEHeader, body []byte) []byte {
	switch strings.ToLower(strings.TrimSpace(header.Get("Content-Transfer-Encoding"))) {
	case "base64":
		body = decodeBase64(body)
	case "quoted-printable":
		body = Unescape(body)
	}
	_, params, _ := mime.ParseMediaType(header.Get("Content-Type"))
	return toUTF8(body, params["charset"])
}
