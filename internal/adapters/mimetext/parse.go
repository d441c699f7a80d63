// Package mimetext extracts the headers and readable body of an RFC 5322 message.
package mimetext

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

const noTextBody = "[No text content found in message]"

// Parsed holds the parts of a message used for classification
type Parsed struct {
	MessageID string
	Subject   string
	From      string
	To        string
	Date      time.Time
	Body      string
}

// Parse reads a raw message. Text parts are concatenated; HTML is converted
// to markdown only when there is no plain text alternative.
func Parse(raw []byte) (*Parsed, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	defer mr.Close()

	p := &Parsed{
		From: FormatAddressList(mr.Header, "From"),
		To:   FormatAddressList(mr.Header, "To"),
	}
	if p.Subject, err = mr.Header.Subject(); err != nil {
		p.Subject = mr.Header.Get("Subject")
	}
	p.MessageID, _ = mr.Header.MessageID()
	if date, err := mr.Header.Date(); err == nil {
		p.Date = date.UTC()
	}

	var text, html strings.Builder
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) || message.IsUnknownEncoding(err) {
				continue
			}
			// Keep what was read before the broken part
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		switch {
		case strings.HasPrefix(contentType, "text/plain"), contentType == "":
			text.Write(body)
			text.WriteString("\n")
		case strings.HasPrefix(contentType, "text/html"):
			html.Write(body)
		}
	}

	switch {
	case text.Len() > 0:
		p.Body = strings.TrimSpace(text.String())
	case html.Len() > 0:
		md, err := htmltomarkdown.ConvertString(html.String())
		if err != nil {
			md = html.String()
		}
		p.Body = strings.TrimSpace(md)
	default:
		p.Body = noTextBody
	}
	return p, nil
}

// FormatAddressList renders an address header as "Name <addr>, ..." and falls
// back to the raw value when it cannot be parsed
func FormatAddressList(h mail.Header, key string) string {
	addrs, err := h.AddressList(key)
	if err != nil || len(addrs) == 0 {
		return strings.TrimSpace(h.Get(key))
	}
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, FormatAddress(a.Name, a.Address))
	}
	return strings.Join(out, ", ")
}

// FormatAddress renders a single mailbox
func FormatAddress(name, addr string) string {
	if name == "" {
		return addr
	}
	return name + " <" + addr + ">"
}
