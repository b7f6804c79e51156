// Package bounce reads delivery-status notifications from a mailbox and
// records them against the outreach that caused them.
package bounce

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
)

// Report is the permanent-failure content of one notification.
type Report struct {
	Recipient  string
	Action     string
	Status     string
	Diagnostic string
	// MessageID is the original message id without angle brackets or host.
	MessageID string
}

// Permanent reports whether the notification is a hard bounce.
func (r Report) Permanent() bool {
	if strings.EqualFold(r.Action, "failed") {
		return true
	}
	return strings.HasPrefix(r.Status, "5.")
}

// ParseBounce extracts the failed recipient and original message id from a
// raw RFC822 delivery-status notification. ok is false when raw is not a
// notification or names no recipient.
func ParseBounce(raw []byte) (Report, bool) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return Report{}, false
	}
	body, _ := io.ReadAll(io.LimitReader(msg.Body, 10<<20))

	var r Report
	walkParts(msg.Header, body, &r)

	if r.Recipient == "" {
		// Some relays flatten the report into the text body.
		text := decodeTransferEncoding(body, msg.Header.Get("Content-Transfer-Encoding"))
		readDeliveryStatus(text, &r)
		if r.MessageID == "" {
			r.MessageID = scanHeader(text, "Message-ID")
		}
	}
	if r.Recipient == "" {
		return Report{}, false
	}
	return r, true
}

func walkParts(h mail.Header, body []byte, r *Report) {
	mediaType, params, err := mime.ParseMediaType(h.Get("Content-Type"))
	if err != nil {
		return
	}
	mediaType = strings.ToLower(mediaType)
	body = decodeTransferEncoding(body, h.Get("Content-Transfer-Encoding"))

	switch {
	case strings.HasPrefix(mediaType, "multipart/"):
		boundary := params["boundary"]
		if boundary == "" {
			return
		}
		mr := multipart.NewReader(bytes.NewReader(body), boundary)
		for {
			p, err := mr.NextPart()
			if err != nil {
				return
			}
			b, _ := io.ReadAll(io.LimitReader(p, 5<<20))
			walkParts(mail.Header(p.Header), b, r)
		}
	case mediaType == "message/delivery-status":
		readDeliveryStatus(body, r)
	case mediaType == "message/rfc822" || mediaType == "text/rfc822-headers":
		if r.MessageID != "" {
			return
		}
		// Headers-only parts may lack the blank line ReadMessage requires.
		if !bytes.Contains(body, []byte("\n\n")) && !bytes.Contains(body, []byte("\r\n\r\n")) {
			body = append(body, "\r\n\r\n"...)
		}
		if orig, err := mail.ReadMessage(bytes.NewReader(body)); err == nil {
			r.MessageID = providerID(orig.Header.Get("Message-Id"))
		}
	}
}

// readDeliveryStatus takes the first recipient group of an RFC 3464 body.
func readDeliveryStatus(body []byte, r *Report) {
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	var last string
	for sc.Scan() {
		line := sc.Text()
		if (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) && last == "diagnostic-code" {
			r.Diagnostic += " " + strings.TrimSpace(line)
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			last = ""
			continue
		}
		last = strings.ToLower(strings.TrimSpace(name))
		value = strings.TrimSpace(value)

		switch last {
		case "final-recipient", "original-recipient":
			if r.Recipient == "" {
				r.Recipient = addressOf(value)
			}
		case "action":
			if r.Action == "" {
				r.Action = strings.ToLower(value)
			}
		case "status":
			if r.Status == "" {
				r.Status = value
			}
		case "diagnostic-code":
			if r.Diagnostic == "" {
				r.Diagnostic = value
			}
		case "original-message-id", "x-original-message-id":
			if r.MessageID == "" {
				r.MessageID = providerID(value)
			}
		}
	}
}

// addressOf strips the address-type prefix ("rfc822; a@b") and lowercases.
func addressOf(v string) string {
	if _, after, ok := strings.Cut(v, ";"); ok {
		v = after
	}
	v = strings.Trim(strings.TrimSpace(v), "<>")
	return strings.ToLower(v)
}

// providerID reduces "<0100abc@email.amazonses.com>" to "0100abc", the form
// the provider returns from a send.
func providerID(v string) string {
	v = strings.Trim(strings.TrimSpace(v), "<>")
	if local, _, ok := strings.Cut(v, "@"); ok {
		v = local
	}
	return v
}

func scanHeader(body []byte, name string) string {
	prefix := strings.ToLower(name) + ":"
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(strings.ToLower(line), prefix) {
			return providerID(line[len(prefix):])
		}
	}
	return ""
}

func decodeTransferEncoding(b []byte, cte string) []byte {
	switch strings.ToLower(strings.TrimSpace(cte)) {
	case "base64":
		dec := base64.NewDecoder(base64.StdEncoding, bytes.NewReader(b))
		out, _ := io.ReadAll(io.LimitReader(dec, 6<<20))
		return out
	case "quoted-printable":
		dec := quotedprintable.NewReader(bytes.NewReader(b))
		out, _ := io.ReadAll(io.LimitReader(dec, 6<<20))
		return out
	default:
		return b
	}
}
