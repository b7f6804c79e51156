// Package render builds outreach subjects and HTML bodies.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"leadgen-engine/internal/domain"
)

type Input struct {
	RecruiterName string
	CompanyName   string
	JobTitles     []string
	Type          domain.EmailType
}

type Message struct {
	Subject string
	HTML    string
}

// Sender is the identity that signs every message.
type Sender struct {
	Name  string
	Email string
}

type Renderer struct {
	sender Sender
	tmpl   map[domain.EmailType]*template.Template
}

const (
	genericRoles   = "open roles"
	genericCompany = "your company"
	genericGreet   = "there"
)

var subjects = map[domain.EmailType]string{
	domain.EmailInitial:   "Regarding %s position at %s",
	domain.EmailFollowUp3: "Following up: %s position at %s",
	domain.EmailFollowUp5: "One last follow-up: %s position at %s",
}

const layout = `<html>
<body>
<p>Hi {{.Recruiter}},</p>
{{template "content" .}}
<p>Best regards,<br>{{.SenderName}}</p>
</body>
</html>
`

var bodies = map[domain.EmailType]string{
	domain.EmailInitial: `{{define "content"}}<p>I hope this email finds you well. My name is {{.SenderName}}, and I came across your company's job posting for {{.Titles}}.</p>
<p>I have experience in this field and would love to discuss how my skills could be a good fit for your team at {{.Company}}.</p>
<p>Would you be available for a quick chat this week to discuss the opportunity further?</p>{{end}}`,

	domain.EmailFollowUp3: `{{define "content"}}<p>I wanted to follow up on my previous email regarding the {{.Titles}} position at {{.Company}}.</p>
<p>I'm still very interested in the role and would appreciate the opportunity to discuss how I could contribute to your team.</p>
<p>Please let me know if you'd like to schedule a brief conversation.</p>{{end}}`,

	domain.EmailFollowUp5: `{{define "content"}}<p>I hope you've been well. I'm reaching out one final time regarding the {{.Titles}} position at {{.Company}}.</p>
<p>If the timing isn't right or if the position has been filled, I completely understand. However, if you're still considering candidates, I'd be grateful for the opportunity to discuss how my background aligns with your needs.</p>
<p>Thank you for your consideration.</p>{{end}}`,
}

// New parses the templates once. The sender name is required.
func New(sender Sender) (*Renderer, error) {
	sender.Name = strings.TrimSpace(sender.Name)
	sender.Email = strings.TrimSpace(sender.Email)
	if sender.Name == "" {
		return nil, fmt.Errorf("render: sender name is required")
	}

	r := &Renderer{sender: sender, tmpl: make(map[domain.EmailType]*template.Template, len(bodies))}
	for typ, body := range bodies {
		t, err := template.New(string(typ)).Parse(layout)
		if err != nil {
			return nil, fmt.Errorf("render: parse layout: %w", err)
		}
		if _, err := t.Parse(body); err != nil {
			return nil, fmt.Errorf("render: parse %s: %w", typ, err)
		}
		r.tmpl[typ] = t
	}
	return r, nil
}

func (r *Renderer) Sender() Sender { return r.sender }

type view struct {
	Recruiter  string
	Company    string
	Titles     string
	SenderName string
}

// Render produces the subject and body for in. It has no side effects.
func (r *Renderer) Render(in Input) (Message, error) {
	t, ok := r.tmpl[in.Type]
	if !ok {
		return Message{}, fmt.Errorf("render: unknown email type %q", in.Type)
	}

	v := view{
		Recruiter:  firstNonEmpty(singleLine(in.RecruiterName), genericGreet),
		Company:    firstNonEmpty(singleLine(in.CompanyName), genericCompany),
		Titles:     JoinTitles(in.JobTitles),
		SenderName: r.sender.Name,
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, v); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", in.Type, err)
	}

	return Message{
		Subject: fmt.Sprintf(subjects[in.Type], v.Titles, v.Company),
		HTML:    buf.String(),
	}, nil
}

// JoinTitles trims titles, drops blanks and duplicates, and joins the rest
// with ", ". No titles yields a generic phrase.
func JoinTitles(titles []string) string {
	seen := make(map[string]bool, len(titles))
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		t = singleLine(t)
		if t == "" || seen[strings.ToLower(t)] {
			continue
		}
		seen[strings.ToLower(t)] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		return genericRoles
	}
	return strings.Join(out, ", ")
}

// singleLine collapses whitespace, including newlines that would break a
// mail header.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
