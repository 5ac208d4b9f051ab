package mailer

import (
	"fmt"
	"html"
	"strings"

	"github.com/benvon/contact-relay/internal/models"
)

// emptyValue stands in for optional fields the visitor left blank.
const emptyValue = "-"

// Compose builds the notification for a validated submission. The reply-to
// address is the submitter's, so answering the mail reaches the visitor.
// To is left empty; the Deliverer addresses each attempt.
func Compose(s models.Submission) Message {
	return Message{
		ReplyTo:  s.Email,
		Subject:  fmt.Sprintf("Project request - %s", s.Name),
		TextBody: composeText(s),
		HTMLBody: composeHTML(s),
	}
}

func composeText(s models.Submission) string {
	return strings.Join([]string{
		"Name: " + s.Name,
		"Email: " + s.Email,
		"Company: " + orEmpty(s.Company),
		"Estimated budget: " + orEmpty(s.Budget),
		"",
		"Message:",
		s.Message,
	}, "\n")
}

// composeHTML escapes every user-supplied value before converting message
// newlines to line breaks.
func composeHTML(s models.Submission) string {
	var b strings.Builder
	b.WriteString("<h2>New request from the contact form</h2>\n")
	fmt.Fprintf(&b, "<p><strong>Name:</strong> %s</p>\n", html.EscapeString(s.Name))
	fmt.Fprintf(&b, "<p><strong>Email:</strong> %s</p>\n", html.EscapeString(s.Email))
	fmt.Fprintf(&b, "<p><strong>Company:</strong> %s</p>\n", html.EscapeString(orEmpty(s.Company)))
	fmt.Fprintf(&b, "<p><strong>Estimated budget:</strong> %s</p>\n", html.EscapeString(orEmpty(s.Budget)))
	b.WriteString("<p><strong>Message:</strong></p>\n")
	fmt.Fprintf(&b, "<p>%s</p>\n", newlinesToBreaks(html.EscapeString(s.Message)))
	return b.String()
}

func newlinesToBreaks(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "<br/>")
}

func orEmpty(s string) string {
	if s == "" {
		return emptyValue
	}
	return s
}
