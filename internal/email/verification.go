package email

import (
	"fmt"
	"html"
	"net/url"
)

const verificationSubject = "Verify your Devlife email"

// VerificationEmail renders the message carrying a verification code. The link
// opens the web client's verification page with a signed ticket prefilled.
func VerificationEmail(baseURL, ticket, code string) (subject, body string) {
	link := baseURL + "/email-verification?ticket=" + url.QueryEscape(ticket)
	body = fmt.Sprintf(
		`<p>Your Devlife verification code is <strong>%s</strong>. It expires in 15 minutes.</p>`+
			`<p>Or open <a href="%s">this link</a> and enter the code there.</p>`,
		html.EscapeString(code), html.EscapeString(link),
	)
	return verificationSubject, body
}
