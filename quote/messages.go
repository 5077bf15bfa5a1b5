package quote

import (
	"fmt"
	"html"
	"strings"

	"maintflow/contractor"
	"maintflow/maintenance"
	"maintflow/notify"
	"maintflow/property"
)

func requestLink(requestID string) string {
	return "/requests/" + requestID
}

func formatAmount(amount float64) string {
	return fmt.Sprintf("%.2f", amount)
}

// siteDetails renders the property lines selected by include. prop may be nil
// when the lookup failed.
func siteDetails(req maintenance.Request, prop *property.Profile, include IncludeInfo) []string {
	lines := make([]string, 0, 5)
	if include.PropertyAddress && prop != nil {
		if addr := prop.Address(); addr != "" {
			lines = append(lines, "Address: "+addr)
		}
	}
	if include.Location && req.Location != "" {
		lines = append(lines, "Location: "+req.Location)
	}
	if include.Priority && req.Priority != "" {
		lines = append(lines, "Priority: "+string(req.Priority))
	}
	if prop != nil {
		if include.PracticeLeaderName && prop.PracticeLeaderName != nil {
			lines = append(lines, "Practice leader: "+*prop.PracticeLeaderName)
		}
		if include.PracticeLeaderContact {
			if prop.PracticeLeaderPhone != nil {
				lines = append(lines, "Practice leader phone: "+*prop.PracticeLeaderPhone)
			}
			if prop.PracticeLeaderEmail != nil {
				lines = append(lines, "Practice leader email: "+*prop.PracticeLeaderEmail)
			}
		}
	}
	return lines
}

var fullDetails = IncludeInfo{
	PropertyAddress:       true,
	Location:              true,
	Priority:              true,
	PracticeLeaderName:    true,
	PracticeLeaderContact: true,
}

func quoteRequestedMessage(req maintenance.Request, prop *property.Profile, include IncludeInfo, note string) (notify.Notification, notify.Email) {
	title := "Quote requested"
	var b strings.Builder
	fmt.Fprintf(&b, "You have been asked to quote for %q.", req.Title)
	for _, line := range siteDetails(req, prop, include) {
		b.WriteString("\n")
		b.WriteString(line)
	}
	if note != "" && note != DefaultRequestNote {
		b.WriteString("\nNotes: ")
		b.WriteString(note)
	}
	n := notify.Notification{
		Title:   title,
		Message: b.String(),
		Type:    notify.TypeQuoteRequested,
		Link:    requestLink(req.ID),
	}
	return n, plainEmail(title, n.Message)
}

func quoteSubmittedMessage(req maintenance.Request, c contractor.Profile, q Quote) notify.Notification {
	return notify.Notification{
		UserID:         derefString(req.CreatedByUserID),
		OrganizationID: req.OrganizationID,
		Title:          "New quote received",
		Message:        fmt.Sprintf("%s quoted %s for %q.", c.DisplayName(), formatAmount(q.Amount), req.Title),
		Type:           notify.TypeQuoteSubmitted,
		Link:           requestLink(req.ID),
	}
}

func quoteRejectedMessage(req *maintenance.Request, q Quote, reason string) (notify.Notification, notify.Email) {
	title := "Quote not accepted"
	subject := "your quote"
	if req != nil && req.Title != "" {
		subject = fmt.Sprintf("your quote for %q", req.Title)
	}
	msg := fmt.Sprintf("Thank you for %s. It was not accepted this time.", subject)
	if reason != "" {
		msg += "\nReason: " + reason
	}
	n := notify.Notification{
		Title:   title,
		Message: msg,
		Type:    notify.TypeQuoteRejected,
		Link:    requestLink(q.RequestID),
	}
	return n, plainEmail(title, msg)
}

func assignmentMessage(req *maintenance.Request, prop *property.Profile, q Quote) (notify.Notification, notify.Email) {
	title := "Assignment confirmed"
	var b strings.Builder
	if req != nil && req.Title != "" {
		fmt.Fprintf(&b, "Your quote of %s for %q was approved. The job is yours.", formatAmount(q.Amount), req.Title)
		for _, line := range siteDetails(*req, prop, fullDetails) {
			b.WriteString("\n")
			b.WriteString(line)
		}
	} else {
		fmt.Fprintf(&b, "Your quote of %s was approved. The job is yours.", formatAmount(q.Amount))
	}
	n := notify.Notification{
		Title:   title,
		Message: b.String(),
		Type:    notify.TypeAssignment,
		Link:    requestLink(q.RequestID),
	}
	return n, plainEmail(title, n.Message)
}

func landlordEmail(req *maintenance.Request, prop property.Profile, c *contractor.Profile, q Quote) notify.Email {
	job := "a maintenance request"
	if req != nil && req.Title != "" {
		job = req.Title
	}
	who := "a contractor"
	if c != nil && c.DisplayName() != "" {
		who = c.DisplayName()
	}

	var b strings.Builder
	b.WriteString("<p>")
	if prop.LandlordName != nil && *prop.LandlordName != "" {
		fmt.Fprintf(&b, "Dear %s,", html.EscapeString(*prop.LandlordName))
	} else {
		b.WriteString("Hello,")
	}
	b.WriteString("</p>")
	fmt.Fprintf(&b, "<p>Work on <strong>%s</strong> at %s has been assigned to %s for %s.</p>",
		html.EscapeString(job),
		html.EscapeString(prop.Address()),
		html.EscapeString(who),
		formatAmount(q.Amount),
	)
	return notify.Email{
		To:      derefString(prop.LandlordEmail),
		Subject: "Contractor assigned: " + job,
		HTML:    b.String(),
	}
}

func plainEmail(subject, text string) notify.Email {
	escaped := html.EscapeString(text)
	return notify.Email{
		Subject: subject,
		HTML:    "<p>" + strings.ReplaceAll(escaped, "\n", "<br>") + "</p>",
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
