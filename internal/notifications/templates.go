package notifications

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Mail template keys.
const (
	TemplateRefundApproved = "mail.refund_approved"
	TemplateRefundDeclined = "mail.refund_declined"
)

func init() {
	lang := language.English
	message.SetString(lang, TemplateRefundApproved+".subject", "Your refund request for %s has been approved!")
	message.SetString(lang, TemplateRefundApproved+".body",
		"Your refund request for %s has been approved. The purchase amount of %s will be returned to your PayPal account.\n\nTransaction: %s")
	message.SetString(lang, TemplateRefundDeclined+".subject", "Your refund request for %s has been declined")
	message.SetString(lang, TemplateRefundDeclined+".body",
		"Your refund request for %s has been declined by the developer.\n\nReason: %s\n\nTransaction: %s")
}

var printer = message.NewPrinter(language.English)

// RefundApproved renders the buyer mail for an approved refund.
func RefundApproved(to, addonName, amount, transactionID string) Message {
	return Message{
		To:      []string{to},
		Subject: printer.Sprintf(TemplateRefundApproved+".subject", addonName),
		Body:    printer.Sprintf(TemplateRefundApproved+".body", addonName, amount, transactionID),
	}
}

// RefundDeclined renders the buyer mail for a declined refund.
func RefundDeclined(to, addonName, reason, transactionID string) Message {
	if reason == "" {
		reason = "none given"
	}
	return Message{
		To:      []string{to},
		Subject: printer.Sprintf(TemplateRefundDeclined+".subject", addonName),
		Body:    printer.Sprintf(TemplateRefundDeclined+".body", addonName, reason, transactionID),
	}
}
