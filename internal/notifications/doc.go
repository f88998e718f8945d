// Package notifications delivers operator alerts and user mail.
//
// Operator events (failed tasks, completed stats runs, new submissions) go to
// ntfy when notifications.ntfy_topic is set and are dropped otherwise. User
// mail goes through a Mailer: SMTP when mail.smtp_addr is set, ntfy as a
// fallback, or a no-op. Mail is never sent inline from request handlers; it
// is queued as a send_mail task and delivered by MailHandler.
package notifications
