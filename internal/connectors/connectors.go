package connectors

import "rebatedesk/internal"

// MailConnector fetches unread messages from one mailbox. fromFilter narrows
// the fetch to a single sender address or domain; empty means no filter.
type MailConnector interface {
	FetchInbox(label, fromFilter string, max int) ([]internal.FetchedMailMessage, error)
}
