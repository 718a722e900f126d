package connectors

import "time"

// SearchQuery is the fixed mailbox filter the pipeline runs each cycle:
// messages from the retailer, within the lookback window, excluding the
// reminder subjects that never carry order data.
type SearchQuery struct {
	Since            time.Time
	From             string
	ExcludedSubjects []string
}

// Mailbox opens sessions against a mail provider.
type Mailbox interface {
	Open() (MailSession, error)
}

// MailSession is one authenticated connection. Search returns an ordered
// message-id list; Fetch retrieves the raw RFC 822 bytes for one id.
type MailSession interface {
	Search(q SearchQuery) ([]string, error)
	Fetch(messageID string) ([]byte, error)
	Close() error
}
