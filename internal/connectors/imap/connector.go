package imap

import (
	"crypto/tls"
	"fmt"
	"io"
	"strconv"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"

	"github.com/bbrks/ocado-ha/internal/config"
	"github.com/bbrks/ocado-ha/internal/connectors"
)

type Connector struct {
	host     string
	port     int
	secure   bool
	user     string
	password string
	folder   string
}

func NewConnector(cfg config.Config) (*Connector, error) {
	if err := cfg.Require("IMAP_HOST", cfg.IMAPHost); err != nil {
		return nil, err
	}
	if err := cfg.Require("IMAP_USER", cfg.IMAPUser); err != nil {
		return nil, err
	}
	if err := cfg.Require("IMAP_PASSWORD", cfg.IMAPPassword); err != nil {
		return nil, err
	}

	return &Connector{
		host:     cfg.IMAPHost,
		port:     cfg.IMAPPort,
		secure:   cfg.IMAPSecure,
		user:     cfg.IMAPUser,
		password: cfg.IMAPPassword,
		folder:   cfg.IMAPFolder,
	}, nil
}

// Open dials, logs in and selects the folder read-only.
func (c *Connector) Open() (connectors.MailSession, error) {
	addr := fmt.Sprintf("%s:%d", c.host, c.port)
	var client *imapclient.Client
	var err error
	if c.secure {
		client, err = imapclient.DialTLS(addr, &tls.Config{ServerName: c.host})
	} else {
		client, err = imapclient.Dial(addr)
	}
	if err != nil {
		return nil, err
	}

	if err := client.Login(c.user, c.password); err != nil {
		_ = client.Logout()
		return nil, err
	}
	if _, err := client.Select(c.folder, true); err != nil {
		_ = client.Logout()
		return nil, err
	}

	return &session{client: client}, nil
}

type session struct {
	client *imapclient.Client
}

func (s *session) Search(q connectors.SearchQuery) ([]string, error) {
	criteria := imap.NewSearchCriteria()
	criteria.Since = q.Since
	if q.From != "" {
		criteria.Header.Add("From", q.From)
	}
	for _, subject := range q.ExcludedSubjects {
		not := imap.NewSearchCriteria()
		not.Header.Add("Subject", subject)
		criteria.Not = append(criteria.Not, not)
	}

	uids, err := s.client.UidSearch(criteria)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(uids))
	for _, uid := range uids {
		out = append(out, strconv.FormatUint(uint64(uid), 10))
	}
	return out, nil
}

func (s *session) Fetch(messageID string) ([]byte, error) {
	uid, err := strconv.ParseUint(messageID, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("bad imap uid %q: %w", messageID, err)
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uint32(uid))

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem()}
	messages := make(chan *imap.Message, 1)
	fetchDone := make(chan error, 1)
	go func() { fetchDone <- s.client.UidFetch(seqset, items, messages) }()

	var raw []byte
	for msg := range messages {
		if msg == nil {
			continue
		}
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		raw, err = io.ReadAll(body)
		if err != nil {
			return nil, err
		}
	}
	if err := <-fetchDone; err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("no body returned for uid %d", uid)
	}
	return raw, nil
}

func (s *session) Close() error {
	return s.client.Logout()
}
