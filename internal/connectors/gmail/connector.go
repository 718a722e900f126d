package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/bbrks/ocado-ha/internal/config"
	"github.com/bbrks/ocado-ha/internal/connectors"
)

type Connector struct {
	service *gmail.Service
	label   string
}

func NewConnector(cfg config.Config) (*Connector, error) {
	if err := cfg.Require("GMAIL_CLIENT_ID", cfg.GmailClientID); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_CLIENT_SECRET", cfg.GmailClientSecret); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_REFRESH_TOKEN", cfg.GmailRefreshToken); err != nil {
		return nil, err
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GmailClientID,
		ClientSecret: cfg.GmailClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.GmailRedirectURI,
		Scopes:       []string{gmail.GmailReadonlyScope},
	}

	tokenSource := oauthCfg.TokenSource(context.Background(), &oauth2.Token{RefreshToken: cfg.GmailRefreshToken})
	svc, err := gmail.NewService(context.Background(), option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, err
	}

	return &Connector{service: svc, label: cfg.IMAPFolder}, nil
}

func (c *Connector) Open() (connectors.MailSession, error) {
	return &session{service: c.service, label: c.label}, nil
}

type session struct {
	service *gmail.Service
	label   string
}

func (s *session) Search(q connectors.SearchQuery) ([]string, error) {
	var query strings.Builder
	if q.From != "" {
		fmt.Fprintf(&query, "from:%s ", q.From)
	}
	if !q.Since.IsZero() {
		fmt.Fprintf(&query, "after:%s ", q.Since.Format("2006/01/02"))
	}
	for _, subject := range q.ExcludedSubjects {
		fmt.Fprintf(&query, "-subject:%q ", subject)
	}

	call := s.service.Users.Messages.List("me").Q(strings.TrimSpace(query.String()))
	if s.label != "" {
		call = call.LabelIds(s.label)
	}
	resp, err := call.Do()
	if err != nil {
		return nil, err
	}

	// The API lists newest first; reverse so ids come back oldest first like
	// an IMAP uid search.
	out := make([]string, 0, len(resp.Messages))
	for i := len(resp.Messages) - 1; i >= 0; i-- {
		if resp.Messages[i].Id != "" {
			out = append(out, resp.Messages[i].Id)
		}
	}
	return out, nil
}

func (s *session) Fetch(messageID string) ([]byte, error) {
	resp, err := s.service.Users.Messages.Get("me", messageID).Format("raw").Do()
	if err != nil {
		return nil, err
	}
	if resp.Raw == "" {
		return nil, fmt.Errorf("empty raw payload for message %s", messageID)
	}
	return decodeBase64URL(resp.Raw)
}

func (s *session) Close() error {
	return nil
}

func decodeBase64URL(input string) ([]byte, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	decoded, err = base64.URLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	return nil, fmt.Errorf("decode gmail raw payload: %w", err)
}
