package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"polecheck/internal"
	"polecheck/internal/config"
	"polecheck/internal/connectors"
)

const provider = "gmail"

type Connector struct {
	service *gmail.Service
}

func NewConnector(ctx context.Context, cfg config.Config) (*Connector, error) {
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

	tokenSource := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.GmailRefreshToken})
	svc, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, err
	}

	return &Connector{service: svc}, nil
}

// FetchInbox lists up to max messages under label whose attachments include
// a map document, and downloads each in raw RFC 822 form.
func (c *Connector) FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error) {
	listCall := c.service.Users.Messages.List("me").
		LabelIds(label).
		Q(attachmentQuery()).
		MaxResults(int64(max)).
		Context(ctx)
	listResp, err := listCall.Do()
	if err != nil {
		return nil, err
	}

	out := make([]internal.FetchedMailMessage, 0, len(listResp.Messages))
	for _, ref := range listResp.Messages {
		if ref.Id == "" {
			continue
		}

		rawResp, err := c.service.Users.Messages.Get("me", ref.Id).Format("raw").Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		if rawResp.Raw == "" {
			continue
		}
		raw, err := decodeBase64URL(rawResp.Raw)
		if err != nil {
			return nil, err
		}

		out = append(out, fromRaw(ref.Id, raw, rawResp.InternalDate))
	}

	return out, nil
}

// attachmentQuery builds a Gmail search that matches any map attachment.
func attachmentQuery() string {
	terms := []string{}
	for _, ext := range connectors.MapAttachmentExts() {
		terms = append(terms, "filename:"+strings.TrimPrefix(ext, "."))
	}
	return "has:attachment {" + strings.Join(terms, " ") + "}"
}

// fromRaw reads the envelope headers straight from the raw message, falling
// back to the Gmail id and internal date when they are missing.
func fromRaw(gmailID string, raw []byte, internalDateMs int64) internal.FetchedMailMessage {
	msg := internal.FetchedMailMessage{Provider: provider, MessageID: gmailID, Raw: raw}

	received := time.Now().UTC()
	if internalDateMs > 0 {
		received = time.UnixMilli(internalDateMs).UTC()
	}

	if parsed, err := mail.ReadMessage(bytes.NewReader(raw)); err == nil {
		h := parsed.Header
		if id := strings.TrimSpace(h.Get("Message-Id")); id != "" {
			msg.MessageID = id
		}
		msg.Subject = decodeHeader(h.Get("Subject"))
		msg.From = decodeHeader(h.Get("From"))
		if t, err := h.Date(); err == nil {
			received = t.UTC()
		}
	}
	msg.ReceivedAt = received.Format(time.RFC3339)
	return msg
}

func decodeHeader(value string) string {
	dec := new(mime.WordDecoder)
	if out, err := dec.DecodeHeader(value); err == nil {
		return out
	}
	return value
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
