package imap

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	messagedomain "voicebox-backend/internal/message/domain"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
)

// Service talks to a generic IMAP mailbox for accounts that are not
// Google-backed. Messages are addressed by UID.
type Service struct {
	host     string
	username string
	password string

	// Bounds on connect and on each command, so a hung mailbox cannot
	// stall a worker tick
	dialTimeout    time.Duration
	commandTimeout time.Duration
}

func NewService(host, username, password string) *Service {
	return &Service{
		host:           host,
		username:       username,
		password:       password,
		dialTimeout:    10 * time.Second,
		commandTimeout: 30 * time.Second,
	}
}

func (s *Service) dial() (*client.Client, error) {
	addr := s.host
	if !strings.Contains(addr, ":") {
		addr += ":993"
	}
	dialer := &net.Dialer{Timeout: s.dialTimeout}
	c, err := client.DialWithDialerTLS(dialer, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("imap dial failed: %w", err)
	}
	c.Timeout = s.commandTimeout
	if err := c.Login(s.username, s.password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("imap login failed: %w", err)
	}
	return c, nil
}

// FetchMessages retrieves messages from INBOX matching the filter
func (s *Service) FetchMessages(filter *messagedomain.FetchFilter) ([]*messagedomain.NormalizedMessage, error) {
	c, err := s.dial()
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	if _, err := c.Select("INBOX", true); err != nil {
		return nil, fmt.Errorf("unable to select INBOX: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	if filter != nil && filter.UnreadOnly {
		criteria.WithoutFlags = []string{imap.SeenFlag}
	}
	if filter != nil && filter.Since != nil {
		criteria.Since = *filter.Since
	}

	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("imap search failed: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	limit := 50
	if filter != nil && filter.Limit > 0 {
		limit = filter.Limit
	}
	if len(uids) > limit {
		// Newest UIDs come last
		uids = uids[len(uids)-limit:]
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	msgChan := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, items, msgChan)
	}()

	var messages []*messagedomain.NormalizedMessage
	for msg := range msgChan {
		normalized := s.normalize(msg, section)
		if normalized != nil {
			messages = append(messages, normalized)
		}
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("imap fetch failed: %w", err)
	}
	return messages, nil
}

// MarkAsRead sets the \Seen flag on a message
func (s *Service) MarkAsRead(messageID string) error {
	uid, err := strconv.ParseUint(messageID, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid imap message id %q: %w", messageID, err)
	}

	c, err := s.dial()
	if err != nil {
		return err
	}
	defer c.Logout()

	if _, err := c.Select("INBOX", false); err != nil {
		return fmt.Errorf("unable to select INBOX: %w", err)
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uint32(uid))
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	return c.UidStore(seqset, item, []interface{}{imap.SeenFlag}, nil)
}

// Move copies a message to the destination mailbox and expunges the original
func (s *Service) Move(messageID, destination string) error {
	uid, err := strconv.ParseUint(messageID, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid imap message id %q: %w", messageID, err)
	}

	c, err := s.dial()
	if err != nil {
		return err
	}
	defer c.Logout()

	if _, err := c.Select("INBOX", false); err != nil {
		return fmt.Errorf("unable to select INBOX: %w", err)
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uint32(uid))
	if err := c.UidCopy(seqset, destination); err != nil {
		return fmt.Errorf("imap copy failed: %w", err)
	}
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := c.UidStore(seqset, item, []interface{}{imap.DeletedFlag}, nil); err != nil {
		return fmt.Errorf("imap store failed: %w", err)
	}
	return c.Expunge(nil)
}

// CheckHealth verifies the mailbox can be reached and logged into
func (s *Service) CheckHealth() bool {
	c, err := s.dial()
	if err != nil {
		return false
	}
	c.Logout()
	return true
}

func (s *Service) normalize(msg *imap.Message, section *imap.BodySectionName) *messagedomain.NormalizedMessage {
	if msg.Envelope == nil {
		return nil
	}

	sender := ""
	if len(msg.Envelope.From) > 0 {
		sender = msg.Envelope.From[0].Address()
	}

	content := ""
	if body := msg.GetBody(section); body != nil {
		content = extractText(body)
	}

	raw, _ := json.Marshal(map[string]interface{}{
		"messageId": msg.Envelope.MessageId,
		"mailbox":   "INBOX",
	})

	timestamp := msg.Envelope.Date
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	return &messagedomain.NormalizedMessage{
		ID:        strconv.FormatUint(uint64(msg.Uid), 10),
		Source:    messagedomain.SourceEmail,
		Sender:    sender,
		Subject:   msg.Envelope.Subject,
		Content:   content,
		Timestamp: timestamp,
		Raw:       raw,
	}
}

// extractText pulls the first text part out of a MIME message
func extractText(r io.Reader) string {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return ""
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("[IMAP] Error reading message part: %v", err)
			break
		}
		if _, ok := part.Header.(*mail.InlineHeader); ok {
			body, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			return string(body)
		}
	}
	return ""
}
