// Package imapsource implements a mailbox source over IMAP.
package imapsource

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/mikey/mail-sentinel/internal/adapters/mimetext"
	"github.com/mikey/mail-sentinel/internal/core"
	"go.uber.org/zap"
)

// Security selects how the connection is protected
type Security int

const (
	SecurityTLS Security = iota
	SecurityStartTLS
	SecurityNone
)

// Options configures an IMAP account
type Options struct {
	Name       string
	Server     string
	Port       int
	Username   string
	Password   string
	Security   Security
	Folder     string
	JunkFolder string
}

// Source is a core.MailboxSource for one IMAP account. Message ids are UIDs
// within the configured folder. The connection is opened lazily and
// re-established after any failure.
type Source struct {
	opts   Options
	logger *zap.Logger

	mu     sync.Mutex
	client *imapclient.Client
}

// New creates an IMAP source; no connection is made until first use
func New(opts Options, logger *zap.Logger) (*Source, error) {
	if opts.Server == "" {
		return nil, fmt.Errorf("IMAP server not specified for account %s", opts.Name)
	}
	if opts.Port == 0 {
		opts.Port = 993
	}
	if opts.Folder == "" {
		opts.Folder = "INBOX"
	}
	if opts.JunkFolder == "" {
		opts.JunkFolder = "Junk"
	}
	return &Source{opts: opts, logger: logger.With(zap.String("account", opts.Name))}, nil
}

// Open connects and authenticates so configuration errors surface at startup
func (s *Source) Open(ctx context.Context) error {
	return s.withClient(ctx, func(*imapclient.Client) error { return nil })
}

// Name returns the account name
func (s *Source) Name() string { return s.opts.Name }

// ListAfter returns messages in the folder received strictly after the given
// instant. SEARCH SINCE compares calendar days in the server's timezone, so the
// search starts a day early and results are filtered on INTERNALDATE here.
func (s *Source) ListAfter(ctx context.Context, after time.Time, unreadOnly bool) ([]core.Message, error) {
	var msgs []core.Message
	err := s.withClient(ctx, func(c *imapclient.Client) error {
		criteria := &imap.SearchCriteria{Since: after.AddDate(0, 0, -1)}
		if unreadOnly {
			criteria.NotFlag = []imap.Flag{imap.FlagSeen}
		}
		data, err := c.UIDSearch(criteria, nil).Wait()
		if err != nil {
			return fmt.Errorf("searching messages: %w", err)
		}
		uids := data.AllUIDs()
		if len(uids) == 0 {
			return nil
		}

		section := &imap.FetchItemBodySection{Peek: true}
		fetchCmd := c.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
			UID:          true,
			Flags:        true,
			Envelope:     true,
			InternalDate: true,
			BodySection:  []*imap.FetchItemBodySection{section},
		})
		defer fetchCmd.Close()

		for {
			m := fetchCmd.Next()
			if m == nil {
				break
			}
			buf, err := m.Collect()
			if err != nil {
				s.logger.Error("Failed to read message, it will not be retried",
					zap.String("account", s.opts.Name),
					zap.Error(err))
				continue
			}
			msg := s.toMessage(buf, buf.FindBodySection(section))
			if !msg.ReceivedAt.After(after) {
				continue
			}
			msgs = append(msgs, msg)
		}
		if err := fetchCmd.Close(); err != nil {
			return fmt.Errorf("fetching messages: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkRead sets \Seen on the message
func (s *Source) MarkRead(ctx context.Context, id string) error {
	uid, err := parseUID(id)
	if err != nil {
		return err
	}
	return s.withClient(ctx, func(c *imapclient.Client) error {
		return c.Store(imap.UIDSetNum(uid), &imap.StoreFlags{
			Op:     imap.StoreFlagsAdd,
			Silent: true,
			Flags:  []imap.Flag{imap.FlagSeen},
		}, nil).Close()
	})
}

// MoveToJunk marks the message read and moves it to the junk folder. Servers
// without MOVE get COPY, STORE \Deleted and EXPUNGE from the client library.
func (s *Source) MoveToJunk(ctx context.Context, id string) error {
	uid, err := parseUID(id)
	if err != nil {
		return err
	}
	return s.withClient(ctx, func(c *imapclient.Client) error {
		set := imap.UIDSetNum(uid)
		if err := c.Store(set, &imap.StoreFlags{
			Op:     imap.StoreFlagsAdd,
			Silent: true,
			Flags:  []imap.Flag{imap.FlagSeen},
		}, nil).Close(); err != nil {
			return fmt.Errorf("marking message seen: %w", err)
		}
		if _, err := c.Move(set, s.opts.JunkFolder).Wait(); err != nil {
			return fmt.Errorf("could not move message to %q: %w", s.opts.JunkFolder, err)
		}
		s.logger.Info("Moved message to junk folder",
			zap.String("message_id", id),
			zap.String("folder", s.opts.JunkFolder))
		return nil
	})
}

// Close logs out and drops the connection
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	s.logger.Info("Closing IMAP connection")
	err := s.client.Logout().Wait()
	s.client.Close()
	s.client = nil
	return err
}

// withClient runs fn on a connected client with the folder selected. The
// client library has no context support, so a done context closes the
// connection to unblock pending commands.
func (s *Source) withClient(ctx context.Context, fn func(*imapclient.Client) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if s.client == nil {
		c, err := s.connect()
		if err != nil {
			return err
		}
		s.client = c
	}

	c := s.client
	stop := context.AfterFunc(ctx, func() { c.Close() })
	err := fn(c)
	if !stop() {
		err = errors.Join(ctx.Err(), err)
	}
	if err != nil {
		c.Close()
		s.client = nil
	}
	return err
}

func (s *Source) connect() (*imapclient.Client, error) {
	addr := net.JoinHostPort(s.opts.Server, strconv.Itoa(s.opts.Port))
	s.logger.Info("Connecting to IMAP server", zap.String("addr", addr))

	var (
		c   *imapclient.Client
		err error
	)
	switch s.opts.Security {
	case SecurityStartTLS:
		c, err = imapclient.DialStartTLS(addr, nil)
	case SecurityNone:
		c, err = imapclient.DialInsecure(addr, nil)
	default:
		c, err = imapclient.DialTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := c.Login(s.opts.Username, s.opts.Password).Wait(); err != nil {
		c.Close()
		return nil, fmt.Errorf("authentication failed for %s: %w", s.opts.Username, err)
	}
	if _, err := c.Select(s.opts.Folder, nil).Wait(); err != nil {
		c.Close()
		return nil, fmt.Errorf("selecting %s: %w", s.opts.Folder, err)
	}
	return c, nil
}

// toMessage converts fetched data to a core.Message. Headers decoded from the
// body section win over the envelope. ReceivedAt is the server's INTERNALDATE;
// the sender's Date header is only used when the server reports none.
func (s *Source) toMessage(buf *imapclient.FetchMessageBuffer, raw []byte) core.Message {
	msg := core.Message{
		ID:       strconv.FormatUint(uint64(buf.UID), 10),
		Provider: s.opts.Name,
		IsRead:   hasFlag(buf.Flags, imap.FlagSeen),
	}

	if env := buf.Envelope; env != nil {
		msg.Subject = env.Subject
		msg.Sender = formatAddresses(env.From)
		msg.Recipient = formatAddresses(env.To)
	}

	if raw != nil {
		parsed, err := mimetext.Parse(raw)
		if err != nil {
			s.logger.Warn("Failed to parse message body",
				zap.String("message_id", msg.ID),
				zap.Error(err))
			msg.Body = string(raw)
		} else {
			msg.Body = parsed.Body
			if parsed.Subject != "" {
				msg.Subject = parsed.Subject
			}
			if parsed.From != "" {
				msg.Sender = parsed.From
			}
		}
	}

	msg.ReceivedAt = buf.InternalDate
	if msg.ReceivedAt.IsZero() && buf.Envelope != nil {
		msg.ReceivedAt = buf.Envelope.Date
	}
	msg.ReceivedAt = msg.ReceivedAt.UTC()
	return msg
}

func formatAddresses(addrs []imap.Address) string {
	out := ""
	for i, a := range addrs {
		if i > 0 {
			out += ", "
		}
		out += mimetext.FormatAddress(a.Name, a.Addr())
	}
	return out
}

func hasFlag(flags []imap.Flag, want imap.Flag) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}

func parseUID(id string) (imap.UID, error) {
	n, err := strconv.ParseUint(id, 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid IMAP UID %q", id)
	}
	return imap.UID(n), nil
}
