package bounce

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// Message is one unseen mailbox message with its full RFC822 bytes.
type Message struct {
	UID     imap.UID
	From    string
	Subject string
	Date    time.Time
	Raw     []byte
}

// Session is an open, selected mailbox.
type Session interface {
	UnseenUIDs(ctx context.Context) ([]imap.UID, error)
	Fetch(ctx context.Context, uids []imap.UID) ([]Message, error)
	MarkSeen(uids []imap.UID) error
	Close()
}

// Dialer opens a mailbox session for one poll.
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}

type IMAPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Mailbox  string
	// Lookback bounds the search to recent mail.
	Lookback time.Duration
}

func (c IMAPConfig) addr() string {
	host := strings.TrimSpace(c.Host)
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	port := c.Port
	if port == 0 {
		port = 993
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// IMAP dials a TLS IMAP server per poll.
type IMAP struct {
	cfg IMAPConfig
	log *slog.Logger
}

func NewIMAP(cfg IMAPConfig, log *slog.Logger) *IMAP {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = 30 * 24 * time.Hour
	}
	return &IMAP{cfg: cfg, log: log}
}

func (m *IMAP) Dial(ctx context.Context) (Session, error) {
	if strings.TrimSpace(m.cfg.Host) == "" {
		return nil, errors.New("imap host is required")
	}
	if m.cfg.Username == "" || m.cfg.Password == "" {
		return nil, errors.New("imap username/password is required")
	}

	host, _, _ := net.SplitHostPort(m.cfg.addr())
	c, err := imapclient.DialTLS(m.cfg.addr(), &imapclient.Options{
		TLSConfig: &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host},
	})
	if err != nil {
		return nil, fmt.Errorf("imap dial tls: %w", err)
	}

	// Best-effort close on context cancel.
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })

	if err := c.Login(m.cfg.Username, m.cfg.Password).Wait(); err != nil {
		stop()
		_ = c.Close()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	if _, err := c.Select(m.cfg.Mailbox, &imap.SelectOptions{ReadOnly: false}).Wait(); err != nil {
		stop()
		logoutAndClose(c, m.log)
		return nil, fmt.Errorf("imap select %s: %w", m.cfg.Mailbox, err)
	}
	return &imapSession{c: c, stop: stop, lookback: m.cfg.Lookback, log: m.log}, nil
}

type imapSession struct {
	c        *imapclient.Client
	stop     func() bool
	lookback time.Duration
	log      *slog.Logger
}

// UnseenUIDs lists unseen messages inside the lookback window, oldest first.
func (s *imapSession) UnseenUIDs(ctx context.Context) ([]imap.UID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
		Since:   time.Now().Add(-s.lookback),
	}
	searchData, err := s.c.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap uid search unseen: %w", err)
	}
	uids := searchData.AllUIDs()
	slices.Sort(uids)
	return uids, nil
}

// Fetch pulls the full bytes of uids. BODY.PEEK[] leaves the \Seen flag
// alone.
func (s *imapSession) Fetch(ctx context.Context, uids []imap.UID) ([]Message, error) {
	if len(uids) == 0 {
		return nil, nil
	}
	bodyAll := &imap.FetchItemBodySection{Specifier: imap.PartSpecifierNone, Peek: true}
	fetchCmd := s.c.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:         true,
		Envelope:    true,
		BodySection: []*imap.FetchItemBodySection{bodyAll},
	})
	defer func() { _ = fetchCmd.Close() }()

	out := make([]Message, 0, len(uids))
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msgData := fetchCmd.Next()
		if msgData == nil {
			break
		}
		buf, err := msgData.Collect()
		if err != nil {
			return nil, fmt.Errorf("imap fetch collect: %w", err)
		}

		m := Message{UID: buf.UID}
		if buf.Envelope != nil {
			m.Subject = buf.Envelope.Subject
			m.Date = buf.Envelope.Date
			if len(buf.Envelope.From) > 0 {
				m.From = buf.Envelope.From[0].Addr()
			}
		}
		if b := buf.FindBodySection(bodyAll); b != nil {
			m.Raw = append([]byte(nil), b...)
		}
		out = append(out, m)
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("imap fetch close: %w", err)
	}
	return out, nil
}

// MarkSeen sets \Seen on uids. Store returns a FetchCommand whose Close
// carries the final status.
func (s *imapSession) MarkSeen(uids []imap.UID) error {
	if len(uids) == 0 {
		return nil
	}
	cmd := s.c.Store(imap.UIDSetNum(uids...), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil)
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("imap store add seen: %w", err)
	}
	return nil
}

func (s *imapSession) Close() {
	s.stop()
	logoutAndClose(s.c, s.log)
}

func logoutAndClose(c *imapclient.Client, log *slog.Logger) {
	if err := c.Logout().Wait(); err != nil {
		log.Debug("imap logout", "err", err)
	}
	_ = c.Close()
}
