package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-sasl"
	"github.com/opentracing/opentracing-go"

	"github.com/mailvault/mailvault/config"
	"github.com/mailvault/mailvault/interfaces"
	er "github.com/mailvault/mailvault/internal/errors"
	"github.com/mailvault/mailvault/internal/logger"
	"github.com/mailvault/mailvault/internal/models"
	"github.com/mailvault/mailvault/internal/tracing"
	"github.com/mailvault/mailvault/internal/utils"
)

// xoauth2Client implements the XOAUTH2 SASL mechanism used by Outlook and
// Gmail. The initial response carries the bearer token; on an error challenge
// the server expects an empty reply before it returns the tagged NO.
type xoauth2Client struct {
	username string
	token    string
}

func NewXOAuth2Client(username, token string) sasl.Client {
	return &xoauth2Client{username: username, token: token}
}

func (c *xoauth2Client) Start() (string, []byte, error) {
	ir := fmt.Sprintf("user=%s\x01auth=Bearer %s\x01\x01", c.username, c.token)
	return "XOAUTH2", []byte(ir), nil
}

func (c *xoauth2Client) Next(challenge []byte) ([]byte, error) {
	return []byte{}, nil
}

type sessionFactory struct {
	cfg *config.IMAPConfig
	log logger.Logger
}

func NewSessionFactory(cfg *config.IMAPConfig, log logger.Logger) interfaces.SessionFactory {
	return &sessionFactory{cfg: cfg, log: log}
}

func (f *sessionFactory) Connect(ctx context.Context, email, accessToken string) (interfaces.MailSession, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "sessionFactory.Connect")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, email)
	span.SetTag("server", f.cfg.Server)
	span.SetTag("port", f.cfg.Port)

	serverAddr := fmt.Sprintf("%s:%d", f.cfg.Server, f.cfg.Port)
	timeout := time.Duration(f.cfg.TimeoutSeconds) * time.Second

	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}

	tlsConfig := &tls.Config{
		ServerName: f.cfg.Server,
	}

	c, err := client.DialWithDialerTLS(dialer, serverAddr, tlsConfig)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, er.NewPoolError(email, er.PoolConnectFailed, fmt.Errorf("failed to connect to %s: %w", serverAddr, err))
	}

	c.Timeout = timeout
	err = c.Authenticate(NewXOAuth2Client(email, accessToken))
	if err != nil {
		c.Logout()
		tracing.TraceErr(span, err)
		if er.IsAuthFailure(err) {
			return nil, er.NewAuthError(email, er.AuthReasonInvalidGrant, err)
		}
		return nil, er.NewPoolError(email, er.PoolConnectFailed, err)
	}
	c.Timeout = 0

	f.log.Infof("[%s] connected and authenticated to %s", email, serverAddr)
	span.SetTag("success", true)

	return &imapSession{c: c, email: email, opTimeout: timeout}, nil
}

// imapSession adapts one live go-imap client connection. Not safe for
// concurrent use; the pool lends it to a single worker at a time.
type imapSession struct {
	c         *client.Client
	email     string
	opTimeout time.Duration
}

func (s *imapSession) SelectFolder(folder string, readOnly bool) (uint32, error) {
	s.c.Timeout = s.opTimeout
	status, err := s.c.Select(folder, readOnly)
	s.c.Timeout = 0
	if err != nil {
		return 0, classifyProtocolErr(err)
	}
	return status.Messages, nil
}

func (s *imapSession) SearchAll() ([]uint32, error) {
	s.c.Timeout = s.opTimeout
	seqNums, err := s.c.Search(&imap.SearchCriteria{})
	s.c.Timeout = 0
	if err != nil {
		return nil, classifyProtocolErr(err)
	}
	return seqNums, nil
}

func (s *imapSession) FetchHeaders(folder string, seqNums []uint32) ([]models.MessageSummary, error) {
	if len(seqNums) == 0 {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(seqNums...)

	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchFlags, imap.FetchUid, imap.FetchBodyStructure}
	messages := make(chan *imap.Message, len(seqNums))

	s.c.Timeout = s.opTimeout
	err := s.c.Fetch(seqSet, items, messages)
	s.c.Timeout = 0
	if err != nil {
		return nil, classifyProtocolErr(err)
	}

	summaries := make([]models.MessageSummary, 0, len(seqNums))
	for msg := range messages {
		summaries = append(summaries, summarizeMessage(msg, folder))
	}
	return summaries, nil
}

func (s *imapSession) FetchMessageByUID(uid uint32) ([]byte, error) {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchUid}
	messages := make(chan *imap.Message, 1)

	s.c.Timeout = s.opTimeout
	err := s.c.UidFetch(seqSet, items, messages)
	s.c.Timeout = 0
	if err != nil {
		return nil, classifyProtocolErr(err)
	}

	msg := <-messages
	if msg == nil {
		return nil, er.NewProtocolError(true, fmt.Errorf("message uid %d not found", uid))
	}

	body := msg.GetBody(section)
	if body == nil {
		return nil, er.NewProtocolError(true, fmt.Errorf("message uid %d has no body", uid))
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, er.NewProtocolError(false, err)
	}
	return raw, nil
}

func (s *imapSession) Noop() error {
	s.c.Timeout = 10 * time.Second
	err := s.c.Noop()
	s.c.Timeout = 0
	return err
}

func (s *imapSession) Logout() error {
	s.c.Timeout = 5 * time.Second
	return s.c.Logout()
}

func summarizeMessage(msg *imap.Message, folder string) models.MessageSummary {
	summary := models.MessageSummary{
		UID:    msg.Uid,
		SeqNum: msg.SeqNum,
		Folder: folder,
	}

	for _, flag := range msg.Flags {
		if flag == imap.SeenFlag {
			summary.IsRead = true
			break
		}
	}

	if env := msg.Envelope; env != nil {
		summary.MessageID = env.MessageId
		summary.Subject = env.Subject
		summary.Date = env.Date
		if len(env.From) > 0 {
			summary.From = formatAddress(env.From[0])
		}
		summary.SenderInitial = utils.SenderInitial(summary.From)
	}

	if bs := msg.BodyStructure; bs != nil {
		summary.HasAttachment = hasAttachment(bs)
	}

	return summary
}

func formatAddress(addr *imap.Address) string {
	if addr == nil {
		return ""
	}
	email := addr.MailboxName + "@" + addr.HostName
	if addr.PersonalName != "" {
		return fmt.Sprintf("%s <%s>", addr.PersonalName, email)
	}
	return email
}

func hasAttachment(bs *imap.BodyStructure) bool {
	if strings.EqualFold(bs.Disposition, "attachment") {
		return true
	}
	for _, part := range bs.Parts {
		if hasAttachment(part) {
			return true
		}
	}
	return false
}

func classifyProtocolErr(err error) error {
	if err == nil {
		return nil
	}
	if er.IsAuthFailure(err) {
		return er.NewProtocolError(true, err)
	}
	if er.IsTransient(err) {
		return er.NewProtocolError(false, err)
	}
	return er.NewProtocolError(true, err)
}
