package fetch

import (
	"bytes"
	"context"
	"net/mail"

	"github.com/jhillyerd/enmime"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/mailvault/mailvault/interfaces"
	er "github.com/mailvault/mailvault/internal/errors"
	"github.com/mailvault/mailvault/internal/models"
	"github.com/mailvault/mailvault/internal/tracing"
)

func (s *emailService) FetchMessage(ctx context.Context, email, folder string, uid uint32) (*models.MessageDetail, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailService.FetchMessage")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, email)
	tracing.TagFolder(span, folder)
	span.SetTag("uid", uid)

	account, err := s.accounts.Get(ctx, email)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if account == nil || account.IsDeleted {
		return nil, er.ErrAccountNotFound
	}

	var raw []byte
	err = s.withSession(ctx, account, func(session interfaces.MailSession) error {
		if _, selErr := session.SelectFolder(folder, true); selErr != nil {
			return selErr
		}
		var opErr error
		raw, opErr = session.FetchMessageByUID(uid)
		return opErr
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	detail, err := parseMessage(raw, folder, uid)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return detail, nil
}

// parseMessage extracts the plain and HTML bodies along with the addressing
// headers. Attachments are deliberately not decoded.
func parseMessage(raw []byte, folder string, uid uint32) (*models.MessageDetail, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse message")
	}

	detail := &models.MessageDetail{
		MessageID: env.GetHeader("Message-Id"),
		UID:       uid,
		Folder:    folder,
		Subject:   env.GetHeader("Subject"),
		From:      env.GetHeader("From"),
		To:        env.GetHeader("To"),
		BodyPlain: env.Text,
		BodyHTML:  env.HTML,
	}

	if date, dateErr := mail.ParseDate(env.GetHeader("Date")); dateErr == nil {
		detail.Date = date
	}

	return detail, nil
}
