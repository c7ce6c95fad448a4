package imap

import (
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXOAuth2Client_InitialResponse(t *testing.T) {
	c := NewXOAuth2Client("user@example.com", "tok-123")

	mech, ir, err := c.Start()
	require.NoError(t, err)
	assert.Equal(t, "XOAUTH2", mech)
	assert.Equal(t, "user=user@example.com\x01auth=Bearer tok-123\x01\x01", string(ir))

	// error challenges are answered with an empty response
	resp, err := c.Next([]byte(`{"status":"401"}`))
	require.NoError(t, err)
	assert.Empty(t, resp)
}

func TestSummarizeMessage(t *testing.T) {
	date := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
	msg := &imap.Message{
		SeqNum: 3,
		Uid:    17,
		Flags:  []string{imap.SeenFlag},
		Envelope: &imap.Envelope{
			Date:      date,
			Subject:   "Quarterly report",
			MessageId: "<q1@example.com>",
			From: []*imap.Address{{
				PersonalName: "Alice Smith",
				MailboxName:  "alice",
				HostName:     "example.com",
			}},
		},
	}

	summary := summarizeMessage(msg, "INBOX")
	assert.Equal(t, uint32(17), summary.UID)
	assert.Equal(t, uint32(3), summary.SeqNum)
	assert.Equal(t, "INBOX", summary.Folder)
	assert.Equal(t, "Quarterly report", summary.Subject)
	assert.Equal(t, "Alice Smith <alice@example.com>", summary.From)
	assert.Equal(t, "A", summary.SenderInitial)
	assert.Equal(t, date, summary.Date)
	assert.True(t, summary.IsRead)
	assert.False(t, summary.HasAttachment)
}

func TestSummarizeMessage_NoEnvelope(t *testing.T) {
	summary := summarizeMessage(&imap.Message{SeqNum: 1, Uid: 2}, "Junk")
	assert.Equal(t, "Junk", summary.Folder)
	assert.Empty(t, summary.From)
	assert.False(t, summary.IsRead)
}

func TestFormatAddress(t *testing.T) {
	assert.Equal(t, "bob@example.com", formatAddress(&imap.Address{
		MailboxName: "bob", HostName: "example.com",
	}))
	assert.Equal(t, "Bob <bob@example.com>", formatAddress(&imap.Address{
		PersonalName: "Bob", MailboxName: "bob", HostName: "example.com",
	}))
	assert.Empty(t, formatAddress(nil))
}

func TestHasAttachment(t *testing.T) {
	plain := &imap.BodyStructure{MIMEType: "text", MIMESubType: "plain"}
	assert.False(t, hasAttachment(plain))

	mixed := &imap.BodyStructure{
		MIMEType:    "multipart",
		MIMESubType: "mixed",
		Parts: []*imap.BodyStructure{
			plain,
			{MIMEType: "application", MIMESubType: "pdf", Disposition: "attachment"},
		},
	}
	assert.True(t, hasAttachment(mixed))
}
