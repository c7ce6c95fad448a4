package enum

type FolderView string

const (
	FolderInbox FolderView = "inbox"
	FolderJunk  FolderView = "junk"
	FolderAll   FolderView = "all"
)

func (t FolderView) String() string {
	return string(t)
}

func GetFolderView(s string) FolderView {
	switch FolderView(s) {
	case FolderInbox, FolderJunk:
		return FolderView(s)
	default:
		return FolderAll
	}
}

// Mailboxes returns the IMAP mailbox names covered by the view.
func (t FolderView) Mailboxes() []string {
	switch t {
	case FolderInbox:
		return []string{"INBOX"}
	case FolderJunk:
		return []string{"Junk"}
	default:
		return []string{"INBOX", "Junk"}
	}
}
