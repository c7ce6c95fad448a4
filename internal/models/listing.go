package models

import "time"

// MessageSummary is one row of a folder listing.
type MessageSummary struct {
	MessageID     string    `json:"messageId"`
	UID           uint32    `json:"uid"`
	SeqNum        uint32    `json:"seqNum"`
	Folder        string    `json:"folder"`
	Subject       string    `json:"subject"`
	From          string    `json:"from"`
	SenderInitial string    `json:"senderInitial"`
	Date          time.Time `json:"date"`
	IsRead        bool      `json:"isRead"`
	HasAttachment bool      `json:"hasAttachment"`
}

// FolderListing is the result of one paged listing fetch for one account.
type FolderListing struct {
	Email         string           `json:"email"`
	FolderView    string           `json:"folderView"`
	Page          int              `json:"page"`
	PageSize      int              `json:"pageSize"`
	TotalMessages int              `json:"totalMessages"`
	Messages      []MessageSummary `json:"messages"`
	FetchedAt     time.Time        `json:"fetchedAt"`
}

// FetchResult is the per-account outcome of a multi-account listing fetch.
// Exactly one of Listing or Error is set.
type FetchResult struct {
	Email     string         `json:"email"`
	Listing   *FolderListing `json:"listing,omitempty"`
	Error     string         `json:"error,omitempty"`
	FromCache bool           `json:"fromCache"`
}

// MessageDetail is a single fully fetched message with its extracted bodies.
// Only plain and HTML parts are surfaced; attachments are flagged, not stored.
type MessageDetail struct {
	MessageID string    `json:"messageId"`
	UID       uint32    `json:"uid"`
	Folder    string    `json:"folder"`
	Subject   string    `json:"subject"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Date      time.Time `json:"date"`
	BodyPlain string    `json:"bodyPlain,omitempty"`
	BodyHTML  string    `json:"bodyHtml,omitempty"`
}
