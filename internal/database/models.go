package database

import "time"

// ChatMessage is one accepted inbound message. The chat identifier is kept
// as an opaque string so the web endpoint and the Telegram adapter can share
// the same table. Rows are append-only; nothing ever mutates or deletes them.
type ChatMessage struct {
	ID        uint      `db:"id"`
	CreatedAt time.Time `db:"created_at"`

	ChatID     string    `db:"chat_id"`
	Text       string    `db:"text"`
	ReceivedAt time.Time `db:"received_at"`
}

// MemoryEntry is a free-form learned fact: a snippet captured from a group
// chat, authored through the teach endpoint, or written as an audit record
// of an admin chat turn. Read back only as a recency-ordered scan.
type MemoryEntry struct {
	ID        uint      `db:"id"`
	CreatedAt time.Time `db:"created_at"`

	Topic   string `db:"topic"`
	Content string `db:"content"`
	Source  string `db:"source"`
}

// Correction is an admin-authored prompt pattern with a verbatim reply
// override. Incoming prompts are matched against the pattern by
// case-insensitive substring; on a hit the corrected reply is returned
// without calling the completion API.
type Correction struct {
	ID        uint      `db:"id"`
	CreatedAt time.Time `db:"created_at"`

	Prompt         string `db:"prompt"`
	CorrectedReply string `db:"corrected_reply"`
	// Tags is a comma-joined label list, e.g. "stripe,2d,cashout".
	Tags   string `db:"tags"`
	Author string `db:"author"`
}

// DefaultAuthor is the identity recorded for corrections created without an
// explicit author.
const DefaultAuthor = "admin"
