package queue

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strings"

	"github.com/OFFIS-RIT/graph-explorer/pkg/store"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// IngestQueue receives raw e-mails to add to the graph and the vector index.
const IngestQueue = "ingest_queue"

// IngestMessage is the body of an ingest_queue message.
type IngestMessage struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// NewIngestMessage wraps a raw RFC 822 message with a fresh job id.
func NewIngestMessage(raw string) (IngestMessage, error) {
	id, err := gonanoid.New()
	if err != nil {
		return IngestMessage{}, fmt.Errorf("generate job id: %w", err)
	}
	return IngestMessage{ID: id, Message: raw}, nil
}

// ErrIncomplete marks e-mails without a sender or recipient. They are
// acknowledged without being ingested.
var ErrIncomplete = errors.New("email has no sender or recipient")

// ParsedEmail is a decoded e-mail with the raw To header kept for metadata.
type ParsedEmail struct {
	store.EmailTransaction
	RawTo string
}

func decodeIngestMessage(body []byte) (IngestMessage, error) {
	var msg IngestMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return IngestMessage{}, Permanent(fmt.Errorf("decode ingest message: %w", err))
	}
	if strings.TrimSpace(msg.Message) == "" {
		return IngestMessage{}, Permanent(errors.New("ingest message is empty"))
	}
	return msg, nil
}

// ParseEmail reads the headers and body of a raw message. The transaction id
// is the SHA-256 of sender, raw To header, subject and date, so the same
// e-mail always maps to the same id.
func ParseEmail(raw string) (ParsedEmail, error) {
	msg, err := mail.ReadMessage(strings.NewReader(raw))
	if err != nil {
		return ParsedEmail{}, Permanent(fmt.Errorf("parse email: %w", err))
	}
	body, err := io.ReadAll(msg.Body)
	if err != nil {
		return ParsedEmail{}, Permanent(fmt.Errorf("read email body: %w", err))
	}

	from := strings.TrimSpace(msg.Header.Get("From"))
	rawTo := strings.TrimSpace(msg.Header.Get("To"))
	subject := msg.Header.Get("Subject")
	date := msg.Header.Get("Date")

	recipients := splitRecipients(rawTo)
	if from == "" || len(recipients) == 0 {
		return ParsedEmail{}, ErrIncomplete
	}

	return ParsedEmail{
		EmailTransaction: store.EmailTransaction{
			TransactionID: TransactionID(from, rawTo, subject, date),
			From:          bareAddress(from),
			To:            recipients,
			Subject:       subject,
			SentDate:      date,
			Body:          string(body),
		},
		RawTo: rawTo,
	}, nil
}

// TransactionID derives the id of an e-mail from its headers.
func TransactionID(from, to, subject, date string) string {
	sum := sha256.Sum256([]byte(from + to + subject + date))
	return hex.EncodeToString(sum[:])
}

// splitRecipients returns the bare addresses of a To header. Headers that do
// not parse as an address list are split on commas.
func splitRecipients(header string) []string {
	if header == "" {
		return nil
	}
	if list, err := mail.ParseAddressList(header); err == nil {
		out := make([]string, 0, len(list))
		for _, a := range list {
			out = append(out, a.Address)
		}
		return store.DedupeStrings(out)
	}

	parts := strings.Split(header, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return store.DedupeStrings(out)
}

func bareAddress(header string) string {
	if a, err := mail.ParseAddress(header); err == nil {
		return a.Address
	}
	return header
}
