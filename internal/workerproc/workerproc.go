package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"docanalysis-backend/internal/queryresults"
	"docanalysis-backend/internal/queue"
)

// Processor runs the query-results stage for one process id.
type Processor interface {
	Process(ctx context.Context, id string) error
}

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error { return e.Err }

// ErrMissingID indicates a message without a process id.
type ErrMissingID struct {
	Meta MessageMeta
}

func (e ErrMissingID) Error() string { return "missing process id" }

// ErrProcess indicates processing failed after successful parsing.
type ErrProcess struct {
	ProcessID string
	RequestID string
	Err       error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process query results"
	}
	return "process query results: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// Unrecoverable reports whether retrying the message can never succeed.
func Unrecoverable(err error) bool {
	var empty ErrEmptyBody
	var decode ErrDecode
	var missing ErrMissingID
	return errors.As(err, &empty) || errors.As(err, &decode) || errors.As(err, &missing)
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.IDMessage, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.IDMessage{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.IDMessage{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if !msg.Valid() {
		return msg, meta, ErrMissingID{Meta: meta}
	}
	return msg, meta, nil
}

type parsedMessageKey struct{}

// WithParsedMessage stores a decoded message in the context for reuse.
func WithParsedMessage(ctx context.Context, msg queue.IDMessage) context.Context {
	return context.WithValue(ctx, parsedMessageKey{}, msg)
}

func parsedMessageFromContext(ctx context.Context) (queue.IDMessage, bool) {
	if ctx == nil {
		return queue.IDMessage{}, false
	}
	msg, ok := ctx.Value(parsedMessageKey{}).(queue.IDMessage)
	return msg, ok
}

// HandleMessage parses, validates, and processes a message payload. The
// request id, when present, is attached to the context for logging.
func HandleMessage(ctx context.Context, processor Processor, body, requestID string) error {
	if processor == nil {
		return errors.New("query results processor not configured")
	}

	msg, ok := parsedMessageFromContext(ctx)
	if !ok {
		var err error
		msg, _, err = ParseMessage(body)
		if err != nil {
			return err
		}
	}
	if !msg.Valid() {
		return ErrMissingID{Meta: ComputeMeta(body)}
	}

	ctx = queryresults.WithRequestID(ctx, requestID)
	if err := processor.Process(ctx, msg.ID); err != nil {
		return ErrProcess{ProcessID: msg.ID, RequestID: requestID, Err: err}
	}
	return nil
}
