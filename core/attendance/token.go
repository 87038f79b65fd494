package attendance

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/rollcall/rollcall/core"
)

// MaxPayloadSize bounds the QR text accepted by Decode.
const MaxPayloadSize = 4 << 10

var (
	salt    = []byte("rollcall.core.attendance.token")
	NowFunc = time.Now // mockable
)

// SessionDescriptor identifies one concrete class meeting.
type SessionDescriptor struct {
	SessionID string
	Subject   string
	ClassName string
	StartTime TimeOfDay
	EndTime   TimeOfDay
	DayOfWeek Weekday
}

func (s SessionDescriptor) Window() Window {
	return Window{Start: s.StartTime, End: s.EndTime}
}

func (s SessionDescriptor) Validate() error {
	var flds []core.FieldError
	if strings.TrimSpace(s.SessionID) == "" {
		flds = append(flds, core.FieldError{Field: "sessionId", Error: "this field is required"})
	}
	if strings.TrimSpace(s.Subject) == "" {
		flds = append(flds, core.FieldError{Field: "subject", Error: "this field is required"})
	}
	if strings.TrimSpace(s.ClassName) == "" {
		flds = append(flds, core.FieldError{Field: "className", Error: "this field is required"})
	}
	if err := s.Window().Validate(); err != nil {
		flds = append(flds, core.FieldError{Field: "endTime", Error: err.Error()})
	}
	if !s.DayOfWeek.Valid() {
		flds = append(flds, core.FieldError{Field: "dayOfWeek", Error: errInvalidWeekday.Error()})
	}
	if len(flds) > 0 {
		return core.NewValidationError(errors.New("invalid session descriptor"), flds...)
	}
	return nil
}

// Token is the content of a QR code. It is minted once per generation request and never mutated.
type Token struct {
	SessionID string    `json:"sessionId"`
	Subject   string    `json:"subject"`
	ClassName string    `json:"className"`
	StartTime TimeOfDay `json:"startTime"`
	EndTime   TimeOfDay `json:"endTime"`
	DayOfWeek Weekday   `json:"dayOfWeek"`
	IssuedAt  time.Time `json:"issuedAt"`
	Nonce     string    `json:"nonce"`
	Sig       string    `json:"sig,omitempty"`
}

func (t Token) Window() Window {
	return Window{Start: t.StartTime, End: t.EndTime}
}

// Issued is the result of Codec.Encode: the token and its serialized form.
type Issued struct {
	Token   Token  `json:"token"`
	Payload string `json:"payload"`
}

type DecodeErrorKind int

const (
	Malformed DecodeErrorKind = iota + 1
	MissingField
	Tampered
)

func (k DecodeErrorKind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	case MissingField:
		return "missing field"
	case Tampered:
		return "tampered"
	}
	return "unknown"
}

// DecodeError is the only error returned by Codec.Decode.
type DecodeError struct {
	Kind  DecodeErrorKind
	Field string // set for MissingField
	Err   error
}

func (e *DecodeError) Error() string {
	msg := "decoding token: " + e.Kind.String()
	if e.Field != "" {
		msg += " " + e.Field
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Codec encodes and decodes QR payloads.
// With a non-empty secret every payload is signed and unsigned payloads are rejected.
type Codec struct {
	key []byte
}

func NewCodec(secret string) *Codec {
	c := new(Codec)
	if secret != "" {
		key := sha256.Sum256(append(append([]byte{}, salt...), secret...))
		c.key = key[:]
	}
	return c
}

func (c *Codec) Signed() bool { return len(c.key) > 0 }

// Encode mints a fresh token for s.
func (c *Codec) Encode(s SessionDescriptor) (Issued, error) {
	if err := s.Validate(); err != nil {
		return Issued{}, err
	}

	now := NowFunc()
	rnd, err := uuid.NewRandom()
	if err != nil {
		return Issued{}, errors.Wrap(err, "generating nonce")
	}

	tok := Token{
		SessionID: s.SessionID,
		Subject:   s.Subject,
		ClassName: s.ClassName,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		DayOfWeek: s.DayOfWeek,
		IssuedAt:  now.UTC().Truncate(time.Second),
		Nonce:     fmt.Sprintf("%s-%d-%s", s.SessionID, now.UnixNano()/int64(time.Millisecond), strings.ReplaceAll(rnd.String(), "-", "")[:12]),
	}
	if c.Signed() {
		sig, err := c.sign(tok)
		if err != nil {
			return Issued{}, err
		}
		tok.Sig = sig
	}

	payload, err := json.Marshal(tok)
	if err != nil {
		return Issued{}, errors.Wrap(err, "marshalling token")
	}
	return Issued{Token: tok, Payload: string(payload)}, nil
}

type wireToken struct {
	SessionID *string `json:"sessionId"`
	Subject   *string `json:"subject"`
	ClassName *string `json:"className"`
	StartTime *string `json:"startTime"`
	EndTime   *string `json:"endTime"`
	DayOfWeek *string `json:"dayOfWeek"`
	IssuedAt  *string `json:"issuedAt"`
	Nonce     *string `json:"nonce"`
	Sig       *string `json:"sig"`
}

// Decode parses a QR payload. Any input, including text from an unrelated QR code, yields either
// a valid Token or a *DecodeError.
func (c *Codec) Decode(payload string) (tok Token, err error) {
	defer func() {
		if r := recover(); r != nil {
			tok, err = Token{}, &DecodeError{Kind: Malformed, Err: fmt.Errorf("%v", r)}
		}
	}()

	if len(payload) > MaxPayloadSize {
		return Token{}, &DecodeError{Kind: Malformed, Err: errors.New("payload too large")}
	}
	payload = strings.TrimSpace(payload)
	if payload == "" || payload == "null" {
		return Token{}, &DecodeError{Kind: Malformed, Err: errors.New("empty payload")}
	}

	var w wireToken
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		if typErr, ok := err.(*json.UnmarshalTypeError); ok && typErr.Field != "" {
			return Token{}, &DecodeError{Kind: MissingField, Field: typErr.Field, Err: err}
		}
		return Token{}, &DecodeError{Kind: Malformed, Err: err}
	}

	missing := func(field string, err error) (Token, error) {
		return Token{}, &DecodeError{Kind: MissingField, Field: field, Err: err}
	}
	required := func(field string, v *string) (string, error) {
		if v == nil || strings.TrimSpace(*v) == "" {
			return "", &DecodeError{Kind: MissingField, Field: field}
		}
		return *v, nil
	}

	if tok.SessionID, err = required("sessionId", w.SessionID); err != nil {
		return Token{}, err
	}
	if tok.Subject, err = required("subject", w.Subject); err != nil {
		return Token{}, err
	}
	if tok.ClassName, err = required("className", w.ClassName); err != nil {
		return Token{}, err
	}

	var raw string
	if raw, err = required("startTime", w.StartTime); err != nil {
		return Token{}, err
	}
	if tok.StartTime, err = ParseTimeOfDay(raw); err != nil {
		return missing("startTime", err)
	}
	if raw, err = required("endTime", w.EndTime); err != nil {
		return Token{}, err
	}
	if tok.EndTime, err = ParseTimeOfDay(raw); err != nil {
		return missing("endTime", err)
	}
	if err = tok.Window().Validate(); err != nil {
		return missing("endTime", err)
	}

	if raw, err = required("dayOfWeek", w.DayOfWeek); err != nil {
		return Token{}, err
	}
	if tok.DayOfWeek, err = ParseWeekday(raw); err != nil {
		return missing("dayOfWeek", err)
	}

	if raw, err = required("issuedAt", w.IssuedAt); err != nil {
		return Token{}, err
	}
	if tok.IssuedAt, err = time.Parse(time.RFC3339, raw); err != nil {
		return missing("issuedAt", err)
	}
	tok.IssuedAt = tok.IssuedAt.UTC()

	if tok.Nonce, err = required("nonce", w.Nonce); err != nil {
		return Token{}, err
	}

	if w.Sig != nil {
		tok.Sig = *w.Sig
	}
	if c.Signed() {
		if tok.Sig == "" {
			return Token{}, &DecodeError{Kind: Tampered, Field: "sig", Err: errors.New("missing signature")}
		}
		if err = c.verify(tok); err != nil {
			return Token{}, &DecodeError{Kind: Tampered, Field: "sig", Err: err}
		}
	}
	return tok, nil
}

func (c *Codec) sign(tok Token) (string, error) {
	tok.Sig = ""
	val, err := json.Marshal(tok)
	if err != nil {
		return "", errors.Wrap(err, "marshalling token")
	}
	h := hmac.New(sha256.New, c.key)
	if _, err := h.Write(val); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil)), nil
}

func (c *Codec) verify(tok Token) error {
	want, err := c.sign(tok)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(want), []byte(tok.Sig)) == 0 {
		return errors.New("signature mismatch")
	}
	return nil
}
