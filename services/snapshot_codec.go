package services

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"

	"tonotes/model"
)

// SnapshotCodec turns note snapshots into URL-safe share tokens and back.
//
// Without a signing key a token is base64url(JSON) and anyone holding it can
// read or forge it. With a key the token is an HS256 JWT whose claims are the
// snapshot fields, so tampering is detected on decode. Tokens never expire.
type SnapshotCodec struct {
	key      []byte
	validate *validator.Validate
}

type snapshotPayload struct {
	ID        *string    `json:"id" validate:"required"`
	Content   *string    `json:"content" validate:"required"`
	CreatedAt *time.Time `json:"created_at" validate:"required"`
	Version   *int64     `json:"version" validate:"required"`
}

type snapshotClaims struct {
	snapshotPayload
	jwt.RegisteredClaims
}

func NewSnapshotCodec(signingKey string) *SnapshotCodec {
	c := &SnapshotCodec{validate: validator.New(validator.WithRequiredStructEnabled())}
	if signingKey != "" {
		c.key = []byte(signingKey)
	}
	return c
}

func (c *SnapshotCodec) Signed() bool {
	return len(c.key) > 0
}

// Encode is deterministic: the same snapshot always yields the same token.
// Text fields must be valid UTF-8 so that Decode gives back exactly s.
func (c *SnapshotCodec) Encode(s model.Snapshot) (string, error) {
	s.CreatedAt = s.CreatedAt.UTC()
	if err := c.validate.Struct(s); err != nil {
		return "", fmt.Errorf("%w: snapshot: %v", model.ErrValidation, err)
	}
	if !utf8.ValidString(s.ID) || !utf8.ValidString(s.Content) {
		return "", fmt.Errorf("%w: snapshot: text is not valid UTF-8", model.ErrValidation)
	}
	payload := snapshotPayload{
		ID:        &s.ID,
		Content:   &s.Content,
		CreatedAt: &s.CreatedAt,
		Version:   &s.Version,
	}

	if c.Signed() {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, snapshotClaims{snapshotPayload: payload})
		signed, err := token.SignedString(c.key)
		if err != nil {
			return "", fmt.Errorf("signing snapshot: %w", err)
		}
		return signed, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding snapshot: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Decode accepts only tokens in the exact form Encode produces and never
// returns a partially populated snapshot: any failure is reported as
// model.ErrDecode.
func (c *SnapshotCodec) Decode(token string) (model.Snapshot, error) {
	if token == "" {
		return model.Snapshot{}, fmt.Errorf("%w: empty token", model.ErrDecode)
	}
	// base64 decoders skip line breaks.
	if strings.IndexFunc(token, unicode.IsSpace) >= 0 {
		return model.Snapshot{}, fmt.Errorf("%w: token contains whitespace", model.ErrDecode)
	}

	var (
		payload snapshotPayload
		err     error
	)
	switch {
	case c.Signed():
		payload, err = c.decodeSigned(token)
	case strings.Contains(token, "."):
		err = errors.New("signed token but no signing key configured")
	default:
		payload, err = decodePlain(token)
	}
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: %v", model.ErrDecode, err)
	}

	if err := c.validate.Struct(payload); err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: %v", model.ErrDecode, err)
	}
	s := model.Snapshot{
		ID:        *payload.ID,
		Content:   *payload.Content,
		CreatedAt: payload.CreatedAt.UTC(),
		Version:   *payload.Version,
	}
	if err := c.validate.Struct(s); err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: %v", model.ErrDecode, err)
	}
	return s, nil
}

func decodePlain(token string) (snapshotPayload, error) {
	var payload snapshotPayload
	raw, err := base64.RawURLEncoding.Strict().DecodeString(token)
	if err != nil {
		return payload, fmt.Errorf("base64: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return payload, fmt.Errorf("json: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return payload, errors.New("json: trailing data")
	}
	return payload, nil
}

func (c *SnapshotCodec) decodeSigned(token string) (snapshotPayload, error) {
	var claims snapshotClaims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return c.key, nil
	})
	if err != nil {
		return snapshotPayload{}, err
	}
	return claims.snapshotPayload, nil
}

// ShareURL joins the public base URL with the share path for token.
func ShareURL(baseURL, token string) string {
	return strings.TrimSuffix(baseURL, "/") + "/share/" + token
}
