package command

import (
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/dicebot/internal/platform/errors"
	recordid "github.com/louisbranch/dicebot/internal/platform/id"
)

// CustomIDDelimiter separates the fields of an encoded custom id. It is the
// ASCII record separator, which never appears in kinds, button values or
// config ids.
const CustomIDDelimiter = "\x1e"

// MaxCustomIDLength is the longest custom id a platform accepts.
const MaxCustomIDLength = 100

// CustomID is the decoded input value carried by a button click.
type CustomID struct {
	Kind     Kind
	Value    string
	ConfigID string
}

// String encodes the id as kind, value and optional config id.
func (c CustomID) String() string {
	parts := []string{string(c.Kind), c.Value}
	if c.ConfigID != "" {
		parts = append(parts, c.ConfigID)
	}
	return strings.Join(parts, CustomIDDelimiter)
}

// NewCustomID builds the custom id of one button.
func NewCustomID(kind Kind, value, configID string) CustomID {
	return CustomID{Kind: kind, Value: value, ConfigID: configID}
}

// ParseCustomID decodes an encoded custom id. Ids without a delimiter come
// from an earlier encoding and yield a CodeLegacyCustomID error.
func ParseCustomID(encoded string) (CustomID, error) {
	if !strings.Contains(encoded, CustomIDDelimiter) {
		return CustomID{}, apperrors.New(apperrors.CodeLegacyCustomID, fmt.Sprintf("legacy custom id %q", encoded))
	}
	parts := strings.Split(encoded, CustomIDDelimiter)
	if len(parts) > 3 {
		return CustomID{}, apperrors.New(apperrors.CodeUnknownRecordFormat, "custom id has too many fields")
	}
	kind, err := ParseKind(parts[0])
	if err != nil {
		return CustomID{}, apperrors.Wrap(apperrors.CodeUnknownRecordFormat, "parse custom id", err)
	}
	id := CustomID{Kind: kind, Value: parts[1]}
	if len(parts) == 3 {
		if !recordid.Valid(parts[2]) {
			return CustomID{}, apperrors.New(apperrors.CodeUnknownRecordFormat, fmt.Sprintf("custom id config %q is malformed", parts[2]))
		}
		id.ConfigID = parts[2]
	}
	if id.Value == "" {
		return CustomID{}, apperrors.New(apperrors.CodeUnknownRecordFormat, "custom id value is empty")
	}
	return id, nil
}
