package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Value kinds used by EncodeValue.
const (
	KindString     = "string"
	KindBool       = "bool"
	KindInt        = "int"
	KindFloat      = "float"
	KindRef        = "ref"
	KindIndividual = "individual"
)

// EncodeValue converts a normalized value to a (kind, text) pair for storage
// in text columns and for hashing.
func EncodeValue(v Value) (kind, text string, err error) {
	switch val := v.(type) {
	case string:
		return KindString, val, nil
	case bool:
		return KindBool, strconv.FormatBool(val), nil
	case int64:
		return KindInt, strconv.FormatInt(val, 10), nil
	case float64:
		return KindFloat, strconv.FormatFloat(val, 'g', -1, 64), nil
	case TypedRef:
		return KindRef, val.ID, nil
	case Individual:
		return KindIndividual, val.URI, nil
	}
	return "", "", fmt.Errorf("%w: %T", ErrUnsupportedValueType, v)
}

// DecodeValue is the inverse of EncodeValue. ref supplies type and spec
// version for references.
func DecodeValue(kind, text string, ref TypedRef) (Value, error) {
	switch kind {
	case KindString:
		return text, nil
	case KindBool:
		return strconv.ParseBool(text)
	case KindInt:
		return strconv.ParseInt(text, 10, 64)
	case KindFloat:
		return strconv.ParseFloat(text, 64)
	case KindRef:
		ref.ID = text
		return ref, nil
	case KindIndividual:
		return Individual{URI: text}, nil
	}
	return nil, fmt.Errorf("%w: kind %q", ErrUnsupportedValueType, kind)
}

// digestText renders v for Digest. References hash by lower-cased target.
func digestText(v Value) (string, error) {
	kind, text, err := EncodeValue(v)
	if err != nil {
		return "", err
	}
	if kind == KindRef {
		text = strings.ToLower(text)
	}
	return kind + ":" + text, nil
}
