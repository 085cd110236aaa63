package parser

import (
	"bytes"
	stderrors "errors" // Standard errors package
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	j "github.com/goccy/go-json"

	"github.com/mcncl/pytyper/internal/errors" // Custom errors package
	"github.com/mcncl/pytyper/internal/models"
)

// Format selects how an input document is decoded.
type Format string

const (
	FormatAuto Format = "auto"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a configured input format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatAuto:
		return FormatAuto, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown input format %q", s)
	}
}

// DetectFormat resolves FormatAuto from a file name.
func DetectFormat(path string, format Format) Format {
	if format != FormatAuto && format != "" {
		return format
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Parse converts JSON data from an io.Reader into an IntermediateRepresentation.
// Object keys keep their document order.
func Parse(reader io.Reader) (models.IntermediateRepresentation, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return models.IntermediateRepresentation{}, errors.NewInputError("failed to read input", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return models.IntermediateRepresentation{}, errors.NewParsingError("input is empty or contains only whitespace", errors.ErrEmptyInput)
	}

	// The token decoder below does not check separators or number syntax,
	// so the whole document is validated first.
	if !j.Valid(data) {
		return models.IntermediateRepresentation{}, invalidInput(data)
	}

	decoder := j.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	rootValue, err := decodeValue(decoder)
	if err != nil {
		return models.IntermediateRepresentation{}, wrapDecodeError(err)
	}
	if _, err := decoder.Token(); err == nil {
		return models.IntermediateRepresentation{}, errors.NewParsingError("multiple JSON values found at the root", errors.ErrMultipleJSON)
	}

	return models.NewIntermediateRepresentation(rootValue), nil
}

// invalidInput explains why data failed validation: either a valid value is
// followed by more input, or the document has a syntax error.
func invalidInput(data []byte) error {
	if end := firstValueEnd(data); end > 0 && len(bytes.TrimSpace(data[end:])) > 0 && j.Valid(data[:end]) {
		return errors.NewParsingError("multiple JSON values found at the root", errors.ErrMultipleJSON)
	}
	var v any
	if err := j.Unmarshal(data, &v); err != nil {
		return wrapDecodeError(err)
	}
	return errors.NewParsingError("JSON syntax error", errors.ErrInvalidJSON)
}

// firstValueEnd returns the offset just past the first top-level value of
// data, or -1 if the input ends inside it.
func firstValueEnd(data []byte) int {
	i := 0
	for i < len(data) && isSpace(data[i]) {
		i++
	}
	if i == len(data) {
		return -1
	}

	switch data[i] {
	case '{', '[':
		depth, inString, escaped := 0, false, false
		for ; i < len(data); i++ {
			c := data[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case '{', '[':
				depth++
			case '}', ']':
				depth--
				if depth == 0 {
					return i + 1
				}
			}
		}
		return -1
	case '"':
		escaped := false
		for i++; i < len(data); i++ {
			switch {
			case escaped:
				escaped = false
			case data[i] == '\\':
				escaped = true
			case data[i] == '"':
				return i + 1
			}
		}
		return -1
	default:
		for i < len(data) && !isSpace(data[i]) && !strings.ContainsRune(`{}[],"`, rune(data[i])) {
			i++
		}
		return i
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func wrapDecodeError(err error) error {
	if stderrors.Is(err, errors.ErrInvalidJSON) {
		msg := strings.TrimPrefix(err.Error(), errors.ErrInvalidJSON.Error()+": ")
		return errors.NewParsingError(msg, errors.ErrInvalidJSON)
	}
	var syntaxError *j.SyntaxError
	if stderrors.As(err, &syntaxError) {
		return errors.NewParsingError(
			fmt.Sprintf("JSON syntax error at offset %d", syntaxError.Offset),
			errors.ErrInvalidJSON,
		)
	}
	if stderrors.Is(err, io.ErrUnexpectedEOF) || stderrors.Is(err, io.EOF) {
		return errors.NewParsingError("unexpected end of JSON input", errors.ErrInvalidJSON)
	}
	return errors.NewParsingError("failed to decode JSON", fmt.Errorf("%w: %v", errors.ErrInvalidJSON, err))
}

func decodeValue(dec *j.Decoder) (models.JSONValue, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *j.Decoder, tok any) (models.JSONValue, error) {
	switch v := tok.(type) {
	case j.Delim:
		switch v {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		default:
			return nil, fmt.Errorf("%w: unexpected delimiter %q", errors.ErrInvalidJSON, rune(v))
		}
	case nil, bool, string:
		return v, nil
	case j.Number:
		return models.JSONNumber(v), nil
	case float64:
		// Only reached if the decoder ignores UseNumber.
		return models.JSONNumber(strconv.FormatFloat(v, 'g', -1, 64)), nil
	default:
		return nil, fmt.Errorf("%w: unexpected token %T", errors.ErrInvalidJSON, tok)
	}
}

func decodeObject(dec *j.Decoder) (models.JSONValue, error) {
	obj := &models.JSONObject{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: object key must be a string, got %T", errors.ErrInvalidJSON, keyTok)
		}
		value, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		obj.Set(key, value)
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return obj, nil
}

func decodeArray(dec *j.Decoder) (models.JSONValue, error) {
	arr := models.JSONArray{}
	for dec.More() {
		value, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		arr = append(arr, value)
	}
	if err := expectDelim(dec, ']'); err != nil {
		return nil, err
	}
	return arr, nil
}

func expectDelim(dec *j.Decoder, want j.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		if stderrors.Is(err, io.EOF) {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	if d, ok := tok.(j.Delim); !ok || d != want {
		return fmt.Errorf("%w: expected %q", errors.ErrInvalidJSON, rune(want))
	}
	return nil
}

// ParseString parses JSON from a string
func ParseString(jsonString string) (models.IntermediateRepresentation, error) {
	if strings.TrimSpace(jsonString) == "" {
		return models.IntermediateRepresentation{}, errors.NewInputError("input string is empty", errors.ErrEmptyInput)
	}
	return Parse(strings.NewReader(jsonString))
}

// ParseFile parses a JSON or YAML file, picking the decoder from the
// extension unless format says otherwise.
func ParseFile(filePath string, format Format) (models.IntermediateRepresentation, error) {
	if strings.TrimSpace(filePath) == "" {
		return models.IntermediateRepresentation{}, errors.NewInputError("file path is empty", errors.ErrInvalidFilePath)
	}
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return models.IntermediateRepresentation{}, errors.NewInputError(
				fmt.Sprintf("file '%s' not found", filePath),
				errors.ErrFileNotFound,
			)
		}
		return models.IntermediateRepresentation{}, errors.NewInputError(
			fmt.Sprintf("failed to open file '%s'", filePath),
			err,
		)
	}
	defer func() {
		if err := file.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing file: %v\n", err)
		}
	}()

	stat, err := file.Stat()
	if err != nil {
		return models.IntermediateRepresentation{}, errors.NewInputError(
			fmt.Sprintf("failed to get file stats for '%s'", filePath),
			err,
		)
	}
	if stat.Size() == 0 {
		return models.IntermediateRepresentation{}, errors.NewInputError(
			fmt.Sprintf("input file '%s' is empty", filePath),
			errors.ErrFileEmpty,
		)
	}

	if DetectFormat(filePath, format) == FormatYAML {
		return ParseYAML(file)
	}
	return Parse(file)
}

// ParseBytes parses data in the given format. FormatAuto means JSON.
func ParseBytes(data []byte, format Format) (models.IntermediateRepresentation, error) {
	if strings.TrimSpace(string(data)) == "" {
		return models.IntermediateRepresentation{}, errors.NewInputError("input is empty", errors.ErrEmptyInput)
	}
	if format == FormatYAML {
		return ParseYAML(strings.NewReader(string(data)))
	}
	return Parse(strings.NewReader(string(data)))
}
