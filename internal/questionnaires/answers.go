package questionnaires

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// ImageInput is one of DataURI, FileRef or StoredReference.
type ImageInput interface {
	imageInput()
}

// DataURI is an inline "data:<mime>;base64,<payload>" string.
type DataURI struct {
	Raw string
}

// FileRef is a file object posted with the form.
type FileRef struct {
	Name        string
	ContentType string
	Data        []byte
}

// StoredReference points at a photo uploaded earlier in the quiz. Ref keeps the
// raw value when it is not an upload id; such references are skipped at relay time.
type StoredReference struct {
	UploadID uuid.UUID
	Ref      string
}

func (r StoredReference) Resolvable() bool {
	return r.UploadID != uuid.Nil
}

func (DataURI) imageInput()         {}
func (FileRef) imageInput()         {}
func (StoredReference) imageInput() {}

// Answer is a single quiz answer. Image is set for photo questions, Value otherwise.
type Answer struct {
	QuestionCode string
	Value        string
	Image        ImageInput
}

func (a Answer) IsImage() bool {
	return a.Image != nil
}

const (
	fileObjectType      = "file"
	referenceObjectType = "image_reference"
)

type taggedObject struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Data        string `json:"data"`
	UploadID    string `json:"uploadId"`
}

// ParseAnswers decides the kind of every raw quiz answer once, keyed by question code.
func ParseAnswers(raw map[string]json.RawMessage) ([]Answer, error) {
	codes := make([]string, 0, len(raw))
	for code := range raw {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	answers := make([]Answer, 0, len(codes))
	for _, code := range codes {
		answer, err := parseAnswer(code, raw[code])
		if err != nil {
			return nil, fmt.Errorf("answer %q: %w", code, err)
		}
		answers = append(answers, answer)
	}
	return answers, nil
}

// DecodeAnswers parses a stored quiz document. An empty document yields no answers.
func DecodeAnswers(doc []byte) ([]Answer, error) {
	if len(bytes.TrimSpace(doc)) == 0 || bytes.Equal(bytes.TrimSpace(doc), []byte("null")) {
		return nil, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(doc, &raw); err != nil {
		return nil, err
	}
	return ParseAnswers(raw)
}

func parseAnswer(code string, raw json.RawMessage) (Answer, error) {
	trimmed := bytes.TrimSpace(raw)
	answer := Answer{QuestionCode: code}
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return answer, nil
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return Answer{}, err
		}
		if strings.HasPrefix(s, "data:") {
			answer.Image = DataURI{Raw: s}
			return answer, nil
		}
		answer.Value = s
	case '{':
		var obj taggedObject
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return Answer{}, err
		}
		switch obj.Type {
		case fileObjectType:
			data, err := base64.StdEncoding.DecodeString(obj.Data)
			if err != nil {
				return Answer{}, errors.New("file data must be base64")
			}
			answer.Image = FileRef{Name: obj.Name, ContentType: obj.ContentType, Data: data}
		case referenceObjectType:
			ref := StoredReference{Ref: strings.TrimSpace(obj.UploadID)}
			if id, err := uuid.Parse(ref.Ref); err == nil {
				ref.UploadID = id
			}
			answer.Image = ref
		default:
			answer.Value = string(trimmed)
		}
	case '[':
		var items []any
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return Answer{}, err
		}
		parts := make([]string, 0, len(items))
		for _, item := range items {
			parts = append(parts, fmt.Sprint(item))
		}
		answer.Value = strings.Join(parts, ", ")
	default:
		answer.Value = string(trimmed)
	}
	return answer, nil
}
