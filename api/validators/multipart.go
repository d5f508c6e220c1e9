package validators

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"sort"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const payloadField = "payload"

// UploadedFile is one file part read fully into memory.
type UploadedFile struct {
	Name string
	Data []byte
}

// Form is a parsed multipart admin request.
type Form struct {
	form *multipart.Form
}

var indexedFieldRe = regexp.MustCompile(`^([a-z_]+)\[([^\]]+)\]$`)

// ParseMultipart parses a multipart body capped at maxBytes.
func ParseMultipart(w http.ResponseWriter, r *http.Request, maxBytes int64) (*Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "request body too large").WithDetails(map[string]any{"limit_bytes": maxBytes})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart body")
	}
	return &Form{form: r.MultipartForm}, nil
}

// Cleanup removes any temp files the parser spilled to disk.
func (f *Form) Cleanup() {
	if f == nil || f.form == nil {
		return
	}
	_ = f.form.RemoveAll()
}

// DecodePayload decodes and validates the JSON payload field. The payload may
// arrive as a plain value or as a file part.
func (f *Form) DecodePayload(dest any) error {
	raw, ok, err := f.payload()
	if err != nil {
		return err
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, "payload field is required").WithDetails(map[string]any{"field": payloadField})
	}
	return DecodeJSON(raw, dest)
}

func (f *Form) payload() (string, bool, error) {
	if values := f.form.Value[payloadField]; len(values) > 0 && strings.TrimSpace(values[0]) != "" {
		return values[0], true, nil
	}
	if headers := f.form.File[payloadField]; len(headers) > 0 {
		data, err := readPart(headers[0])
		if err != nil {
			return "", false, err
		}
		return string(data), true, nil
	}
	return "", false, nil
}

// Files reads every file sent under field, in submission order.
func (f *Form) Files(field string) ([]UploadedFile, error) {
	headers := f.form.File[field]
	out := make([]UploadedFile, 0, len(headers))
	for _, h := range headers {
		data, err := readPart(h)
		if err != nil {
			return nil, err
		}
		out = append(out, UploadedFile{Name: h.Filename, Data: data})
	}
	return out, nil
}

// IndexedFiles collects fields named prefix[<n>] keyed by the parsed n.
func (f *Form) IndexedFiles(prefix string) (map[uint][]UploadedFile, error) {
	out := map[uint][]UploadedFile{}
	keys := make([]string, 0, len(f.form.File))
	for key := range f.form.File {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		m := indexedFieldRe.FindStringSubmatch(key)
		if m == nil || m[1] != prefix {
			continue
		}
		idx, err := parseIndex(m[2], key)
		if err != nil {
			return nil, err
		}
		files, err := f.Files(key)
		if err != nil {
			return nil, err
		}
		out[idx] = append(out[idx], files...)
	}
	return out, nil
}

func parseIndex(raw, field string) (uint, error) {
	if strings.TrimSpace(raw) == "0" {
		return 0, nil
	}
	return parseID(raw, field)
}

func readPart(h *multipart.FileHeader) ([]byte, error) {
	file, err := h.Open()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable file part").WithDetails(map[string]any{"file_name": h.Filename})
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable file part").WithDetails(map[string]any{"file_name": h.Filename})
	}
	return data, nil
}
