// Package metadata decodes the METADATA.pb records of the Google Fonts catalog.
//
// Each font family directory in the catalog carries a METADATA.pb file, a
// google.fonts.FamilyProto message in protobuf text format. Parse decodes it
// against a typed schema and returns a FontRecord, or a MalformedRecordError
// carrying the record path when the content cannot be decoded.
package metadata

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// FileName is the name of the metadata record in each family directory
const FileName = "METADATA.pb"

// ErrMalformedRecord is matched by every MalformedRecordError
var ErrMalformedRecord = errors.New("malformed metadata record")

// MalformedRecordError describes a record that could not be decoded
type MalformedRecordError struct {
	Path string
	Err  error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed metadata record %s: %v", e.Path, e.Err)
}

func (e *MalformedRecordError) Unwrap() []error {
	return []error{ErrMalformedRecord, e.Err}
}

// FontRecord is one font family from the catalog
type FontRecord struct {
	// Name is the family name, always set
	Name string

	// Path is the location of the record the family was read from
	Path string

	// RepositoryURL is the normalized upstream repository, empty when the record has none
	RepositoryURL string

	// Commit is the upstream revision the catalog was last built from
	Commit string

	// ConfigYAML is the build config path recorded for the family, relative to the repository root
	ConfigYAML string
}

// HasRepository reports whether the record names an upstream repository
func (r *FontRecord) HasRepository() bool {
	return r.RepositoryURL != ""
}

// Load reads and parses the record at path
func Load(path string) (*FontRecord, error) {
	//nolint:gosec // path comes from walking the catalog checkout
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &MalformedRecordError{Path: path, Err: err}
	}
	return Parse(path, content)
}

// Parse decodes the content of a METADATA.pb record. path is only used to identify the record.
func Parse(path string, content []byte) (*FontRecord, error) {
	msg := dynamicpb.NewMessage(familyDescriptor)
	if err := (prototext.UnmarshalOptions{DiscardUnknown: true}).Unmarshal(content, msg); err != nil {
		return nil, &MalformedRecordError{Path: path, Err: err}
	}

	name := strings.TrimSpace(stringField(msg, "name"))
	if name == "" {
		return nil, &MalformedRecordError{Path: path, Err: errors.New("missing required field 'name'")}
	}

	record := &FontRecord{Name: name, Path: path}

	sourceField := msg.Descriptor().Fields().ByName("source")
	if msg.Has(sourceField) {
		source := msg.Get(sourceField).Message()
		record.RepositoryURL = NormalizeRepositoryURL(stringField(source, "repository_url"))
		record.Commit = strings.TrimSpace(stringField(source, "commit"))
		record.ConfigYAML = strings.TrimSpace(stringField(source, "config_yaml"))
	}

	return record, nil
}

func stringField(msg protoreflect.Message, name protoreflect.Name) string {
	fd := msg.Descriptor().Fields().ByName(name)
	if fd == nil || !msg.Has(fd) {
		return ""
	}
	return msg.Get(fd).String()
}

// NormalizeRepositoryURL canonicalizes a repository reference so equivalent
// spellings compare equal. It trims whitespace and trailing slashes and
// rewrites any spelling of the GitHub host (with or without scheme or "www.")
// to "https://github.com". Returns "" when nothing is left.
func NormalizeRepositoryURL(raw string) string {
	url := strings.TrimRight(strings.TrimSpace(raw), "/")
	if url == "" {
		return ""
	}

	lower := strings.ToLower(url)
	for _, prefix := range []string{
		"https://www.github.com", "http://www.github.com", "https://github.com", "http://github.com",
		"www.github.com", "github.com",
	} {
		rest, ok := strings.CutPrefix(lower, prefix)
		if ok && (rest == "" || rest[0] == '/') {
			return "https://github.com" + url[len(prefix):]
		}
	}
	return url
}
