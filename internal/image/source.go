package imagepkg

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// SourceKind tells the Loader how to reach the bytes of a Source.
type SourceKind int

const (
	KindBytes SourceKind = iota
	KindFile
	KindURL
	KindBuiltin
	KindOpener
)

// BuiltinPrefix marks references into the embedded logo catalog.
const BuiltinPrefix = "builtin:"

// Source references encoded image bytes: inline data, a file, a URL, a
// built-in catalog entry, or a caller-supplied opener.
type Source struct {
	Kind SourceKind
	// Ref is the path, URL, builtin id or display name, depending on Kind.
	Ref  string
	Data []byte

	open func(context.Context) (io.ReadCloser, error)
}

// FromBytes wraps inline encoded image data.
func FromBytes(name string, data []byte) Source {
	return Source{Kind: KindBytes, Ref: name, Data: data}
}

// FromFile references an image on disk. The file is reopened on every load.
func FromFile(path string) Source {
	return Source{Kind: KindFile, Ref: path}
}

// FromURL references an image fetched over HTTP(S).
func FromURL(href string) Source {
	return Source{Kind: KindURL, Ref: href}
}

// FromBuiltin references an entry of the embedded logo catalog.
func FromBuiltin(id string) Source {
	return Source{Kind: KindBuiltin, Ref: id}
}

// FromOpener wraps a function that yields a fresh reader, such as an
// uploaded multipart file. The Loader closes the reader after decoding.
func FromOpener(name string, open func(context.Context) (io.ReadCloser, error)) Source {
	return Source{Kind: KindOpener, Ref: name, open: open}
}

// ParseSource interprets a textual reference:
//
//	data:image/png;base64,...   inline data URI
//	http://... or https://...   remote asset
//	builtin:<id>                embedded catalog entry
//	anything else               file path
func ParseSource(ref string) (Source, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return Source{}, errors.New("empty image reference")
	case strings.HasPrefix(ref, "data:"):
		data, err := decodeDataURI(ref)
		if err != nil {
			return Source{}, err
		}
		return FromBytes("data-uri", data), nil
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		if _, err := url.Parse(ref); err != nil {
			return Source{}, fmt.Errorf("invalid image url: %w", err)
		}
		return FromURL(ref), nil
	case strings.HasPrefix(ref, BuiltinPrefix):
		id := strings.TrimPrefix(ref, BuiltinPrefix)
		if id == "" {
			return Source{}, errors.New("builtin reference has no id")
		}
		return FromBuiltin(id), nil
	default:
		return FromFile(ref), nil
	}
}

// String describes the source for logs and errors without dumping data.
func (s Source) String() string {
	switch s.Kind {
	case KindBytes:
		return fmt.Sprintf("inline:%s (%d bytes)", s.Ref, len(s.Data))
	case KindFile:
		return "file:" + s.Ref
	case KindURL:
		return s.Ref
	case KindBuiltin:
		return BuiltinPrefix + s.Ref
	default:
		return "upload:" + s.Ref
	}
}

// key identifies sources that may share one in-flight decode. Inline and
// opener sources are never shared.
func (s Source) key() string {
	switch s.Kind {
	case KindFile, KindURL, KindBuiltin:
		return s.String()
	}
	return ""
}

func (s Source) reader() io.ReadCloser {
	return io.NopCloser(bytes.NewReader(s.Data))
}

func decodeDataURI(ref string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return nil, errors.New("malformed data uri: missing ','")
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("malformed data uri: %w", err)
		}
		return data, nil
	}
	text, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("malformed data uri: %w", err)
	}
	return []byte(text), nil
}
