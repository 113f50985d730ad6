package imagepkg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"

	"github.com/youruser/brandbar/internal/util"
)

// open returns a fresh reader for src. Files and URLs are read anew on
// every call so a replaced asset shows up on the next load.
func (l *Loader) open(ctx context.Context, src Source) (io.ReadCloser, error) {
	switch src.Kind {
	case KindBytes:
		return src.reader(), nil
	case KindFile:
		return os.Open(src.Ref)
	case KindURL:
		return util.GetNoCache(ctx, l.client, src.Ref)
	case KindBuiltin:
		return l.openBuiltin(src.Ref)
	case KindOpener:
		if src.open == nil {
			return nil, errors.New("source has no opener")
		}
		return src.open(ctx)
	}
	return nil, fmt.Errorf("unknown source kind %d", src.Kind)
}

// openBuiltin finds "<id>.<ext>" at the root of the builtin catalog.
func (l *Loader) openBuiltin(id string) (io.ReadCloser, error) {
	if l.builtins == nil {
		return nil, errors.New("no builtin catalog configured")
	}
	if id != path.Base(id) {
		return nil, fmt.Errorf("invalid builtin id %q", id)
	}
	matches, err := fs.Glob(l.builtins, id+".*")
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("builtin %q: %w", id, fs.ErrNotExist)
	}
	return l.builtins.Open(matches[0])
}
