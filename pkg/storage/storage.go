package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// ErrNotFound is returned by Session.Delete when the remote file is absent.
var ErrNotFound = errors.New("remote file not found")

// Session is a connection to the remote media store. Implementations open the
// underlying transport lazily and Close is safe to call more than once.
type Session interface {
	Upload(ctx context.Context, r io.Reader, remoteName string) error
	Delete(ctx context.Context, remoteName string) error
	Close() error
}

// Opener hands out sessions bound to the process-wide remote target.
type Opener interface {
	Open(ctx context.Context) (Session, error)
}

var unsafeNameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SanitizeName reduces an uploaded file name to a safe relative base name.
func SanitizeName(name string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if base == "." || base == "/" {
		base = ""
	}
	base = unsafeNameRe.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		return "image"
	}
	if len(base) > 120 {
		base = base[len(base)-120:]
	}
	return base
}

// RemoteName builds the stored name <unix-millis>-<position>-<sanitized name>.
func RemoteName(now time.Time, position int, original string) string {
	return fmt.Sprintf("%d-%d-%s", now.UnixMilli(), position, SanitizeName(original))
}

// TransferError marks a failed remote operation.
func TransferError(op, remoteName string, err error) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(pkgerrors.CodeTransfer, err, fmt.Sprintf("remote %s of %q failed", op, remoteName))
}

// CloseQuietly closes a session and reports the error through onErr.
func CloseQuietly(s Session, onErr func(error)) {
	if s == nil {
		return
	}
	if err := s.Close(); err != nil && onErr != nil {
		onErr(err)
	}
}
