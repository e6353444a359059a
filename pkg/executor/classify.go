package executor

import (
	"errors"
	"io/fs"
	"os"

	"github.com/rahzom-sync/rahzom/pkg/syncdata"
)

// classifyIOError maps a filesystem error into the classification the
// caller uses to decide whether a failure is worth retrying. Platform-
// specific raw error codes (sharing violations, ENOSPC, and similar) are
// checked first by platformClassify; everything else falls back to the
// portable os.IsNotExist / os.IsPermission checks.
func classifyIOError(err error) syncdata.ErrorKind {
	if err == nil {
		return 0
	}

	if kind, ok := platformClassify(err); ok {
		return kind
	}

	if os.IsNotExist(err) {
		return syncdata.ErrorNotFound
	}
	if errors.Is(err, fs.ErrInvalid) {
		return syncdata.ErrorInvalidPath
	}
	if os.IsPermission(err) {
		return syncdata.ErrorPermissionDenied
	}

	return syncdata.ErrorIO
}
