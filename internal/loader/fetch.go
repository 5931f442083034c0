// Package loader reads raw schema bytes from files, fs.FS entries and HTTP
// endpoints. The public contract lives in pkg/loader.
package loader

import (
	"errors"
	"fmt"
	"io"
)

// ErrTooLarge is returned when a document exceeds the configured size cap.
var ErrTooLarge = errors.New("loader: document exceeds size limit")

// readLimited reads r fully, failing once more than limit bytes arrive.
// A limit <= 0 disables the cap.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, limit)
	}
	return data, nil
}
