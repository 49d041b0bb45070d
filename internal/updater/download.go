package updater

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"github.com/retailkit/catalog/pkg/errx"
)

// Content types negotiated with the update endpoint.
const (
	ContentTypeDiff     = "application/vnd.retailkit.catalog+sql"
	ContentTypeSnapshot = "application/vnd.retailkit.catalog+sqlite3"
)

// No client timeout on the download path: snapshots can be large, and
// cancellation runs through the request context.
var downloadClient = &http.Client{Timeout: 0}

type payloadKind int

const (
	payloadNone payloadKind = iota
	payloadDiff
	payloadSnapshot
)

type payload struct {
	kind payloadKind
	path string
}

// resumeState is the explicit partial-download state preserved when a
// download is cancelled or cut off: the partial file, how many bytes it
// holds, and the ETag guarding against resuming into a different snapshot.
type resumeState struct {
	path      string
	offset    int64
	etag      string
	forceFull bool
}

// fetch performs the update request and downloads the response body to a
// local file. On an interrupted body it preserves resumable state and
// returns a network error.
func (e *Engine) fetch(ctx context.Context, revision int64, schemaVersion string, forceFull bool, rs *resumeState) (*payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.cfg.URL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build update request")
	}
	q := req.URL.Query()
	q.Set("havingRevision", strconv.FormatInt(revision, 10))
	q.Set("schemaVersion", schemaVersion)
	req.URL.RawQuery = q.Encode()

	if forceFull {
		req.Header.Set("Accept", ContentTypeSnapshot)
	} else {
		req.Header.Set("Accept", ContentTypeDiff+", "+ContentTypeSnapshot)
	}
	if rs != nil && rs.offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", rs.offset))
		if rs.etag != "" {
			req.Header.Set("If-Range", rs.etag)
		}
	}

	resp, err := downloadClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(errx.ErrNetwork, err.Error())
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		if rs != nil {
			_ = os.Remove(rs.path)
		}
		return &payload{kind: payloadNone}, nil
	case http.StatusOK, http.StatusPartialContent:
		// handled below
	default:
		return nil, errors.Wrapf(errx.ErrServer, "update request: status %d", resp.StatusCode)
	}

	kind, err := payloadKindOf(resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	if forceFull && kind != payloadSnapshot {
		return nil, errors.Wrap(errx.ErrServer, "expected full snapshot")
	}

	path, err := e.downloadBody(resp, rs, forceFull)
	if err != nil {
		return nil, err
	}
	return &payload{kind: kind, path: path}, nil
}

func payloadKindOf(contentType string) (payloadKind, error) {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return payloadNone, errors.Wrapf(errx.ErrServer, "content type %q", contentType)
	}
	switch mt {
	case ContentTypeDiff:
		return payloadDiff, nil
	case ContentTypeSnapshot:
		return payloadSnapshot, nil
	default:
		return payloadNone, errors.Wrapf(errx.ErrServer, "unexpected content type %q", mt)
	}
}

func (e *Engine) downloadBody(resp *http.Response, rs *resumeState, forceFull bool) (string, error) {
	var (
		path string
		f    *os.File
		err  error
	)
	if rs != nil && resp.StatusCode == http.StatusPartialContent {
		path = rs.path
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	} else {
		// Either a fresh download or the server ignored the range and sent
		// the whole payload again.
		if rs != nil {
			_ = os.Remove(rs.path)
		}
		path = e.store.PartialPath()
		f, err = os.Create(path)
	}
	if err != nil {
		return "", errors.Wrap(err, "open download file")
	}

	_, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if copyErr != nil {
		offset := int64(0)
		if fi, statErr := os.Stat(path); statErr == nil {
			offset = fi.Size()
		}
		e.mu.Lock()
		e.resume = &resumeState{
			path:      path,
			offset:    offset,
			etag:      resp.Header.Get("ETag"),
			forceFull: forceFull,
		}
		e.mu.Unlock()
		e.log.Infow("download aborted, resumable state preserved", "offset", offset)
		return "", errors.Wrap(errx.ErrNetwork, copyErr.Error())
	}
	if closeErr != nil {
		_ = os.Remove(path)
		return "", errors.Wrap(closeErr, "flush download file")
	}
	return path, nil
}
