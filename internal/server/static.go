package server

import (
	"errors"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"syscall"

	"github.com/spf13/afero"
)

const indexPage = "index.html"

// NewRootFs returns a read-only view of root on the OS filesystem.
func NewRootFs(root string) afero.Fs {
	return afero.NewReadOnlyFs(afero.NewBasePathFs(afero.NewOsFs(), root))
}

// staticHandler serves files from fs with http.FileServer semantics.
type staticHandler struct {
	files http.FileSystem
	next  http.Handler
}

// notDirFs reports paths below a regular file as not found, like http.Dir.
// afero's HttpFs passes ENOTDIR through, which FileServer turns into a 500.
type notDirFs struct {
	http.FileSystem
	root afero.Fs
}

func (n notDirFs) Open(name string) (http.File, error) {
	f, err := n.FileSystem.Open(name)
	if err != nil {
		return nil, n.mapOpenError(err, name)
	}
	return f, nil
}

func (n notDirFs) mapOpenError(originalErr error, name string) error {
	if errors.Is(originalErr, fs.ErrNotExist) || errors.Is(originalErr, fs.ErrPermission) {
		return originalErr
	}

	parts := strings.Split(path.Clean("/"+name), "/")
	for i := range parts {
		if parts[i] == "" {
			continue
		}
		info, err := n.root.Stat(strings.Join(parts[:i+1], "/"))
		if err != nil {
			return originalErr
		}
		if !info.IsDir() {
			return fs.ErrNotExist
		}
	}
	return originalErr
}

// NewStaticHandler returns a handler serving the tree of fs rooted at "/".
func NewStaticHandler(fsys afero.Fs) http.Handler {
	files := notDirFs{FileSystem: afero.NewHttpFs(fsys).Dir("/"), root: fsys}
	return &staticHandler{
		files: files,
		next:  http.FileServer(files),
	}
}

func (h *staticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// http.FileServer redirects ".../index.html" to ".../"; serve the file as named instead.
	if strings.HasSuffix(r.URL.Path, "/"+indexPage) && h.serveIndex(w, r) {
		return
	}
	h.next.ServeHTTP(w, r)
}

func (h *staticHandler) serveIndex(w http.ResponseWriter, r *http.Request) bool {
	f, err := h.files.Open(path.Clean(r.URL.Path))
	if err != nil {
		msg, code := toHTTPError(err)
		http.Error(w, msg, code)
		return true
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return false
	}

	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	return true
}

// toHTTPError maps filesystem errors the same way http.FileServer does.
func toHTTPError(err error) (msg string, code int) {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
		return "404 page not found", http.StatusNotFound
	}
	if errors.Is(err, fs.ErrPermission) {
		return "403 Forbidden", http.StatusForbidden
	}
	return "500 Internal Server Error", http.StatusInternalServerError
}
