// Package syncproto implements the sync v1 binary sub-protocol
// (LIST/STAT/RECV/SEND/QUIT) against a pluggable FileSystem, grounded on
// fs.py's AbstractFileSystem/LocalFileSystem/MemoryFileSystem contract.
package syncproto

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileStat is the mode/size/mtime triple sync's STAT record carries. A
// missing path is represented by the zero value, never an error.
type FileStat struct {
	Mode  uint32
	Size  uint32
	Mtime uint32
}

// Dirent is one entry yielded by Iterdir.
type Dirent struct {
	Name  string
	Mode  uint32
	Size  uint32
	Mtime uint32
}

// FileSystem is the sync sub-protocol's storage contract. Implementations
// may be local, in-memory, or remote.
type FileSystem interface {
	Stat(path string) (FileStat, error)
	Iterdir(path string) ([]Dirent, error)
	OpenForRead(path string) (io.ReadCloser, error)
	OpenForWrite(path string, mode uint32) (io.WriteCloser, error)
	SetMtime(path string, mtime uint32) error
	Makedirs(path string) error
}

// LocalFileSystem resolves paths under BaseDir with no sandboxing, same
// as the source's os.path.join + normpath behavior.
type LocalFileSystem struct {
	BaseDir string
}

// NewLocalFileSystem returns a LocalFileSystem rooted at baseDir.
func NewLocalFileSystem(baseDir string) *LocalFileSystem {
	return &LocalFileSystem{BaseDir: baseDir}
}

func (fs *LocalFileSystem) resolve(path string) string {
	path = strings.TrimLeft(path, "/\\")
	return filepath.Clean(filepath.Join(fs.BaseDir, path))
}

func (fs *LocalFileSystem) Stat(path string) (FileStat, error) {
	info, err := os.Stat(fs.resolve(path))
	if os.IsNotExist(err) {
		return FileStat{}, nil
	}
	if err != nil {
		return FileStat{}, err
	}
	return FileStat{Mode: uint32(info.Mode()), Size: uint32(info.Size()), Mtime: uint32(info.ModTime().Unix())}, nil
}

func (fs *LocalFileSystem) Iterdir(path string) ([]Dirent, error) {
	entries, err := os.ReadDir(fs.resolve(path))
	if err != nil {
		return nil, err
	}
	out := make([]Dirent, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue // entry vanished mid-scan; skip like the source's race-condition guard
		}
		out = append(out, Dirent{Name: e.Name(), Mode: uint32(info.Mode()), Size: uint32(info.Size()), Mtime: uint32(info.ModTime().Unix())})
	}
	return out, nil
}

func (fs *LocalFileSystem) OpenForRead(path string) (io.ReadCloser, error) {
	return os.Open(fs.resolve(path))
}

func (fs *LocalFileSystem) OpenForWrite(path string, mode uint32) (io.WriteCloser, error) {
	p := fs.resolve(path)
	if parent := filepath.Dir(p); parent != "" {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(mode&0o777))
	if err != nil {
		return nil, err
	}
	_ = os.Chmod(p, os.FileMode(mode&0o7777))
	return f, nil
}

func (fs *LocalFileSystem) SetMtime(path string, mtime uint32) error {
	p := fs.resolve(path)
	t := time.Unix(int64(mtime), 0)
	return os.Chtimes(p, t, t)
}

func (fs *LocalFileSystem) Makedirs(path string) error {
	return os.MkdirAll(fs.resolve(path), 0o755)
}

// MemoryFileSystem is an in-memory file tree, for tests and sandboxed
// embedders that want no disk access.
type MemoryFileSystem struct {
	mu   sync.Mutex
	root *memNode
}

const (
	modeDir  uint32 = 0o040000
	modeFile uint32 = 0o100000
)

type memNode struct {
	mode     uint32
	mtime    uint32
	data     []byte
	children map[string]*memNode
}

// NewMemoryFileSystem returns an empty in-memory file system with a root
// directory present.
func NewMemoryFileSystem() *MemoryFileSystem {
	return &MemoryFileSystem{root: &memNode{mode: modeDir | 0o755, children: map[string]*memNode{}}}
}

func splitPath(path string) []string {
	path = strings.ReplaceAll(path, "\\", "/")
	path = strings.Trim(path, "/")
	if path == "" || path == "." {
		return nil
	}
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" && p != "." {
			parts = append(parts, p)
		}
	}
	return parts
}

func (fs *MemoryFileSystem) traverse(path string, createMissing bool) (*memNode, error) {
	parts := splitPath(path)
	cur := fs.root
	for _, part := range parts {
		if cur.children == nil {
			return nil, fmt.Errorf("not a directory")
		}
		child, ok := cur.children[part]
		if !ok {
			if !createMissing {
				return nil, os.ErrNotExist
			}
			child = &memNode{mode: modeDir | 0o755, children: map[string]*memNode{}}
			cur.children[part] = child
		}
		cur = child
	}
	return cur, nil
}

func (fs *MemoryFileSystem) parent(path string) (*memNode, string, error) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return nil, "", fmt.Errorf("cannot get parent of root")
	}
	name := parts[len(parts)-1]
	dir, err := fs.traverse(strings.Join(parts[:len(parts)-1], "/"), true)
	if err != nil {
		return nil, "", err
	}
	return dir, name, nil
}

func (fs *MemoryFileSystem) Stat(path string) (FileStat, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	node, err := fs.traverse(path, false)
	if err != nil {
		return FileStat{}, nil
	}
	return FileStat{Mode: node.mode, Size: uint32(len(node.data)), Mtime: node.mtime}, nil
}

func (fs *MemoryFileSystem) Iterdir(path string) ([]Dirent, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	node, err := fs.traverse(path, false)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(node.children))
	for name := range node.children {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Dirent, 0, len(names))
	for _, name := range names {
		child := node.children[name]
		out = append(out, Dirent{Name: name, Mode: child.mode, Size: uint32(len(child.data)), Mtime: child.mtime})
	}
	return out, nil
}

func (fs *MemoryFileSystem) OpenForRead(path string) (io.ReadCloser, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	node, err := fs.traverse(path, false)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(newMemReader(node.data)), nil
}

type memReader struct{ data []byte }

func newMemReader(data []byte) *memReader { return &memReader{data: data} }

func (r *memReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func (fs *MemoryFileSystem) OpenForWrite(path string, mode uint32) (io.WriteCloser, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	dir, name, err := fs.parent(path)
	if err != nil {
		return nil, err
	}
	node, exists := dir.children[name]
	if !exists {
		node = &memNode{mode: modeFile | (mode & 0o777)}
		dir.children[name] = node
	} else {
		node.mode = modeFile | (mode & 0o777)
	}
	return &memWriter{fs: fs, node: node}, nil
}

type memWriter struct {
	fs   *MemoryFileSystem
	node *memNode
	buf  []byte
}

func (w *memWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *memWriter) Close() error {
	w.fs.mu.Lock()
	defer w.fs.mu.Unlock()
	w.node.data = w.buf
	return nil
}

func (fs *MemoryFileSystem) SetMtime(path string, mtime uint32) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	node, err := fs.traverse(path, false)
	if err != nil {
		return err
	}
	node.mtime = mtime
	return nil
}

func (fs *MemoryFileSystem) Makedirs(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	_, err := fs.traverse(path, true)
	return err
}
