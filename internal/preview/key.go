// Package preview caches rendered image previews and produces them on a
// bounded worker pool.
package preview

import (
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Request identifies exactly what must be rendered.
type Request struct {
	Path string
	// Cols and Rows are the target size in terminal cells.
	Cols, Rows int
	// Kind is the converter kind; ConfigVersion the snapshot version.
	// The scheduler fills both from the snapshot current at Schedule time.
	Kind          string
	ConfigVersion uint64
}

// Stat is the part of a file's metadata that invalidates previews.
type Stat struct {
	ModTime time.Time
	Size    int64
}

// FileSource reports file metadata.
type FileSource interface {
	Stat(path string) (Stat, error)
}

// OSFiles reads metadata from the local filesystem.
type OSFiles struct{}

func (OSFiles) Stat(path string) (Stat, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Stat{}, err
	}
	if fi.IsDir() {
		return Stat{}, fmt.Errorf("%s: is a directory", path)
	}
	return Stat{ModTime: fi.ModTime(), Size: fi.Size()}, nil
}

// Key identifies a rendered artifact. Equal keys want byte-identical output.
type Key uint64

func (k Key) String() string {
	return fmt.Sprintf("%016x", uint64(k))
}

// DeriveKey hashes the request and file metadata. Variable-length fields are
// length-prefixed and integers are little-endian, so the key is the same on
// every run and platform.
func DeriveKey(req Request, st Stat) Key {
	d := xxhash.New()
	var buf [8]byte

	writeUint := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = d.Write(buf[:])
	}
	writeString := func(s string) {
		writeUint(uint64(len(s)))
		_, _ = d.WriteString(s)
	}

	writeString(req.Path)
	writeUint(uint64(st.ModTime.UnixNano()))
	writeUint(uint64(st.Size))
	writeUint(uint64(req.Cols))
	writeUint(uint64(req.Rows))
	writeString(req.Kind)
	writeUint(req.ConfigVersion)

	return Key(d.Sum64())
}
