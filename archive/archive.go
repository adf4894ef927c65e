// Package archive reads Bethesda BSA archives.
//
// Three layouts are supported: version 103 (Oblivion), 104 (Skyrim, Fallout 3
// and New Vegas) and 105 (Skyrim Special Edition). An archive is a fixed
// 36-byte header, a folder record per folder, a block per folder holding its
// name and file records, the file names, and then the file data.
//
// Compressed entries carry the uncompressed size as a u32 followed by a zlib
// stream (103, 104) or an LZ4 frame (105). Archives flagged with embedded
// names prefix every entry with its full path, which Extract skips.
//
// Example:
//
//	a, err := archive.Open("Skyrim - Misc.bsa")
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//	data, err := a.Extract(`meshes\clutter\gem.nif`)
package archive

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/arloliu/espcodec/compress"
	"github.com/arloliu/espcodec/endian"
	"github.com/arloliu/espcodec/errs"
	"github.com/arloliu/espcodec/format"
	"github.com/arloliu/espcodec/game"
	"github.com/arloliu/espcodec/stream"
	"github.com/pkg/errors"
)

// Separator joins folder and file names in archive paths.
const Separator = `\`

const (
	headerSize = 36

	flagFolderNames = 0x1
	flagFileNames   = 0x2
	flagCompressed  = 0x4
	flagEmbedNames  = 0x100

	sizeToggle = 0x40000000
	sizeFlags  = 0xC0000000

	folderRecordSize   = 16
	folderRecordSizeSE = 24
	fileRecordSize     = 16
)

var magic = [4]byte{'B', 'S', 'A', 0}

// Header is the fixed archive header.
type Header struct {
	Version           uint32
	Offset            uint32
	Flags             uint32
	FolderCount       uint32
	FileCount         uint32
	FolderNamesLength uint32
	FileNamesLength   uint32
	FileFlags         uint32
}

// IsCompressed reports whether entries are compressed by default.
func (h Header) IsCompressed() bool {
	return h.Flags&flagCompressed != 0
}

// EmbedsNames reports whether entries are prefixed with their path. Version
// 103 uses the bit for something else.
func (h Header) EmbedsNames() bool {
	return h.Version != game.ArchiveOblivion && h.Flags&flagEmbedNames != 0
}

// File is one archive entry.
type File struct {
	Path   string
	Hash   uint64
	Offset uint32

	size uint32 // stored size and compression toggle
}

// StoredSize returns the size of the entry's data in the archive.
func (f File) StoredSize() uint32 {
	return f.size &^ sizeFlags
}

// Toggled reports whether the entry inverts the archive's compression default.
func (f File) Toggled() bool {
	return f.size&sizeToggle != 0
}

// Archive is an opened BSA.
//
// Extract is safe for concurrent use when the underlying reader is.
type Archive struct {
	name   string
	r      io.ReaderAt
	size   int64
	closer io.Closer
	header Header
	files  []File
	index  map[string]int
	codec  compress.Decompressor
}

// Open opens the archive at path. The file stays open until Close.
func Open(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open archive %s", path)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "stat archive %s", path)
	}
	a, err := New(filepath.Base(path), f, info.Size())
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	a.closer = f

	return a, nil
}

// New reads the directory of an archive of size bytes held by r. No block
// is read or allocated unless it fits in size.
//
// Returns:
//   - *Archive: Archive ready for extraction
//   - error: errs.ErrTruncatedRead if size is smaller than the header,
//     errs.ErrInvalidArchive for a bad header or a directory whose counts or
//     lengths run past the end of the archive
func New(name string, r io.ReaderAt, size int64) (*Archive, error) {
	a := &Archive{name: name, r: r, size: size}
	c := a.cursor(0)
	if err := a.readHeader(c); err != nil {
		return nil, err
	}
	if err := a.readDirectory(c); err != nil {
		return nil, err
	}

	return a, nil
}

func (a *Archive) invalid(offset int64, format string, args ...any) error {
	return errs.New(errs.ErrInvalidArchive, a.name, "BSA", offset, format, args...)
}

func (a *Archive) cursor(off int64) *cursor {
	return &cursor{name: a.name, r: a.r, off: off, size: a.size}
}

func (a *Archive) readHeader(c *cursor) error {
	if c.remaining() < headerSize {
		return errs.New(errs.ErrTruncatedRead, a.name, "BSA header", 0, "need %d bytes, got %d", headerSize, max(a.size, 0))
	}
	b, err := c.read(headerSize, "BSA header")
	if err != nil {
		return err
	}
	if [4]byte(b[0:4]) != magic {
		return a.invalid(0, "bad magic %q", b[0:4])
	}

	engine := endian.GetLittleEndianEngine()
	a.header = Header{
		Version:           engine.Uint32(b[4:]),
		Offset:            engine.Uint32(b[8:]),
		Flags:             engine.Uint32(b[12:]),
		FolderCount:       engine.Uint32(b[16:]),
		FileCount:         engine.Uint32(b[20:]),
		FolderNamesLength: engine.Uint32(b[24:]),
		FileNamesLength:   engine.Uint32(b[28:]),
		FileFlags:         engine.Uint32(b[32:]),
	}

	var ct format.CompressionType
	switch a.header.Version {
	case game.ArchiveOblivion, game.ArchiveSkyrim:
		ct = format.CompressionZlib
	case game.ArchiveSkyrimSE:
		ct = format.CompressionLZ4
	default:
		return a.invalid(4, "unsupported version %d", a.header.Version)
	}
	codec, err := compress.GetCodec(ct)
	if err != nil {
		return err
	}
	a.codec = codec
	if a.header.Offset != headerSize {
		return a.invalid(8, "folder records at %d, expected %d", a.header.Offset, headerSize)
	}
	if a.header.Flags&flagFileNames == 0 {
		return a.invalid(12, "archive has no file names")
	}

	return nil
}

type folder struct {
	hash  uint64
	count uint32
}

func (a *Archive) readDirectory(c *cursor) error {
	engine := endian.GetLittleEndianEngine()
	recSize := folderRecordSize
	if a.header.Version == game.ArchiveSkyrimSE {
		recSize = folderRecordSizeSE
	}

	b, err := c.read(int(a.header.FolderCount)*recSize, "folder records")
	if err != nil {
		return err
	}
	folders := make([]folder, a.header.FolderCount)
	total := 0
	for i := range folders {
		rec := b[i*recSize:]
		folders[i] = folder{hash: engine.Uint64(rec), count: engine.Uint32(rec[8:])}
		total += int(folders[i].count)
	}
	if total != int(a.header.FileCount) {
		return a.invalid(headerSize, "folders hold %d files, header says %d", total, a.header.FileCount)
	}
	if int64(total)*fileRecordSize > c.remaining() {
		return a.invalid(c.off, "%d file records run past the end of the archive", total)
	}

	text := stream.DefaultTextCodec()
	paths := make([]string, 0, total)
	a.files = make([]File, 0, total)
	for _, f := range folders {
		dir := ""
		if a.header.Flags&flagFolderNames != 0 {
			n, err := c.read(1, "folder name")
			if err != nil {
				return err
			}
			name, err := c.read(int(n[0]), "folder name")
			if err != nil {
				return err
			}
			dir = text.Decode(trimNull(name))
		}

		recs, err := c.read(int(f.count)*fileRecordSize, "file records")
		if err != nil {
			return err
		}
		for i := 0; i < int(f.count); i++ {
			rec := recs[i*fileRecordSize:]
			a.files = append(a.files, File{
				Hash:   engine.Uint64(rec),
				size:   engine.Uint32(rec[8:]),
				Offset: engine.Uint32(rec[12:]),
			})
			paths = append(paths, dir)
		}
	}

	names, err := c.read(int(a.header.FileNamesLength), "file names")
	if err != nil {
		return err
	}
	split := strings.Split(string(trimNull(names)), "\x00")
	if total > 0 && len(split) < total {
		return a.invalid(c.off, "%d file names for %d files", len(split), total)
	}

	a.index = make(map[string]int, total)
	for i := range a.files {
		name := text.Decode([]byte(split[i]))
		if paths[i] != "" {
			name = paths[i] + Separator + name
		}
		a.files[i].Path = name
		a.index[normalize(name)] = i
	}

	return nil
}

// Name returns the archive's file name.
func (a *Archive) Name() string {
	return a.name
}

// Header returns the archive header.
func (a *Archive) Header() Header {
	return a.header
}

// Files returns the entries in directory order.
func (a *Archive) Files() []File {
	return a.files
}

// Lookup finds an entry by path. Paths match case-insensitively and with
// either slash.
func (a *Archive) Lookup(path string) (File, bool) {
	i, ok := a.index[normalize(path)]
	if !ok {
		return File{}, false
	}

	return a.files[i], true
}

// CheckProfile verifies that the archive uses the layout of the game.
func (a *Archive) CheckProfile(p *game.Profile) error {
	if p.ArchiveVersion != a.header.Version {
		return a.invalid(4, "version %d archive, %s uses %d", a.header.Version, p.Name, p.ArchiveVersion)
	}

	return nil
}

// Extract returns the uncompressed content of an entry.
//
// Returns:
//   - []byte: Entry data
//   - error: errs.ErrFileNotFound for an unknown path, errs.ErrInvalidArchive
//     for an entry past the end of the archive, errs.ErrSizeMismatch for
//     damaged entries
func (a *Archive) Extract(path string) ([]byte, error) {
	f, ok := a.Lookup(path)
	if !ok {
		return nil, errs.New(errs.ErrFileNotFound, a.name, path, -1, "no such entry")
	}

	data, err := a.cursor(int64(f.Offset)).read(int(f.StoredSize()), f.Path)
	if err != nil {
		return nil, err
	}
	if a.header.EmbedsNames() {
		if len(data) == 0 || int(data[0]) >= len(data) {
			return nil, errs.New(errs.ErrSizeMismatch, a.name, f.Path, int64(f.Offset), "embedded name overruns the entry")
		}
		data = data[1+int(data[0]):]
	}
	if a.header.IsCompressed() == f.Toggled() {
		return data, nil
	}

	out, err := compress.UnpackSized(a.codec, data)
	if err != nil {
		return nil, errs.WithFile(errors.Wrapf(err, "extract %s", f.Path), a.name)
	}

	return out, nil
}

// ExtractTo writes entries below dir, recreating their folders. Without
// paths every entry is extracted.
func (a *Archive) ExtractTo(dir string, paths ...string) error {
	if len(paths) == 0 {
		for _, f := range a.files {
			paths = append(paths, f.Path)
		}
	}

	for _, path := range paths {
		f, ok := a.Lookup(path)
		if !ok {
			return errs.New(errs.ErrFileNotFound, a.name, path, -1, "no such entry")
		}
		rel := filepath.FromSlash(strings.ReplaceAll(f.Path, Separator, "/"))
		if !filepath.IsLocal(rel) {
			return a.invalid(int64(f.Offset), "entry path %q leaves the target folder", f.Path)
		}

		data, err := a.Extract(f.Path)
		if err != nil {
			return err
		}
		target := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return errors.Wrapf(err, "create folder for %s", f.Path)
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return errors.Wrapf(err, "write %s", target)
		}
	}

	return nil
}

// Close closes the file opened by Open.
func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}

	return a.closer.Close()
}

func normalize(path string) string {
	return strings.ToLower(strings.ReplaceAll(path, "/", Separator))
}

func trimNull(b []byte) []byte {
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}

	return b
}

// cursor reads consecutive blocks from an io.ReaderAt of a known size.
type cursor struct {
	name string
	r    io.ReaderAt
	off  int64
	size int64
}

func (c *cursor) remaining() int64 {
	return max(c.size-c.off, 0)
}

// read returns the next n bytes. Lengths come from the archive itself, so
// n is checked against the remaining size before anything is allocated.
func (c *cursor) read(n int, ctx string) ([]byte, error) {
	if n < 0 || int64(n) > c.remaining() {
		return nil, errs.New(errs.ErrInvalidArchive, c.name, ctx, c.off, "%d bytes past the end of a %d byte archive", n, c.size)
	}
	b := make([]byte, n)
	got, err := c.r.ReadAt(b, c.off)
	if got < n {
		if err == nil || errors.Is(err, io.EOF) {
			return nil, errs.New(errs.ErrTruncatedRead, c.name, ctx, c.off, "need %d bytes, got %d", n, got)
		}

		return nil, errors.Wrapf(err, "read %s", ctx)
	}
	c.off += int64(n)

	return b, nil
}
