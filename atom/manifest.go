// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package atom

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/bemafred/rdfq/compr"
)

// Manifest is the on-disk record of a Table's id assignment: a sequence
// of term byte strings written in interning order (an entry's id is its
// position in the sequence, not stored). Replaying the
// manifest in order through Intern reconstructs the exact same id
// assignment, which is required for the on-disk quad indexes (keyed by
// atom id) to remain valid across a restart.
//
// The file format is a flat stream of framed records:
//
//	uint32 length (big endian) | length bytes of term data
//
// optionally zstd-compressed as a single block (via compr.Compression)
// and preceded by the 9-byte header that frameManifest writes, so that a
// manifest can be read back with nothing more than a
// length-prefixed scan over the decompressed bytes. Manifest persistence
// goes through afero.Fs so tests can use an in-memory filesystem and
// production deployments an *afero.OsFs.
type Manifest struct {
	fs   afero.Fs
	path string
}

// NewManifest returns a Manifest bound to a path on fs.
func NewManifest(fs afero.Fs, path string) *Manifest {
	return &Manifest{fs: fs, path: path}
}

// Commit atomically (write-rename) persists the full contents of t to
// the manifest path, fsyncing before the rename so a crash never leaves
// a half-written manifest visible at the final path.
func (m *Manifest) Commit(t *Table, compress bool) error {
	raw := encodeManifest(t)

	out := raw
	if compress {
		c := compr.Compression("zstd")
		out = c.Compress(raw, nil)
	}

	tmp := m.path + ".tmp"
	f, err := m.fs.Create(tmp)
	if err != nil {
		return errors.Wrap(err, "atom: create manifest tmp file")
	}
	if _, err := f.Write(frameManifest(out, compress)); err != nil {
		f.Close()
		return errors.Wrap(err, "atom: write manifest")
	}
	if syncer, ok := f.(interface{ Sync() error }); ok {
		if err := syncer.Sync(); err != nil {
			f.Close()
			return errors.Wrap(err, "atom: fsync manifest tmp file")
		}
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "atom: close manifest tmp file")
	}
	if err := m.fs.Rename(tmp, m.path); err != nil {
		return errors.Wrap(err, "atom: publish manifest")
	}
	return nil
}

// encodeManifest lays out t's interned terms, in id order, as a stream
// of length-prefixed records.
func encodeManifest(t *Table) []byte {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var buf bytes.Buffer
	var hdr [4]byte
	for _, s := range t.ids {
		b := t.bytesLocked(s)
		binary.BigEndian.PutUint32(hdr[:], uint32(len(b)))
		buf.Write(hdr[:])
		buf.Write(b)
	}
	return buf.Bytes()
}

// frameManifest prepends a one-byte compression flag and an 8-byte
// big-endian length of payload as written (the compressed length when
// compressed is set). Load uses the flag to decide whether to
// decompress and skips the length field.
func frameManifest(payload []byte, compressed bool) []byte {
	out := make([]byte, 9+len(payload))
	if compressed {
		out[0] = 1
	}
	binary.BigEndian.PutUint64(out[1:9], uint64(len(payload)))
	copy(out[9:], payload)
	return out
}

// Load reconstructs a Table by replaying a manifest written by Commit,
// in the original interning order, so the resulting id assignment is
// identical to the one that produced the manifest.
func (m *Manifest) Load() (*Table, error) {
	f, err := m.fs.Open(m.path)
	if err != nil {
		return nil, errors.Wrap(err, "atom: open manifest")
	}
	defer f.Close()

	all, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrap(err, "atom: read manifest")
	}
	if len(all) < 9 {
		return nil, errors.New("atom: truncated manifest header")
	}
	compressed := all[0] == 1
	payload := all[9:]

	if compressed {
		payload, err = compr.DecodeZstd(payload, nil)
		if err != nil {
			return nil, errors.Wrap(err, "atom: decompress manifest")
		}
	}

	t := New()
	var off int
	for off < len(payload) {
		if off+4 > len(payload) {
			return nil, errors.New("atom: truncated manifest frame header")
		}
		n := int(binary.BigEndian.Uint32(payload[off : off+4]))
		off += 4
		if off+n > len(payload) {
			return nil, errors.New("atom: truncated manifest frame body")
		}
		t.Intern(payload[off : off+n])
		off += n
	}
	return t, nil
}
