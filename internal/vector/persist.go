package vector

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// IDsSuffix is appended to the index path to name the ID sidecar file.
const IDsSuffix = ".ids"

const (
	indexMagic   uint32 = 0x58564853 // "SHVX"
	indexVersion uint16 = 2
	idsVersion          = 1

	flagZstd uint16 = 1 << 0
)

// indexHeader is the fixed-size prefix of the index file. It is followed by a uint64 payload
// length, the payload (count*dim little-endian float32, zstd-compressed when flagZstd is set),
// the count slot IDs as little-endian int64 and a CRC32-IEEE of the uncompressed payload
// followed by the ID bytes.
//
// The index file alone is the committed state: it is replaced by one atomic rename. The .ids
// sidecar mirrors its slot IDs for external tools and is written afterwards, so it may lag.
type indexHeader struct {
	Magic   uint32
	Version uint16
	Flags   uint16
	Dim     uint32
	Count   uint32
	Stamp   uint64
}

// idsFile is the msgpack layout of the sidecar. Stamp names the index save it mirrors.
type idsFile struct {
	Version int     `msgpack:"version"`
	Stamp   uint64  `msgpack:"stamp"`
	Dim     int     `msgpack:"dim"`
	IDs     []int64 `msgpack:"ids"`
}

// snapshotFiles is the decoded content of an index file.
type snapshotFiles struct {
	ids   []int64
	data  []float32
	stamp uint64
}

// savePair commits the index file through an atomic rename, then refreshes the sidecar.
func savePair(path string, dim int, ids []int64, data []float32, stamp uint64, compress bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	err := writeFileAtomic(path, func(w io.Writer) error {
		return encodeIndex(w, dim, ids, data, stamp, compress)
	})
	if err != nil {
		return fmt.Errorf("write index file: %w", err)
	}
	sidecar, err := msgpack.Marshal(&idsFile{Version: idsVersion, Stamp: stamp, Dim: dim, IDs: ids})
	if err != nil {
		return fmt.Errorf("encode id sidecar: %w", err)
	}
	err = writeFileAtomic(path+IDsSuffix, func(w io.Writer) error {
		_, err := w.Write(sidecar)
		return err
	})
	if err != nil {
		return fmt.Errorf("write id sidecar: %w", err)
	}
	return nil
}

// loadPair reads the store at path. ok is false when neither file exists. A sidecar from an
// older or newer save than the index is ignored; one that claims the same save but lists
// different IDs, or cannot be decoded, is corruption.
func loadPair(path string, dim int) (snap *snapshotFiles, ok bool, err error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		idsExists, statErr := fileExists(path + IDsSuffix)
		if statErr != nil {
			return nil, false, statErr
		}
		if idsExists {
			return nil, false, corrupt(path, "index file missing next to %s", path+IDsSuffix)
		}
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read index file: %w", err)
	}
	hdr, ids, data, err := decodeIndex(raw)
	if err != nil {
		return nil, false, &CorruptStoreError{Path: path, Err: err}
	}
	if int(hdr.Dim) != dim {
		return nil, false, &CorruptStoreError{Path: path, Err: &DimensionMismatchError{Got: int(hdr.Dim), Want: dim}}
	}

	rawIDs, err := os.ReadFile(path + IDsSuffix)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, false, fmt.Errorf("read id sidecar: %w", err)
	default:
		if err := checkSidecar(rawIDs, hdr.Stamp, ids); err != nil {
			return nil, false, &CorruptStoreError{Path: path, Err: err}
		}
	}
	return &snapshotFiles{ids: ids, data: data, stamp: hdr.Stamp}, true, nil
}

func checkSidecar(raw []byte, stamp uint64, ids []int64) error {
	var side idsFile
	if err := msgpack.Unmarshal(raw, &side); err != nil {
		return fmt.Errorf("decode id sidecar: %w", err)
	}
	if side.Version != idsVersion {
		return fmt.Errorf("unsupported id sidecar version %d", side.Version)
	}
	if side.Stamp != stamp {
		return nil
	}
	if !slices.Equal(side.IDs, ids) {
		return errSidecarMismatch
	}
	return nil
}

func encodeIndex(w io.Writer, dim int, ids []int64, data []float32, stamp uint64, compress bool) error {
	raw := float32SliceToBytes(data)
	idBytes := int64SliceToBytes(ids)
	sum := crc32.Update(crc32.ChecksumIEEE(raw), crc32.IEEETable, idBytes)
	hdr := indexHeader{
		Magic:   indexMagic,
		Version: indexVersion,
		Dim:     uint32(dim),
		Count:   uint32(len(ids)),
		Stamp:   stamp,
	}
	payload := raw
	if compress {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return fmt.Errorf("create zstd encoder: %w", err)
		}
		payload = enc.EncodeAll(raw, nil)
		_ = enc.Close()
		hdr.Flags |= flagZstd
	}
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(payload))); err != nil {
		return fmt.Errorf("write payload length: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	if _, err := w.Write(idBytes); err != nil {
		return fmt.Errorf("write ids: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, sum); err != nil {
		return fmt.Errorf("write checksum: %w", err)
	}
	return nil
}

func decodeIndex(b []byte) (*indexHeader, []int64, []float32, error) {
	r := bytes.NewReader(b)
	var hdr indexHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, nil, nil, fmt.Errorf("read header: %w", err)
	}
	if hdr.Magic != indexMagic {
		return nil, nil, nil, fmt.Errorf("bad magic %#x", hdr.Magic)
	}
	if hdr.Version != indexVersion {
		return nil, nil, nil, fmt.Errorf("unsupported index version %d", hdr.Version)
	}
	if hdr.Dim == 0 {
		return nil, nil, nil, errors.New("zero dimension")
	}
	var payloadLen uint64
	if err := binary.Read(r, binary.LittleEndian, &payloadLen); err != nil {
		return nil, nil, nil, fmt.Errorf("read payload length: %w", err)
	}
	if payloadLen > uint64(r.Len()) {
		return nil, nil, nil, fmt.Errorf("payload length %d exceeds file size", payloadLen)
	}
	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, nil, nil, fmt.Errorf("read payload: %w", err)
	}
	idLen := uint64(hdr.Count) * 8
	if idLen > uint64(r.Len()) {
		return nil, nil, nil, fmt.Errorf("id list of %d bytes exceeds file size", idLen)
	}
	idBytes := make([]byte, idLen)
	if _, err := io.ReadFull(r, idBytes); err != nil {
		return nil, nil, nil, fmt.Errorf("read ids: %w", err)
	}
	var sum uint32
	if err := binary.Read(r, binary.LittleEndian, &sum); err != nil {
		return nil, nil, nil, fmt.Errorf("read checksum: %w", err)
	}
	if r.Len() != 0 {
		return nil, nil, nil, fmt.Errorf("%d trailing bytes", r.Len())
	}

	want := uint64(hdr.Count) * uint64(hdr.Dim) * 4
	raw := payload
	if hdr.Flags&flagZstd != 0 {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(want+64<<20))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create zstd decoder: %w", err)
		}
		raw, err = dec.DecodeAll(payload, nil)
		dec.Close()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("decompress payload: %w", err)
		}
	}
	if uint64(len(raw)) != want {
		return nil, nil, nil, fmt.Errorf("payload has %d bytes, expected %d", len(raw), want)
	}
	if crc32.Update(crc32.ChecksumIEEE(raw), crc32.IEEETable, idBytes) != sum {
		return nil, nil, nil, errors.New("checksum mismatch")
	}

	ids := bytesToInt64Slice(idBytes)
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return nil, nil, nil, fmt.Errorf("invalid photo id %d", id)
		}
		if _, dup := seen[id]; dup {
			return nil, nil, nil, fmt.Errorf("duplicate photo id %d", id)
		}
		seen[id] = struct{}{}
	}
	return &hdr, ids, bytesToFloat32Slice(raw), nil
}

// writeFileAtomic writes through a temp file in the target directory, syncs it and renames it
// over filename, so readers see either the old or the new content.
func writeFileAtomic(filename string, writeFunc func(io.Writer) error) error {
	dir := filepath.Dir(filename)
	tmp, err := os.CreateTemp(dir, filepath.Base(filename)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()
	_ = tmp.Chmod(0644)

	buf := bufio.NewWriterSize(tmp, 256*1024)
	if err := writeFunc(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, filename); err != nil {
		return err
	}
	tmpName = ""
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}

func int64SliceToBytes(s []int64) []byte {
	out := make([]byte, len(s)*8)
	for i, v := range s {
		binary.LittleEndian.PutUint64(out[i*8:(i+1)*8], uint64(v))
	}
	return out
}

func bytesToInt64Slice(b []byte) []int64 {
	out := make([]int64, len(b)/8)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(b[i*8 : (i+1)*8]))
	}
	return out
}
