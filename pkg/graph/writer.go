package graph

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"unsafe"
)

// WriteBinary serializes a finalized BuildGraph to the compact CSR binary
// format (always v2, since a BuildGraph always carries name/highway
// tables) using an atomic temp-file-then-rename write and a trailing
// CRC32 computed over the whole body, the same pattern the original
// binary writer used for its own format.
func WriteBinary(path string, b *BuildGraph) error {
	b.Finalize()

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	cw := &crc32Writer{w: f, hash: crc32.NewIEEE()}

	var header [headerSize]byte
	copy(header[0:4], magicBytes)
	binary.LittleEndian.PutUint32(header[4:8], version2)
	binary.LittleEndian.PutUint32(header[8:12], b.NumNodes())
	binary.LittleEndian.PutUint32(header[12:16], uint32(len(b.AdjTargets)))
	if _, err := cw.Write(header[:]); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	if err := writeInt64Slice(cw, b.NodeIDs); err != nil {
		return fmt.Errorf("write node_ids: %w", err)
	}
	if err := writeFloat32Slice(cw, b.NodeLat); err != nil {
		return fmt.Errorf("write node_lats: %w", err)
	}
	if err := writeFloat32Slice(cw, b.NodeLon); err != nil {
		return fmt.Errorf("write node_lons: %w", err)
	}
	if err := writeInt32Slice(cw, b.AdjOffsets); err != nil {
		return fmt.Errorf("write adj_offsets: %w", err)
	}
	if err := writeInt32Slice(cw, b.AdjTargets); err != nil {
		return fmt.Errorf("write adj_targets: %w", err)
	}
	if err := writeFloat32Slice(cw, b.AdjWeights); err != nil {
		return fmt.Errorf("write adj_weights: %w", err)
	}
	if err := writeUint16Slice(cw, b.EdgeNameIdx); err != nil {
		return fmt.Errorf("write edge_name_indices: %w", err)
	}
	if err := writeUint8Slice(cw, b.EdgeHighwayIdx); err != nil {
		return fmt.Errorf("write edge_highway_indices: %w", err)
	}
	if err := writeStringTable(cw, b.NameTable); err != nil {
		return fmt.Errorf("write name_table: %w", err)
	}
	if err := writeStringTable(cw, b.HighwayTable); err != nil {
		return fmt.Errorf("write highway_table: %w", err)
	}

	checksum := cw.hash.Sum32()
	if err := binary.Write(f, binary.LittleEndian, checksum); err != nil {
		return fmt.Errorf("write CRC32: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// WriteBinaryV1 serializes a finalized BuildGraph omitting per-edge
// name/highway metadata, for pipelines with no street-level tagging to
// report. Readers built against this format carry no navigation
// instructions (HasMetadata reports false).
func WriteBinaryV1(path string, b *BuildGraph) error {
	b.Finalize()

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	cw := &crc32Writer{w: f, hash: crc32.NewIEEE()}

	var header [headerSize]byte
	copy(header[0:4], magicBytes)
	binary.LittleEndian.PutUint32(header[4:8], version1)
	binary.LittleEndian.PutUint32(header[8:12], b.NumNodes())
	binary.LittleEndian.PutUint32(header[12:16], uint32(len(b.AdjTargets)))
	if _, err := cw.Write(header[:]); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	if err := writeInt64Slice(cw, b.NodeIDs); err != nil {
		return fmt.Errorf("write node_ids: %w", err)
	}
	if err := writeFloat32Slice(cw, b.NodeLat); err != nil {
		return fmt.Errorf("write node_lats: %w", err)
	}
	if err := writeFloat32Slice(cw, b.NodeLon); err != nil {
		return fmt.Errorf("write node_lons: %w", err)
	}
	if err := writeInt32Slice(cw, b.AdjOffsets); err != nil {
		return fmt.Errorf("write adj_offsets: %w", err)
	}
	if err := writeInt32Slice(cw, b.AdjTargets); err != nil {
		return fmt.Errorf("write adj_targets: %w", err)
	}
	if err := writeFloat32Slice(cw, b.AdjWeights); err != nil {
		return fmt.Errorf("write adj_weights: %w", err)
	}

	checksum := cw.hash.Sum32()
	if err := binary.Write(f, binary.LittleEndian, checksum); err != nil {
		return fmt.Errorf("write CRC32: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

func writeStringTable(w io.Writer, table []string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(table))); err != nil {
		return err
	}
	for _, s := range table {
		if err := binary.Write(w, binary.LittleEndian, uint16(len(s))); err != nil {
			return err
		}
		if _, err := io.WriteString(w, s); err != nil {
			return err
		}
	}
	return nil
}

// crc32Writer tees every write through a running CRC32, mirroring the
// original binary format's trailer mechanism.
type crc32Writer struct {
	w    io.Writer
	hash interface {
		io.Writer
		Sum32() uint32
	}
}

func (cw *crc32Writer) Write(p []byte) (int, error) {
	cw.hash.Write(p)
	return cw.w.Write(p)
}

// Zero-copy slice writers, mirroring the unsafe.Slice reinterpret idiom
// used for reads in compact.go and for the KD-tree cache.

func writeInt64Slice(w io.Writer, s []int64) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*8)
	_, err := w.Write(b)
	return err
}

func writeFloat32Slice(w io.Writer, s []float32) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
	_, err := w.Write(b)
	return err
}

func writeInt32Slice(w io.Writer, s []int32) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
	_, err := w.Write(b)
	return err
}

func writeUint16Slice(w io.Writer, s []uint16) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*2)
	_, err := w.Write(b)
	return err
}

func writeUint8Slice(w io.Writer, s []uint8) error {
	if len(s) == 0 {
		return nil
	}
	_, err := w.Write(s)
	return err
}
