package graph

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"unsafe"
)

const (
	magicBytes   = "CITYNET\x00"
	version      = uint32(1)
	maxCities    = 10_000_000
	maxEdges     = 50_000_000
	maxNameBytes = 1 << 30
)

// fileHeader is the binary snapshot header.
type fileHeader struct {
	Magic     [8]byte
	Version   uint32
	NumCities uint32
	NumEdges  uint32
	NameBytes uint32
}

// WriteSnapshot serializes city records to a binary file. The file is
// written to a temporary path and renamed into place once complete.
func WriteSnapshot(path string, records []CityRecord) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath) // no-op after a successful rename
	}()

	crcWriter := crc32Writer{w: f, hash: crc32.NewIEEE()}
	w := &crcWriter

	n := len(records)
	ids := make([]int64, n)
	lats := make([]float64, n)
	lons := make([]float64, n)
	nameLens := make([]uint32, n)
	firstOut := make([]uint32, n+1)
	var edgeTo, edgeWeight []int64
	var names []byte

	for i, rec := range records {
		ids[i] = rec.ID
		lats[i] = rec.Lat
		lons[i] = rec.Lon
		nameLens[i] = uint32(len(rec.Name))
		names = append(names, rec.Name...)
		for _, e := range rec.Edges {
			edgeTo = append(edgeTo, e.ToID)
			edgeWeight = append(edgeWeight, e.Weight)
		}
		firstOut[i+1] = uint32(len(edgeTo))
	}

	hdr := fileHeader{
		Version:   version,
		NumCities: uint32(n),
		NumEdges:  uint32(len(edgeTo)),
		NameBytes: uint32(len(names)),
	}
	copy(hdr.Magic[:], magicBytes)
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	if err := writeSlice(w, ids); err != nil {
		return fmt.Errorf("write IDs: %w", err)
	}
	if err := writeSlice(w, lats); err != nil {
		return fmt.Errorf("write Lat: %w", err)
	}
	if err := writeSlice(w, lons); err != nil {
		return fmt.Errorf("write Lon: %w", err)
	}
	if err := writeSlice(w, nameLens); err != nil {
		return fmt.Errorf("write name lengths: %w", err)
	}
	if _, err := w.Write(names); err != nil {
		return fmt.Errorf("write names: %w", err)
	}
	if err := writeSlice(w, firstOut); err != nil {
		return fmt.Errorf("write FirstOut: %w", err)
	}
	if err := writeSlice(w, edgeTo); err != nil {
		return fmt.Errorf("write EdgeTo: %w", err)
	}
	if err := writeSlice(w, edgeWeight); err != nil {
		return fmt.Errorf("write Weight: %w", err)
	}

	// CRC32 trailer covers everything before it.
	if err := binary.Write(f, binary.LittleEndian, crcWriter.hash.Sum32()); err != nil {
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

// ReadSnapshot deserializes city records written by WriteSnapshot.
func ReadSnapshot(path string) ([]CityRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	crcReader := crc32Reader{r: f, hash: crc32.NewIEEE()}
	r := &crcReader

	var hdr fileHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(hdr.Magic[:]) != magicBytes {
		return nil, fmt.Errorf("invalid magic bytes: %q", hdr.Magic)
	}
	if hdr.Version != version {
		return nil, fmt.Errorf("unsupported version: %d", hdr.Version)
	}
	if hdr.NumCities > maxCities {
		return nil, fmt.Errorf("NumCities %d exceeds limit %d", hdr.NumCities, maxCities)
	}
	if hdr.NumEdges > maxEdges {
		return nil, fmt.Errorf("NumEdges %d exceeds limit %d", hdr.NumEdges, maxEdges)
	}
	if hdr.NameBytes > maxNameBytes {
		return nil, fmt.Errorf("name block %d bytes exceeds limit %d", hdr.NameBytes, maxNameBytes)
	}

	n := int(hdr.NumCities)
	ids, err := readSlice[int64](r, n)
	if err != nil {
		return nil, fmt.Errorf("read IDs: %w", err)
	}
	lats, err := readSlice[float64](r, n)
	if err != nil {
		return nil, fmt.Errorf("read Lat: %w", err)
	}
	lons, err := readSlice[float64](r, n)
	if err != nil {
		return nil, fmt.Errorf("read Lon: %w", err)
	}
	nameLens, err := readSlice[uint32](r, n)
	if err != nil {
		return nil, fmt.Errorf("read name lengths: %w", err)
	}
	names := make([]byte, hdr.NameBytes)
	if _, err := io.ReadFull(r, names); err != nil {
		return nil, fmt.Errorf("read names: %w", err)
	}
	firstOut, err := readSlice[uint32](r, n+1)
	if err != nil {
		return nil, fmt.Errorf("read FirstOut: %w", err)
	}
	edgeTo, err := readSlice[int64](r, int(hdr.NumEdges))
	if err != nil {
		return nil, fmt.Errorf("read EdgeTo: %w", err)
	}
	edgeWeight, err := readSlice[int64](r, int(hdr.NumEdges))
	if err != nil {
		return nil, fmt.Errorf("read Weight: %w", err)
	}

	expectedCRC := crcReader.hash.Sum32()
	var storedCRC uint32
	if err := binary.Read(f, binary.LittleEndian, &storedCRC); err != nil {
		return nil, fmt.Errorf("read CRC32: %w", err)
	}
	if storedCRC != expectedCRC {
		return nil, fmt.Errorf("CRC32 mismatch: stored=%08x computed=%08x", storedCRC, expectedCRC)
	}

	if err := validateOffsets(firstOut, hdr.NumCities, hdr.NumEdges); err != nil {
		return nil, fmt.Errorf("edge offsets invalid: %w", err)
	}

	records := make([]CityRecord, n)
	var nameOff uint64
	for i := range records {
		end := nameOff + uint64(nameLens[i])
		if end > uint64(len(names)) {
			return nil, fmt.Errorf("name of city %d overruns name block", ids[i])
		}
		rec := CityRecord{
			ID:   ids[i],
			Name: string(names[nameOff:end]),
			Lat:  lats[i],
			Lon:  lons[i],
		}
		nameOff = end
		if start, stop := firstOut[i], firstOut[i+1]; stop > start {
			rec.Edges = make([]CityEdge, 0, stop-start)
			for e := start; e < stop; e++ {
				rec.Edges = append(rec.Edges, CityEdge{ToID: edgeTo[e], Weight: edgeWeight[e]})
			}
		}
		records[i] = rec
	}
	return records, nil
}

// validateOffsets checks the per-city edge offset table.
func validateOffsets(firstOut []uint32, numCities, numEdges uint32) error {
	if uint32(len(firstOut)) != numCities+1 {
		return fmt.Errorf("FirstOut length %d != NumCities+1 %d", len(firstOut), numCities+1)
	}
	if firstOut[0] != 0 {
		return fmt.Errorf("FirstOut[0]=%d, want 0", firstOut[0])
	}
	if firstOut[numCities] != numEdges {
		return fmt.Errorf("FirstOut[NumCities]=%d != NumEdges %d", firstOut[numCities], numEdges)
	}
	for i := uint32(1); i <= numCities; i++ {
		if firstOut[i] < firstOut[i-1] {
			return fmt.Errorf("FirstOut not monotonic at %d: %d < %d", i, firstOut[i], firstOut[i-1])
		}
	}
	return nil
}

// Zero-copy I/O helpers using unsafe.Slice.

type fixedSize interface {
	~uint32 | ~int64 | ~float64
}

func writeSlice[T fixedSize](w io.Writer, s []T) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(s[0])))
	_, err := w.Write(b)
	return err
}

func readSlice[T fixedSize](r io.Reader, n int) ([]T, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]T, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*int(unsafe.Sizeof(s[0])))
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

// CRC32 wrapping writers/readers.

type crc32Hash interface {
	Write([]byte) (int, error)
	Sum32() uint32
}

type crc32Writer struct {
	w    io.Writer
	hash crc32Hash
}

func (cw *crc32Writer) Write(p []byte) (int, error) {
	cw.hash.Write(p)
	return cw.w.Write(p)
}

type crc32Reader struct {
	r    io.Reader
	hash crc32Hash
}

func (cr *crc32Reader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.hash.Write(p[:n])
	}
	return n, err
}
