package export

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/okian/tally/internal/domain/model"
)

// ArchiveVersion is bumped when the snapshot layout changes.
const ArchiveVersion = 1

// Archive errors.
var (
	ErrDigestMismatch     = errors.New("archive digest mismatch")
	ErrUnsupportedVersion = errors.New("unsupported archive version")
)

// Archive is a full snapshot of the view.
type Archive struct {
	Version     int                   `json:"version"`
	GeneratedAt time.Time             `json:"generated_at"`
	Source      string                `json:"source,omitempty"`
	Roster      model.Roster          `json:"roster"`
	Groups      []model.PrecinctGroup `json:"groups"`
	Leaderboard model.Leaderboard     `json:"leaderboard"`
}

// Digest is the BLAKE3 hash of the compressed archive bytes.
type Digest [32]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// IsZero reports whether d is unset.
func (d Digest) IsZero() bool { return d == Digest{} }

// ParseDigest decodes a hex digest.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(d) {
		return d, fmt.Errorf("export: invalid digest %q", s)
	}
	copy(d[:], b)
	return d, nil
}

// The zstd encoder and decoder are safe for concurrent use and reused.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("export: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("export: zstd decoder initialization failed: " + err.Error())
	}
}

// WriteArchive writes a as zstd-compressed JSON and returns the digest of the
// bytes written.
func WriteArchive(w io.Writer, a Archive) (Digest, int, error) {
	if a.Version == 0 {
		a.Version = ArchiveVersion
	}
	if a.Groups == nil {
		a.Groups = []model.PrecinctGroup{}
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return Digest{}, 0, fmt.Errorf("export: encode archive: %w", err)
	}
	compressed := zstdEncoder.EncodeAll(raw, nil)
	digest := Digest(blake3.Sum256(compressed))
	n, err := w.Write(compressed)
	if err != nil {
		return Digest{}, n, fmt.Errorf("export: write archive: %w", err)
	}
	return digest, n, nil
}

// ReadArchive decodes an archive. A non-zero want is checked against the
// digest of the compressed bytes before anything is decoded.
func ReadArchive(r io.Reader, want Digest) (Archive, error) {
	compressed, err := io.ReadAll(r)
	if err != nil {
		return Archive{}, fmt.Errorf("export: read archive: %w", err)
	}
	if !want.IsZero() {
		if got := Digest(blake3.Sum256(compressed)); got != want {
			return Archive{}, fmt.Errorf("%w: got %s, want %s", ErrDigestMismatch, got, want)
		}
	}
	raw, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return Archive{}, fmt.Errorf("export: zstd decompress: %w", err)
	}
	var a Archive
	if err := json.Unmarshal(raw, &a); err != nil {
		return Archive{}, fmt.Errorf("export: decode archive: %w", err)
	}
	if a.Version != ArchiveVersion {
		return Archive{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, a.Version)
	}
	return a, nil
}
