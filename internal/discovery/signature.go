package discovery

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// FileStamp is the fingerprint of a single discovered file. Stats only;
// file contents are never read for signature purposes.
type FileStamp struct {
	Path    string `json:"path"`
	Size    int64  `json:"size"`
	ModTime int64  `json:"mtime_unix_nano"`
}

// Signature fingerprints the discovered file set of one logs root. It is
// the cache key for analysis reports and the change trigger for re-runs:
// any added, removed, grown or touched file changes the hash.
type Signature struct {
	Files []FileStamp `json:"files"`
	Hash  string      `json:"hash"`
}

// Equal compares two signatures by summary hash.
func (s Signature) Equal(other Signature) bool {
	return s.Hash != "" && s.Hash == other.Hash
}

// BuildSignature computes the signature over an already scanned file set.
// Scan returns files in stable path order, which the hash depends on.
func BuildSignature(files []LogFile) Signature {
	stamps := make([]FileStamp, 0, len(files))
	var b strings.Builder
	for _, f := range files {
		stamp := FileStamp{Path: f.Path, Size: f.Size, ModTime: f.ModTime.UnixNano()}
		stamps = append(stamps, stamp)
		fmt.Fprintf(&b, "%s|%d|%d\n", stamp.Path, stamp.Size, stamp.ModTime)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return Signature{Files: stamps, Hash: fmt.Sprintf("%x", sum)}
}

// ComputeSignature scans the root and fingerprints the result. Safe to run
// on every poll: O(files) stat-only.
func (s *Scanner) ComputeSignature(root string) (Signature, error) {
	files, err := s.Scan(root)
	if err != nil {
		return Signature{}, err
	}
	return BuildSignature(files), nil
}
