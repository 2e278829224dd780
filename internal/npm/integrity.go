package npm

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"hash"
	"strings"

	"github.com/GriffinCanCode/executejs/backend/internal/registry"
)

// HashAlgorithm names a digest the registry publishes for tarballs.
type HashAlgorithm string

const (
	SHA512 HashAlgorithm = "sha512"
	SHA384 HashAlgorithm = "sha384"
	SHA256 HashAlgorithm = "sha256"
	SHA1   HashAlgorithm = "sha1"
)

// strength orders algorithms so the strongest SRI entry is checked.
var strength = map[HashAlgorithm]int{SHA1: 1, SHA256: 2, SHA384: 3, SHA512: 4}

func (a HashAlgorithm) new() hash.Hash {
	switch a {
	case SHA512:
		return sha512.New()
	case SHA384:
		return sha512.New384()
	case SHA256:
		return sha256.New()
	default:
		return sha1.New()
	}
}

// digest is one expected value with its encoding.
type digest struct {
	algorithm HashAlgorithm
	value     []byte
	display   string
	sri       bool
}

// expectedDigest picks the strongest digest from dist metadata. SRI strings
// may list several space-separated "alg-base64" entries. The sha1 shasum is
// used only when no SRI entry is usable.
func expectedDigest(dist registry.Dist) (digest, bool) {
	var best digest
	found := false

	for _, entry := range strings.Fields(dist.Integrity) {
		alg, encoded, ok := strings.Cut(entry, "-")
		if !ok {
			continue
		}
		algorithm := HashAlgorithm(strings.ToLower(alg))
		rank, known := strength[algorithm]
		if !known {
			continue
		}
		// SRI allows "?options" after the digest
		encoded, _, _ = strings.Cut(encoded, "?")
		value, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			continue
		}
		if !found || rank > strength[best.algorithm] {
			best = digest{algorithm: algorithm, value: value, display: entry, sri: true}
			found = true
		}
	}
	if found {
		return best, true
	}

	if dist.Shasum != "" {
		value, err := hex.DecodeString(strings.TrimSpace(dist.Shasum))
		if err == nil {
			return digest{algorithm: SHA1, value: value, display: strings.ToLower(dist.Shasum)}, true
		}
	}
	return digest{}, false
}

// verifyIntegrity checks data against the digest published in dist. It
// returns true when a digest was present and matched, false when there was
// nothing to check.
func verifyIntegrity(pkg string, dist registry.Dist, data []byte) (bool, error) {
	want, ok := expectedDigest(dist)
	if !ok {
		return false, nil
	}

	h := want.algorithm.new()
	h.Write(data)
	got := h.Sum(nil)

	if subtle.ConstantTimeCompare(got, want.value) == 1 {
		return true, nil
	}

	gotDisplay := hex.EncodeToString(got)
	if want.sri {
		gotDisplay = string(want.algorithm) + "-" + base64.StdEncoding.EncodeToString(got)
	}
	return false, &ChecksumError{
		Package:   pkg,
		Algorithm: string(want.algorithm),
		Expected:  want.display,
		Got:       gotDisplay,
	}
}
