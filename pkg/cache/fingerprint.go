package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
)

// Identity is the subset of harness identity that affects operation
// results and therefore participates in fingerprints.
type Identity struct {
	// Binary is the engine binary name or path.
	Binary string `json:"binary"`

	// BaseDir is the base directory relative paths resolve against.
	BaseDir string `json:"basedir"`

	// WorkDir is the module working directory operations run in.
	WorkDir string `json:"workdir"`
}

// FileParam marks a parameter value as a file path whose content, not
// spelling, determines the result. Fingerprinting substitutes the file's
// content hash for the path, so two paths with identical bytes fingerprint
// identically and an in-place edit invalidates the entry.
type FileParam string

// FileParams marks a list-valued file path parameter.
type FileParams []string

// Fingerprint computes the stable hex fingerprint for one operation. The
// inputs are, in order: the operation name, the identity, the caller's
// parameters canonicalized to JSON with sorted keys (file parameters
// replaced by content hashes), and the recursive content hash of the
// working directory. Two invocations with identical effective inputs yield
// the same fingerprint regardless of process or wall-clock time.
func Fingerprint(op string, id Identity, params map[string]any) (string, error) {
	canonical, err := canonicalParams(params)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(struct {
		Op       string         `json:"op"`
		Identity Identity       `json:"identity"`
		Params   map[string]any `json:"params"`
	}{op, id, canonical})
	if err != nil {
		return "", fmt.Errorf("encoding fingerprint inputs: %w", err)
	}

	dirHash, err := DirHash(id.WorkDir)
	if err != nil {
		return "", fmt.Errorf("hashing working directory: %w", err)
	}

	h := sha256.New()
	h.Write(payload)
	io.WriteString(h, dirHash)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// canonicalParams replaces file parameters with their content hashes.
func canonicalParams(params map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(params))
	for key, value := range params {
		switch v := value.(type) {
		case FileParam:
			hash, err := FileHash(string(v))
			if err != nil {
				return nil, fmt.Errorf("hashing file parameter %q: %w", key, err)
			}
			out[key] = "sha256:" + hash
		case FileParams:
			hashes := make([]string, 0, len(v))
			for _, path := range v {
				hash, err := FileHash(path)
				if err != nil {
					return nil, fmt.Errorf("hashing file parameter %q: %w", key, err)
				}
				hashes = append(hashes, "sha256:"+hash)
			}
			out[key] = hashes
		default:
			out[key] = value
		}
	}
	return out, nil
}
