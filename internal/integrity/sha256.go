package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

const bufferSize = 64 * 1024

// SumSHA256 hashes the file at path and returns the lower-case hex digest.
func SumSHA256(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for checksum: %w", err)
	}
	defer file.Close()

	h := sha256.New()
	buf := make([]byte, bufferSize)
	if _, err := io.CopyBuffer(h, file, buf); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifySHA256 reports whether the file digest equals expected, ignoring hex
// case. Only I/O failures are returned as errors.
func VerifySHA256(path, expected string) (bool, error) {
	sum, err := SumSHA256(path)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(sum, strings.TrimSpace(expected)), nil
}
