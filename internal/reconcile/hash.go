package reconcile

import (
	"encoding/hex"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

const hashBufferSize = 64 * 1024

// HashFile returns the hex BLAKE3 digest of the file at path, reading through
// a fixed buffer regardless of file size.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hasher := blake3.New()
	buf := make([]byte, hashBufferSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			_, _ = hasher.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
