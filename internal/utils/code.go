package utils

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateSessionCode returns a rotating scan code. The millisecond prefix
// keeps codes time-sortable; the random suffix makes them unguessable.
// Format: QR_<millis>_<9 random chars>.
func GenerateSessionCode() (string, error) {
	buf := make([]byte, 9)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, b := range buf {
		sb.WriteByte(codeAlphabet[int(b)%len(codeAlphabet)])
	}
	return fmt.Sprintf("QR_%d_%s", time.Now().UnixMilli(), sb.String()), nil
}
