package profile

import "unicode"

// Remove null and non-printable characters
func cleanComm(byteSlice [TaskCommLen]byte) []byte {
	var cleaned []byte
	for _, b := range byteSlice {
		if b != 0 && unicode.IsPrint(rune(b)) {
			// Only append printable characters and not null bytes
			cleaned = append(cleaned, b)
		}
	}
	return cleaned
}
