package voicebank

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

var npyMagic = [6]byte{0x93, 'N', 'U', 'M', 'P', 'Y'}

// parseNPY decodes a NumPy v1/v2 .npy payload holding little-endian f32
// data and returns the flat sample slice.
func parseNPY(data []byte) ([]float32, error) {
	if len(data) < 10 || [6]byte(data[:6]) != npyMagic {
		return nil, fmt.Errorf("voicebank: bad npy magic")
	}
	major := data[6]

	var headerLen int
	var headerStart int
	switch major {
	case 1:
		if len(data) < 10 {
			return nil, fmt.Errorf("voicebank: truncated npy v1 header")
		}
		headerLen = int(binary.LittleEndian.Uint16(data[8:10]))
		headerStart = 10
	case 2, 3:
		if len(data) < 12 {
			return nil, fmt.Errorf("voicebank: truncated npy v2 header")
		}
		headerLen = int(binary.LittleEndian.Uint32(data[8:12]))
		headerStart = 12
	default:
		return nil, fmt.Errorf("voicebank: unsupported npy version %d", major)
	}

	headerEnd := headerStart + headerLen
	if headerEnd > len(data) {
		return nil, fmt.Errorf("voicebank: npy header overruns buffer")
	}
	header := string(data[headerStart:headerEnd])

	if err := checkNPYDescr(header); err != nil {
		return nil, err
	}

	body := data[headerEnd:]
	if len(body)%4 != 0 {
		return nil, fmt.Errorf("voicebank: npy body length %d not a multiple of 4", len(body))
	}
	n := len(body) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(body[i*4:])
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}

// checkNPYDescr verifies the minimal subset of the NPY dict header this
// reader supports: little-endian f32 data in row-major (C) order.
func checkNPYDescr(header string) error {
	descr, err := extractDictValue(header, "descr")
	if err != nil {
		return err
	}
	if descr != "<f4" {
		return fmt.Errorf("voicebank: unsupported npy dtype %q, want <f4", descr)
	}
	fortran, err := extractDictValue(header, "fortran_order")
	if err != nil {
		return err
	}
	if strings.Contains(fortran, "True") {
		return fmt.Errorf("voicebank: fortran-order npy arrays are not supported")
	}
	return nil
}

// extractDictValue pulls the string value following `'key':` out of the
// flat Python-dict-literal NPY header text. This is a minimal scanner, not
// a general Python literal parser: it handles exactly the quoted-string and
// bare-identifier forms NPY headers use for descr/fortran_order. Tuple
// values such as shape are not handled (the value is cut at the first
// comma); the shape is never read from the header.
func extractDictValue(header, key string) (string, error) {
	needle := "'" + key + "'"
	idx := strings.Index(header, needle)
	if idx < 0 {
		return "", fmt.Errorf("voicebank: npy header missing key %q", key)
	}
	rest := header[idx+len(needle):]
	colon := strings.IndexByte(rest, ':')
	if colon < 0 {
		return "", fmt.Errorf("voicebank: npy header malformed at key %q", key)
	}
	rest = strings.TrimSpace(rest[colon+1:])

	if strings.HasPrefix(rest, "'") {
		end := strings.IndexByte(rest[1:], '\'')
		if end < 0 {
			return "", fmt.Errorf("voicebank: unterminated string for key %q", key)
		}
		return rest[1 : 1+end], nil
	}

	end := strings.IndexAny(rest, ",}")
	if end < 0 {
		end = len(rest)
	}
	return strings.TrimSpace(rest[:end]), nil
}
