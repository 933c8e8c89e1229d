package avcdec

// H.264 NAL unit types
const (
	nalTypeIDR = 5
	nalTypeSPS = 7
	nalTypePPS = 8
	nalTypeFUA = 28 // Fragmentation Unit A
)

var annexBStartCode = []byte{0, 0, 0, 1}

func nalType(nalu []byte) byte {
	if len(nalu) == 0 {
		return 0
	}
	return nalu[0] & 0x1F
}

// splitAnnexB splits Annex B data into NAL units without start codes.
// Both 3- and 4-byte start codes are accepted.
func splitAnnexB(data []byte) [][]byte {
	var nalUnits [][]byte
	start := -1

	for i := 0; i+2 < len(data); i++ {
		if data[i] != 0 || data[i+1] != 0 {
			continue
		}

		var codeLen int
		switch {
		case data[i+2] == 1:
			codeLen = 3
		case i+3 < len(data) && data[i+2] == 0 && data[i+3] == 1:
			codeLen = 4
		default:
			continue
		}

		if start >= 0 && i > start {
			nalUnits = append(nalUnits, data[start:i])
		}
		start = i + codeLen
		i += codeLen - 1
	}

	if start >= 0 && start < len(data) {
		nalUnits = append(nalUnits, data[start:])
	}
	return nalUnits
}

// appendAnnexB appends nalu to dst behind a 4-byte start code.
func appendAnnexB(dst, nalu []byte) []byte {
	dst = append(dst, annexBStartCode...)
	return append(dst, nalu...)
}
