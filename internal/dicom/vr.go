package dicom

import (
	"encoding/binary"

	"github.com/suyashkumar/dicom/pkg/tag"
)

// Standard transfer syntax UIDs for uncompressed datasets. Encapsulated
// (compressed) syntaxes all use explicit VR little endian for the dataset
// itself, so they fall through to the default.
const (
	ImplicitVRLittleEndian = "1.2.840.10008.1.2"
	ExplicitVRLittleEndian = "1.2.840.10008.1.2.1"
	ExplicitVRBigEndian    = "1.2.840.10008.1.2.2"
)

// syntax captures the two decoding decisions a transfer syntax drives:
// whether VRs are written per element and the byte order of numeric fields.
type syntax struct {
	implicit  bool
	byteOrder binary.ByteOrder
}

func syntaxFor(uid string) syntax {
	switch uid {
	case ImplicitVRLittleEndian:
		return syntax{implicit: true, byteOrder: binary.LittleEndian}
	case ExplicitVRBigEndian:
		return syntax{byteOrder: binary.BigEndian}
	default:
		return syntax{byteOrder: binary.LittleEndian}
	}
}

// metaSyntax is the fixed encoding of the file meta-information group.
var metaSyntax = syntax{byteOrder: binary.LittleEndian}

// longVRs use the 4-byte length form in explicit VR encoding (2-byte VR,
// 2 reserved bytes, 4-byte length). All other VRs use a 2-byte length.
var longVRs = map[string]bool{
	"OB": true, "OD": true, "OF": true, "OL": true, "OV": true,
	"OW": true, "SQ": true, "SV": true, "UC": true, "UN": true,
	"UR": true, "UT": true, "UV": true,
}

func isLongVR(vr string) bool { return longVRs[vr] }

// nulPaddedVRs are padded to even length with NUL; everything string-like
// pads with a trailing space.
var nulPaddedVRs = map[string]bool{
	"UI": true, "OB": true, "UN": true,
}

// padValue pads a replacement value to even length as required by the
// encoding rules for its VR.
func padValue(vr string, b []byte) []byte {
	if len(b)%2 == 0 {
		return b
	}
	if nulPaddedVRs[vr] {
		return append(b, 0x00)
	}
	return append(b, ' ')
}

// dictVR resolves the VR of a tag under implicit VR encoding. Group length
// elements are always UL; tags absent from the dictionary (private tags,
// mostly) decode as UN.
func dictVR(t tag.Tag) string {
	if t.Element == 0x0000 {
		return "UL"
	}
	if info, err := tag.Find(t); err == nil && info.VR != "" {
		return info.VR
	}
	return "UN"
}
