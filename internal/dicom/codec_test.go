package dicom

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/suyashkumar/dicom/pkg/tag"
)

// stream builds raw DICOM byte streams for parser tests.
type stream struct {
	buf bytes.Buffer
	bo  binary.ByteOrder
}

func newStream(bo binary.ByteOrder) *stream {
	return &stream{bo: bo}
}

func (s *stream) tag(group, element uint16) *stream {
	s.u16(group)
	s.u16(element)
	return s
}

func (s *stream) u16(v uint16) *stream {
	var tmp [2]byte
	s.bo.PutUint16(tmp[:], v)
	s.buf.Write(tmp[:])
	return s
}

func (s *stream) u32(v uint32) *stream {
	var tmp [4]byte
	s.bo.PutUint32(tmp[:], v)
	s.buf.Write(tmp[:])
	return s
}

func (s *stream) raw(b []byte) *stream {
	s.buf.Write(b)
	return s
}

func (s *stream) str(v string) *stream {
	s.buf.WriteString(v)
	return s
}

// shortElement writes an explicit VR element with a 2-byte length.
func (s *stream) shortElement(group, element uint16, vr, value string) *stream {
	s.tag(group, element).str(vr).u16(uint16(len(value))).str(value)
	return s
}

// metaGroup renders the file meta group the way the encoder does, so
// hand-built streams can round-trip byte-identically.
func metaGroup(transferSyntax string) []byte {
	body := newStream(binary.LittleEndian)
	padded := transferSyntax
	if len(padded)%2 == 1 {
		padded += "\x00"
	}
	body.shortElement(0x0002, 0x0010, "UI", padded)

	s := newStream(binary.LittleEndian)
	s.tag(0x0002, 0x0000).str("UL").u16(4).u32(uint32(body.buf.Len()))
	s.raw(body.buf.Bytes())
	return s.buf.Bytes()
}

func part10(transferSyntax string, dataset []byte) []byte {
	var buf bytes.Buffer
	buf.Write(make([]byte, preambleLength))
	buf.WriteString("DICM")
	buf.Write(metaGroup(transferSyntax))
	buf.Write(dataset)
	return buf.Bytes()
}

func TestDecodeRejectsNonDICOM(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"too short", make([]byte, 64)},
		{"no magic", make([]byte, 200)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeBytes(tt.data)
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("DecodeBytes() error = %v, want *FormatError", err)
			}
		})
	}
}

func TestRoundTripStreams(t *testing.T) {
	explicitBody := newStream(binary.LittleEndian)
	explicitBody.shortElement(0x0008, 0x0018, "UI", "1.2.3.40")
	explicitBody.shortElement(0x0010, 0x0010, "PN", "DOE^JOHN")
	// Defined-length sequence with one defined-length item.
	item := newStream(binary.LittleEndian)
	item.shortElement(0x0008, 0x1155, "UI", "1.2.3.50")
	seq := newStream(binary.LittleEndian)
	seq.tag(0xFFFE, 0xE000).u32(uint32(item.buf.Len())).raw(item.buf.Bytes())
	explicitBody.tag(0x0008, 0x1140).str("SQ").u16(0).u32(uint32(seq.buf.Len())).raw(seq.buf.Bytes())

	// Undefined-length sequence holding an undefined-length item.
	undefBody := newStream(binary.LittleEndian)
	undefBody.shortElement(0x0008, 0x0018, "UI", "1.2.3.40")
	undefBody.tag(0x0008, 0x1140).str("SQ").u16(0).u32(0xFFFFFFFF)
	undefBody.tag(0xFFFE, 0xE000).u32(0xFFFFFFFF)
	undefBody.shortElement(0x0008, 0x1155, "UI", "1.2.3.50")
	undefBody.tag(0xFFFE, 0xE00D).u32(0)
	undefBody.tag(0xFFFE, 0xE0DD).u32(0)

	// Encapsulated pixel data: undefined length with fragment items.
	encapBody := newStream(binary.LittleEndian)
	encapBody.shortElement(0x0008, 0x0018, "UI", "1.2.3.40")
	encapBody.tag(0x7FE0, 0x0010).str("OB").u16(0).u32(0xFFFFFFFF)
	encapBody.tag(0xFFFE, 0xE000).u32(4).raw([]byte{1, 2, 3, 4})
	encapBody.tag(0xFFFE, 0xE000).u32(2).raw([]byte{5, 6})
	encapBody.tag(0xFFFE, 0xE0DD).u32(0)

	// Implicit VR: 4-byte lengths, VR from the dictionary.
	implicitBody := newStream(binary.LittleEndian)
	implicitBody.tag(0x0008, 0x0018).u32(8).str("1.2.3.40")
	implicitBody.tag(0x0010, 0x0010).u32(8).str("DOE^JOHN")

	// Big endian explicit VR main dataset.
	beBody := newStream(binary.BigEndian)
	beBody.tag(0x0008, 0x0018).str("UI").u16(8).str("1.2.3.40")
	beBody.tag(0x0028, 0x0010).str("US").u16(2).raw([]byte{0x02, 0x00}) // Rows = 512

	tests := []struct {
		name string
		data []byte
	}{
		{"explicit little endian", part10(ExplicitVRLittleEndian, explicitBody.buf.Bytes())},
		{"undefined length sequence", part10(ExplicitVRLittleEndian, undefBody.buf.Bytes())},
		{"encapsulated pixel data", part10("1.2.840.10008.1.2.4.70", encapBody.buf.Bytes())},
		{"implicit little endian", part10(ImplicitVRLittleEndian, implicitBody.buf.Bytes())},
		{"explicit big endian", part10(ExplicitVRBigEndian, beBody.buf.Bytes())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := DecodeBytes(tt.data)
			if err != nil {
				t.Fatalf("DecodeBytes() error = %v", err)
			}
			out, err := f.EncodeBytes()
			if err != nil {
				t.Fatalf("EncodeBytes() error = %v", err)
			}
			if !bytes.Equal(out, tt.data) {
				t.Errorf("round trip differs: got %d bytes, want %d", len(out), len(tt.data))
			}
		})
	}
}

func TestDecodeSequenceStructure(t *testing.T) {
	body := newStream(binary.LittleEndian)
	item := newStream(binary.LittleEndian)
	item.shortElement(0x0008, 0x1155, "UI", "1.2.3.50")
	seq := newStream(binary.LittleEndian)
	seq.tag(0xFFFE, 0xE000).u32(uint32(item.buf.Len())).raw(item.buf.Bytes())
	body.tag(0x0008, 0x1140).str("SQ").u16(0).u32(uint32(seq.buf.Len())).raw(seq.buf.Bytes())

	f, err := DecodeBytes(part10(ExplicitVRLittleEndian, body.buf.Bytes()))
	if err != nil {
		t.Fatalf("DecodeBytes() error = %v", err)
	}
	el := f.Data.FindElementByTag(tag.Tag{Group: 0x0008, Element: 0x1140})
	if el == nil {
		t.Fatal("sequence element missing")
	}
	s, ok := el.Value.(*Sequence)
	if !ok {
		t.Fatalf("sequence element has value %T", el.Value)
	}
	if len(s.Items) != 1 {
		t.Fatalf("len(Items) = %d, want 1", len(s.Items))
	}
	if got := s.Items[0].GetString(tag.Tag{Group: 0x0008, Element: 0x1155}); got != "1.2.3.50" {
		t.Errorf("nested UID = %q, want %q", got, "1.2.3.50")
	}
}

func TestDecodeImplicitVRUsesDictionary(t *testing.T) {
	body := newStream(binary.LittleEndian)
	body.tag(0x0010, 0x0010).u32(8).str("DOE^JOHN")

	f, err := DecodeBytes(part10(ImplicitVRLittleEndian, body.buf.Bytes()))
	if err != nil {
		t.Fatalf("DecodeBytes() error = %v", err)
	}
	el := f.Data.FindElementByTag(tag.PatientName)
	if el == nil {
		t.Fatal("PatientName missing")
	}
	if el.VR != "PN" {
		t.Errorf("VR = %q, want PN", el.VR)
	}
}

func TestDecodeTruncatedValue(t *testing.T) {
	body := newStream(binary.LittleEndian)
	// Declares 64 value bytes but provides 4.
	body.tag(0x0010, 0x0010).str("PN").u16(64).str("DOE^")

	_, err := DecodeBytes(part10(ExplicitVRLittleEndian, body.buf.Bytes()))
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("DecodeBytes() error = %v, want *FormatError", err)
	}
}

func TestEncodeDecodeIdempotence(t *testing.T) {
	f := NewFile(ExplicitVRLittleEndian)
	f.Data.PutString(tag.SOPInstanceUID, "UI", "1.2.3.4.5")
	f.Data.PutString(tag.StudyInstanceUID, "UI", "1.2.3.4")
	f.Data.PutString(tag.SeriesInstanceUID, "UI", "1.2.3.4.1")
	f.Data.PutString(tag.PatientName, "PN", "DOE^JANE")

	first, err := f.EncodeBytes()
	if err != nil {
		t.Fatalf("EncodeBytes() error = %v", err)
	}
	decoded, err := DecodeBytes(first)
	if err != nil {
		t.Fatalf("DecodeBytes() error = %v", err)
	}
	second, err := decoded.EncodeBytes()
	if err != nil {
		t.Fatalf("EncodeBytes() error = %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("decode(encode(x)) does not re-encode identically")
	}
}

func TestGetStringStripsPadding(t *testing.T) {
	f := NewFile(ExplicitVRLittleEndian)
	f.Data.PutString(tag.SOPInstanceUID, "UI", "1.2.3") // odd, NUL padded
	f.Data.PutString(tag.PatientName, "PN", "DOE")      // odd, space padded

	if got := f.Data.GetString(tag.SOPInstanceUID); got != "1.2.3" {
		t.Errorf("GetString(SOPInstanceUID) = %q", got)
	}
	if got := f.Data.GetString(tag.PatientName); got != "DOE" {
		t.Errorf("GetString(PatientName) = %q", got)
	}
}
