package dicom

import (
	"bytes"
	"fmt"
	"io"

	"github.com/suyashkumar/dicom/pkg/tag"
)

var groupLengthTag = tag.Tag{Group: 0x0002, Element: 0x0000}

// Encode serializes the file back to the Part 10 format. A file that was
// decoded and not modified encodes to a byte-identical stream (the meta
// group length is recomputed, which matches any conformant input).
func (f *File) Encode(w io.Writer) error {
	data, err := f.EncodeBytes()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// EncodeBytes serializes the file to a byte slice.
func (f *File) EncodeBytes() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(f.Preamble[:])
	buf.Write(magicMarker)

	// Meta group, explicit VR little endian, with (0002,0000) recomputed
	// from the serialized length of the elements that follow it.
	var metaBuf bytes.Buffer
	for _, el := range f.Meta.Elements {
		if el.Tag == groupLengthTag {
			continue
		}
		if err := encodeElement(&metaBuf, el, metaSyntax); err != nil {
			return nil, err
		}
	}
	groupLength := make([]byte, 4)
	metaSyntax.byteOrder.PutUint32(groupLength, uint32(metaBuf.Len()))
	glElement := &Element{Tag: groupLengthTag, VR: "UL", Value: &Bytes{Data: groupLength}}
	if err := encodeElement(&buf, glElement, metaSyntax); err != nil {
		return nil, err
	}
	buf.Write(metaBuf.Bytes())

	syn := syntaxFor(f.TransferSyntax)
	for _, el := range f.Data.Elements {
		if err := encodeElement(&buf, el, syn); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func encodeElement(b *bytes.Buffer, el *Element, syn syntax) error {
	var body []byte
	var undefined bool
	switch v := el.Value.(type) {
	case *Bytes:
		body = v.Data
		undefined = v.Undefined
	case *Sequence:
		var err error
		body, err = encodeSequenceBody(v, syn)
		if err != nil {
			return err
		}
		undefined = v.Undefined
	default:
		return fmt.Errorf("tag %v has no value", el.Tag)
	}

	length := uint32(len(body))
	if undefined {
		length = undefinedLength
	}

	writeTag(b, el.Tag, syn)
	if syn.implicit {
		writeU32(b, length, syn)
	} else {
		b.WriteString(el.VR)
		if isLongVR(el.VR) {
			b.Write([]byte{0x00, 0x00})
			writeU32(b, length, syn)
		} else {
			if length > 0xFFFF {
				return fmt.Errorf("tag %v: value of %d bytes does not fit VR %s length field", el.Tag, length, el.VR)
			}
			writeU16(b, uint16(length), syn)
		}
	}
	b.Write(body)
	return nil
}

func encodeSequenceBody(seq *Sequence, syn syntax) ([]byte, error) {
	var buf bytes.Buffer
	for _, item := range seq.Items {
		var itemBuf bytes.Buffer
		for _, el := range item.Elements {
			if err := encodeElement(&itemBuf, el, syn); err != nil {
				return nil, err
			}
		}
		writeTag(&buf, itemTag, syn)
		if item.undefinedLen {
			writeU32(&buf, undefinedLength, syn)
			buf.Write(itemBuf.Bytes())
			writeTag(&buf, itemDelimTag, syn)
			writeU32(&buf, 0, syn)
		} else {
			writeU32(&buf, uint32(itemBuf.Len()), syn)
			buf.Write(itemBuf.Bytes())
		}
	}
	if seq.Undefined {
		writeTag(&buf, seqDelimTag, syn)
		writeU32(&buf, 0, syn)
	}
	return buf.Bytes(), nil
}

func writeTag(b *bytes.Buffer, t tag.Tag, syn syntax) {
	writeU16(b, t.Group, syn)
	writeU16(b, t.Element, syn)
}

func writeU16(b *bytes.Buffer, v uint16, syn syntax) {
	var tmp [2]byte
	syn.byteOrder.PutUint16(tmp[:], v)
	b.Write(tmp[:])
}

func writeU32(b *bytes.Buffer, v uint32, syn syntax) {
	var tmp [4]byte
	syn.byteOrder.PutUint32(tmp[:], v)
	b.Write(tmp[:])
}
