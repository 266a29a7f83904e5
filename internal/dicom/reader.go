package dicom

import (
	"encoding/binary"
	"io"

	"github.com/suyashkumar/dicom/pkg/tag"
)

const preambleLength = 128

var magicMarker = []byte("DICM")

// Decode reads a complete DICOM Part 10 stream.
func Decode(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return DecodeBytes(data)
}

// DecodeBytes decodes a complete DICOM Part 10 byte stream. It fails with
// *FormatError when the magic marker is missing or any declared length
// overruns the remaining bytes.
func DecodeBytes(data []byte) (*File, error) {
	f, _, err := decode(data, nil)
	return f, err
}

// decode parses the stream; when stopAfter is non-nil, top-level parsing of
// the main dataset stops once an element with tag >= stopAfter has been
// consumed. The second return reports whether the stop tag was reached,
// letting partial readers distinguish "short window" from "short file".
func decode(data []byte, stopAfter *tag.Tag) (*File, bool, error) {
	if len(data) < preambleLength+4 {
		return nil, false, formatErr(0, "stream shorter than preamble and magic marker")
	}
	if string(data[preambleLength:preambleLength+4]) != string(magicMarker) {
		return nil, false, formatErr(preambleLength, "missing DICM magic marker")
	}

	f := &File{}
	copy(f.Preamble[:], data[:preambleLength])

	p := &parser{data: data, pos: preambleLength + 4}

	meta, err := p.parseMetaGroup()
	if err != nil {
		return nil, false, err
	}
	f.Meta = meta

	f.TransferSyntax = meta.GetString(tag.TransferSyntaxUID)
	if f.TransferSyntax == "" {
		// DICOM default when the meta group does not name one.
		f.TransferSyntax = ImplicitVRLittleEndian
	}

	syn := syntaxFor(f.TransferSyntax)
	ds, reachedStop, err := p.parseDataset(syn, len(p.data), stopAfter)
	if err != nil {
		return nil, false, err
	}
	f.Data = ds
	return f, reachedStop, nil
}

type parser struct {
	data []byte
	pos  int
}

func (p *parser) need(n int) error {
	if p.pos+n > len(p.data) {
		return formatErr(p.pos, "truncated stream: need %d bytes, %d remain", n, len(p.data)-p.pos)
	}
	return nil
}

func (p *parser) u16(bo binary.ByteOrder) (uint16, error) {
	if err := p.need(2); err != nil {
		return 0, err
	}
	v := bo.Uint16(p.data[p.pos:])
	p.pos += 2
	return v, nil
}

func (p *parser) u32(bo binary.ByteOrder) (uint32, error) {
	if err := p.need(4); err != nil {
		return 0, err
	}
	v := bo.Uint32(p.data[p.pos:])
	p.pos += 4
	return v, nil
}

func (p *parser) readTag(bo binary.ByteOrder) (tag.Tag, error) {
	group, err := p.u16(bo)
	if err != nil {
		return tag.Tag{}, err
	}
	element, err := p.u16(bo)
	if err != nil {
		return tag.Tag{}, err
	}
	return tag.Tag{Group: group, Element: element}, nil
}

func (p *parser) peekGroup(bo binary.ByteOrder) (uint16, bool) {
	if p.pos+2 > len(p.data) {
		return 0, false
	}
	return bo.Uint16(p.data[p.pos:]), true
}

// parseMetaGroup reads the file meta-information group, which is always
// explicit VR little endian regardless of the main dataset's syntax.
func (p *parser) parseMetaGroup() (*Dataset, error) {
	ds := &Dataset{}
	for {
		group, ok := p.peekGroup(metaSyntax.byteOrder)
		if !ok || group != 0x0002 {
			break
		}
		el, err := p.parseElement(metaSyntax, len(p.data))
		if err != nil {
			return nil, err
		}
		ds.Elements = append(ds.Elements, el)
	}
	return ds, nil
}

// parseDataset reads elements until end. With stopAfter set it also stops
// after consuming the first element whose tag is >= stopAfter, reporting
// whether that happened.
func (p *parser) parseDataset(syn syntax, end int, stopAfter *tag.Tag) (*Dataset, bool, error) {
	ds := &Dataset{}
	for p.pos < end {
		el, err := p.parseElement(syn, end)
		if err != nil {
			return nil, false, err
		}
		ds.Elements = append(ds.Elements, el)
		if stopAfter != nil && compareTags(el.Tag, *stopAfter) >= 0 {
			return ds, true, nil
		}
	}
	return ds, false, nil
}

func (p *parser) parseElement(syn syntax, end int) (*Element, error) {
	start := p.pos
	t, err := p.readTag(syn.byteOrder)
	if err != nil {
		return nil, err
	}

	var vr string
	var length uint32
	if syn.implicit {
		length, err = p.u32(syn.byteOrder)
		if err != nil {
			return nil, err
		}
		vr = dictVR(t)
	} else {
		if err := p.need(2); err != nil {
			return nil, err
		}
		vr = string(p.data[p.pos : p.pos+2])
		p.pos += 2
		if isLongVR(vr) {
			if err := p.need(2); err != nil {
				return nil, err
			}
			p.pos += 2 // reserved
			length, err = p.u32(syn.byteOrder)
		} else {
			var l16 uint16
			l16, err = p.u16(syn.byteOrder)
			length = uint32(l16)
		}
		if err != nil {
			return nil, err
		}
	}

	el := &Element{Tag: t, VR: vr}

	switch {
	case vr == "SQ":
		seq, err := p.parseSequence(syn, length)
		if err != nil {
			return nil, err
		}
		el.Value = seq
	case length == undefinedLength:
		raw, err := p.parseUndefinedRaw(syn)
		if err != nil {
			return nil, err
		}
		el.Value = &Bytes{Data: raw, Undefined: true}
	default:
		if p.pos+int(length) > end {
			return nil, formatErr(start, "tag %v declares %d value bytes, %d remain", t, length, end-p.pos)
		}
		el.Value = &Bytes{Data: p.data[p.pos : p.pos+int(length)]}
		p.pos += int(length)
	}
	return el, nil
}

// parseSequence reads SQ items, either bounded by an explicit length or
// terminated by a sequence delimitation item.
func (p *parser) parseSequence(syn syntax, length uint32) (*Sequence, error) {
	seq := &Sequence{Undefined: length == undefinedLength}
	end := len(p.data)
	if !seq.Undefined {
		if p.pos+int(length) > len(p.data) {
			return nil, formatErr(p.pos, "sequence length %d exceeds remaining bytes", length)
		}
		end = p.pos + int(length)
	}

	for {
		if !seq.Undefined && p.pos >= end {
			return seq, nil
		}
		start := p.pos
		t, err := p.readTag(syn.byteOrder)
		if err != nil {
			return nil, err
		}
		itemLen, err := p.u32(syn.byteOrder)
		if err != nil {
			return nil, err
		}
		switch t {
		case seqDelimTag:
			if !seq.Undefined {
				return nil, formatErr(start, "sequence delimiter inside defined-length sequence")
			}
			return seq, nil
		case itemTag:
			item, err := p.parseItem(syn, itemLen)
			if err != nil {
				return nil, err
			}
			seq.Items = append(seq.Items, item)
		default:
			return nil, formatErr(start, "unexpected tag %v in sequence", t)
		}
	}
}

// parseItem reads one sequence item, either length-bounded or terminated by
// an item delimitation item.
func (p *parser) parseItem(syn syntax, length uint32) (*Dataset, error) {
	if length != undefinedLength {
		if p.pos+int(length) > len(p.data) {
			return nil, formatErr(p.pos, "item length %d exceeds remaining bytes", length)
		}
		ds, _, err := p.parseDataset(syn, p.pos+int(length), nil)
		return ds, err
	}

	ds := &Dataset{undefinedLen: true}
	for {
		if p.pos+8 > len(p.data) {
			return nil, formatErr(p.pos, "unterminated undefined-length item")
		}
		next := tag.Tag{
			Group:   syn.byteOrder.Uint16(p.data[p.pos:]),
			Element: syn.byteOrder.Uint16(p.data[p.pos+2:]),
		}
		if next == itemDelimTag {
			p.pos += 8 // tag + zero length
			return ds, nil
		}
		el, err := p.parseElement(syn, len(p.data))
		if err != nil {
			return nil, err
		}
		ds.Elements = append(ds.Elements, el)
	}
}

// parseUndefinedRaw captures an undefined-length non-SQ value (encapsulated
// pixel data, typically) as an opaque span: every fragment item plus the
// terminating sequence delimiter, verbatim. The span is re-emitted untouched
// on encode, which keeps the round-trip contract without modeling frames.
func (p *parser) parseUndefinedRaw(syn syntax) ([]byte, error) {
	start := p.pos
	for {
		itemStart := p.pos
		t, err := p.readTag(syn.byteOrder)
		if err != nil {
			return nil, err
		}
		length, err := p.u32(syn.byteOrder)
		if err != nil {
			return nil, err
		}
		switch t {
		case seqDelimTag:
			return p.data[start:p.pos], nil
		case itemTag:
			if length == undefinedLength {
				return nil, formatErr(itemStart, "undefined-length item inside undefined-length value")
			}
			if err := p.need(int(length)); err != nil {
				return nil, err
			}
			p.pos += int(length)
		default:
			return nil, formatErr(itemStart, "unexpected tag %v in undefined-length value", t)
		}
	}
}
