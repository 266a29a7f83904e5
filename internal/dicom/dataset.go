package dicom

import (
	"strings"

	"github.com/suyashkumar/dicom/pkg/tag"
)

// Delimiter tags used by sequence and encapsulated value encoding.
var (
	itemTag      = tag.Tag{Group: 0xFFFE, Element: 0xE000}
	itemDelimTag = tag.Tag{Group: 0xFFFE, Element: 0xE00D}
	seqDelimTag  = tag.Tag{Group: 0xFFFE, Element: 0xE0DD}
)

const undefinedLength uint32 = 0xFFFFFFFF

func compareTags(a, b tag.Tag) int {
	switch {
	case a.Group != b.Group:
		if a.Group < b.Group {
			return -1
		}
		return 1
	case a.Element != b.Element:
		if a.Element < b.Element {
			return -1
		}
		return 1
	}
	return 0
}

// Value is the decoded payload of an element: either raw bytes or a
// sequence of nested datasets (VR SQ).
type Value interface {
	isValue()
}

// Bytes holds the verbatim value field of a non-sequence element.
// Undefined marks an encapsulated value (undefined length); Data then spans
// the item stream including the terminating sequence delimiter, and is
// re-emitted untouched.
type Bytes struct {
	Data      []byte
	Undefined bool
}

func (*Bytes) isValue() {}

// Sequence holds the items of an SQ element. Undefined records whether the
// sequence was delimiter-terminated so encoding reproduces the same form.
type Sequence struct {
	Items     []*Dataset
	Undefined bool
}

func (*Sequence) isValue() {}

// Element is one tag/value pair of a dataset.
type Element struct {
	Tag   tag.Tag
	VR    string
	Value Value
}

func (e *Element) clone() *Element {
	out := &Element{Tag: e.Tag, VR: e.VR}
	switch v := e.Value.(type) {
	case *Bytes:
		data := make([]byte, len(v.Data))
		copy(data, v.Data)
		out.Value = &Bytes{Data: data, Undefined: v.Undefined}
	case *Sequence:
		seq := &Sequence{Undefined: v.Undefined}
		for _, item := range v.Items {
			seq.Items = append(seq.Items, item.Clone())
		}
		out.Value = seq
	}
	return out
}

// StringValue returns the element's value as a string with encoding padding
// stripped, or "" for sequences and encapsulated values.
func (e *Element) StringValue() string {
	b, ok := e.Value.(*Bytes)
	if !ok || b.Undefined {
		return ""
	}
	return strings.TrimRight(string(b.Data), "\x00 ")
}

// SetStringValue replaces the element's value, padding to even length per
// its VR.
func (e *Element) SetStringValue(s string) {
	e.Value = &Bytes{Data: padValue(e.VR, []byte(s))}
}

// Dataset is an ordered tag -> element mapping. Insertion order is encoded
// order and must be preserved for round-trips.
type Dataset struct {
	Elements []*Element

	// undefinedLen marks a sequence item that was delimiter-terminated.
	undefinedLen bool
}

// FindElementByTag returns the element with the given tag, or nil.
func (d *Dataset) FindElementByTag(t tag.Tag) *Element {
	for _, el := range d.Elements {
		if el.Tag == t {
			return el
		}
	}
	return nil
}

// GetString returns the string value of a tag with encoding padding
// stripped, or "" if the tag is absent or not a byte value.
func (d *Dataset) GetString(t tag.Tag) string {
	el := d.FindElementByTag(t)
	if el == nil {
		return ""
	}
	b, ok := el.Value.(*Bytes)
	if !ok || b.Undefined {
		return ""
	}
	return strings.TrimRight(string(b.Data), "\x00 ")
}

// SetString replaces the value of an existing element, padding per its VR.
// Absent tags are left absent.
func (d *Dataset) SetString(t tag.Tag, value string) {
	el := d.FindElementByTag(t)
	if el == nil {
		return
	}
	el.Value = &Bytes{Data: padValue(el.VR, []byte(value))}
}

// PutString inserts or replaces an element with a string value, keeping the
// dataset in ascending tag order.
func (d *Dataset) PutString(t tag.Tag, vr, value string) {
	if el := d.FindElementByTag(t); el != nil {
		el.VR = vr
		el.Value = &Bytes{Data: padValue(vr, []byte(value))}
		return
	}
	el := &Element{Tag: t, VR: vr, Value: &Bytes{Data: padValue(vr, []byte(value))}}
	for i, existing := range d.Elements {
		if compareTags(t, existing.Tag) < 0 {
			d.Elements = append(d.Elements[:i], append([]*Element{el}, d.Elements[i:]...)...)
			return
		}
	}
	d.Elements = append(d.Elements, el)
}

// PutSequence inserts or replaces an SQ element, keeping tag order.
func (d *Dataset) PutSequence(t tag.Tag, items ...*Dataset) {
	if el := d.FindElementByTag(t); el != nil {
		el.VR = "SQ"
		el.Value = &Sequence{Items: items}
		return
	}
	el := &Element{Tag: t, VR: "SQ", Value: &Sequence{Items: items}}
	for i, existing := range d.Elements {
		if compareTags(t, existing.Tag) < 0 {
			d.Elements = append(d.Elements[:i], append([]*Element{el}, d.Elements[i:]...)...)
			return
		}
	}
	d.Elements = append(d.Elements, el)
}

// Clone deep-copies the dataset.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{undefinedLen: d.undefinedLen}
	for _, el := range d.Elements {
		out.Elements = append(out.Elements, el.clone())
	}
	return out
}

// File is one decoded DICOM Part 10 file: 128-byte preamble, file
// meta-information group, and the main dataset.
type File struct {
	Preamble       [128]byte
	Meta           *Dataset
	Data           *Dataset
	TransferSyntax string
}

// Clone deep-copies the file.
func (f *File) Clone() *File {
	return &File{
		Preamble:       f.Preamble,
		Meta:           f.Meta.Clone(),
		Data:           f.Data.Clone(),
		TransferSyntax: f.TransferSyntax,
	}
}

// NewFile builds an empty file with the given transfer syntax, ready to be
// populated via PutString and encoded. Used by callers that synthesize
// datasets (fixtures, mostly).
func NewFile(transferSyntax string) *File {
	meta := &Dataset{}
	meta.PutString(tag.TransferSyntaxUID, "UI", transferSyntax)
	return &File{
		Meta:           meta,
		Data:           &Dataset{},
		TransferSyntax: transferSyntax,
	}
}
