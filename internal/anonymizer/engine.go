package anonymizer

import (
	"strings"

	"github.com/suyashkumar/dicom/pkg/tag"

	dcm "dicom-deident/internal/dicom"
	"dicom-deident/internal/identity"
)

// Engine applies the confidentiality profile to decoded datasets, remapping
// identifiers through a shared identity map so every file in one run sees
// the same replacements.
type Engine struct {
	profile *Profile
	ids     *identity.Map
}

// New validates the profile and builds an engine around it. A profile that
// fails validation must abort the run.
func New(profile *Profile, ids *identity.Map) (*Engine, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return &Engine{profile: profile, ids: ids}, nil
}

// Anonymize returns a de-identified deep copy of the file. The original is
// never mutated and stays readable for diagnostics. The meta group's
// MediaStorageSOPInstanceUID is remapped alongside the dataset's
// SOPInstanceUID so the two stay equal.
func (e *Engine) Anonymize(f *dcm.File) (*dcm.File, error) {
	out := f.Clone()
	out.Data = e.anonymizeDataset(out.Data, false)

	if origSOP := f.Data.GetString(tag.SOPInstanceUID); origSOP != "" {
		out.Meta.SetString(tag.MediaStorageSOPInstanceUID, e.ids.UID(origSOP))
	}
	return out, nil
}

func (e *Engine) anonymizeDataset(ds *dcm.Dataset, inSequence bool) *dcm.Dataset {
	kept := ds.Elements[:0]
	for _, el := range ds.Elements {
		rule := e.profile.Lookup(el.Tag, inSequence)

		switch rule.Action {
		case ActionRemove:
			continue
		case ActionBlank:
			el.Value = &dcm.Bytes{}
		case ActionReplaceUID:
			el.SetStringValue(e.remapUIDs(el.StringValue()))
		case ActionReplaceName:
			el.SetStringValue(e.ids.Placeholder(identity.CategoryName, el.StringValue()))
		case ActionReplaceID:
			el.SetStringValue(e.ids.Placeholder(identity.CategoryID, el.StringValue()))
		case ActionReplaceText:
			el.SetStringValue(e.ids.Placeholder(identity.CategoryText, el.StringValue()))
		case ActionReplaceConstant:
			el.SetStringValue(rule.Constant)
		}

		if seq, ok := el.Value.(*dcm.Sequence); ok {
			for i, item := range seq.Items {
				seq.Items[i] = e.anonymizeDataset(item, true)
			}
		}
		kept = append(kept, el)
	}
	ds.Elements = kept
	return ds
}

// remapUIDs handles multi-valued UID fields: each backslash-separated
// component is remapped independently.
func (e *Engine) remapUIDs(value string) string {
	if value == "" {
		return ""
	}
	parts := strings.Split(value, "\\")
	for i, part := range parts {
		if part != "" {
			parts[i] = e.ids.UID(part)
		}
	}
	return strings.Join(parts, "\\")
}
