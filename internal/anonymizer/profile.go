package anonymizer

import (
	"fmt"

	"github.com/suyashkumar/dicom/pkg/tag"
)

// Action is what the profile does to a matched element.
type Action int

const (
	ActionKeep Action = iota
	ActionRemove
	ActionBlank
	ActionReplaceUID      // consistent remap via the identity map
	ActionReplaceName     // counter placeholder, name category
	ActionReplaceID       // counter placeholder, ID category
	ActionReplaceText     // counter placeholder, free-text category
	ActionReplaceConstant // fixed replacement value
)

// Rule is one per-tag entry of the confidentiality profile.
// AppliesInSequence=false exempts the tag inside sequence items, where some
// otherwise-scrubbed tags are structural.
type Rule struct {
	Action            Action
	Constant          string
	AppliesInSequence bool
}

// GroupRule applies one rule to an inclusive range of group numbers.
type GroupRule struct {
	Low, High uint16
	Rule      Rule
}

// RuleTableError reports an incomplete or malformed rule table. It is fatal
// at startup: an incomplete table risks leaking identifying data.
type RuleTableError struct {
	Reason string
}

func (e *RuleTableError) Error() string {
	return fmt.Sprintf("anonymization rule table: %s", e.Reason)
}

// Profile is the standard-derived confidentiality profile: a static per-tag
// rule table plus group wildcards and the private-tag policy. Immutable
// after load apart from explicit whitelisting at configuration time.
type Profile struct {
	Version string

	rules            map[tag.Tag]Rule
	groups           []GroupRule
	privateWhitelist map[tag.Tag]bool
}

// mandatoryTags must carry a non-Keep rule in any usable profile.
var mandatoryTags = []tag.Tag{
	tag.StudyInstanceUID,
	tag.SeriesInstanceUID,
	tag.SOPInstanceUID,
	tag.PatientName,
	tag.PatientID,
	tag.PatientBirthDate,
	tag.AccessionNumber,
	tag.ReferringPhysicianName,
}

// DefaultProfile builds the 2023e basic confidentiality profile table.
func DefaultProfile() *Profile {
	remove := Rule{Action: ActionRemove, AppliesInSequence: true}
	blank := Rule{Action: ActionBlank, AppliesInSequence: true}
	uid := Rule{Action: ActionReplaceUID, AppliesInSequence: true}

	rules := map[tag.Tag]Rule{
		// Cross-reference UID graph: remapped consistently so the
		// study/series/instance relationships survive de-identification.
		tag.StudyInstanceUID:          uid,
		tag.SeriesInstanceUID:         uid,
		tag.SOPInstanceUID:            uid,
		tag.FrameOfReferenceUID:       uid,
		tag.MediaStorageSOPInstanceUID: uid,
		tag.ReferencedSOPInstanceUID:  uid,

		// Patient identity.
		tag.PatientName:      {Action: ActionReplaceName, AppliesInSequence: true},
		tag.PatientID:        {Action: ActionReplaceID, AppliesInSequence: true},
		tag.PatientBirthDate: {Action: ActionReplaceConstant, Constant: "19000101", AppliesInSequence: true},
		tag.PatientBirthTime:          remove,
		tag.PatientAge:                remove,
		tag.PatientAddress:            remove,
		tag.PatientTelephoneNumbers:   remove,
		tag.OtherPatientIDs:           remove,
		tag.OtherPatientNames:         remove,
		tag.OtherPatientIDsSequence:   remove,
		tag.PatientMotherBirthName:    remove,
		tag.MilitaryRank:              remove,
		tag.EthnicGroup:               remove,
		tag.PatientReligiousPreference: remove,
		tag.PatientComments:           remove,
		tag.AdditionalPatientHistory:  remove,

		// Physicians and operators.
		tag.ReferringPhysicianName:             remove,
		tag.ReferringPhysicianAddress:          remove,
		tag.ReferringPhysicianTelephoneNumbers: remove,
		tag.PerformingPhysicianName:            remove,
		tag.OperatorsName:                      remove,
		tag.PhysiciansOfRecord:                 remove,
		tag.NameOfPhysiciansReadingStudy:       remove,
		tag.RequestingPhysician:                remove,
		tag.ScheduledPerformingPhysicianName:   remove,

		// Institution and device.
		tag.InstitutionName:             remove,
		tag.InstitutionAddress:          remove,
		tag.InstitutionalDepartmentName: remove,
		tag.StationName:                 remove,
		tag.DeviceSerialNumber:          remove,

		// Other identifiers: blanked, not removed, because type 2
		// attributes must stay present.
		tag.AccessionNumber: blank,
		tag.StudyID:         blank,

		// Free text that tends to carry identity.
		tag.ImageComments:             remove,
		tag.RequestAttributesSequence: remove,
		tag.PerformedProcedureStepID:  remove,
		tag.ScheduledProcedureStepID:  remove,

		// Dates and times: blanked since date-shifting is not requested.
		tag.StudyDate:       blank,
		tag.SeriesDate:      blank,
		tag.AcquisitionDate: blank,
		tag.ContentDate:     blank,
		tag.StudyTime:       blank,
		tag.SeriesTime:      blank,
		tag.AcquisitionTime: blank,
		tag.ContentTime:     blank,

		// Instance creation stamps are structural inside sequence items
		// (referenced-instance bookkeeping), so the blank only applies at
		// top level.
		tag.InstanceCreationDate: {Action: ActionBlank},
		tag.InstanceCreationTime: {Action: ActionBlank},
	}

	groups := []GroupRule{
		// Curve data (repeating groups 5000-50FF) predates structured
		// storage and may carry burned-in annotations.
		{Low: 0x5000, High: 0x50FF, Rule: remove},
		// Overlay repeating groups (6000-60FF) can hold free-text
		// annotations drawn over the image.
		{Low: 0x6000, High: 0x60FF, Rule: remove},
	}

	return &Profile{
		Version:          "2023e",
		rules:            rules,
		groups:           groups,
		privateWhitelist: make(map[tag.Tag]bool),
	}
}

// WhitelistPrivate exempts one private tag from unconditional removal.
func (p *Profile) WhitelistPrivate(t tag.Tag) {
	p.privateWhitelist[t] = true
}

// Retain overrides the rule for a tag with Keep. Mandatory tags cannot be
// retained; Validate rejects the profile afterwards.
func (p *Profile) Retain(t tag.Tag) {
	p.rules[t] = Rule{Action: ActionKeep, AppliesInSequence: true}
}

// Validate checks the table covers every mandatory identifying tag with a
// non-Keep rule and that constant rules carry a value.
func (p *Profile) Validate() error {
	if len(p.rules) == 0 {
		return &RuleTableError{Reason: "empty rule table"}
	}
	for _, t := range mandatoryTags {
		rule, ok := p.rules[t]
		if !ok {
			return &RuleTableError{Reason: fmt.Sprintf("no rule for mandatory tag %v", t)}
		}
		if rule.Action == ActionKeep {
			return &RuleTableError{Reason: fmt.Sprintf("mandatory tag %v must not be kept", t)}
		}
	}
	for t, rule := range p.rules {
		if rule.Action == ActionReplaceConstant && rule.Constant == "" {
			return &RuleTableError{Reason: fmt.Sprintf("constant rule for %v has no value", t)}
		}
	}
	return nil
}

// isPrivate reports whether a tag is vendor-specific (odd group number).
func isPrivate(t tag.Tag) bool {
	return t.Group%2 == 1
}

// Lookup resolves the rule for a tag: exact match first, then group
// wildcards, then the private-tag policy, then keep.
func (p *Profile) Lookup(t tag.Tag, inSequence bool) Rule {
	if rule, ok := p.rules[t]; ok {
		if inSequence && !rule.AppliesInSequence {
			return Rule{Action: ActionKeep}
		}
		return rule
	}
	for _, g := range p.groups {
		if t.Group >= g.Low && t.Group <= g.High {
			if inSequence && !g.Rule.AppliesInSequence {
				return Rule{Action: ActionKeep}
			}
			return g.Rule
		}
	}
	if isPrivate(t) && !p.privateWhitelist[t] {
		return Rule{Action: ActionRemove, AppliesInSequence: true}
	}
	return Rule{Action: ActionKeep}
}
