package dicom

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/suyashkumar/dicom/pkg/tag"
)

func writeTestFile(t *testing.T, dir, name string, f *File) string {
	t.Helper()
	data, err := f.EncodeBytes()
	if err != nil {
		t.Fatalf("EncodeBytes() error = %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func testFile(studyUID, seriesUID, sopUID string) *File {
	f := NewFile(ExplicitVRLittleEndian)
	f.Data.PutString(tag.SOPInstanceUID, "UI", sopUID)
	f.Data.PutString(tag.Modality, "CS", "CT")
	f.Data.PutString(tag.StudyInstanceUID, "UI", studyUID)
	f.Data.PutString(tag.SeriesInstanceUID, "UI", seriesUID)
	return f
}

func TestClassify(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "a.dcm", testFile("1.2.3", "1.2.3.1", "1.2.3.1.1"))

	got, err := Classify(path)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	want := ClassifyResult{StudyUID: "1.2.3", SeriesUID: "1.2.3.1", SOPUID: "1.2.3.1.1", Modality: "CT"}
	if *got != want {
		t.Errorf("Classify() = %+v, want %+v", *got, want)
	}
}

func TestClassifyRejectsNonDICOM(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		data []byte
	}{
		{"random bytes", []byte("definitely not a dicom file, just some text")},
		{"empty", nil},
		{"right size wrong magic", make([]byte, 200)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			if err := os.WriteFile(path, tt.data, 0644); err != nil {
				t.Fatal(err)
			}
			_, err := Classify(path)
			if !errors.Is(err, ErrNotDICOM) {
				t.Errorf("Classify() error = %v, want ErrNotDICOM", err)
			}
		})
	}
}

func TestClassifyRejectsIncompleteUIDSet(t *testing.T) {
	dir := t.TempDir()

	f := NewFile(ExplicitVRLittleEndian)
	f.Data.PutString(tag.SOPInstanceUID, "UI", "1.2.3.1.1")
	f.Data.PutString(tag.StudyInstanceUID, "UI", "1.2.3")
	// No SeriesInstanceUID.
	path := writeTestFile(t, dir, "noseries.dcm", f)

	_, err := Classify(path)
	if !errors.Is(err, ErrNotDICOM) {
		t.Errorf("Classify() error = %v, want ErrNotDICOM", err)
	}
}

func TestClassifyStopsBeforePixelData(t *testing.T) {
	dir := t.TempDir()

	f := testFile("1.2.3", "1.2.3.1", "1.2.3.1.1")
	// A pixel payload with a length the classifier window cannot hold
	// unless it keeps growing; classification must still succeed because
	// the identifying tags all precede it.
	pixels := make([]byte, 2*initialWindow)
	f.Data.Elements = append(f.Data.Elements, &Element{
		Tag:   tag.PixelData,
		VR:    "OB",
		Value: &Bytes{Data: pixels},
	})
	path := writeTestFile(t, dir, "big.dcm", f)

	got, err := Classify(path)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.SeriesUID != "1.2.3.1" {
		t.Errorf("SeriesUID = %q, want 1.2.3.1", got.SeriesUID)
	}
}
