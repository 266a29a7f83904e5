package dicom

import (
	"errors"
	"io"
	"os"

	"github.com/suyashkumar/dicom/pkg/tag"
)

// ClassifyResult is the minimal identifying tag set of one dataset file.
type ClassifyResult struct {
	StudyUID  string
	SeriesUID string
	SOPUID    string
	Modality  string
}

// classifyStop is the last tag a classification parse needs; everything
// identifying sits at or before SeriesInstanceUID (0020,000E) in tag order.
var classifyStop = tag.SeriesInstanceUID

// initialWindow is the first read size for partial classification. The
// window grows geometrically when the identifying tags sit deeper in the
// file, but pixel data is never decoded.
const initialWindow = 64 << 10

// Classify decides whether path holds a DICOM dataset and extracts its
// identifying tags without decoding the full file. It returns ErrNotDICOM
// when the magic marker is absent or the Study/Series/SOP instance UID set
// is incomplete, and *FormatError for malformed streams.
func Classify(path string) (*ClassifyResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header := make([]byte, preambleLength+4)
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, ErrNotDICOM
	}
	if string(header[preambleLength:preambleLength+4]) != string(magicMarker) {
		return nil, ErrNotDICOM
	}

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()

	window := int64(initialWindow)
	for {
		if window > size {
			window = size
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		buf := make([]byte, window)
		if _, err := io.ReadFull(f, buf); err != nil {
			return nil, err
		}

		file, reachedStop, err := decode(buf, &classifyStop)
		if err != nil {
			var fe *FormatError
			if errors.As(err, &fe) && window < size {
				window *= 4
				continue
			}
			return nil, err
		}
		if !reachedStop && window < size {
			// Clean element boundary at the window edge but the
			// identifying tags may still lie beyond it.
			window *= 4
			continue
		}
		return resultFrom(file)
	}
}

func resultFrom(f *File) (*ClassifyResult, error) {
	r := &ClassifyResult{
		StudyUID:  f.Data.GetString(tag.StudyInstanceUID),
		SeriesUID: f.Data.GetString(tag.SeriesInstanceUID),
		SOPUID:    f.Data.GetString(tag.SOPInstanceUID),
		Modality:  f.Data.GetString(tag.Modality),
	}
	if r.StudyUID == "" || r.SeriesUID == "" || r.SOPUID == "" {
		return nil, ErrNotDICOM
	}
	return r, nil
}
