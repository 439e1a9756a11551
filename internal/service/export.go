package service

import (
	"encoding/json"
	"fmt"

	"github.com/ad-tracker/upload-scheduler-go/internal/db/models"
)

// ParseExport decodes an export document. Both arrays must be present;
// an empty array is fine, a missing key or null is not.
func ParseExport(raw []byte) (*models.ExportData, error) {
	var shape map[string]json.RawMessage
	if err := json.Unmarshal(raw, &shape); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImportFormat, err)
	}

	for _, key := range []string{"profiles", "videos"} {
		v, ok := shape[key]
		if !ok || len(v) == 0 || v[0] != '[' {
			return nil, fmt.Errorf("%w: %q must be an array", ErrInvalidImportFormat, key)
		}
	}

	var data models.ExportData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImportFormat, err)
	}
	return &data, nil
}

// CheckExport rejects a document whose arrays are missing.
func CheckExport(data *models.ExportData) error {
	if data == nil || data.Profiles == nil || data.Videos == nil {
		return ErrInvalidImportFormat
	}
	return nil
}
