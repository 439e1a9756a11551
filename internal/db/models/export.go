package models

// ExportData is the full snapshot format used by export and import.
type ExportData struct {
	Profiles []*Profile `json:"profiles"`
	Videos   []*Video   `json:"videos"`
}

// ImportResult counts what an import inserted. On a partial failure the
// counts cover the records that were kept.
type ImportResult struct {
	ProfilesImported int `json:"profilesImported"`
	VideosImported   int `json:"videosImported"`
}
