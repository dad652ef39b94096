package assets

import "time"

// Asset is one media file and its position in the unit/collection/item
// hierarchy, plus the engine handles assigned at first staging.
type Asset struct {
	ID               int64
	Name             string
	OriginalFilename string
	// Pathname is the asset's path relative to the media root; empty until
	// the file has been uploaded into local storage.
	Pathname      string
	MediaInfoPath string

	UnitID         int64
	UnitName       string
	CollectionID   int64
	CollectionName string
	TaskManager    string
	ItemID         int64
	ItemName       string

	// DatasetRef and ContainerRef are engine-assigned, set exactly once when
	// the asset is first staged, then immutable.
	DatasetRef   string
	ContainerRef string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Staged reports whether the asset has both engine handles.
func (a *Asset) Staged() bool {
	return a != nil && a.DatasetRef != "" && a.ContainerRef != ""
}
