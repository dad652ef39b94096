package jobs

import "errors"

var (
	// ErrWorkflowNotFound means the engine has no workflow with the given ID.
	ErrWorkflowNotFound = errors.New("workflow not found")
	// ErrInputCountMismatch means the supplied inputs do not fill the
	// workflow's declared input slots exactly.
	ErrInputCountMismatch = errors.New("input count mismatch")
	// ErrInconsistentInputSet means a supplementary input belongs to a
	// different asset than the one being submitted.
	ErrInconsistentInputSet = errors.New("inconsistent input set")
	// ErrMissingTrainingAsset means a face-recognition step could not resolve
	// its training photos for the asset's collection.
	ErrMissingTrainingAsset = errors.New("missing training asset")
	// ErrAssetNotFound means the asset ID has no local record.
	ErrAssetNotFound = errors.New("asset not found")
	// ErrAssetNotStaged means the asset has no media file in local storage,
	// so there is nothing to upload to the engine.
	ErrAssetNotStaged = errors.New("asset not staged")
)
