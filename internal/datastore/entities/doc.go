// Package entities defines the GORM entity models for handscan.
//
// # Ownership anchor
//
//   - Client: opaque install identity; owns upload sessions and hands
//
// # Upload lifecycle
//
//   - UploadSession: created -> presigned -> completed
//   - Asset: stored object, inactive until the upload is confirmed
//   - AssetRef: typed attachment of an asset to an owner (OwnerKind + OwnerID)
//
// # Detection lifecycle
//
//   - Hand: one recorded hand of tiles
//   - HandDetection: one inference run, pending -> running -> succeeded|failed
//   - DetectionTile: a kept bounding box of a succeeded run
//
// # Corrections
//
//   - HandCorrection: append-only user-confirmed snapshot
//   - HandTile: one tile of a snapshot, ordered by SortOrder
package entities
