// Package model builds the registration records the bridge advertises to
// the cloud for host entities.
//
// A Model carries the category product key, the sanitised display name,
// the logical id ({registry id}.{platform}), the backing device id and the
// capability list. Capabilities come from the attribute package's
// per-category tables intersected with the entity's live attributes.
// Entities that yield no capabilities are rejected with ErrUnsupported.
package model
