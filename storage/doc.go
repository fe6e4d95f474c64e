// Package storage defines the persistence interfaces used by the pipeline
// and the MUS wire format for stored records. The BadgerDB implementation
// lives in the badger subpackage; the filesystem document source lives here.
package storage
