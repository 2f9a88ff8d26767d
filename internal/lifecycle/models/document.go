package models

// Document is the slice of the externally owned document record this service
// needs: who owns it and where the generated file lives.
type Document struct {
	ID         int64
	OwnerID    string
	StorageKey string
}
