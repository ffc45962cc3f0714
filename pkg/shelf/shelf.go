// Package shelf provides the public API for opening a shelf of record
// collections. The implementation stays internal; callers work through the
// interfaces in pkg/types.
package shelf

import (
	"github.com/mesh-intelligence/shelf/internal/shelf"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

// Version is the release of the shelf module.
const Version = "0.3.0"

// NewShelf creates a new shelf using the built-in entity schemas.
// The shelf is not attached; call Attach with a Config to initialize.
//
// Example:
//
//	s := shelf.NewShelf()
//	err := s.Attach(types.Config{
//	    Backend: types.BackendJSON,
//	    DataDir: ".shelf-db",
//	})
//	defer s.Detach()
//	tasks, err := s.Repository("task")
func NewShelf() types.Shelf {
	return shelf.New()
}
