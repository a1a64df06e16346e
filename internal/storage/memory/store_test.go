package memory

import (
	"testing"

	"ammPool/internal/storage"
	"ammPool/internal/storage/storagetest"
)

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return NewStore()
	})
}
