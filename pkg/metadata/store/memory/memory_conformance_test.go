package memory_test

import (
	"testing"

	"github.com/marmos91/mtpd/pkg/metadata"
	"github.com/marmos91/mtpd/pkg/metadata/store/memory"
	"github.com/marmos91/mtpd/pkg/metadata/storetest"
)

func TestConformance(t *testing.T) {
	storetest.RunConformanceSuite(t, func(t *testing.T) metadata.Store {
		return memory.NewMemoryMetadataStore()
	})
}
