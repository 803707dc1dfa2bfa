package memory

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/chesschain-go/internal/storage"
	"github.com/mcoot/chesschain-go/internal/storage/storagetest"
)

func TestStorageContract(t *testing.T) {
	suite.Run(t, &storagetest.ContractSuite{
		NewStorage: func() storage.Storage { return New() },
	})
}
