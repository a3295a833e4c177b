package relay

import (
	"github.com/janhq/jan-relay/services/relay-api/internal/domain/generation"
	domain "github.com/janhq/jan-relay/services/relay-api/internal/domain/relay"
)

var (
	_ domain.Repository     = (*PostgresRepository)(nil)
	_ generation.Repository = (*PostgresRepository)(nil)
	_ domain.Repository     = (*MemoryRepository)(nil)
	_ generation.Repository = (*MemoryRepository)(nil)
)
