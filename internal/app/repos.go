package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/hatchmark-backend/internal/platform/logger"
	"github.com/yungbote/hatchmark-backend/internal/repos"
)

type Repos struct {
	Ledger repos.LedgerRepo
	Outbox repos.OutboxRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Ledger: repos.NewLedgerRepo(db, log),
		Outbox: repos.NewOutboxRepo(db, log),
	}
}
