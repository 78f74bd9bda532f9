// Job - сгорание просроченных баллов
// Просроченные события обнуляются страницами, баланс клиентов уменьшается
package main

import (
	"context"

	"go.uber.org/zap"

	config "github.com/glkeru/loyalty/ledger/internal/config"
	db "github.com/glkeru/loyalty/ledger/internal/db"
	interf "github.com/glkeru/loyalty/ledger/internal/interfaces"
	services "github.com/glkeru/loyalty/ledger/internal/services"
)

func main() {
	// log
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// config
	cfg := config.Load()

	// database
	var storage interf.LedgerStorage
	dt, err := db.NewLedgerDB(cfg.MongoURI, cfg.MongoDatabase, logger)
	if err != nil {
		panic(err)
	}
	storage = dt

	// cache
	var cache interf.CacheStorage
	cacheService, err := db.NewCacheService(cfg.CacheAddr, cfg.CacheUser, cfg.CachePassword)
	if err != nil {
		logger.Error(err.Error())
	} else {
		cache = cacheService
	}

	serv := services.NewLedgerService(logger, storage, cache)
	count, err := serv.RunExpirySweep(context.Background())
	if err != nil {
		logger.Error(err.Error())
		return
	}
	logger.Info("Job expiry sweep is finished", zap.Int("expired", count))
}
