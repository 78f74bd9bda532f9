// Job - обработка транзакций кассы
// Опрос Kafka -> начисление баллов с датой сгорания
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	config "github.com/glkeru/loyalty/ledger/internal/config"
	db "github.com/glkeru/loyalty/ledger/internal/db"
	kafka "github.com/glkeru/loyalty/ledger/internal/external/kafka"
	interf "github.com/glkeru/loyalty/ledger/internal/interfaces"
	model "github.com/glkeru/loyalty/ledger/internal/models"
	services "github.com/glkeru/loyalty/ledger/internal/services"
	"go.uber.org/zap"
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

	// kafka
	reader, err := kafka.GetNewReader(cfg.KafkaURL, cfg.KafkaPort, "transactions")
	if err != nil {
		panic(err)
	}
	defer reader.CloseReader()

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

	// services
	serv := services.NewLedgerService(logger, storage, cache)

	// start
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var semcount int
	semenv := os.Getenv("LEDGER_ORDERS_COUNT")
	if semenv == "" {
		semcount = 5
	} else {
		semcount, err = strconv.Atoi(semenv)
		if err != nil {
			semcount = 5
		}
	}
	if semcount == 0 {
		semcount = 1
	}

	wg := &sync.WaitGroup{}
	semaphore := make(chan struct{}, semcount)

loop:
	for {
		select {
		case <-interrupt:
			cancel()
			break loop
		case <-ctx.Done():
			break loop
		default:

			tnx, err := reader.GetNewMessage(ctx)
			if err != nil {
				logger.Error(err.Error())
				return
			}

			semaphore <- struct{}{}
			wg.Add(1)
			go func(tnx string) {
				defer wg.Done()
				defer func() { <-semaphore }()
				_, err := serv.EarnFromMessage(ctx, tnx)
				if err != nil {
					// повторная доставка той же транзакции - не ошибка
					if errors.Is(err, model.ErrDuplicateTransaction) {
						logger.Info("duplicate transaction skipped", zap.String("message", tnx))
						return
					}
					logger.Error(err.Error())
					return
				}
			}(tnx)
		}
	}
	wg.Wait()
}
