// Job - обработка списаний баллов из очереди
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	config "github.com/glkeru/loyalty/ledger/internal/config"
	db "github.com/glkeru/loyalty/ledger/internal/db"
	rabbit "github.com/glkeru/loyalty/ledger/internal/external/rabbitmq"
	interf "github.com/glkeru/loyalty/ledger/internal/interfaces"
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

	// rabbitmq
	reader, err := rabbit.NewRabbitConsumer(cfg.RabbitURL, cfg.RabbitPort, cfg.RabbitUser, cfg.RabbitPassword)
	if err != nil {
		logger.Error(err.Error())
		panic(err)
	}
	defer reader.Close()

	// database
	var storage interf.LedgerStorage
	dt, err := db.NewLedgerDB(cfg.MongoURI, cfg.MongoDatabase, logger)
	if err != nil {
		logger.Error(err.Error())
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
	semenv := os.Getenv("LEDGER_REDEEM_COUNT")
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

	// os signals
	go func() {
		<-interrupt
		cancel()
	}()

	// workers
	wg := &sync.WaitGroup{}
	wg.Add(semcount)
	for i := 0; i < semcount; i++ {
		go worker(ctx, serv, wg, logger, reader)
	}
	wg.Wait()
}

// worker for rabbitmq messages
func worker(ctx context.Context, serv *services.LedgerService, wg *sync.WaitGroup, logger *zap.Logger, reader *rabbit.RabbitConsumer) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
			msg, ok := <-reader.Msg
			if !ok {
				return
			}
			result, err := serv.RedeemFromMessage(ctx, string(msg.Body))
			if err != nil {
				logger.Error(err.Error())
				_ = reader.Processed(ctx, rabbit.RedeemConfirm{
					Success: false,
					Reason:  err.Error(),
				})
				continue
			}
			err = reader.Processed(ctx, rabbit.RedeemConfirm{
				RedemptionID: result.RedemptionID,
				NewBalance:   result.NewBalance,
				Success:      true,
			})
			if err != nil {
				logger.Error(err.Error())
				continue
			}
		}
	}
}
