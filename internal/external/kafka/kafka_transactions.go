package ledger

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// Поток транзакций кассы
type KafkaTransactions struct {
	reader *kafka.Reader
}

func GetNewReader(url string, port string, topic string) (*KafkaTransactions, error) {
	if url == "" {
		return nil, fmt.Errorf("env KAFKA_POS_URL is not set")
	}
	if port == "" {
		return nil, fmt.Errorf("env KAFKA_POS_PORT is not set")
	}

	kafkaconfig := kafka.ReaderConfig{
		Brokers: []string{url + ":" + port},
		Topic:   topic,
		GroupID: "pos_loyalty",
	}
	return &KafkaTransactions{kafka.NewReader(kafkaconfig)}, nil
}

func (k *KafkaTransactions) GetNewMessage(ctx context.Context) (string, error) {
	msg, err := k.reader.ReadMessage(ctx)
	if err != nil {
		return "", err
	}
	return string(msg.Value), nil
}

func (k *KafkaTransactions) CloseReader() {
	k.reader.Close()
}
