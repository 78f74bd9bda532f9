package config

import "os"

// Конфигурация процесса: читается один раз в main,
// компоненты получают значения явно, без глобальных переменных
type Config struct {
	Port        string
	MetricsPort string

	MongoURI      string
	MongoDatabase string

	CacheAddr     string
	CacheUser     string
	CachePassword string

	KafkaURL  string
	KafkaPort string

	RabbitURL      string
	RabbitPort     string
	RabbitUser     string
	RabbitPassword string

	WhatsAppToken string
	PhoneNumberID string
	VerifyToken   string
	RestaurantID  string
}

func Load() Config {
	return Config{
		Port:        os.Getenv("LEDGER_PORT"),
		MetricsPort: os.Getenv("LEDGER_METRICS_PORT"),

		MongoURI:      os.Getenv("LEDGER_MONGO"),
		MongoDatabase: os.Getenv("LEDGER_MONGO_BASE"),

		CacheAddr:     os.Getenv("LEDGER_CACHE_URL"),
		CacheUser:     os.Getenv("LEDGER_CACHE_USER"),
		CachePassword: os.Getenv("LEDGER_CACHE_PWD"),

		KafkaURL:  os.Getenv("KAFKA_POS_URL"),
		KafkaPort: os.Getenv("KAFKA_POS_PORT"),

		RabbitURL:      os.Getenv("RABBIT_URL"),
		RabbitPort:     os.Getenv("RABBIT_PORT"),
		RabbitUser:     os.Getenv("RABBIT_USER"),
		RabbitPassword: os.Getenv("RABBIT_PASSWORD"),

		WhatsAppToken: os.Getenv("WHATSAPP_TOKEN"),
		PhoneNumberID: os.Getenv("PHONE_NUMBER_ID"),
		VerifyToken:   os.Getenv("VERIFY_TOKEN"),
		RestaurantID:  os.Getenv("RESTAURANT_ID"),
	}
}
