// Package rmq connects the NER worker to RabbitMQ: one connection consumes the task queue, a second one publishes
// responses.
package rmq

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
	"text2phenotype.com/ner/logger"
)

type Config struct {
	Host                    string `envconfig:"MDL_COMN_RMQ_HOST" required:"true"`
	Port                    int    `envconfig:"MDL_COMN_RMQ_PORT" required:"true"`
	Username                string `envconfig:"MDL_COMN_RMQ_USERNAME" required:"true"`
	Password                string `envconfig:"MDL_COMN_RMQ_PASSWORD" required:"true"`
	Vhost                   string `envconfig:"MDL_COMN_RMQ_VHOST" default:"/"`
	Exchange                string `envconfig:"MDL_COMN_RMQ_DEFAULT_EXCHANGE" default:"text2phenotype-default-exchange"`
	MaxParallelRequestCount int    `envconfig:"NER_MQ_MAX_PARALLEL_REQUESTS" default:"5"`
	TaskQueue               string `envconfig:"MDL_COMN_NER_TASK_QUEUE" required:"true"`
	ResponseQueue           string `envconfig:"MDL_COMN_NER_RESPONSE_QUEUE" required:"true"`
}

// URI is the broker address built from the config, credentials are escaped.
func (config Config) URI() string {
	return amqp.URI{
		Scheme:   "amqp",
		Host:     config.Host,
		Port:     config.Port,
		Username: config.Username,
		Password: config.Password,
		Vhost:    config.Vhost,
	}.String()
}

type Client struct {
	Deliveries     <-chan amqp.Delivery
	ReqChanErrors  <-chan *amqp.Error
	RespChanErrors <-chan *amqp.Error
	config         Config
	consumer       *amqp.Connection
	publisher      *amqp.Connection
	publishing     *amqp.Channel
	nerLogger      zerolog.Logger
}

func NewClient() (*Client, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, fmt.Errorf("rmq config: %w", err)
	}
	client := &Client{config: config, nerLogger: logger.NewLogger("RMQ client")}
	if err := client.connect(); err != nil {
		client.Close()
		return nil, err
	}
	client.nerLogger.Info().
		Str("task_queue", config.TaskQueue).
		Str("response_queue", config.ResponseQueue).
		Msg("Consuming")
	return client, nil
}

func (c *Client) connect() error {
	var err error
	var consuming *amqp.Channel
	if c.publisher, c.publishing, err = dial(c.config.URI()); err != nil {
		return fmt.Errorf("publisher connection: %w", err)
	}
	if c.consumer, consuming, err = dial(c.config.URI()); err != nil {
		return fmt.Errorf("consumer connection: %w", err)
	}

	// The task queue is provisioned with the exchange, the worker only checks that it exists.
	queue, err := consuming.QueueDeclarePassive(c.config.TaskQueue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("task queue %s: %w", c.config.TaskQueue, err)
	}
	if err = consuming.QueueBind(queue.Name, queue.Name, c.config.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind %s: %w", queue.Name, err)
	}
	if err = consuming.Qos(c.config.MaxParallelRequestCount, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}
	if c.Deliveries, err = consuming.Consume(queue.Name, "", false, false, false, false, nil); err != nil {
		return fmt.Errorf("consume %s: %w", queue.Name, err)
	}
	c.ReqChanErrors = consuming.NotifyClose(make(chan *amqp.Error, 1))
	c.RespChanErrors = c.publishing.NotifyClose(make(chan *amqp.Error, 1))
	return nil
}

// SendResponse publishes msg to replyTo through the default exchange, or to the response queue when replyTo is
// empty.
func (c *Client) SendResponse(replyTo string, msg amqp.Publishing) error {
	exchange, routingKey := ResponseRoute(c.config, replyTo)
	return c.publishing.Publish(exchange, routingKey, false, false, msg)
}

// ResponseRoute picks the exchange and routing key of a response.
func ResponseRoute(config Config, replyTo string) (exchange string, routingKey string) {
	if replyTo != "" {
		return "", replyTo
	}
	return config.Exchange, config.ResponseQueue
}

func (c *Client) Close() {
	for _, conn := range []*amqp.Connection{c.consumer, c.publisher} {
		if conn != nil {
			_ = conn.Close()
		}
	}
}

func dial(uri string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}
