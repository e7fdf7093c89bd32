package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	connTimeout    = 10 * time.Second
	reconnInterval = time.Minute
	disconnQuiesce = 250
)

var (
	errPublishTimeout     = errors.New("failed to publish due to timeout reached")
	errSubscribeTimeout   = errors.New("failed to subscribe due to timeout reached")
	errUnsubscribeTimeout = errors.New("failed to unsubscribe due to timeout reached")
	errConnectTimeout     = errors.New("timeout reached while connecting to MQTT broker")
	errEmptyTopic         = errors.New("empty topic")
	errEmptyID            = errors.New("empty ID")
)

// Config is the broker connection shared by the coordinator and drones.
type Config struct {
	Address  string        `env:"ADDRESS"    envDefault:"tcp://localhost:1883"`
	QoS      uint8         `env:"QOS"        envDefault:"2"`
	Timeout  time.Duration `env:"TIMEOUT"    envDefault:"30s"`
	Username string        `env:"CLIENT_ID"`
	Password string        `env:"CLIENT_KEY"`
}

// Will is the last will a drone leaves on its connection.
type Will struct {
	Topics  Topics
	DroneID string
}

type Handler func(topic string, msg map[string]any) error

type PubSub interface {
	Publish(ctx context.Context, topic string, msg any) error
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Unsubscribe(ctx context.Context, topic string) error
	Disconnect(ctx context.Context) error
}

type pubsub struct {
	client  mqtt.Client
	qos     byte
	timeout time.Duration
	logger  *slog.Logger
}

// NewPubSub connects clientID to the broker. A non-nil will makes the broker
// announce the drone offline when the connection drops.
func NewPubSub(cfg Config, clientID string, will *Will, logger *slog.Logger) (PubSub, error) {
	if clientID == "" {
		return nil, errEmptyID
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("client_id", clientID))

	opts, err := clientOptions(cfg, clientID, will, logger)
	if err != nil {
		return nil, err
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, errConnectTimeout
	}
	if err := token.Error(); err != nil {
		return nil, errors.Join(errors.New("failed to connect to MQTT broker"), err)
	}

	return &pubsub{
		client:  client,
		qos:     cfg.QoS,
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

func (ps *pubsub) Publish(ctx context.Context, topic string, msg any) error {
	if topic == "" {
		return errEmptyTopic
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return ps.wait(ps.client.Publish(topic, ps.qos, false, data), errPublishTimeout)
}

func (ps *pubsub) Subscribe(_ context.Context, topic string, handler Handler) error {
	if topic == "" {
		return errEmptyTopic
	}

	return ps.wait(ps.client.Subscribe(topic, ps.qos, ps.dispatch(handler)), errSubscribeTimeout)
}

func (ps *pubsub) Unsubscribe(_ context.Context, topic string) error {
	if topic == "" {
		return errEmptyTopic
	}

	return ps.wait(ps.client.Unsubscribe(topic), errUnsubscribeTimeout)
}

func (ps *pubsub) Disconnect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ps.client.Disconnect(disconnQuiesce)

	return nil
}

func (ps *pubsub) wait(token mqtt.Token, timeoutErr error) error {
	if !token.WaitTimeout(ps.timeout) {
		return timeoutErr
	}

	return token.Error()
}

func clientOptions(cfg Config, clientID string, will *Will, logger *slog.Logger) (*mqtt.ClientOptions, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Address).
		SetClientID(clientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(connTimeout).
		SetMaxReconnectInterval(reconnInterval)

	if will != nil {
		payload, err := StatusMessage{DroneID: will.DroneID, Status: StatusOffline}.payload()
		if err != nil {
			return nil, err
		}
		opts.SetBinaryWill(will.Topics.DroneOffline(), payload, 1, false)
	}

	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("MQTT connection established", slog.String("broker", cfg.Address))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", slog.Any("error", err))
	})
	opts.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		logger.Info("MQTT reconnecting", slog.String("broker", cfg.Address))
	})

	return opts, nil
}

// dispatch decodes JSON payloads for h. Undecodable payloads and handler
// errors are logged and the message is acknowledged either way.
func (ps *pubsub) dispatch(h Handler) mqtt.MessageHandler {
	return func(_ mqtt.Client, m mqtt.Message) {
		defer m.Ack()

		var msg map[string]any
		if err := json.Unmarshal(m.Payload(), &msg); err != nil {
			ps.logger.Warn("failed to decode MQTT message", slog.String("topic", m.Topic()), slog.Any("error", err))

			return
		}
		if err := h(m.Topic(), msg); err != nil {
			ps.logger.Warn("failed to handle MQTT message", slog.String("topic", m.Topic()), slog.Any("error", err))
		}
	}
}
