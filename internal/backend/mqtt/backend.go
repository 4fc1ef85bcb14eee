package mqtt

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"io/ioutil"
	"regexp"
	"sync"
	"text/template"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/brocaar/chirpstack-fuota-node/internal/backend"
	"github.com/brocaar/lorawan"
)

var devEUIRegexp = regexp.MustCompile(`/device/([0-9a-fA-F]{16})/`)

// Config holds the MQTT backend configuration.
type Config struct {
	Server               string
	Username             string
	Password             string
	QOS                  uint8         `mapstructure:"qos"`
	CleanSession         bool          `mapstructure:"clean_session"`
	ClientID             string        `mapstructure:"client_id"`
	CACert               string        `mapstructure:"ca_cert"`
	TLSCert              string        `mapstructure:"tls_cert"`
	TLSKey               string        `mapstructure:"tls_key"`
	MaxReconnectInterval time.Duration `mapstructure:"max_reconnect_interval"`

	DownlinkTopic      string `mapstructure:"downlink_topic"`
	EventTopicTemplate string `mapstructure:"event_topic_template"`
}

// downlinkPayload is the JSON downlink command published by the application
// server. The DevEUI is taken from the topic when omitted.
type downlinkPayload struct {
	DevEUI    lorawan.EUI64 `json:"devEUI"`
	Confirmed bool          `json:"confirmed"`
	FPort     uint8         `json:"fPort"`
	Data      []byte        `json:"data"`
}

// Backend implements a MQTT pub-sub backend.
type Backend struct {
	wg sync.WaitGroup

	config            Config
	conn              paho.Client
	downlinkFrameChan chan backend.DownlinkFrame
	eventTemplate     *template.Template
}

// NewBackend creates a new Backend and connects to the MQTT broker.
func NewBackend(c Config) (*Backend, error) {
	b, err := newBackend(c)
	if err != nil {
		return nil, err
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(b.config.Server)
	opts.SetUsername(b.config.Username)
	opts.SetPassword(b.config.Password)
	opts.SetCleanSession(b.config.CleanSession)
	opts.SetClientID(b.config.ClientID)
	opts.SetOnConnectHandler(b.onConnected)
	opts.SetConnectionLostHandler(b.onConnectionLost)
	if b.config.MaxReconnectInterval != 0 {
		opts.SetMaxReconnectInterval(b.config.MaxReconnectInterval)
	}

	tlsconfig, err := newTLSConfig(b.config.CACert, b.config.TLSCert, b.config.TLSKey)
	if err != nil {
		return nil, errors.Wrap(err, "backend/mqtt: load tls config error")
	}
	if tlsconfig != nil {
		opts.SetTLSConfig(tlsconfig)
	}

	log.WithField("server", b.config.Server).Info("backend/mqtt: connecting to mqtt broker")
	b.conn = paho.NewClient(opts)
	for {
		if token := b.conn.Connect(); token.Wait() && token.Error() != nil {
			log.Errorf("backend/mqtt: connecting to mqtt broker failed, will retry in 2s: %s", token.Error())
			time.Sleep(2 * time.Second)
		} else {
			break
		}
	}

	return b, nil
}

func newBackend(c Config) (*Backend, error) {
	var err error
	b := Backend{
		config:            c,
		downlinkFrameChan: make(chan backend.DownlinkFrame),
	}

	b.eventTemplate, err = template.New("event").Parse(b.config.EventTopicTemplate)
	if err != nil {
		return nil, errors.Wrap(err, "backend/mqtt: parse event topic template error")
	}

	return &b, nil
}

// Close unsubscribes from the downlink topic, waits for the pending frames
// and closes the connection.
func (b *Backend) Close() error {
	log.Info("backend/mqtt: closing backend")

	log.WithField("topic", b.config.DownlinkTopic).Info("backend/mqtt: unsubscribing from downlink topic")
	if token := b.conn.Unsubscribe(b.config.DownlinkTopic); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "backend/mqtt: unsubscribe from %s error", b.config.DownlinkTopic)
	}

	log.Info("backend/mqtt: handling last messages")
	b.wg.Wait()
	close(b.downlinkFrameChan)
	b.conn.Disconnect(250)
	return nil
}

// DownlinkFrameChan returns the downlink frame channel.
func (b *Backend) DownlinkFrameChan() chan backend.DownlinkFrame {
	return b.downlinkFrameChan
}

// PublishEvent publishes the given event as JSON.
func (b *Backend) PublishEvent(devEUI lorawan.EUI64, event string, v interface{}) error {
	topic, err := b.eventTopic(devEUI, event)
	if err != nil {
		return err
	}

	bb, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "backend/mqtt: marshal event error")
	}

	log.WithFields(log.Fields{
		"topic":   topic,
		"qos":     b.config.QOS,
		"dev_eui": devEUI,
	}).Debug("backend/mqtt: publishing event")

	mqttEventCounter(event).Inc()
	if token := b.conn.Publish(topic, b.config.QOS, false, bb); token.Wait() && token.Error() != nil {
		return errors.Wrap(token.Error(), "backend/mqtt: publish event error")
	}
	return nil
}

func (b *Backend) eventTopic(devEUI lorawan.EUI64, event string) (string, error) {
	topic := bytes.NewBuffer(nil)
	if err := b.eventTemplate.Execute(topic, struct {
		DevEUI    lorawan.EUI64
		EventType string
	}{devEUI, event}); err != nil {
		return "", errors.Wrap(err, "backend/mqtt: execute event topic template error")
	}
	return topic.String(), nil
}

func (b *Backend) downlinkHandler(c paho.Client, msg paho.Message) {
	b.wg.Add(1)
	defer b.wg.Done()

	frame, err := decodeDownlink(msg.Topic(), msg.Payload())
	if err != nil {
		log.WithFields(log.Fields{
			"topic":       msg.Topic(),
			"data_base64": base64.StdEncoding.EncodeToString(msg.Payload()),
		}).WithError(err).Error("backend/mqtt: decode downlink frame error")
		return
	}

	mqttDownlinkCounter().Inc()
	log.WithFields(log.Fields{
		"dev_eui": frame.DevEUI,
		"f_port":  frame.FPort,
	}).Debug("backend/mqtt: downlink frame received")

	b.downlinkFrameChan <- frame
}

func decodeDownlink(topic string, b []byte) (backend.DownlinkFrame, error) {
	var pl downlinkPayload
	if err := json.Unmarshal(b, &pl); err != nil {
		return backend.DownlinkFrame{}, errors.Wrap(err, "unmarshal json error")
	}

	var zero lorawan.EUI64
	if pl.DevEUI == zero {
		match := devEUIRegexp.FindStringSubmatch(topic)
		if match == nil {
			return backend.DownlinkFrame{}, errors.New("devEUI missing in payload and topic")
		}
		if err := pl.DevEUI.UnmarshalText([]byte(match[1])); err != nil {
			return backend.DownlinkFrame{}, errors.Wrap(err, "decode devEUI error")
		}
	}

	return backend.DownlinkFrame{
		DevEUI: pl.DevEUI,
		FPort:  pl.FPort,
		Data:   pl.Data,
	}, nil
}

func (b *Backend) onConnected(c paho.Client) {
	mqttConnectCounter().Inc()
	log.Info("backend/mqtt: connected to mqtt server")

	for {
		log.WithFields(log.Fields{
			"topic": b.config.DownlinkTopic,
			"qos":   b.config.QOS,
		}).Info("backend/mqtt: subscribing to downlink topic")
		if token := b.conn.Subscribe(b.config.DownlinkTopic, b.config.QOS, b.downlinkHandler); token.Wait() && token.Error() != nil {
			log.WithFields(log.Fields{
				"topic": b.config.DownlinkTopic,
				"qos":   b.config.QOS,
			}).Errorf("backend/mqtt: subscribe error: %s", token.Error())
			time.Sleep(time.Second)
			continue
		}
		break
	}
}

func (b *Backend) onConnectionLost(c paho.Client, reason error) {
	mqttDisconnectCounter().Inc()
	log.Errorf("backend/mqtt: mqtt connection error: %s", reason)
}

func newTLSConfig(cafile, certFile, certKeyFile string) (*tls.Config, error) {
	if cafile == "" && certFile == "" && certKeyFile == "" {
		return nil, nil
	}

	tlsConfig := &tls.Config{}

	// Import trusted certificates from CAfile.pem.
	if cafile != "" {
		cacert, err := ioutil.ReadFile(cafile)
		if err != nil {
			log.WithError(err).Error("backend/mqtt: could not load ca certificate")
			return nil, err
		}
		certpool := x509.NewCertPool()
		certpool.AppendCertsFromPEM(cacert)

		tlsConfig.RootCAs = certpool // RootCAs = certs used to verify server cert.
	}

	// Import certificate and the key
	if certFile != "" && certKeyFile != "" {
		kp, err := tls.LoadX509KeyPair(certFile, certKeyFile)
		if err != nil {
			log.WithError(err).Error("backend/mqtt: could not load mqtt tls key-pair")
			return nil, err
		}
		tlsConfig.Certificates = []tls.Certificate{kp}
	}

	return tlsConfig, nil
}
