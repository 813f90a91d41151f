package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/config"
	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/env"
	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/power"
)

// RunConsoleMQTT subscribes to both sample topics and prints every message
// to out until ctx is done.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config, log logrus.FieldLogger, out io.Writer) error {
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("console: MQTT_BROKER is not set")
	}
	log = component(log, "console")

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(mqttClientID(cfg.MQTTClientID + "-console"))

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.WithField("broker", cfg.MQTTBroker).Info("console: connected")
	defer client.Disconnect(250)

	subs := map[string]func([]byte) (string, error){
		cfg.TopicEnvironment: formatEnvironmental,
		cfg.TopicElectrical:  formatElectrical,
	}
	for topic, format := range subs {
		format := format
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			line, err := format(msg.Payload())
			if err != nil {
				log.WithError(err).WithField("topic", msg.Topic()).Warn("console: bad payload")
				return
			}
			fmt.Fprintln(out, line)
		})
		token.Wait()
		if err := token.Error(); err != nil {
			return err
		}
		log.WithField("topic", topic).Info("console: subscribed")
	}

	<-ctx.Done()
	log.Info("console: shutting down")
	return nil
}

func formatEnvironmental(payload []byte) (string, error) {
	var s env.Sample
	if err := json.Unmarshal(payload, &s); err != nil {
		return "", err
	}
	return fmt.Sprintf("[ENV ] %s  T=%6.2f°C  RH=%6.2f%%  dew=%6.2f°C  hi=%6.2f°C",
		s.Timestamp.Format("15:04:05"), s.TemperatureC, s.HumidityPct, s.DewPointC, s.HeatIndexC), nil
}

func formatElectrical(payload []byte) (string, error) {
	var s power.Sample
	if err := json.Unmarshal(payload, &s); err != nil {
		return "", err
	}
	return fmt.Sprintf("[PZEM] %s  U=%6.2fV  I=%6.3fA  P=%7.2fW  E=%.3f%s  f=%5.2fHz  PF=%4.2f  alarm=%d",
		s.Timestamp.Format("15:04:05"), s.VoltageV, s.CurrentA, s.PowerW, s.Energy, s.EnergyUnit,
		s.FrequencyHz, s.PowerFactor, s.Alarm), nil
}
