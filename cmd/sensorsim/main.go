// Command sensorsim publishes synthetic sensor frames for local development.
// Each frame is a partial payload touching a random subset of channels, the
// same shape real field devices emit.
//
// Usage:
//
//	go run ./cmd/sensorsim -broker tcp://localhost:1883 -topic slope/sensors -interval 2s
//
// With no -broker, frames are printed to stdout instead.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// channelWalk is a bounded random walk for one sensor channel.
type channelWalk struct {
	name  string
	value float64
	step  float64
	min   float64
	max   float64
}

func (c *channelWalk) next(rng *rand.Rand) float64 {
	c.value += (rng.Float64()*2 - 1) * c.step
	if c.value < c.min {
		c.value = c.min
	}
	if c.value > c.max {
		c.value = c.max
	}
	return c.value
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	broker := flag.String("broker", "", "MQTT broker URL, e.g. tcp://localhost:1883 (empty: print to stdout)")
	topic := flag.String("topic", "slope/sensors", "topic to publish frames on")
	interval := flag.Duration("interval", 2*time.Second, "delay between frames")
	count := flag.Int("count", 0, "number of frames to publish (0: until interrupted)")
	seed := flag.Int64("seed", 0, "random seed (0: time-based)")
	flag.Parse()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	publish, cleanup, err := newPublisher(*broker, *topic)
	if err != nil {
		return err
	}
	defer cleanup()

	walks := []*channelWalk{
		{name: "tiltmeter", value: 15, step: 1.5, min: 0, max: 45},
		{name: "piezometer", value: 12, step: 1.0, min: 0, max: 30},
		{name: "vibration", value: 8, step: 2.0, min: 0, max: 25},
		{name: "crackmeter", value: 18, step: 0.8, min: 0, max: 60},
	}
	statuses := []string{"online", "online", "online", "degraded"}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	published := 0
	for {
		frame := buildFrame(rng, walks, statuses)
		payload, err := json.Marshal(frame)
		if err != nil {
			return fmt.Errorf("marshal frame: %w", err)
		}
		if err := publish(payload); err != nil {
			return fmt.Errorf("publish frame: %w", err)
		}

		published++
		if *count > 0 && published >= *count {
			log.Printf("published %d frames", published)
			return nil
		}

		select {
		case <-sigCh:
			log.Printf("interrupted after %d frames", published)
			return nil
		case <-ticker.C:
		}
	}
}

// buildFrame picks a random non-empty subset of channels, mimicking devices
// that report independently. Status rides along on roughly every fifth frame.
func buildFrame(rng *rand.Rand, walks []*channelWalk, statuses []string) map[string]any {
	frame := map[string]any{}
	for _, w := range walks {
		if rng.Float64() < 0.6 {
			frame[w.name] = round1(w.next(rng))
		}
	}
	if len(frame) == 0 {
		w := walks[rng.Intn(len(walks))]
		frame[w.name] = round1(w.next(rng))
	}
	if rng.Float64() < 0.2 {
		frame["status"] = statuses[rng.Intn(len(statuses))]
	}
	return frame
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

// newPublisher returns a publish function for the broker, or a stdout writer
// when no broker is given.
func newPublisher(broker, topic string) (func([]byte) error, func(), error) {
	if broker == "" {
		return func(payload []byte) error {
			_, err := fmt.Println(string(payload))
			return err
		}, func() {}, nil
	}

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(fmt.Sprintf("sensorsim-%d", os.Getpid())).
		SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", broker, token.Error())
	}
	log.Printf("connected to %s, publishing on %s", broker, topic)

	publish := func(payload []byte) error {
		token := client.Publish(topic, 1, false, payload)
		token.Wait()
		return token.Error()
	}
	cleanup := func() { client.Disconnect(250) }
	return publish, cleanup, nil
}
