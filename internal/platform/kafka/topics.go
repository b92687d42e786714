package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	kafkago "github.com/segmentio/kafka-go"
)

// EnsureTopics creates the topics that do not exist yet through the cluster
// controller. Existing topics are left untouched.
func EnsureTopics(ctx context.Context, brokers []string, topics []string, partitions, replication int) ([]string, error) {
	if len(brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}

	conn, err := kafkago.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", brokers[0], err)
	}
	defer conn.Close()

	existing, err := conn.ReadPartitions()
	if err != nil {
		return nil, fmt.Errorf("read partitions: %w", err)
	}
	missing := missingTopics(topics, existing)
	if len(missing) == 0 {
		return nil, nil
	}

	controller, err := conn.Controller()
	if err != nil {
		return nil, fmt.Errorf("find controller: %w", err)
	}
	dialer := &kafkago.Dialer{}
	controllerConn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return nil, fmt.Errorf("dial controller: %w", err)
	}
	defer controllerConn.Close()

	configs := make([]kafkago.TopicConfig, 0, len(missing))
	for _, topic := range missing {
		configs = append(configs, kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     partitions,
			ReplicationFactor: replication,
		})
	}
	if err := controllerConn.CreateTopics(configs...); err != nil && !errors.Is(err, kafkago.TopicAlreadyExists) {
		return nil, fmt.Errorf("create topics: %w", err)
	}
	return missing, nil
}

func missingTopics(wanted []string, existing []kafkago.Partition) []string {
	present := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		present[p.Topic] = struct{}{}
	}
	var missing []string
	for _, topic := range wanted {
		if _, ok := present[topic]; !ok {
			missing = append(missing, topic)
		}
	}
	return missing
}
