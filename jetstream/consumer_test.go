package jetstream

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConsumerCreateVerb_Ephemeral(t *testing.T) {
	verb := consumerCreateVerb("orders", ConsumerConfig{})
	require.Equal(t, "CONSUMER.CREATE.orders", verb)
}

func TestConsumerCreateVerb_DurableWithFilter(t *testing.T) {
	verb := consumerCreateVerb("orders", ConsumerConfig{Durable: "processor", FilterSubject: "orders.new"})
	require.Equal(t, "CONSUMER.CREATE.orders.processor.orders.new", verb)
}

func TestConsumerCreateVerb_DurableNoFilter(t *testing.T) {
	verb := consumerCreateVerb("orders", ConsumerConfig{Durable: "processor"})
	require.Equal(t, "CONSUMER.CREATE.orders.processor", verb)
}
