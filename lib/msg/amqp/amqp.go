// Package amqp implements the message broker interface for AMQP compliant brokers (ie RabbitMQ)
package amqp

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/streadway/amqp"

	"github.com/openwalletd/nftd/lib/msg/types"
)

// Amqp implements a connection to a broker and a channel for reuse.
type Amqp struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// New instantiates a new amqp broker.
func New(uri string) (*Amqp, error) {
	r := Amqp{}
	var err error

	if r.conn, err = amqp.Dial(uri); err != nil {
		return &r, err
	}
	r.ch = nil
	log.Printf("Connected to %s", uri)

	return &r, err
}

// Setup obtains an amqp channel and declares the message broker exchange:
//
// - ae ("asset events"): the detector publishes asset events to this exchange
func (r *Amqp) Setup(x interface{}) error {
	// obtain a one-use channel
	channel, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer channel.Close()
	// declare exchange
	return channel.ExchangeDeclare("ae", "topic", true, false, false, false, nil)
}

// Close terminates gracefully the connection to the AMQP message broker
func (r *Amqp) Close() error {
	if r.ch != nil {
		if err := r.ch.Close(); err != nil {
			log.Printf("Error closing amqp.Channel:%v", err)
		}
		r.ch = nil
		log.Printf("amqp.Channel closed!")
	}

	return r.conn.Close()
}

// SendAssetEvents publishes asset events to the "ae" exchange
func (r *Amqp) SendAssetEvents(net string, evs []types.AssetEvent) (err error) {
	for _, e := range evs {
		// marshal to JSON
		var jsonDoc []byte
		if jsonDoc, err = json.Marshal(e); err != nil {
			return
		}
		// obtain channel if not present
		if r.ch == nil {
			if r.ch, err = r.conn.Channel(); err != nil {
				return
			}
		}
		// build body
		msg := amqp.Publishing{
			Headers:     amqp.Table{"x-asset-name": net + "." + e.Account},
			Body:        jsonDoc,
			ContentType: "application/json",
		}
		// publish
		if err = r.ch.Publish("ae", net+".assets."+e.Account, false, false, msg); err != nil {
			log.Printf("[%s] Error sending asset event to message broker %v", net, err)
		}
	}

	return
}

// GetAssetEvents consumes events from the "ae" exchange pushing them to the returned channel. The Mutex pointer is provided to ensure the consumed message has been fully dealt with by the management function, so the message consumed is only acknowledged when the mutex is unlocked.
func (r *Amqp) GetAssetEvents(net string, mut *sync.Mutex) (<-chan types.AssetEvent, <-chan error, error) {
	var err error
	if r.ch == nil {
		if r.ch, err = r.conn.Channel(); err != nil {
			return nil, nil, err
		}
	}
	// declare queue
	if _, err = r.ch.QueueDeclare("ae"+net, true, false, false, false, nil); err != nil {
		return nil, nil, err
	}
	// bind queue to exchange
	if err = r.ch.QueueBind("ae"+net, net+".*.*", "ae", false, nil); err != nil {
		return nil, nil, err
	}
	// create channel for receiving events
	msgs, errCons := r.ch.Consume("ae"+net, "watch-"+net, false, false, false, false, nil)
	if errCons != nil {
		return nil, nil, errCons
	}
	// define channels to return
	eves := make(chan types.AssetEvent)
	errors := make(chan error)
	// start routine to consume messages from broker
	go func() {
		for m := range msgs {
			var e *types.AssetEvent = new(types.AssetEvent)
			err := json.Unmarshal(m.Body, e)
			if err != nil {
				errors <- err
				continue
			}
			eves <- *e
			mut.Lock() // wait for the consumer to finish processing the event
			m.Ack(false)
		}
	}()

	return eves, errors, nil
}
