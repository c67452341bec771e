// Package main: watch tool.
//
// Tails the asset events the detector publishes to the message broker and
// logs them to console, one consumer per configured network.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/openwalletd/nftd/lib/config"
	"github.com/openwalletd/nftd/lib/msg/amqp"
)

func main() {
	// get command line flags
	confPath := flag.String("c", "", "flag to get configuration from json or yaml file")
	flag.Parse()

	// extract configuration
	conf, err := config.ExtractConfiguration(*confPath)
	if err != nil {
		panic(err)
	}

	// load message broker
	mb, err := amqp.New(conf.MbConn)
	if err != nil {
		panic(err)
	}

	defer func() {
		errClose := mb.Close()
		log.Printf("Closing messageBroker: %e", errClose)
	}()

	if err = mb.Setup(nil); err != nil {
		panic(err)
	}

	// for each configured chain establish a process to read events from the broker queues
	for _, ch := range conf.Chains {
		mut := new(sync.Mutex)
		mut.Lock()

		eveCh, errCh, err := mb.GetAssetEvents(ch.Name, mut)
		if err != nil {
			panic(err)
		}

		// launch event channel reader
		go func(netName string) {
			log.Printf("[%s] Start listening to asset event channel", netName)
			for eve := range eveCh {
				log.Printf("[%s] %s holds %d collectibles, %d contracts and %d tokens",
					netName, eve.Account, eve.Collectibles, eve.Contracts, eve.Tokens)
				mut.Unlock()
			}
			log.Printf("[%s] Stop listening to asset event channel", netName)
		}(ch.Name)

		// launch error channel reader
		go func(netName string) {
			for e := range errCh {
				log.Printf("[%s] Received error %+v", netName, e)
			}
		}(ch.Name)
	}

	// capture CTRL+C or docker's SIGTERM for gracious exit
	sigchan := make(chan os.Signal, 10)
	signal.Notify(sigchan, os.Interrupt, syscall.SIGTERM)
	<-sigchan
	log.Println("Program killed !")
}
